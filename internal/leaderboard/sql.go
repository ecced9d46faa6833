package leaderboard

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/verte-zerg/keyrace/internal/apperr"
	"github.com/verte-zerg/keyrace/internal/model"
	"github.com/verte-zerg/keyrace/internal/store"
	"github.com/verte-zerg/keyrace/internal/validate"
)

// SQLStore keeps the leaderboard in the shared database.
type SQLStore struct {
	db  *store.DB
	now func() time.Time
}

// NewSQLStore creates a Store backed by db.
func NewSQLStore(db *store.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

var entryColumns = []string{
	"id", "user_id", "username", "wpm", "accuracy", "mode", "time_setting", "word_count", "created_at",
}

// Submit validates and stores a score.
func (s *SQLStore) Submit(ctx context.Context, score Score) (Entry, error) {
	if fields := validate.Struct(score); fields != nil {
		return Entry{}, apperr.Validation(fields)
	}
	entry := Entry{
		ID:        uuid.New().String(),
		UserID:    score.UserID,
		Username:  score.Username,
		WPM:       score.WPM,
		Accuracy:  score.Accuracy,
		Mode:      score.Mode,
		Time:      score.Time,
		Words:     score.Words,
		CreatedAt: s.now().UTC(),
	}
	query, args, err := s.db.Builder().Insert("leaderboard").
		Columns(entryColumns...).
		Values(entry.ID, entry.UserID, entry.Username, entry.WPM, entry.Accuracy, string(entry.Mode),
			nullInt(entry.Time), nullInt(entry.Words), store.FormatTime(entry.CreatedAt)).
		ToSql()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to build score insert: %w", err)
	}
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return Entry{}, fmt.Errorf("failed to insert score: %w", err)
	}
	return entry, nil
}

// Top lists the best entries for q.
func (s *SQLStore) Top(ctx context.Context, q Query) ([]Entry, error) {
	q = q.Normalize()
	builder := s.db.Builder().Select(entryColumns...).From("leaderboard")
	if q.Mode != "" {
		builder = builder.Where(squirrel.Eq{"mode": string(q.Mode)})
	}
	query, args, err := builder.
		OrderBy("wpm DESC", "created_at ASC").
		Limit(uint64(q.Limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build leaderboard query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var mode, createdAt string
		var t, w sql.NullInt64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Username, &e.WPM, &e.Accuracy, &mode, &t, &w, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		e.Mode = model.Mode(mode)
		e.Time = intPtr(t)
		e.Words = intPtr(w)
		if e.CreatedAt, err = store.ParseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard rows: %w", err)
	}
	return entries, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}
