// Package leaderboard stores and ranks finished typing test results.
package leaderboard

import (
	"context"
	"time"

	"github.com/verte-zerg/keyrace/internal/model"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Entry is one ranked result.
type Entry struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Username  string     `json:"username"`
	WPM       int        `json:"wpm"`
	Accuracy  int        `json:"accuracy"`
	Mode      model.Mode `json:"mode"`
	Time      *int       `json:"time_setting,omitempty"`
	Words     *int       `json:"word_count,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Score is a result submitted for ranking.
type Score struct {
	UserID   string     `json:"user_id" validate:"required"`
	Username string     `json:"username" validate:"required,max=64"`
	WPM      int        `json:"wpm" validate:"min=0"`
	Accuracy int        `json:"accuracy" validate:"min=0,max=100"`
	Mode     model.Mode `json:"mode" validate:"required,oneof=time words quote"`
	Time     *int       `json:"time_setting,omitempty" validate:"omitempty,gt=0"`
	Words    *int       `json:"word_count,omitempty" validate:"omitempty,gt=0"`
}

// Query selects a leaderboard listing. An empty Mode lists every mode.
type Query struct {
	Mode  model.Mode
	Limit int
}

// Normalize clamps Limit into [1, MaxLimit], defaulting to DefaultLimit.
func (q Query) Normalize() Query {
	switch {
	case q.Limit <= 0:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	return q
}

// Store persists scores and lists the best ones, highest WPM first with
// earlier submissions winning ties.
type Store interface {
	Submit(ctx context.Context, score Score) (Entry, error)
	Top(ctx context.Context, q Query) ([]Entry, error)
}

// ScoreFrom builds the submission for a finished test. The mode parameter is
// recorded only for the mode it applies to.
func ScoreFrom(userID, username string, st model.TestState) Score {
	t, w := st.Config.Time, st.Config.Words
	score := Score{
		UserID:   userID,
		Username: username,
		WPM:      st.Stats.WPM,
		Accuracy: st.Stats.Accuracy,
		Mode:     st.Config.Mode,
		Time:     &t,
		Words:    &w,
	}
	return score.Normalize()
}

// Normalize clears the parameter that does not belong to the score's mode:
// time keeps only Time, words keeps only Words and quote keeps neither.
func (s Score) Normalize() Score {
	switch s.Mode {
	case model.ModeTime:
		s.Words = nil
	case model.ModeWords:
		s.Time = nil
	default:
		s.Time = nil
		s.Words = nil
	}
	return s
}
