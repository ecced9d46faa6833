package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/verte-zerg/keyrace/internal/store"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username or email already registered")
)

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Users reads and writes accounts.
type Users struct {
	db  *store.DB
	now func() time.Time
}

// NewUsers creates a user repository on db.
func NewUsers(db *store.DB) *Users {
	return &Users{db: db, now: time.Now}
}

var userColumns = []string{"id", "username", "email", "password_hash", "created_at"}

// Create inserts a new account with a generated id.
func (u *Users) Create(ctx context.Context, username, email, passwordHash string) (User, error) {
	user := User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        strings.ToLower(email),
		PasswordHash: passwordHash,
		CreatedAt:    u.now().UTC(),
	}
	query, args, err := u.db.Builder().Insert("users").
		Columns(userColumns...).
		Values(user.ID, user.Username, user.Email, user.PasswordHash, store.FormatTime(user.CreatedAt)).
		ToSql()
	if err != nil {
		return User{}, fmt.Errorf("failed to build user insert: %w", err)
	}
	if _, err := u.db.ExecContext(ctx, query, args...); err != nil {
		if store.IsUniqueViolation(err) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// ByID looks up an account by id.
func (u *Users) ByID(ctx context.Context, id string) (User, error) {
	return u.getOne(ctx, squirrel.Eq{"id": id})
}

// ByLogin looks up an account by username or email.
func (u *Users) ByLogin(ctx context.Context, login string) (User, error) {
	login = strings.TrimSpace(login)
	if strings.Contains(login, "@") {
		return u.getOne(ctx, squirrel.Eq{"email": strings.ToLower(login)})
	}
	return u.getOne(ctx, squirrel.Eq{"username": login})
}

func (u *Users) getOne(ctx context.Context, where squirrel.Sqlizer) (User, error) {
	query, args, err := u.db.Builder().Select(userColumns...).From("users").Where(where).Limit(1).ToSql()
	if err != nil {
		return User{}, fmt.Errorf("failed to build user query: %w", err)
	}
	var user User
	var createdAt string
	err = u.db.QueryRowContext(ctx, query, args...).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("failed to query user: %w", err)
	}
	if user.CreatedAt, err = store.ParseTime(createdAt); err != nil {
		return User{}, err
	}
	return user, nil
}
