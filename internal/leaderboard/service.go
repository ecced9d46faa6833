package leaderboard

import (
	"context"
	"errors"
	"fmt"

	"github.com/verte-zerg/keyrace/internal/auth"
	"github.com/verte-zerg/keyrace/internal/model"
)

var (
	ErrNotAuthenticated = errors.New("log in to save scores")
	ErrNotFinished      = errors.New("test is not finished")
	ErrNothingToSave    = errors.New("nothing to save: wpm is zero")
)

// Service saves finished tests for an identity and announces new entries.
type Service struct {
	store Store
	feed  *Feed
}

// NewService creates a Service. feed may be nil.
func NewService(store Store, feed *Feed) *Service {
	return &Service{store: store, feed: feed}
}

// SaveScore submits the result of a finished test. The test state is only
// read; a failed save leaves it as it was.
func (s *Service) SaveScore(ctx context.Context, id auth.Identity, st model.TestState) (Entry, error) {
	if !id.IsAuthenticated || id.UserID == "" {
		return Entry{}, ErrNotAuthenticated
	}
	if !st.IsFinished {
		return Entry{}, ErrNotFinished
	}
	if st.Stats.WPM <= 0 {
		return Entry{}, ErrNothingToSave
	}
	name := id.Username
	if name == "" {
		name = auth.AnonymousName
	}
	return s.Submit(ctx, ScoreFrom(id.UserID, name, st))
}

// Submit stores score and publishes the entry on the feed.
func (s *Service) Submit(ctx context.Context, score Score) (Entry, error) {
	entry, err := s.store.Submit(ctx, score.Normalize())
	if err != nil {
		return Entry{}, fmt.Errorf("failed to save score: %w", err)
	}
	if s.feed != nil {
		s.feed.Publish(entry)
	}
	return entry, nil
}

// Top lists the leaderboard.
func (s *Service) Top(ctx context.Context, q Query) ([]Entry, error) {
	entries, err := s.store.Top(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return entries, nil
}
