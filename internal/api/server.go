// Package api serves the leaderboard, accounts and hosted typing tests over
// HTTP and websockets.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/keyrace/internal/apperr"
	"github.com/verte-zerg/keyrace/internal/auth"
	"github.com/verte-zerg/keyrace/internal/clock"
	"github.com/verte-zerg/keyrace/internal/leaderboard"
	"github.com/verte-zerg/keyrace/internal/model"
	"github.com/verte-zerg/keyrace/internal/session"
)

// Pinger reports database health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Auth           *auth.Service
	Leaderboard    *leaderboard.Service
	Feed           *leaderboard.Feed
	Texts          session.TextSource
	DB             Pinger
	Log            zerolog.Logger
	AllowedOrigins []string
	// Clock and TickInterval configure hosted sessions.
	Clock        clock.Clock
	TickInterval time.Duration
}

type Server struct {
	auth         *auth.Service
	leaderboard  *leaderboard.Service
	feed         *leaderboard.Feed
	texts        session.TextSource
	db           Pinger
	log          zerolog.Logger
	upgrader     websocket.Upgrader
	clock        clock.Clock
	tickInterval time.Duration
}

// New creates a Server from opts.
func New(opts Options) *Server {
	s := &Server{
		auth:         opts.Auth,
		leaderboard:  opts.Leaderboard,
		feed:         opts.Feed,
		texts:        opts.Texts,
		db:           opts.DB,
		log:          opts.Log.With().Str("component", "api").Logger(),
		upgrader:     buildUpgrader(opts.AllowedOrigins),
		clock:        opts.Clock,
		tickInterval: opts.TickInterval,
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.tickInterval == 0 {
		s.tickInterval = session.DefaultTickInterval
	}
	if s.feed == nil {
		s.feed = leaderboard.NewFeed()
	}
	return s
}

// Routes returns the HTTP handler with all routes configured.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoveryMiddleware)
	r.Use(s.loggingMiddleware)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handleError(w, r, apperr.NotFound("route", r.URL.Path))
	})

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.With(s.requireAuth).Get("/auth/me", s.handleMe)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.With(s.requireAuth).Post("/scores", s.handleSubmitScore)
	})

	r.Get("/ws/feed", s.handleFeed)
	r.With(s.optionalAuth).Get("/ws/session", s.handleSession)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("health check failed - database")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	sess, err := s.auth.Register(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().Str("user_id", sess.User.UserID).Msg("user registered")
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	sess, err := s.auth.Login(r.Context(), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, identityFromContext(r.Context()))
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		handleError(w, r, err)
		return
	}
	entries, err := s.leaderboard.Top(r.Context(), q)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func parseQuery(r *http.Request) (leaderboard.Query, error) {
	var q leaderboard.Query
	if raw := r.URL.Query().Get("mode"); raw != "" {
		mode, err := model.ParseMode(raw)
		if err != nil {
			return q, apperr.Validation(map[string]string{"mode": err.Error()})
		}
		q.Mode = mode
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return q, apperr.Validation(map[string]string{"limit": "limit must be a positive integer"})
		}
		q.Limit = limit
	}
	return q.Normalize(), nil
}

// scoreRequest is the body of POST /api/scores. The submitter comes from the token.
type scoreRequest struct {
	WPM      int        `json:"wpm"`
	Accuracy int        `json:"accuracy"`
	Mode     model.Mode `json:"mode"`
	Time     *int       `json:"time_setting,omitempty"`
	Words    *int       `json:"word_count,omitempty"`
	// Ignored; sent by clients that post a full leaderboard.Score.
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

func (s *Server) handleSubmitScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}
	id := identityFromContext(r.Context())
	name := id.Username
	if name == "" {
		name = auth.AnonymousName
	}
	entry, err := s.leaderboard.Submit(r.Context(), leaderboard.Score{
		UserID:   id.UserID,
		Username: name,
		WPM:      req.WPM,
		Accuracy: req.Accuracy,
		Mode:     req.Mode,
		Time:     req.Time,
		Words:    req.Words,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().
		Str("user_id", entry.UserID).
		Int("wpm", entry.WPM).
		Str("mode", string(entry.Mode)).
		Msg("score submitted")
	writeJSON(w, http.StatusCreated, entry)
}
