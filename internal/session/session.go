// Package session hosts a typing test for concurrent callers: keystrokes,
// timer callbacks and the live stats ticker are serialized onto one state.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/verte-zerg/keyrace/internal/clock"
	"github.com/verte-zerg/keyrace/internal/model"
	"github.com/verte-zerg/keyrace/internal/typing"
)

// DefaultTickInterval is the live stats refresh period.
const DefaultTickInterval = 100 * time.Millisecond

// TextSource produces the word list for a new test.
type TextSource interface {
	Generate(cfg model.TestConfig) ([]string, error)
}

// Observer receives a snapshot after ticks and terminal transitions.
type Observer func(model.TestState)

// Option configures a Session.
type Option func(*Session)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithTickInterval sets the live stats period. Zero disables the ticker.
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) { s.tickInterval = d }
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithNotify registers an observer.
func WithNotify(fn Observer) Option {
	return func(s *Session) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

type ticker struct {
	stop chan struct{}
	done chan struct{}
}

// Session owns one TestState at a time. All methods are safe for concurrent use.
type Session struct {
	mu           sync.Mutex
	clock        clock.Clock
	source       TextSource
	log          zerolog.Logger
	observers    []Observer
	tickInterval time.Duration

	state      model.TestState
	generation uint64
	ticker     *ticker
	closed     bool

	// seq orders snapshots taken under mu; notifyMu serializes delivery so
	// observers never see an older snapshot after a newer one.
	seq       uint64
	notifyMu  sync.Mutex
	delivered uint64
}

// New builds an idle session over freshly generated text.
func New(cfg model.TestConfig, source TextSource, opts ...Option) (*Session, error) {
	if source == nil {
		return nil, fmt.Errorf("text source is nil")
	}
	s := &Session{
		clock:        clock.Real{},
		source:       source,
		log:          zerolog.Nop(),
		tickInterval: DefaultTickInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	st, err := s.build(cfg)
	if err != nil {
		return nil, err
	}
	s.state = st
	s.generation = 1
	return s, nil
}

func (s *Session) build(cfg model.TestConfig) (model.TestState, error) {
	if err := cfg.Validate(); err != nil {
		return model.TestState{}, fmt.Errorf("invalid test config: %w", err)
	}
	words, err := s.source.Generate(cfg)
	if err != nil {
		return model.TestState{}, fmt.Errorf("failed to generate text: %w", err)
	}
	return typing.NewState(cfg, words), nil
}

// HandleInput applies one typed character and returns the resulting snapshot.
func (s *Session) HandleInput(r rune) model.TestState {
	return s.apply(func(st model.TestState, now time.Time) model.TestState {
		return typing.Input(st, r, now)
	})
}

// HandleBackspace reverts the last character of the current word.
func (s *Session) HandleBackspace() model.TestState {
	return s.apply(func(st model.TestState, _ time.Time) model.TestState {
		return typing.Backspace(st)
	})
}

// Finish ends the test explicitly. Idle or finished sessions are unchanged.
func (s *Session) Finish() model.TestState {
	return s.apply(typing.Finish)
}

// Expire is the timer expiry callback for generation gen. Stale generations
// are ignored and report false.
func (s *Session) Expire(gen uint64) bool {
	_, ok := s.applyGen(gen, true, typing.Finish)
	if !ok {
		s.log.Debug().Uint64("generation", gen).Msg("ignoring stale expiry")
	}
	return ok
}

// Recompute refreshes live stats for generation gen. It reports false once
// gen is stale or the test is no longer active.
func (s *Session) Recompute(gen uint64) bool {
	s.mu.Lock()
	if gen != s.generation || s.state.Phase() != model.PhaseActive {
		s.mu.Unlock()
		return false
	}
	s.state = typing.Recompute(s.state, s.clock.Now())
	snap := s.state.Clone()
	observers := s.observers
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	s.deliver(observers, seq, snap)
	return true
}

// Reset discards the current test and installs a fresh one with the same config.
func (s *Session) Reset() (model.TestState, error) {
	s.mu.Lock()
	cfg := s.state.Config
	s.mu.Unlock()
	return s.LoadNewText(cfg)
}

// LoadNewText replaces the test with freshly generated text for cfg.
func (s *Session) LoadNewText(cfg model.TestConfig) (model.TestState, error) {
	st, err := s.build(cfg)
	if err != nil {
		return model.TestState{}, err
	}
	return s.install(st), nil
}

// Restart replays the current text from the beginning under a new generation.
func (s *Session) Restart() model.TestState {
	s.mu.Lock()
	st := typing.NewState(s.state.Config, append([]string(nil), s.state.Text...))
	s.mu.Unlock()
	return s.install(st)
}

// install swaps in st. The previous ticker is stopped and drained first.
func (s *Session) install(st model.TestState) model.TestState {
	for {
		s.mu.Lock()
		done := s.stopTickerLocked()
		if done == nil {
			s.generation++
			s.state = st
			snap := s.state.Clone()
			gen := s.generation
			s.mu.Unlock()
			s.log.Debug().Uint64("generation", gen).Str("mode", string(st.Config.Mode)).Msg("installed test")
			return snap
		}
		s.mu.Unlock()
		<-done
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Session) Snapshot() model.TestState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Generation identifies the installed test. It changes on every reset.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Remaining reports how much of a time-mode test is left, or zero for other modes.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Config.Mode != model.ModeTime {
		return 0
	}
	limit := time.Duration(s.state.Config.Time) * time.Second
	if s.state.StartTime == nil {
		return limit
	}
	end := s.clock.Now()
	if s.state.EndTime != nil {
		end = *s.state.EndTime
	}
	left := limit - end.Sub(*s.state.StartTime)
	if left < 0 {
		return 0
	}
	return left
}

// Close stops the ticker and waits for it. The session stays readable.
func (s *Session) Close() {
	for {
		s.mu.Lock()
		s.closed = true
		done := s.stopTickerLocked()
		s.mu.Unlock()
		if done == nil {
			return
		}
		<-done
	}
}

func (s *Session) apply(fn func(model.TestState, time.Time) model.TestState) model.TestState {
	snap, _ := s.applyGen(0, false, fn)
	return snap
}

// applyGen runs fn under the lock. With checkGen set, fn only runs while gen
// is still the installed generation.
func (s *Session) applyGen(gen uint64, checkGen bool, fn func(model.TestState, time.Time) model.TestState) (model.TestState, bool) {
	s.mu.Lock()
	if checkGen && gen != s.generation {
		s.mu.Unlock()
		return model.TestState{}, false
	}
	before := s.state.Phase()
	s.state = fn(s.state, s.clock.Now())
	after := s.state.Phase()
	snap := s.state.Clone()

	if before == model.PhaseIdle && after == model.PhaseActive {
		s.startTickerLocked()
	}
	terminal := before != model.PhaseFinished && after == model.PhaseFinished
	if terminal {
		s.stopTickerLocked()
	}
	observers := s.observers
	current := s.generation
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	if terminal {
		s.log.Debug().
			Uint64("generation", current).
			Int("wpm", snap.Stats.WPM).
			Int("accuracy", snap.Stats.Accuracy).
			Msg("test finished")
		s.deliver(observers, seq, snap)
	}
	return snap, true
}

func (s *Session) startTickerLocked() {
	if s.closed || s.tickInterval <= 0 || s.ticker != nil {
		return
	}
	t := &ticker{stop: make(chan struct{}), done: make(chan struct{})}
	s.ticker = t
	go s.runTicker(s.generation, s.tickInterval, t)
}

// stopTickerLocked signals the running ticker, if any, and returns a channel
// closed once its goroutine exits. The caller must not wait while holding mu.
func (s *Session) stopTickerLocked() <-chan struct{} {
	if s.ticker == nil {
		return nil
	}
	t := s.ticker
	s.ticker = nil
	close(t.stop)
	return t.done
}

func (s *Session) runTicker(gen uint64, interval time.Duration, t *ticker) {
	defer close(t.done)
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-tk.C:
			if !s.Recompute(gen) {
				return
			}
		}
	}
}

// deliver hands snap to observers unless a later snapshot already went out.
func (s *Session) deliver(observers []Observer, seq uint64, snap model.TestState) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if seq <= s.delivered {
		return
	}
	s.delivered = seq
	notify(observers, snap)
}

func notify(observers []Observer, snap model.TestState) {
	for _, fn := range observers {
		fn(snap)
	}
}
