package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/keyrace/internal/clock"
	"github.com/verte-zerg/keyrace/internal/model"
)

type fixedSource struct {
	words []string
	err   error
	calls int
}

func (f *fixedSource) Generate(model.TestConfig) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]string(nil), f.words...), nil
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newSession(t *testing.T, cfg model.TestConfig, words []string, opts ...Option) (*Session, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(epoch)
	opts = append([]Option{WithClock(clk), WithTickInterval(0)}, opts...)
	s, err := New(cfg, &fixedSource{words: words}, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, clk
}

func typeString(s *Session, text string) {
	for _, r := range text {
		s.HandleInput(r)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(model.TestConfig{Mode: model.ModeWords}, &fixedSource{words: []string{"a"}})
	require.Error(t, err)

	_, err = New(model.TestConfig{Mode: model.ModeWords, Words: 1}, &fixedSource{err: errors.New("boom")})
	require.ErrorContains(t, err, "boom")

	_, err = New(model.TestConfig{Mode: model.ModeWords, Words: 1}, nil)
	require.Error(t, err)
}

func TestCompleteWordsTest(t *testing.T) {
	var finished []model.TestState
	s, clk := newSession(t, model.TestConfig{Mode: model.ModeWords, Words: 2}, []string{"cat", "dog"},
		WithNotify(func(st model.TestState) {
			if st.IsFinished {
				finished = append(finished, st)
			}
		}))

	assert.Equal(t, model.PhaseIdle, s.Snapshot().Phase())
	typeString(s, "cat ")
	clk.Advance(12 * time.Second)
	typeString(s, "dog ")

	st := s.Snapshot()
	assert.Equal(t, model.PhaseFinished, st.Phase())
	assert.Equal(t, 6, st.Stats.CorrectChars)
	assert.Equal(t, 100, st.Stats.Accuracy)
	assert.Equal(t, 6, st.Stats.WPM)
	require.Len(t, finished, 1)
	assert.Equal(t, st.Stats, finished[0].Stats)

	// Finished sessions ignore input.
	after := s.HandleInput('x')
	assert.Equal(t, st.UserInput, after.UserInput)
	assert.Len(t, finished, 1)
}

func TestExpireFinishesCurrentGenerationOnly(t *testing.T) {
	s, clk := newSession(t, model.TestConfig{Mode: model.ModeTime, Time: 15}, []string{"cat", "dog"})
	gen := s.Generation()

	// Idle sessions do not finish on expiry.
	assert.True(t, s.Expire(gen))
	assert.Equal(t, model.PhaseIdle, s.Snapshot().Phase())

	typeString(s, "cxt ")
	clk.Advance(30 * time.Second)
	assert.False(t, s.Expire(gen+1))
	assert.Equal(t, model.PhaseActive, s.Snapshot().Phase())

	assert.True(t, s.Expire(gen))
	st := s.Snapshot()
	require.True(t, st.IsFinished)
	assert.Equal(t, 2, st.Stats.CorrectChars)
	assert.Equal(t, 1, st.Stats.IncorrectChars)
	assert.Equal(t, 67, st.Stats.Accuracy)
	assert.Equal(t, 30.0, st.Stats.TimeElapsed)
}

func TestResetInstallsFreshStateAndNewGeneration(t *testing.T) {
	src := &fixedSource{words: []string{"cat"}}
	clk := clock.NewManual(epoch)
	s, err := New(model.TestConfig{Mode: model.ModeWords, Words: 1}, src, WithClock(clk), WithTickInterval(0))
	require.NoError(t, err)
	defer s.Close()

	typeString(s, "ca")
	gen := s.Generation()

	st, err := s.Reset()
	require.NoError(t, err)
	assert.Equal(t, model.PhaseIdle, st.Phase())
	assert.Empty(t, st.UserInput)
	assert.Equal(t, 0, st.CurrentCharIndex)
	assert.Greater(t, s.Generation(), gen)
	assert.Equal(t, 2, src.calls)

	// The old generation's timer must not reach the new test.
	typeString(s, "c")
	assert.False(t, s.Expire(gen))
	assert.False(t, s.Snapshot().IsFinished)
}

func TestRestartReplaysSameText(t *testing.T) {
	src := &fixedSource{words: []string{"cat", "dog"}}
	s, err := New(model.TestConfig{Mode: model.ModeWords, Words: 2}, src, WithClock(clock.NewManual(epoch)), WithTickInterval(0))
	require.NoError(t, err)
	defer s.Close()

	typeString(s, "cat d")
	gen := s.Generation()

	st := s.Restart()
	assert.Equal(t, []string{"cat", "dog"}, st.Text)
	assert.Equal(t, model.PhaseIdle, st.Phase())
	assert.Equal(t, 0, st.CurrentWordIndex)
	assert.Equal(t, 1, src.calls, "restart must not generate new text")
	assert.Greater(t, s.Generation(), gen)
}

func TestLoadNewTextChangesConfig(t *testing.T) {
	s, _ := newSession(t, model.TestConfig{Mode: model.ModeWords, Words: 1}, []string{"cat"})

	st, err := s.LoadNewText(model.TestConfig{Mode: model.ModeTime, Time: 30})
	require.NoError(t, err)
	assert.Equal(t, model.ModeTime, st.Config.Mode)
	assert.Equal(t, 30*time.Second, s.Remaining())

	_, err = s.LoadNewText(model.TestConfig{Mode: model.ModeTime})
	require.Error(t, err)
	assert.Equal(t, model.ModeTime, s.Snapshot().Config.Mode)
}

func TestRemainingCountsDownFromStart(t *testing.T) {
	s, clk := newSession(t, model.TestConfig{Mode: model.ModeTime, Time: 15}, []string{"cat", "dog"})
	clk.Advance(5 * time.Second)
	assert.Equal(t, 15*time.Second, s.Remaining())

	s.HandleInput('c')
	clk.Advance(10 * time.Second)
	assert.Equal(t, 5*time.Second, s.Remaining())
	clk.Advance(10 * time.Second)
	assert.Equal(t, time.Duration(0), s.Remaining())
}

func TestSnapshotIsIsolated(t *testing.T) {
	s, _ := newSession(t, model.TestConfig{Mode: model.ModeWords, Words: 1}, []string{"cat"})
	snap := s.Snapshot()
	snap.Words[0].Characters[0].Status = model.StatusCorrect
	assert.Equal(t, model.StatusPending, s.Snapshot().Words[0].Characters[0].Status)
}

func TestTickerRecomputesWhileActive(t *testing.T) {
	var ticks atomic.Int32
	clk := clock.NewManual(epoch)
	s, err := New(model.TestConfig{Mode: model.ModeTime, Time: 60}, &fixedSource{words: []string{"cat", "dog"}},
		WithClock(clk),
		WithTickInterval(5*time.Millisecond),
		WithNotify(func(st model.TestState) {
			if !st.IsFinished {
				ticks.Add(1)
			}
		}))
	require.NoError(t, err)
	defer s.Close()

	typeString(s, "cat ")
	clk.Advance(12 * time.Second)

	require.Eventually(t, func() bool {
		return s.Snapshot().Stats.WPM == 3
	}, time.Second, 5*time.Millisecond)
	assert.Positive(t, ticks.Load())

	s.Finish()
	final := s.Snapshot()
	clk.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, final.Stats, s.Snapshot().Stats)
}

func TestFinishedNotificationIsLast(t *testing.T) {
	var (
		mu     sync.Mutex
		phases []model.Phase
		once   sync.Once
	)
	entered := make(chan struct{})
	release := make(chan struct{})
	s, _ := newSession(t, model.TestConfig{Mode: model.ModeWords, Words: 1}, []string{"ab"},
		WithNotify(func(st model.TestState) {
			if !st.IsFinished {
				once.Do(func() {
					close(entered)
					<-release
				})
			}
			mu.Lock()
			phases = append(phases, st.Phase())
			mu.Unlock()
		}))

	typeString(s, "a")
	gen := s.Generation()

	recomputed := make(chan struct{})
	go func() {
		s.Recompute(gen)
		close(recomputed)
	}()
	<-entered

	typed := make(chan struct{})
	go func() {
		typeString(s, "b ")
		close(typed)
	}()
	require.Eventually(t, func() bool {
		return s.Snapshot().IsFinished
	}, time.Second, time.Millisecond)

	close(release)
	<-recomputed
	<-typed

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []model.Phase{model.PhaseActive, model.PhaseFinished}, phases)
}

func TestResetStopsTicker(t *testing.T) {
	clk := clock.NewManual(epoch)
	s, err := New(model.TestConfig{Mode: model.ModeWords, Words: 2}, &fixedSource{words: []string{"cat", "dog"}},
		WithClock(clk), WithTickInterval(time.Millisecond))
	require.NoError(t, err)
	defer s.Close()

	typeString(s, "ca")
	_, err = s.Reset()
	require.NoError(t, err)

	clk.Advance(10 * time.Second)
	time.Sleep(10 * time.Millisecond)
	st := s.Snapshot()
	assert.Equal(t, model.PhaseIdle, st.Phase())
	assert.Equal(t, model.InitialStats, st.Stats)
}

func TestConcurrentInputIsSerialized(t *testing.T) {
	words := make([]string, 50)
	for i := range words {
		words[i] = "a"
	}
	clk := clock.NewManual(epoch)
	s, err := New(model.TestConfig{Mode: model.ModeWords, Words: len(words)}, &fixedSource{words: words},
		WithClock(clk), WithTickInterval(time.Millisecond))
	require.NoError(t, err)
	defer s.Close()

	// Interleaving rejects or misplaces some keys, but the stats must always
	// agree with the character states.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				s.HandleInput('a')
				s.HandleInput(' ')
			}
		}()
	}
	wg.Wait()
	s.Finish()

	st := s.Snapshot()
	correct, incorrect := 0, 0
	for _, w := range st.Words {
		for _, ch := range w.Characters {
			switch ch.Status {
			case model.StatusCorrect:
				correct++
			case model.StatusIncorrect:
				incorrect++
			}
		}
	}
	assert.True(t, st.IsFinished)
	assert.Equal(t, correct, st.Stats.CorrectChars)
	assert.Equal(t, incorrect, st.Stats.IncorrectChars)
	assert.Equal(t, correct+incorrect, st.Stats.TotalChars)
}
