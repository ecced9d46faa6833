// Package tui provides the Bubble Tea typing interface.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/timer"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/keyrace/internal/auth"
	"github.com/verte-zerg/keyrace/internal/clock"
	"github.com/verte-zerg/keyrace/internal/leaderboard"
	"github.com/verte-zerg/keyrace/internal/model"
	"github.com/verte-zerg/keyrace/internal/session"
)

const (
	tickInterval = 100 * time.Millisecond
	saveTimeout  = 10 * time.Second
)

// Saver stores a finished test on the leaderboard.
type Saver interface {
	SaveScore(ctx context.Context, id auth.Identity, st model.TestState) (leaderboard.Entry, error)
}

// Options configures a Model.
type Options struct {
	Config model.TestConfig
	Source session.TextSource
	// Saver is nil when no leaderboard is configured.
	Saver    Saver
	Identity auth.Identity
	Clock    clock.Clock
	Log      zerolog.Logger
}

type tickMsg struct{ gen uint64 }

type savedMsg struct {
	gen   uint64
	entry leaderboard.Entry
	err   error
}

// Model implements the Bubble Tea typing UI.
type Model struct {
	sess     *session.Session
	cfg      model.TestConfig
	saver    Saver
	identity auth.Identity

	state model.TestState
	gen   uint64

	// timer counts down a time-mode test; it is armed on the first keystroke.
	timer    timer.Model
	timerGen uint64
	hasTimer bool

	saving  bool
	saved   *leaderboard.Entry
	saveErr string
	errMsg  string

	width  int
	height int
}

// NewModel starts an idle test.
func NewModel(opts Options) (*Model, error) {
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}
	// Live stats are refreshed by tickMsg, so the session's own ticker stays off.
	sess, err := session.New(opts.Config, opts.Source,
		session.WithClock(c),
		session.WithTickInterval(0),
		session.WithLogger(opts.Log),
	)
	if err != nil {
		return nil, err
	}
	m := &Model{
		sess:     sess,
		cfg:      opts.Config,
		saver:    opts.Saver,
		identity: opts.Identity,
	}
	m.sync()
	return m, nil
}

// State returns the latest snapshot of the running test.
func (m *Model) State() model.TestState {
	return m.state
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.sess.Close()
			return m, tea.Quit
		}
		if m.state.IsFinished {
			return m.updateResults(msg)
		}
		return m.updateTyping(msg)
	case tickMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.sess.Recompute(msg.gen)
		m.sync()
		if m.state.Phase() != model.PhaseActive {
			return m, nil
		}
		return m, tick(m.gen)
	case timer.TickMsg, timer.StartStopMsg:
		var cmd tea.Cmd
		m.timer, cmd = m.timer.Update(msg)
		return m, cmd
	case timer.TimeoutMsg:
		if !m.hasTimer || msg.ID != m.timer.ID() {
			return m, nil
		}
		m.sess.Expire(m.timerGen)
		m.sync()
		return m, nil
	case savedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.saving = false
		if msg.err != nil {
			m.saveErr = msg.err.Error()
			return m, nil
		}
		entry := msg.entry
		m.saved = &entry
		return m, nil
	}
	return m, nil
}

func (m *Model) updateTyping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.restart()
		return m, nil
	case tea.KeyTab:
		m.newTest()
		return m, nil
	case tea.KeyBackspace, tea.KeyDelete:
		m.sess.HandleBackspace()
		m.sync()
		return m, nil
	case tea.KeySpace, tea.KeyRunes:
		// Alt chords are shortcuts, not text.
		if msg.Alt {
			return m, nil
		}
		if msg.Type == tea.KeySpace {
			return m, m.typeRunes([]rune{' '})
		}
		return m, m.typeRunes(msg.Runes)
	default:
		return m, nil
	}
}

func (m *Model) updateResults(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "s":
		return m, m.save()
	case "enter", "tab":
		m.newTest()
	case "esc":
		m.restart()
	case "q":
		m.sess.Close()
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) typeRunes(runes []rune) tea.Cmd {
	before := m.state.Phase()
	for _, r := range runes {
		m.sess.HandleInput(r)
	}
	m.sync()
	if before != model.PhaseIdle || m.state.Phase() != model.PhaseActive {
		return nil
	}
	cmds := []tea.Cmd{tick(m.gen)}
	if m.cfg.Mode == model.ModeTime {
		m.timer = timer.NewWithInterval(time.Duration(m.cfg.Time)*time.Second, time.Second)
		m.timerGen = m.gen
		m.hasTimer = true
		cmds = append(cmds, m.timer.Init())
	}
	return tea.Batch(cmds...)
}

func (m *Model) save() tea.Cmd {
	if m.saving || m.saved != nil {
		return nil
	}
	if m.saver == nil {
		m.saveErr = "no leaderboard server configured"
		return nil
	}
	m.saving = true
	m.saveErr = ""
	saver, id, st, gen := m.saver, m.identity, m.state, m.gen
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		entry, err := saver.SaveScore(ctx, id, st)
		return savedMsg{gen: gen, entry: entry, err: err}
	}
}

// restart replays the same text.
func (m *Model) restart() {
	m.sess.Restart()
	m.afterReload(nil)
}

// newTest generates fresh text with the same configuration.
func (m *Model) newTest() {
	_, err := m.sess.LoadNewText(m.cfg)
	m.afterReload(err)
}

func (m *Model) afterReload(err error) {
	m.timer = timer.Model{}
	m.hasTimer = false
	m.saving = false
	m.saved = nil
	m.saveErr = ""
	m.errMsg = ""
	if err != nil {
		m.errMsg = err.Error()
	}
	m.sync()
}

func (m *Model) sync() {
	m.state = m.sess.Snapshot()
	m.gen = m.sess.Generation()
}

func tick(gen uint64) tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return tickMsg{gen: gen}
	})
}
