// Package leaderboardui provides the Bubble Tea leaderboard browser.
package leaderboardui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/keyrace/internal/leaderboard"
	"github.com/verte-zerg/keyrace/internal/model"
	"github.com/verte-zerg/keyrace/internal/stats"
)

const fetchTimeout = 15 * time.Second

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Fetcher lists leaderboard entries.
type Fetcher interface {
	Top(ctx context.Context, q leaderboard.Query) ([]leaderboard.Entry, error)
}

// tab is one mode filter; the empty mode lists everything.
type tab struct {
	title string
	mode  model.Mode
}

var tabs = []tab{
	{title: "All"},
	{title: "Time", mode: model.ModeTime},
	{title: "Words", mode: model.ModeWords},
	{title: "Quote", mode: model.ModeQuote},
}

type entriesMsg struct {
	query   leaderboard.Query
	entries []leaderboard.Entry
	err     error
}

type liveMsg struct {
	entry leaderboard.Entry
	ok    bool
}

// Options configures a Model.
type Options struct {
	Fetcher Fetcher
	Query   leaderboard.Query
	// Live delivers newly submitted entries; nil disables live refresh.
	Live <-chan leaderboard.Entry
}

// Model implements the Bubble Tea leaderboard UI.
type Model struct {
	fetcher Fetcher
	live    <-chan leaderboard.Entry

	activeTab int
	limit     int
	entries   []leaderboard.Entry
	loading   bool
	errMsg    string
	lastLive  *leaderboard.Entry

	table table.Model

	limitMode  bool
	limitInput textinput.Model
	limitError string

	width  int
	height int
}

// NewModel constructs a leaderboard UI model.
func NewModel(opts Options) *Model {
	q := opts.Query.Normalize()
	m := &Model{
		fetcher: opts.Fetcher,
		live:    opts.Live,
		limit:   q.Limit,
		table:   buildTable(nil, 0, 1),
	}
	for i, t := range tabs {
		if t.mode == q.Mode {
			m.activeTab = i
		}
	}
	m.limitInput = textinput.New()
	m.limitInput.Prompt = "Limit: "
	m.limitInput.Placeholder = strconv.Itoa(leaderboard.DefaultLimit)
	m.limitInput.CharLimit = 3
	m.limitInput.Cursor.SetMode(cursor.CursorBlink)
	return m
}

// Query returns the listing currently shown.
func (m *Model) Query() leaderboard.Query {
	return leaderboard.Query{Mode: tabs[m.activeTab].mode, Limit: m.limit}.Normalize()
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.waitLive())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case entriesMsg:
		if msg.query != m.Query() {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.errMsg = ""
		m.entries = msg.entries
		m.table.SetRows(tableRows(m.entries))
		return m, nil
	case liveMsg:
		if !msg.ok {
			m.live = nil
			return m, nil
		}
		entry := msg.entry
		m.lastLive = &entry
		return m, tea.Batch(m.fetch(), m.waitLive())
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.limitMode {
			return m.updateLimit(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, m.fetch()
		case "right", "l":
			m.moveTab(1)
			return m, m.fetch()
		case "r":
			return m, m.fetch()
		case "/":
			m.limitMode = true
			m.limitError = ""
			m.limitInput.SetValue(strconv.Itoa(m.limit))
			return m, m.limitInput.Focus()
		case "g", "home":
			m.table.GotoTop()
			return m, nil
		case "G", "end":
			m.table.GotoBottom()
			return m, nil
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) updateLimit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.limitMode = false
		m.limitInput.Blur()
		return m, nil
	case tea.KeyEnter:
		n, err := strconv.Atoi(strings.TrimSpace(m.limitInput.Value()))
		if err != nil || n <= 0 {
			m.limitError = "limit must be a positive number"
			return m, nil
		}
		m.limit = leaderboard.Query{Limit: n}.Normalize().Limit
		m.limitMode = false
		m.limitInput.Blur()
		return m, m.fetch()
	}
	var cmd tea.Cmd
	m.limitInput, cmd = m.limitInput.Update(msg)
	return m, cmd
}

func (m *Model) fetch() tea.Cmd {
	if m.fetcher == nil {
		return nil
	}
	m.loading = true
	fetcher, q := m.fetcher, m.Query()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		entries, err := fetcher.Top(ctx, q)
		return entriesMsg{query: q, entries: entries, err: err}
	}
}

func (m *Model) waitLive() tea.Cmd {
	if m.live == nil {
		return nil
	}
	live := m.live
	return func() tea.Msg {
		e, ok := <-live
		return liveMsg{entry: e, ok: ok}
	}
}

func (m *Model) moveTab(delta int) {
	next := m.activeTab + delta
	if next < 0 {
		next = len(tabs) - 1
	}
	if next >= len(tabs) {
		next = 0
	}
	m.activeTab = next
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" || m.limitMode {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	cardsHeight := lipgloss.Height(renderSummary(nil))
	m.table.SetWidth(m.width)
	m.table.SetHeight(max(1, bodyHeight-cardsHeight-1))
	m.limitInput.Width = max(10, m.width-lipgloss.Width(m.limitInput.Prompt)-2)
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderTabs()+"\n"+m.renderSettings(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(tabs))
	for i, t := range tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(t.title))
		} else {
			parts = append(parts, inactiveNavStyle.Render(t.title))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderSettings() string {
	status := fmt.Sprintf("Showing top %d", m.limit)
	if m.loading {
		status += "  loading..."
	}
	if m.lastLive != nil {
		status += fmt.Sprintf("  latest: %s %d wpm", m.lastLive.Username, m.lastLive.WPM)
	}
	return headerStyle.Render(truncateLine(status, m.width))
}

func (m *Model) renderBody() string {
	if len(m.entries) == 0 {
		if m.loading {
			return "Loading..."
		}
		return "No scores yet."
	}
	return renderSummary(m.entries) + "\n" + tableMutedStyle.Render(m.table.View())
}

func (m *Model) renderFooter() string {
	lines := []string{}
	if m.limitMode {
		lines = append(lines, m.limitInput.View())
		if m.limitError != "" {
			lines[0] += "  " + errorStyle.Render(m.limitError)
		}
		lines = append(lines, headerStyle.Render("enter: apply  esc: cancel"))
		return strings.Join(lines, "\n")
	}
	lines = append(lines, headerStyle.Render("Mode: left/right  Scroll: up/down  Limit: /  Refresh: r  Quit: q"))
	if m.errMsg != "" {
		lines = append(lines, errorStyle.Render(m.errMsg))
	}
	return strings.Join(lines, "\n")
}

func renderSummary(entries []leaderboard.Entry) string {
	s := stats.Summarize(leaderboard.Results(entries))
	cards := []string{
		metricCard("Scores", strconv.Itoa(s.Count)),
		metricCard("Best WPM", strconv.Itoa(s.BestWPM)),
		metricCard("Avg WPM", fmt.Sprintf("%.1f", s.AvgWPM)),
		metricCard("Avg Acc", fmt.Sprintf("%.1f%%", s.AvgAccuracy)),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func buildTable(entries []leaderboard.Entry, width, height int) table.Model {
	columns := []table.Column{
		{Title: "#", Width: 4},
		{Title: "Name", Width: 24},
		{Title: "WPM", Width: 5},
		{Title: "Acc", Width: 5},
		{Title: "Mode", Width: 10},
		{Title: "Date", Width: 10},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(tableRows(entries)),
		table.WithHeight(max(1, height)),
		table.WithFocused(true),
	)
	t.SetWidth(width)
	t.SetStyles(tableStyles())
	return t
}

func tableRows(entries []leaderboard.Entry) []table.Row {
	rows := leaderboard.Rows(entries)
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		out[i] = table.Row(r)
	}
	return out
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
