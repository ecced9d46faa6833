package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/keyrace/internal/model"
)

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	cursorStyle      = currentWordStyle.Underline(true)
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	statsStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	okStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FBF7F"))
	cardStyle        = lipgloss.NewStyle().
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
)

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	if m.state.IsFinished {
		content = m.renderResults()
	} else {
		content = m.renderTest()
	}
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return content + "\n\n" + footer
	}
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderTest() string {
	styled := buildStyledRunes(m.state)
	text := renderStyledRunes(styled)
	if m.width > 0 {
		contentWidth := int(float64(m.width) * 0.70)
		if contentWidth < 1 {
			contentWidth = 1
		}
		text = lipgloss.NewStyle().Width(contentWidth).Render(wrapStyledRunes(styled, contentWidth))
	}
	lines := []string{m.renderStatsBar(), "", text}
	if m.errMsg != "" {
		lines = append(lines, "", errorStyle.Render(m.errMsg))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderStatsBar() string {
	st := m.state
	segments := []string{modeLabel(st.Config)}
	switch st.Config.Mode {
	case model.ModeTime:
		remaining := fmt.Sprintf("%ds", st.Config.Time)
		if m.hasTimer {
			remaining = m.timer.View()
		}
		segments = append(segments, remaining)
	default:
		segments = append(segments, fmt.Sprintf("%d/%d", min(st.CurrentWordIndex, len(st.Words)), len(st.Words)))
	}
	segments = append(segments,
		fmt.Sprintf("%d wpm", st.Stats.WPM),
		fmt.Sprintf("%d%% acc", st.Stats.Accuracy),
	)
	return statsStyle.Render(strings.Join(segments, "  "))
}

func (m *Model) renderResults() string {
	st := m.state.Stats
	cards := []string{
		metricCard("WPM", fmt.Sprintf("%d", st.WPM)),
		metricCard("Raw", fmt.Sprintf("%d", st.RawWPM)),
		metricCard("Accuracy", fmt.Sprintf("%d%%", st.Accuracy)),
		metricCard("Chars", fmt.Sprintf("%d/%d", st.CorrectChars, st.IncorrectChars)),
		metricCard("Time", fmt.Sprintf("%.1fs", st.TimeElapsed)),
	}
	var row string
	if m.width > 0 && m.width < 80 {
		row = lipgloss.JoinVertical(lipgloss.Left, cards...)
	} else {
		row = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}
	lines := []string{modeLabel(m.state.Config), row}
	if status := m.renderSaveStatus(); status != "" {
		lines = append(lines, "", status)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderSaveStatus() string {
	switch {
	case m.saving:
		return footerStyle.Render("saving...")
	case m.saved != nil:
		return okStyle.Render(fmt.Sprintf("saved to the leaderboard as %s", m.saved.Username))
	case m.saveErr != "":
		return errorStyle.Render(m.saveErr)
	case m.errMsg != "":
		return errorStyle.Render(m.errMsg)
	case !m.identity.IsAuthenticated:
		return footerStyle.Render("run `keyrace login` to save scores")
	}
	return ""
}

func (m *Model) renderFooter() string {
	if m.state.IsFinished {
		return footerStyle.Render("s save  enter next test  esc retry  q quit")
	}
	return footerStyle.Render("tab new test  esc restart  ctrl+c quit")
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func modeLabel(cfg model.TestConfig) string {
	switch cfg.Mode {
	case model.ModeTime:
		return fmt.Sprintf("time %ds", cfg.Time)
	case model.ModeWords:
		return fmt.Sprintf("words %d", cfg.Words)
	default:
		return string(cfg.Mode)
	}
}
