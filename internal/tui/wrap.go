package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/keyrace/internal/model"
	"github.com/verte-zerg/keyrace/internal/typing"
)

type styledRune struct {
	s       string
	width   int
	isSpace bool
}

// buildStyledRunes renders every target character of st followed by its
// separator. The cursor is the character the next keystroke will land on.
func buildStyledRunes(st model.TestState) []styledRune {
	out := make([]styledRune, 0, textLen(st.Words))
	for i, w := range st.Words {
		current := i == st.CurrentWordIndex && !st.IsFinished
		for j, ch := range w.Characters {
			style := charStyle(ch.Status, current)
			if current && j == st.CurrentCharIndex {
				style = style.Underline(true)
			}
			out = append(out, styledRune{
				s:     style.Render(string(ch.Char)),
				width: runewidth.RuneWidth(ch.Char),
			})
		}
		sep := pendingStyle
		if current && st.CurrentCharIndex >= len(w.Characters) {
			sep = sep.Underline(true)
		}
		out = append(out, styledRune{
			s:       sep.Render(string(typing.Separator)),
			width:   1,
			isSpace: true,
		})
	}
	return out
}

func charStyle(status model.CharStatus, currentWord bool) lipgloss.Style {
	switch status {
	case model.StatusCorrect:
		return correctStyle
	case model.StatusIncorrect, model.StatusExtra:
		return incorrectStyle
	}
	if currentWord {
		return currentWordStyle
	}
	return pendingStyle
}

func textLen(words []model.WordState) int {
	n := 0
	for _, w := range words {
		n += len(w.Characters) + 1
	}
	return n
}

func renderStyledRunes(runes []styledRune) string {
	var b strings.Builder
	for _, item := range runes {
		b.WriteString(item.s)
	}
	return b.String()
}

func wrapStyledRunes(runes []styledRune, width int) string {
	if width <= 0 {
		return renderStyledRunes(runes)
	}
	var out strings.Builder
	line := make([]styledRune, 0, len(runes))
	lineWidth := 0
	lastSpaceIdx := -1

	for i := 0; i < len(runes); {
		item := runes[i]
		if lineWidth+item.width > width && len(line) > 0 {
			if lastSpaceIdx >= 0 {
				out.WriteString(renderStyledRunes(line[:lastSpaceIdx]))
				out.WriteRune('\n')
				line = append([]styledRune{}, line[lastSpaceIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastSpaceIdx = lastSpaceIndex(line)
			} else {
				out.WriteString(renderStyledRunes(line))
				out.WriteRune('\n')
				line = line[:0]
				lineWidth = 0
				lastSpaceIdx = -1
			}
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	out.WriteString(renderStyledRunes(line))
	return out.String()
}

func lineWidthOf(line []styledRune) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastSpaceIndex(line []styledRune) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}
