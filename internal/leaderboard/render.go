package leaderboard

import (
	"fmt"
	"io"
	"strconv"

	"github.com/verte-zerg/keyrace/internal/model"
	"github.com/verte-zerg/keyrace/internal/stats"
)

// ModeLabel describes the mode an entry was recorded in, e.g. "time 30s".
func ModeLabel(e Entry) string {
	switch {
	case e.Mode == model.ModeTime && e.Time != nil:
		return fmt.Sprintf("time %ds", *e.Time)
	case e.Mode == model.ModeWords && e.Words != nil:
		return fmt.Sprintf("words %d", *e.Words)
	default:
		return string(e.Mode)
	}
}

// Results converts entries for stats.Summarize.
func Results(entries []Entry) []stats.Result {
	out := make([]stats.Result, len(entries))
	for i, e := range entries {
		out[i] = stats.Result{WPM: e.WPM, Accuracy: e.Accuracy}
	}
	return out
}

// Rows formats entries as table rows: rank, name, wpm, accuracy, mode, date.
func Rows(entries []Entry) [][]string {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{
			strconv.Itoa(i + 1),
			e.Username,
			strconv.Itoa(e.WPM),
			strconv.Itoa(e.Accuracy) + "%",
			ModeLabel(e),
			e.CreatedAt.Local().Format("2006-01-02"),
		}
	}
	return rows
}

// RenderPlain writes the leaderboard as an aligned text table.
func RenderPlain(w io.Writer, entries []Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No scores yet.")
		return err
	}
	lines := stats.FormatTable(
		[]string{"#", "Name", "WPM", "Acc", "Mode", "Date"},
		Rows(entries),
		map[int]bool{0: true, 2: true, 3: true},
	)
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	s := stats.Summarize(Results(entries))
	_, err := fmt.Fprintf(w, "\n%d scores  best %d wpm  avg %.1f wpm  avg %.1f%% acc\n", s.Count, s.BestWPM, s.AvgWPM, s.AvgAccuracy)
	return err
}
