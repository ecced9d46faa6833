package tui

import (
	"strings"
	"testing"

	"github.com/verte-zerg/keyrace/internal/model"
)

func TestRenderStatsBarFormats(t *testing.T) {
	st := typed([]string{"one", "two", "three", "four"}, "one two ")
	st.Stats = model.TestStats{WPM: 72, Accuracy: 98}
	m := &Model{state: st}
	out := m.renderStatsBar()
	if !containsAll(out, []string{"words 4", "2/4", "72 wpm", "98% acc"}) {
		t.Fatalf("stats bar missing expected segments: %s", out)
	}
}

func TestRenderStatsBarTimeMode(t *testing.T) {
	m := &Model{state: model.TestState{Config: model.TestConfig{Mode: model.ModeTime, Time: 30}, Stats: model.InitialStats}}
	out := m.renderStatsBar()
	if !containsAll(out, []string{"time 30s", "30s", "0 wpm", "100% acc"}) {
		t.Fatalf("stats bar missing expected segments: %s", out)
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
