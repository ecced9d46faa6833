package typing

import (
	"reflect"
	"testing"
	"time"

	"github.com/verte-zerg/keyrace/internal/model"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func typeAll(st model.TestState, input string, now time.Time) model.TestState {
	for _, r := range input {
		st = Input(st, r, now)
	}
	return st
}

func TestParseInitialState(t *testing.T) {
	words := Parse([]string{"cat", "dog"})
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(words))
	}
	if !words[0].IsActive || words[1].IsActive {
		t.Fatalf("expected only first word active")
	}
	for _, w := range words {
		if w.IsComplete {
			t.Fatalf("expected %q incomplete", w.Word)
		}
		if len(w.Characters) != 3 {
			t.Fatalf("expected 3 chars for %q, got %d", w.Word, len(w.Characters))
		}
		for _, ch := range w.Characters {
			if ch.Status != model.StatusPending || ch.HasTyped {
				t.Fatalf("expected pending untyped char, got %+v", ch)
			}
		}
	}
	if got := Parse(nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %d words", len(got))
	}
}

func TestParseCountsRunes(t *testing.T) {
	words := Parse([]string{"naïve"})
	if len(words[0].Characters) != 5 {
		t.Fatalf("expected 5 characters, got %d", len(words[0].Characters))
	}
	if words[0].Characters[2].Char != 'ï' {
		t.Fatalf("unexpected third char %q", words[0].Characters[2].Char)
	}
}

func TestScenarioAllCorrect(t *testing.T) {
	st := NewState(model.TestConfig{Mode: model.ModeWords, Words: 2}, []string{"cat", "dog"})
	st = typeAll(st, "cat ", t0)
	st = typeAll(st, "dog ", t0.Add(3*time.Second))

	if !st.IsFinished || st.IsActive {
		t.Fatalf("expected finished session, got active=%v finished=%v", st.IsActive, st.IsFinished)
	}
	s := st.Stats
	if s.CorrectChars != 6 || s.IncorrectChars != 0 || s.TotalChars != 6 || s.Accuracy != 100 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.TimeElapsed != 3 {
		t.Fatalf("expected 3s elapsed, got %v", s.TimeElapsed)
	}
	if st.EndTime == nil || !st.EndTime.Equal(t0.Add(3*time.Second)) {
		t.Fatalf("unexpected end time: %v", st.EndTime)
	}
	if st.UserInput != "" {
		t.Fatalf("expected trailing space consumed, got %q", st.UserInput)
	}
	for _, w := range st.Words {
		if !w.IsComplete || w.IsActive {
			t.Fatalf("expected %q complete and inactive", w.Word)
		}
	}
}

func TestScenarioTimerExpiry(t *testing.T) {
	st := NewState(model.TestConfig{Mode: model.ModeTime, Time: 15}, []string{"cat", "dog"})
	st = typeAll(st, "cxt ", t0)
	if st.CurrentWordIndex != 1 || st.CurrentCharIndex != 0 {
		t.Fatalf("expected cursor at start of word 2, got %d/%d", st.CurrentWordIndex, st.CurrentCharIndex)
	}
	st = Finish(st, t0.Add(15*time.Second))

	s := st.Stats
	if s.CorrectChars != 2 || s.IncorrectChars != 1 || s.TotalChars != 3 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.Accuracy != 67 {
		t.Fatalf("expected accuracy 67, got %d", s.Accuracy)
	}
	if !st.IsFinished {
		t.Fatalf("expected finished")
	}
}

func TestBackspaceAtWordStartIsNoop(t *testing.T) {
	st := NewState(model.TestConfig{Mode: model.ModeWords, Words: 2}, []string{"cat", "dog"})
	st = typeAll(st, "cat ", t0)
	before := st.Clone()

	after := Backspace(st)
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("expected state unchanged\nbefore: %+v\nafter:  %+v", before, after)
	}
}

func TestNonSpaceWhileAwaitingSeparatorIsRejected(t *testing.T) {
	st := NewState(model.TestConfig{Mode: model.ModeWords, Words: 2}, []string{"cat", "dog"})
	st = typeAll(st, "cat", t0)
	before := st.Clone()

	after := Input(st, 'x', t0.Add(time.Second))
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("expected rejected input to leave state unchanged")
	}
}

func TestFinalSpaceFinishes(t *testing.T) {
	st := NewState(model.TestConfig{Mode: model.ModeQuote}, []string{"go"})
	st = typeAll(st, "go", t0)
	if st.IsFinished {
		t.Fatalf("expected not finished before separator")
	}
	st = Input(st, ' ', t0.Add(time.Second))
	if !st.IsFinished {
		t.Fatalf("expected finished after final separator")
	}
	if st.CurrentWordIndex != len(st.Words) {
		t.Fatalf("expected cursor past last word, got %d", st.CurrentWordIndex)
	}
}

func TestInputAfterFinishIsNoop(t *testing.T) {
	st := NewState(model.TestConfig{Mode: model.ModeQuote}, []string{"a"})
	st = typeAll(st, "a ", t0)
	before := st.Clone()
	st = Input(st, 'b', t0.Add(time.Minute))
	st = Backspace(st)
	st = Finish(st, t0.Add(time.Hour))
	if !reflect.DeepEqual(before, st) {
		t.Fatalf("expected finished state to be frozen")
	}
}

func TestFirstInputStartsSession(t *testing.T) {
	st := NewState(model.TestConfig{Mode: model.ModeWords, Words: 1}, []string{"hi"})
	if st.Phase() != model.PhaseIdle {
		t.Fatalf("expected idle, got %s", st.Phase())
	}
	st = Input(st, 'h', t0)
	if st.Phase() != model.PhaseActive {
		t.Fatalf("expected active, got %s", st.Phase())
	}
	if st.StartTime == nil || !st.StartTime.Equal(t0) {
		t.Fatalf("unexpected start time %v", st.StartTime)
	}
	st = Input(st, 'i', t0.Add(time.Second))
	if !st.StartTime.Equal(t0) {
		t.Fatalf("start time must be set once")
	}
}

func TestFinishBeforeStartIsNoop(t *testing.T) {
	st := NewState(model.TestConfig{Mode: model.ModeTime, Time: 30}, []string{"hi"})
	before := st.Clone()
	if got := Finish(st, t0); !reflect.DeepEqual(before, got) {
		t.Fatalf("expected finish before start to be a no-op")
	}
}

func TestEmptySessionIsTerminal(t *testing.T) {
	st := NewState(model.TestConfig{Mode: model.ModeQuote}, nil)
	if !st.IsFinished || st.IsActive {
		t.Fatalf("expected empty session to be terminal")
	}
	if got := Input(st, 'a', t0); got.IsActive {
		t.Fatalf("expected input on empty session to be ignored")
	}
}

func TestCaseSensitiveMatch(t *testing.T) {
	st := NewState(model.TestConfig{Mode: model.ModeQuote}, []string{"The"})
	st = Input(st, 't', t0)
	ch := st.Words[0].Characters[0]
	if ch.Status != model.StatusIncorrect || ch.Typed != 't' {
		t.Fatalf("expected incorrect lowercase match, got %+v", ch)
	}
}

func TestBackspaceRevertsCharacter(t *testing.T) {
	st := NewState(model.TestConfig{Mode: model.ModeWords, Words: 1}, []string{"ab"})
	st = typeAll(st, "ax", t0)
	if st.UserInput != "ax" {
		t.Fatalf("unexpected user input %q", st.UserInput)
	}
	st = Backspace(st)
	if st.CurrentCharIndex != 1 {
		t.Fatalf("expected cursor 1, got %d", st.CurrentCharIndex)
	}
	ch := st.Words[0].Characters[1]
	if ch.Status != model.StatusPending || ch.HasTyped {
		t.Fatalf("expected pending char after backspace, got %+v", ch)
	}
	if st.UserInput != "a" {
		t.Fatalf("expected user input trimmed, got %q", st.UserInput)
	}
	st = Input(st, 'b', t0)
	if st.Words[0].Characters[1].Status != model.StatusCorrect {
		t.Fatalf("expected corrected char")
	}
}

func TestTransitionsDoNotMutateInput(t *testing.T) {
	st := NewState(model.TestConfig{Mode: model.ModeWords, Words: 2}, []string{"cat", "dog"})
	st = Input(st, 'c', t0)
	before := st.Clone()
	_ = Input(st, 'a', t0)
	_ = Backspace(st)
	_ = Recompute(st, t0.Add(time.Second))
	if !reflect.DeepEqual(before, st) {
		t.Fatalf("expected transitions to leave their input untouched")
	}
}

func TestCursorMonotonicity(t *testing.T) {
	st := NewState(model.TestConfig{Mode: model.ModeWords, Words: 3}, []string{"one", "two", "six"})
	input := "onx!!! twoo six "
	for _, r := range input {
		prevWord, prevChar := st.CurrentWordIndex, st.CurrentCharIndex
		st = Input(st, r, t0)
		if st.CurrentWordIndex == prevWord && st.CurrentCharIndex < prevChar {
			t.Fatalf("cursor moved backwards on input %q", r)
		}
		if w := st.CurrentWord(); w != nil && st.CurrentCharIndex > len(w.Characters) {
			t.Fatalf("cursor %d past word %q", st.CurrentCharIndex, w.Word)
		}
	}
	if !st.IsFinished {
		t.Fatalf("expected session finished")
	}
	if st.Stats.CorrectChars != 8 || st.Stats.IncorrectChars != 1 {
		t.Fatalf("unexpected stats %+v", st.Stats)
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	st := NewState(model.TestConfig{Mode: model.ModeWords, Words: 2}, []string{"cat", "dog"})
	st = typeAll(st, "ca", t0)
	now := t0.Add(2 * time.Second)
	first := Recompute(st, now)
	second := Recompute(first, now)
	if first.Stats != second.Stats {
		t.Fatalf("expected identical stats, got %+v and %+v", first.Stats, second.Stats)
	}
	if first.Stats.WPM != 12 {
		t.Fatalf("expected 12 wpm, got %d", first.Stats.WPM)
	}
}

func TestRecomputeIgnoresIdleAndFinished(t *testing.T) {
	idle := NewState(model.TestConfig{Mode: model.ModeWords, Words: 1}, []string{"a"})
	if got := Recompute(idle, t0); !reflect.DeepEqual(idle, got) {
		t.Fatalf("expected idle recompute to be a no-op")
	}
	done := typeAll(idle, "a ", t0)
	if got := Recompute(done, t0.Add(time.Hour)); got.Stats != done.Stats {
		t.Fatalf("expected finished stats to stay authoritative")
	}
}
