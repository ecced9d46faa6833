package typing

import (
	"time"
	"unicode/utf8"

	"github.com/verte-zerg/keyrace/internal/model"
	"github.com/verte-zerg/keyrace/internal/stats"
)

// Separator is the only input that completes a word.
const Separator = ' '

// NewState builds an idle session over the given words. A session without
// words is terminal from the start.
func NewState(cfg model.TestConfig, words []string) model.TestState {
	st := model.TestState{
		Config: cfg,
		Text:   append([]string(nil), words...),
		Words:  Parse(words),
		Stats:  model.InitialStats,
	}
	if len(st.Words) == 0 {
		st.IsFinished = true
	}
	return st
}

// Input applies one typed character. Rejected input returns st unchanged.
// The argument is never modified; accepted input yields a new state.
func Input(st model.TestState, r rune, now time.Time) model.TestState {
	if st.IsFinished {
		return st
	}
	word := st.CurrentWord()
	if word == nil {
		return st
	}

	if st.CurrentCharIndex < len(word.Characters) {
		next := updateWord(st, st.CurrentWordIndex, func(w *model.WordState) {
			ch := &w.Characters[st.CurrentCharIndex]
			if r == ch.Char {
				ch.Status = model.StatusCorrect
			} else {
				ch.Status = model.StatusIncorrect
			}
			ch.Typed = r
			ch.HasTyped = true
		})
		next.CurrentCharIndex++
		next.UserInput += string(r)
		return activate(next, now)
	}

	// Word fully typed: only the separator is accepted.
	if r != Separator {
		return st
	}
	next := updateWord(st, st.CurrentWordIndex, func(w *model.WordState) {
		w.IsComplete = true
		w.IsActive = false
	})
	next = activate(next, now)
	nextIdx := st.CurrentWordIndex + 1
	next.CurrentCharIndex = 0
	next.UserInput = ""
	if nextIdx >= len(next.Words) {
		next.CurrentWordIndex = len(next.Words)
		return finish(next, now)
	}
	next = updateWord(next, nextIdx, func(w *model.WordState) {
		w.IsActive = true
	})
	next.CurrentWordIndex = nextIdx
	return next
}

// Backspace reverts the character before the cursor. It never crosses back
// into a previous word.
func Backspace(st model.TestState) model.TestState {
	if st.IsFinished || st.CurrentCharIndex == 0 {
		return st
	}
	word := st.CurrentWord()
	if word == nil || st.CurrentCharIndex > len(word.Characters) {
		return st
	}
	idx := st.CurrentCharIndex - 1
	next := updateWord(st, st.CurrentWordIndex, func(w *model.WordState) {
		w.Characters[idx] = model.CharacterState{
			Char:   w.Characters[idx].Char,
			Status: model.StatusPending,
		}
	})
	next.CurrentCharIndex = idx
	if n := len(next.UserInput); n > 0 {
		_, size := utf8.DecodeLastRuneInString(next.UserInput)
		next.UserInput = next.UserInput[:n-size]
	}
	return next
}

// Finish ends the session, scoring it from the canonical character state.
// It is a no-op when already finished or never started.
func Finish(st model.TestState, now time.Time) model.TestState {
	if st.IsFinished || st.StartTime == nil {
		return st
	}
	return finish(st, now)
}

// Recompute refreshes the live stats snapshot of an active session using now
// as the endpoint. No other field changes.
func Recompute(st model.TestState, now time.Time) model.TestState {
	if !st.IsActive || st.IsFinished || st.StartTime == nil {
		return st
	}
	st.Stats = score(st, now)
	return st
}

// Tally counts attempted characters from scratch. Untouched characters
// contribute nothing.
func Tally(words []model.WordState) (correct, incorrect, total int) {
	for _, w := range words {
		for _, ch := range w.Characters {
			switch ch.Status {
			case model.StatusCorrect:
				correct++
			case model.StatusIncorrect:
				incorrect++
			}
		}
	}
	return correct, incorrect, correct + incorrect
}

// Elapsed returns seconds between the session start and now.
func Elapsed(st model.TestState, now time.Time) float64 {
	if st.StartTime == nil {
		return 0
	}
	d := now.Sub(*st.StartTime).Seconds()
	if d < 0 {
		return 0
	}
	return d
}

func finish(st model.TestState, now time.Time) model.TestState {
	if st.StartTime == nil {
		st = activate(st, now)
	}
	st.Stats = score(st, now)
	end := now
	st.EndTime = &end
	st.IsActive = false
	st.IsFinished = true
	return st
}

func score(st model.TestState, now time.Time) model.TestStats {
	correct, incorrect, total := Tally(st.Words)
	return stats.Compute(correct, incorrect, total, Elapsed(st, now))
}

func activate(st model.TestState, now time.Time) model.TestState {
	if st.IsActive || st.StartTime != nil {
		return st
	}
	start := now
	st.StartTime = &start
	st.IsActive = true
	return st
}

// updateWord copies the word slice and the target word's characters before
// applying fn, so the caller's state is left untouched.
func updateWord(st model.TestState, idx int, fn func(w *model.WordState)) model.TestState {
	words := append([]model.WordState(nil), st.Words...)
	w := words[idx]
	w.Characters = append([]model.CharacterState(nil), w.Characters...)
	fn(&w)
	words[idx] = w
	st.Words = words
	return st
}
