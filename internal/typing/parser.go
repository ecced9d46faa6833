// Package typing implements the typing-test state machine.
package typing

import "github.com/verte-zerg/keyrace/internal/model"

// Parse converts target words into pending per-character tracking state.
// The first word starts active.
func Parse(words []string) []model.WordState {
	out := make([]model.WordState, 0, len(words))
	for i, word := range words {
		out = append(out, parseWord(word, i == 0))
	}
	return out
}

func parseWord(word string, active bool) model.WordState {
	runes := []rune(word)
	chars := make([]model.CharacterState, len(runes))
	for i, r := range runes {
		chars[i] = model.CharacterState{Char: r, Status: model.StatusPending}
	}
	return model.WordState{
		Word:       word,
		Characters: chars,
		IsActive:   active,
	}
}
