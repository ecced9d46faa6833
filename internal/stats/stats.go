// Package stats contains scoring calculations and reporting.
package stats

import (
	"math"

	"github.com/verte-zerg/keyrace/internal/model"
)

// charsPerWord is the standard "one word = five characters" convention.
const charsPerWord = 5.0

// Accuracy returns the rounded percentage of correct characters. An empty
// attempt counts as fully accurate.
func Accuracy(correctChars, totalChars int) int {
	if totalChars == 0 {
		return 100
	}
	return int(math.Round(float64(correctChars) / float64(totalChars) * 100))
}

// WPM returns net words per minute computed from correct characters.
func WPM(correctChars int, elapsedSeconds float64) int {
	return perMinute(float64(correctChars)/charsPerWord, elapsedSeconds)
}

// RawWPM returns words per minute over every attempted character, errors included.
func RawWPM(totalChars int, elapsedSeconds float64) int {
	return perMinute(float64(totalChars)/charsPerWord, elapsedSeconds)
}

// CPM returns characters per minute.
func CPM(chars int, elapsedSeconds float64) int {
	return perMinute(float64(chars), elapsedSeconds)
}

func perMinute(units, elapsedSeconds float64) int {
	if elapsedSeconds <= 0 {
		return 0
	}
	minutes := elapsedSeconds / 60
	return int(math.Round(units / minutes))
}

// Compute composes the scoring functions into a TestStats snapshot.
// elapsedSeconds is echoed back unchanged.
func Compute(correctChars, incorrectChars, totalChars int, elapsedSeconds float64) model.TestStats {
	return model.TestStats{
		WPM:            WPM(correctChars, elapsedSeconds),
		RawWPM:         RawWPM(totalChars, elapsedSeconds),
		Accuracy:       Accuracy(correctChars, totalChars),
		CorrectChars:   correctChars,
		IncorrectChars: incorrectChars,
		TotalChars:     totalChars,
		TimeElapsed:    elapsedSeconds,
	}
}
