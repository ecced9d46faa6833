// Package model defines shared data structures.
package model

import (
	"fmt"
	"time"
)

// Mode selects how a test's text is produced and when it ends.
type Mode string

const (
	ModeTime  Mode = "time"
	ModeWords Mode = "words"
	ModeQuote Mode = "quote"
)

// ParseMode converts a flag or request value into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTime, ModeWords, ModeQuote:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q (expected time, words or quote)", s)
	}
}

// TestConfig holds immutable session parameters.
type TestConfig struct {
	Mode    Mode
	Time    int // seconds, time mode
	Words   int // word count, words mode
	QuoteID int // quote mode; 0 picks a random quote
}

// Validate reports configuration errors that must be caught before a
// session is constructed.
func (c TestConfig) Validate() error {
	switch c.Mode {
	case ModeTime:
		if c.Time <= 0 {
			return fmt.Errorf("time must be > 0 in time mode")
		}
	case ModeWords:
		if c.Words <= 0 {
			return fmt.Errorf("words must be > 0 in words mode")
		}
	case ModeQuote:
		if c.QuoteID < 0 {
			return fmt.Errorf("quote id must be >= 0")
		}
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	return nil
}

// CharStatus is the user's relationship to one target character.
type CharStatus string

const (
	StatusPending   CharStatus = "pending"
	StatusCorrect   CharStatus = "correct"
	StatusIncorrect CharStatus = "incorrect"
	// StatusExtra marks overtyped characters. Input past the end of a word is
	// rejected, so nothing produces it yet.
	StatusExtra CharStatus = "extra"
)

// CharacterState tracks one target character.
type CharacterState struct {
	Char     rune
	Status   CharStatus
	Typed    rune
	HasTyped bool
}

// WordState tracks one target word.
type WordState struct {
	Word       string
	Characters []CharacterState
	IsActive   bool
	IsComplete bool
}

// TestStats is a derived snapshot of scoring results.
type TestStats struct {
	WPM            int     `json:"wpm"`
	RawWPM         int     `json:"raw_wpm"`
	Accuracy       int     `json:"accuracy"`
	CorrectChars   int     `json:"correct_chars"`
	IncorrectChars int     `json:"incorrect_chars"`
	TotalChars     int     `json:"total_chars"`
	TimeElapsed    float64 `json:"time_elapsed"`
}

// InitialStats is the snapshot of a session nobody has typed into yet.
var InitialStats = TestStats{Accuracy: 100}

// TestState is the session aggregate.
type TestState struct {
	Config           TestConfig
	Text             []string
	Words            []WordState
	UserInput        string
	CurrentWordIndex int
	CurrentCharIndex int
	StartTime        *time.Time
	EndTime          *time.Time
	IsActive         bool
	IsFinished       bool
	Stats            TestStats
}

// Clone returns a deep copy that shares no slices with the receiver.
func (s TestState) Clone() TestState {
	out := s
	if s.Text != nil {
		out.Text = append([]string(nil), s.Text...)
	}
	if s.Words != nil {
		out.Words = make([]WordState, len(s.Words))
		for i, w := range s.Words {
			out.Words[i] = w
			out.Words[i].Characters = append([]CharacterState(nil), w.Characters...)
		}
	}
	if s.StartTime != nil {
		t := *s.StartTime
		out.StartTime = &t
	}
	if s.EndTime != nil {
		t := *s.EndTime
		out.EndTime = &t
	}
	return out
}

// CurrentWord returns the active word, or nil when the cursor is out of range.
func (s TestState) CurrentWord() *WordState {
	if s.CurrentWordIndex < 0 || s.CurrentWordIndex >= len(s.Words) {
		return nil
	}
	return &s.Words[s.CurrentWordIndex]
}

// Phase names the state machine position of a TestState.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
)

// Phase derives the lifecycle phase from the state flags.
func (s TestState) Phase() Phase {
	switch {
	case s.IsFinished:
		return PhaseFinished
	case s.IsActive:
		return PhaseActive
	default:
		return PhaseIdle
	}
}
