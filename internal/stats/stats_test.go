package stats

import "testing"

func TestAccuracyEmptyAttempt(t *testing.T) {
	if got := Accuracy(0, 0); got != 100 {
		t.Fatalf("expected 100 for empty attempt, got %d", got)
	}
}

func TestAccuracyBounds(t *testing.T) {
	for total := 0; total <= 40; total++ {
		for correct := 0; correct <= total; correct++ {
			got := Accuracy(correct, total)
			if got < 0 || got > 100 {
				t.Fatalf("accuracy(%d, %d) = %d out of range", correct, total, got)
			}
		}
	}
}

func TestAccuracyRounds(t *testing.T) {
	if got := Accuracy(2, 3); got != 67 {
		t.Fatalf("expected 67, got %d", got)
	}
	if got := Accuracy(1, 8); got != 13 {
		t.Fatalf("expected 13 (12.5 rounds up), got %d", got)
	}
}

func TestSpeedsZeroElapsed(t *testing.T) {
	if got := WPM(500, 0); got != 0 {
		t.Fatalf("expected wpm 0, got %d", got)
	}
	if got := RawWPM(500, 0); got != 0 {
		t.Fatalf("expected raw wpm 0, got %d", got)
	}
	if got := CPM(500, 0); got != 0 {
		t.Fatalf("expected cpm 0, got %d", got)
	}
}

func TestWPM(t *testing.T) {
	// 50 chars = 10 words in 30s = 20 wpm.
	if got := WPM(50, 30); got != 20 {
		t.Fatalf("expected 20, got %d", got)
	}
	if got := RawWPM(60, 30); got != 24 {
		t.Fatalf("expected 24, got %d", got)
	}
	if got := CPM(60, 30); got != 120 {
		t.Fatalf("expected 120, got %d", got)
	}
}

func TestComputeEchoesElapsed(t *testing.T) {
	s := Compute(6, 0, 6, 1.234)
	if s.TimeElapsed != 1.234 {
		t.Fatalf("expected elapsed echoed, got %v", s.TimeElapsed)
	}
	if s.Accuracy != 100 || s.CorrectChars != 6 || s.TotalChars != 6 || s.IncorrectChars != 0 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	// 6 chars / 5 = 1.2 words in 1.234s.
	if s.WPM != 58 || s.RawWPM != 58 {
		t.Fatalf("unexpected speeds: %+v", s)
	}
}
