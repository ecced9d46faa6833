package stats

import "math"

// Result is the part of a finished test that summaries are built from.
type Result struct {
	WPM      int
	Accuracy int
}

// Summary aggregates a set of results.
type Summary struct {
	Count       int
	BestWPM     int
	AvgWPM      float64
	AvgAccuracy float64
}

// Summarize averages results. An empty set yields the zero Summary.
func Summarize(results []Result) Summary {
	if len(results) == 0 {
		return Summary{}
	}
	var sumWPM, sumAcc int
	s := Summary{Count: len(results)}
	for _, r := range results {
		sumWPM += r.WPM
		sumAcc += r.Accuracy
		if r.WPM > s.BestWPM {
			s.BestWPM = r.WPM
		}
	}
	n := float64(len(results))
	s.AvgWPM = round1(float64(sumWPM) / n)
	s.AvgAccuracy = round1(float64(sumAcc) / n)
	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
