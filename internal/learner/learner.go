// Package learner implements sequence pattern learning: flat bookkeeping of
// delimiter-joined action key sequences, each with an ordered outcome
// history, and prefix-based prediction over the learned patterns.
package learner

import (
	"sort"

	"github.com/perchlabs/echotree/internal/actionkey"
)

// Match classifies how a prediction query matched the learned patterns.
type Match string

const (
	MatchExact   Match = "exact"
	MatchPartial Match = "partial"
	MatchNone    Match = "none"
)

// Prediction is the outcome of a single query. When Match is MatchNone the
// remaining fields are zero.
type Prediction struct {
	Match       Match   `json:"match"`
	Pattern     string  `json:"pattern,omitempty"`
	Probability float64 `json:"probability"`
	SampleSize  int     `json:"sample_size"`
}

// PatternStat is one ranked pattern with its aggregate statistics.
type PatternStat struct {
	Pattern     string  `json:"pattern"`
	Frequency   int     `json:"frequency"`
	SuccessRate float64 `json:"success_rate"`
}

// Learner accumulates observed action sequences. Each pattern keeps its full
// outcome history in observation order, so a pattern's frequency is always
// the length of its history. Not safe for concurrent use; the owning session
// serializes access.
type Learner struct {
	outcomes map[string][]bool
}

// New creates an empty learner.
func New() *Learner {
	return &Learner{outcomes: make(map[string][]bool)}
}

// Observe records one occurrence of the given sequence with its outcome.
// The learner has no notion of when a sequence is complete; callers decide
// what constitutes one observation. Empty sequences are ignored.
func (l *Learner) Observe(sequence []actionkey.Key, succeeded bool) {
	if len(sequence) == 0 {
		return
	}
	key := actionkey.JoinKeys(sequence)
	l.outcomes[key] = append(l.outcomes[key], succeeded)
}

// Predict looks the sequence up among learned patterns. An exact hit returns
// that pattern's success rate and frequency. Otherwise the stored pattern
// sharing the longest action key prefix with the query wins; ties go to the
// higher frequency, then the lexicographically smaller pattern, so repeated
// queries return the same answer. No shared prefix at all means MatchNone.
func (l *Learner) Predict(sequence []actionkey.Key) Prediction {
	if len(sequence) == 0 {
		return Prediction{Match: MatchNone}
	}
	key := actionkey.JoinKeys(sequence)
	if history, ok := l.outcomes[key]; ok {
		return Prediction{
			Match:       MatchExact,
			Pattern:     key,
			Probability: mean(history),
			SampleSize:  len(history),
		}
	}

	best := ""
	bestLen := 0
	for stored := range l.outcomes {
		n := actionkey.CommonPrefixLen(sequence, actionkey.SplitKey(stored))
		if n == 0 {
			continue
		}
		switch {
		case n > bestLen:
			best, bestLen = stored, n
		case n == bestLen && len(l.outcomes[stored]) > len(l.outcomes[best]):
			best = stored
		case n == bestLen && len(l.outcomes[stored]) == len(l.outcomes[best]) && stored < best:
			best = stored
		}
	}
	if best == "" {
		return Prediction{Match: MatchNone}
	}
	return Prediction{
		Match:       MatchPartial,
		Pattern:     best,
		Probability: mean(l.outcomes[best]),
		SampleSize:  len(l.outcomes[best]),
	}
}

// Top returns up to k patterns ranked by frequency, ties broken by success
// rate and then pattern key.
func (l *Learner) Top(k int) []PatternStat {
	stats := make([]PatternStat, 0, len(l.outcomes))
	for key, history := range l.outcomes {
		stats = append(stats, PatternStat{
			Pattern:     key,
			Frequency:   len(history),
			SuccessRate: mean(history),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		if stats[i].SuccessRate != stats[j].SuccessRate {
			return stats[i].SuccessRate > stats[j].SuccessRate
		}
		return stats[i].Pattern < stats[j].Pattern
	})
	if k > 0 && len(stats) > k {
		stats = stats[:k]
	}
	return stats
}

// Len returns the number of distinct learned patterns.
func (l *Learner) Len() int { return len(l.outcomes) }

// Reset discards all learned patterns.
func (l *Learner) Reset() {
	l.outcomes = make(map[string][]bool)
}

// Export deep-copies the learner state as a frequency map and an outcome
// history map. The two always agree: frequencies[k] == len(outcomes[k]).
func (l *Learner) Export() (frequencies map[string]int, outcomes map[string][]bool) {
	frequencies = make(map[string]int, len(l.outcomes))
	outcomes = make(map[string][]bool, len(l.outcomes))
	for key, history := range l.outcomes {
		frequencies[key] = len(history)
		outcomes[key] = append([]bool(nil), history...)
	}
	return frequencies, outcomes
}

// Import replaces the learner state with the given outcome histories,
// deep-copying them. Empty histories are dropped: a pattern only exists
// after at least one observation.
func (l *Learner) Import(outcomes map[string][]bool) {
	l.Reset()
	for key, history := range outcomes {
		if len(history) == 0 {
			continue
		}
		l.outcomes[key] = append([]bool(nil), history...)
	}
}

func mean(history []bool) float64 {
	if len(history) == 0 {
		return 0
	}
	succeeded := 0
	for _, ok := range history {
		if ok {
			succeeded++
		}
	}
	return float64(succeeded) / float64(len(history))
}
