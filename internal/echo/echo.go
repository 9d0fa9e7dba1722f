// Package echo decides when a pattern prediction is trustworthy enough to
// surface to the user as a suggestion.
package echo

import (
	"fmt"

	"github.com/perchlabs/echotree/internal/learner"
)

// Defaults applied when the gate is built with zero values.
const (
	DefaultThreshold  = 0.7
	DefaultMinSamples = 3
)

// Suggestion is an echo the gate decided to surface.
type Suggestion struct {
	Pattern     string        `json:"pattern"`
	Probability float64       `json:"probability"`
	SampleSize  int           `json:"sample_size"`
	Match       learner.Match `json:"match"`
}

// String renders the suggestion in the voice shown to users.
func (s Suggestion) String() string {
	return fmt.Sprintf("Echo: Similar pattern '%s' succeeded %.1f%% of the time (n=%d)",
		s.Pattern, s.Probability*100, s.SampleSize)
}

// Gate holds the confidence policy. A suggestion passes only when the
// prediction matched something, its sample size reaches MinSamples, and its
// probability reaches Threshold.
type Gate struct {
	threshold  float64
	minSamples int
	enabled    bool
}

// NewGate builds a gate with the given policy. Non-positive arguments fall
// back to the defaults. Gates start enabled.
func NewGate(threshold float64, minSamples int) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &Gate{threshold: threshold, minSamples: minSamples, enabled: true}
}

// SetEnabled toggles echoing without losing the policy.
func (g *Gate) SetEnabled(on bool) { g.enabled = on }

// Enabled reports whether the gate will consider predictions at all.
func (g *Gate) Enabled() bool { return g.enabled }

// Threshold returns the configured confidence threshold.
func (g *Gate) Threshold() float64 { return g.threshold }

// MinSamples returns the configured sample size floor.
func (g *Gate) MinSamples() int { return g.minSamples }

// Decide applies the gate to a prediction. The second return is false when
// nothing should be surfaced.
func (g *Gate) Decide(p learner.Prediction) (Suggestion, bool) {
	if !g.enabled || p.Match == learner.MatchNone {
		return Suggestion{}, false
	}
	if p.SampleSize < g.minSamples || p.Probability < g.threshold {
		return Suggestion{}, false
	}
	return Suggestion{
		Pattern:     p.Pattern,
		Probability: p.Probability,
		SampleSize:  p.SampleSize,
		Match:       p.Match,
	}, true
}
