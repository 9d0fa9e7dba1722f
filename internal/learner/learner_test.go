package learner

import (
	"reflect"
	"testing"

	"github.com/perchlabs/echotree/internal/actionkey"
)

func observe(l *Learner, seq []actionkey.Key, freq, successes int) {
	for i := 0; i < freq; i++ {
		l.Observe(seq, i < successes)
	}
}

func TestPredictExactAfterSingleObservation(t *testing.T) {
	l := New()
	seq := []actionkey.Key{"click_region_1_1", "type_short"}
	l.Observe(seq, true)

	p := l.Predict(seq)
	if p.Match != MatchExact {
		t.Fatalf("Match = %q, want %q", p.Match, MatchExact)
	}
	if p.Probability != 1.0 {
		t.Errorf("Probability = %v, want 1.0", p.Probability)
	}
	if p.SampleSize != 1 {
		t.Errorf("SampleSize = %d, want 1", p.SampleSize)
	}
	if p.Pattern != "click_region_1_1->type_short" {
		t.Errorf("Pattern = %q, want click_region_1_1->type_short", p.Pattern)
	}
}

func TestPredictPartialPrefersHigherFrequencyOnTie(t *testing.T) {
	l := New()
	observe(l, []actionkey.Key{"A", "B"}, 10, 9)
	observe(l, []actionkey.Key{"A", "C"}, 2, 2)

	p := l.Predict([]actionkey.Key{"A"})
	if p.Match != MatchPartial {
		t.Fatalf("Match = %q, want %q", p.Match, MatchPartial)
	}
	if p.Pattern != "A->B" {
		t.Errorf("Pattern = %q, want A->B (same prefix length, higher frequency)", p.Pattern)
	}
	if p.Probability != 0.9 {
		t.Errorf("Probability = %v, want 0.9", p.Probability)
	}
	if p.SampleSize != 10 {
		t.Errorf("SampleSize = %d, want 10", p.SampleSize)
	}
}

func TestPredictPartialPrefersLongerPrefix(t *testing.T) {
	l := New()
	observe(l, []actionkey.Key{"A"}, 50, 50)
	observe(l, []actionkey.Key{"A", "B", "C"}, 1, 0)

	p := l.Predict([]actionkey.Key{"A", "B", "X"})
	if p.Match != MatchPartial {
		t.Fatalf("Match = %q, want %q", p.Match, MatchPartial)
	}
	if p.Pattern != "A->B->C" {
		t.Errorf("Pattern = %q, want A->B->C (longer shared prefix beats frequency)", p.Pattern)
	}
}

func TestPredictPartialTieBreaksDeterministically(t *testing.T) {
	l := New()
	observe(l, []actionkey.Key{"A", "B"}, 3, 1)
	observe(l, []actionkey.Key{"A", "C"}, 3, 3)

	want := l.Predict([]actionkey.Key{"A"})
	if want.Pattern != "A->B" {
		t.Fatalf("Pattern = %q, want A->B (lexicographic tie-break)", want.Pattern)
	}
	for i := 0; i < 20; i++ {
		if got := l.Predict([]actionkey.Key{"A"}); got != want {
			t.Fatalf("Predict() not stable: got %+v, want %+v", got, want)
		}
	}
}

func TestPredictNoSharedPrefix(t *testing.T) {
	l := New()
	observe(l, []actionkey.Key{"A", "B"}, 5, 5)

	p := l.Predict([]actionkey.Key{"Z"})
	if p.Match != MatchNone {
		t.Errorf("Match = %q, want %q", p.Match, MatchNone)
	}
	if p.Probability != 0 || p.SampleSize != 0 || p.Pattern != "" {
		t.Errorf("no-match prediction not zeroed: %+v", p)
	}
}

func TestPredictEmptySequence(t *testing.T) {
	l := New()
	observe(l, []actionkey.Key{"A"}, 1, 1)
	if p := l.Predict(nil); p.Match != MatchNone {
		t.Errorf("Predict(nil).Match = %q, want %q", p.Match, MatchNone)
	}
}

func TestObserveEmptySequenceIsNoOp(t *testing.T) {
	l := New()
	l.Observe(nil, true)
	if l.Len() != 0 {
		t.Errorf("Len() = %d after empty observation, want 0", l.Len())
	}
}

func TestTopRanksByFrequencyThenSuccessRate(t *testing.T) {
	l := New()
	observe(l, []actionkey.Key{"X"}, 5, 3) // rate 0.6
	observe(l, []actionkey.Key{"Y"}, 5, 4) // rate 0.8
	observe(l, []actionkey.Key{"Z"}, 1, 1) // rate 1.0

	got := l.Top(2)
	if len(got) != 2 {
		t.Fatalf("len(Top(2)) = %d, want 2", len(got))
	}
	want := []string{"Y", "X"}
	for i, stat := range got {
		if stat.Pattern != want[i] {
			t.Errorf("Top(2)[%d] = %q, want %q", i, stat.Pattern, want[i])
		}
	}
	if got[0].Frequency != 5 || got[0].SuccessRate != 0.8 {
		t.Errorf("Top(2)[0] stats = (%d, %v), want (5, 0.8)", got[0].Frequency, got[0].SuccessRate)
	}
}

func TestExportPreservesOutcomeOrder(t *testing.T) {
	l := New()
	seq := []actionkey.Key{"A", "B"}
	history := []bool{true, false, false, true, true}
	for _, ok := range history {
		l.Observe(seq, ok)
	}

	freqs, outcomes := l.Export()
	if freqs["A->B"] != len(history) {
		t.Errorf("frequency = %d, want %d", freqs["A->B"], len(history))
	}
	if !reflect.DeepEqual(outcomes["A->B"], history) {
		t.Errorf("outcomes = %v, want %v", outcomes["A->B"], history)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	l := New()
	observe(l, []actionkey.Key{"A", "B"}, 10, 9)
	observe(l, []actionkey.Key{"C"}, 4, 0)
	observe(l, []actionkey.Key{"D", "E", "F"}, 7, 7)

	_, outcomes := l.Export()

	restored := New()
	restored.Import(outcomes)

	if restored.Len() != l.Len() {
		t.Fatalf("restored Len() = %d, want %d", restored.Len(), l.Len())
	}
	gotFreqs, gotOutcomes := restored.Export()
	wantFreqs, wantOutcomes := l.Export()
	if !reflect.DeepEqual(gotFreqs, wantFreqs) {
		t.Errorf("frequencies differ after round trip:\ngot  %v\nwant %v", gotFreqs, wantFreqs)
	}
	if !reflect.DeepEqual(gotOutcomes, wantOutcomes) {
		t.Errorf("outcomes differ after round trip:\ngot  %v\nwant %v", gotOutcomes, wantOutcomes)
	}
}

func TestExportCopiesState(t *testing.T) {
	l := New()
	l.Observe([]actionkey.Key{"A"}, true)

	_, outcomes := l.Export()
	outcomes["A"][0] = false
	l.Observe([]actionkey.Key{"A"}, true)

	if p := l.Predict([]actionkey.Key{"A"}); p.Probability != 1.0 {
		t.Errorf("export aliased live state: Probability = %v, want 1.0", p.Probability)
	}
}

func TestImportDropsEmptyHistories(t *testing.T) {
	l := New()
	l.Import(map[string][]bool{"A": {}, "B": {true, false}})
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}
	p := l.Predict([]actionkey.Key{"B"})
	if p.Probability != 0.5 || p.SampleSize != 2 {
		t.Errorf("imported pattern = (%v, %d), want (0.5, 2)", p.Probability, p.SampleSize)
	}
}

func TestReset(t *testing.T) {
	l := New()
	observe(l, []actionkey.Key{"A"}, 3, 2)
	l.Reset()
	if l.Len() != 0 {
		t.Errorf("Len() = %d after Reset, want 0", l.Len())
	}
	if p := l.Predict([]actionkey.Key{"A"}); p.Match != MatchNone {
		t.Errorf("Predict after Reset = %q, want %q", p.Match, MatchNone)
	}
}
