package steps

import (
	"testing"
)

func TestPolicyByName(t *testing.T) {
	for _, name := range []string{PolicyTrainBalancedOptimal, PolicyFixedHalf, PolicyYoudenJ} {
		p, err := PolicyByName(name)
		if err != nil {
			t.Fatalf("policy %q: %v", name, err)
		}
		if p.Name() != name {
			t.Fatalf("policy %q reports name %q", name, p.Name())
		}
	}
	if _, err := PolicyByName("nope"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestTrainBalancedOptimalSeparated(t *testing.T) {
	p, _ := PolicyByName(PolicyTrainBalancedOptimal)
	scores := []float64{0.1, 0.2, 0.3, 0.8, 0.9, 0.95}
	labels := []int{0, 0, 0, 1, 1, 1}
	threshold, degenerate := p.Select(scores, labels)
	if degenerate {
		t.Fatalf("two-class input flagged degenerate")
	}
	if ba := balancedAccuracyAt(scores, labels, threshold); ba != 1.0 {
		t.Fatalf("selected threshold %v gives balanced accuracy %v, want 1.0", threshold, ba)
	}
}

func TestTrainBalancedOptimalTieBreaksTowardHalf(t *testing.T) {
	p, _ := PolicyByName(PolicyTrainBalancedOptimal)
	// Any threshold in (0.2, 0.9] separates perfectly; candidates are the
	// scores plus 0.5, and 0.5 is the closest perfect cut to 0.5.
	scores := []float64{0.1, 0.2, 0.9, 0.95}
	labels := []int{0, 0, 1, 1}
	threshold, _ := p.Select(scores, labels)
	if threshold != 0.5 {
		t.Fatalf("tie should resolve to 0.5, got %v", threshold)
	}
}

func TestTrainBalancedOptimalDegenerate(t *testing.T) {
	p, _ := PolicyByName(PolicyTrainBalancedOptimal)
	threshold, degenerate := p.Select([]float64{0.4, 0.6, 0.7}, []int{1, 1, 1})
	if !degenerate {
		t.Fatalf("single-class input must flag degenerate selection")
	}
	if threshold != 0.5 {
		t.Fatalf("degenerate selection must fall back to 0.5, got %v", threshold)
	}
}

func TestFixedHalf(t *testing.T) {
	p, _ := PolicyByName(PolicyFixedHalf)
	threshold, degenerate := p.Select([]float64{0.9, 0.1}, []int{1, 0})
	if threshold != 0.5 || degenerate {
		t.Fatalf("fixed policy: got %v degenerate=%v", threshold, degenerate)
	}
}

func TestExtremeThresholdsScoreChance(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.8, 0.9}
	labels := []int{0, 0, 1, 1}
	// Predicting everything positive or everything negative both land at
	// the 0.5 chance floor.
	if ba := balancedAccuracyAt(scores, labels, 0.0); ba != 0.5 {
		t.Fatalf("all-positive threshold: got %v, want 0.5", ba)
	}
	if ba := balancedAccuracyAt(scores, labels, 1.1); ba != 0.5 {
		t.Fatalf("all-negative threshold: got %v, want 0.5", ba)
	}
}
