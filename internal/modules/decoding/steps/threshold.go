package steps

import (
	"fmt"
	"math"
	"sort"
)

// ThresholdPolicy turns training-split scores into a decision threshold.
// Selection sees only training data; the test split never leaks in.
type ThresholdPolicy interface {
	Name() string

	// Select returns the threshold and whether selection degenerated
	// (single-class input), in which case the threshold falls back to 0.5.
	Select(scores []float64, labels []int) (float64, bool)
}

const (
	PolicyTrainBalancedOptimal = "train_balanced_optimal"
	PolicyFixedHalf            = "fixed_half"
	PolicyYoudenJ              = "youden_j"
)

func PolicyByName(name string) (ThresholdPolicy, error) {
	switch name {
	case PolicyTrainBalancedOptimal:
		return trainBalancedOptimal{}, nil
	case PolicyFixedHalf:
		return fixedHalf{}, nil
	case PolicyYoudenJ:
		return youdenJ{}, nil
	default:
		return nil, fmt.Errorf("threshold: unknown policy %q", name)
	}
}

// balancedAccuracyAt scores the rule "predict positive when score >= t".
func balancedAccuracyAt(scores []float64, labels []int, t float64) float64 {
	var tp, fn, tn, fp int
	for i, s := range scores {
		pred := s >= t
		if labels[i] == 1 {
			if pred {
				tp++
			} else {
				fn++
			}
		} else {
			if pred {
				fp++
			} else {
				tn++
			}
		}
	}
	sens := float64(tp) / float64(tp+fn)
	spec := float64(tn) / float64(tn+fp)
	return (sens + spec) / 2.0
}

func singleClass(labels []int) bool {
	nPos := 0
	for _, v := range labels {
		if v == 1 {
			nPos++
		}
	}
	return nPos == 0 || nPos == len(labels)
}

// candidateThresholds is the sorted set of distinct training scores plus
// 0.5, so the default cut is always in contention.
func candidateThresholds(scores []float64) []float64 {
	seen := map[float64]bool{0.5: true}
	cands := []float64{0.5}
	for _, s := range scores {
		if !seen[s] {
			seen[s] = true
			cands = append(cands, s)
		}
	}
	sort.Float64s(cands)
	return cands
}

type trainBalancedOptimal struct{}

func (trainBalancedOptimal) Name() string { return PolicyTrainBalancedOptimal }

func (trainBalancedOptimal) Select(scores []float64, labels []int) (float64, bool) {
	if len(scores) == 0 || singleClass(labels) {
		return 0.5, true
	}
	best := 0.5
	bestBA := math.Inf(-1)
	for _, t := range candidateThresholds(scores) {
		ba := balancedAccuracyAt(scores, labels, t)
		if ba > bestBA || (ba == bestBA && math.Abs(t-0.5) < math.Abs(best-0.5)) {
			best = t
			bestBA = ba
		}
	}
	return best, false
}

type fixedHalf struct{}

func (fixedHalf) Name() string { return PolicyFixedHalf }

func (fixedHalf) Select([]float64, []int) (float64, bool) { return 0.5, false }

type youdenJ struct{}

func (youdenJ) Name() string { return PolicyYoudenJ }

// Select maximizes sensitivity + specificity - 1, which picks the same
// threshold as balanced accuracy but is reported separately because it is
// the conventional name in ROC analysis.
func (youdenJ) Select(scores []float64, labels []int) (float64, bool) {
	if len(scores) == 0 || singleClass(labels) {
		return 0.5, true
	}
	best := 0.5
	bestJ := math.Inf(-1)
	for _, t := range candidateThresholds(scores) {
		j := 2.0*balancedAccuracyAt(scores, labels, t) - 1.0
		if j > bestJ || (j == bestJ && math.Abs(t-0.5) < math.Abs(best-0.5)) {
			best = t
			bestJ = j
		}
	}
	return best, false
}
