package steps

import (
	"fmt"
	"math"
	"sort"

	types "github.com/yungbote/neurodecode/internal/domain"
	"github.com/yungbote/neurodecode/internal/pkg/logger"
)

type MetricsDeps struct {
	Log *logger.Logger
}

type MetricsInput struct {
	Table           *types.TrialTable
	Folds           []types.FoldResult
	OutOfFoldScores []float64
	OutOfFoldPreds  []int
	Seed            int64
	ThresholdPolicy string
	BaseGroupCount  int
}

type MetricsOutput struct {
	Metrics types.RunMetrics
}

// ComputeMetrics pools the out-of-fold predictions from every fold into a
// single confusion matrix and ranking AUC, alongside per-fold balanced
// accuracy summaries.
func ComputeMetrics(deps MetricsDeps, in MetricsInput) (MetricsOutput, error) {
	out := MetricsOutput{}
	if deps.Log == nil {
		return out, fmt.Errorf("metrics: missing deps")
	}
	if in.Table == nil || len(in.Table.Records) == 0 {
		return out, fmt.Errorf("metrics: %w", ErrTableEmpty)
	}
	if len(in.OutOfFoldScores) != len(in.Table.Records) || len(in.OutOfFoldPreds) != len(in.Table.Records) {
		return out, fmt.Errorf("metrics: prediction length mismatch")
	}
	log := deps.Log.With("step", "metrics")

	labels := make([]int, len(in.Table.Records))
	var pooled types.ConfusionMatrix
	for i, r := range in.Table.Records {
		labels[i] = r.Label.Binary()
		switch {
		case labels[i] == 1 && in.OutOfFoldPreds[i] == 1:
			pooled.TP++
		case labels[i] == 1 && in.OutOfFoldPreds[i] == 0:
			pooled.FN++
		case labels[i] == 0 && in.OutOfFoldPreds[i] == 1:
			pooled.FP++
		default:
			pooled.TN++
		}
	}
	if pooled.TP+pooled.FN == 0 || pooled.TN+pooled.FP == 0 {
		return out, fmt.Errorf("metrics: %w: pooled truth holds a single class", ErrMetricsUndefined)
	}

	auc, err := rocAUC(in.OutOfFoldScores, labels)
	if err != nil {
		return out, fmt.Errorf("metrics: %w", err)
	}

	mean, min, max := 0.0, math.Inf(1), math.Inf(-1)
	for _, f := range in.Folds {
		mean += f.BalancedAccuracy
		if f.BalancedAccuracy < min {
			min = f.BalancedAccuracy
		}
		if f.BalancedAccuracy > max {
			max = f.BalancedAccuracy
		}
	}
	mean /= float64(len(in.Folds))

	groups := in.Table.Records[0].Features.GroupNames()
	base := in.BaseGroupCount
	if base <= 0 || base > len(groups) {
		return out, fmt.Errorf("metrics: base group count %d out of range for %d feature groups", base, len(groups))
	}

	m := types.RunMetrics{
		Folds:                    in.Folds,
		MeanBalancedAccuracy:     mean,
		MinBalancedAccuracy:      min,
		MaxBalancedAccuracy:      max,
		Confusion:                pooled,
		ROCAUC:                   auc,
		BaselineBalancedAccuracy: types.BaselineBalancedAccuracy,
		DeltaBalancedAccuracy:    mean - types.BaselineBalancedAccuracy,
		Seed:                     in.Seed,
		ThresholdPolicy:          in.ThresholdPolicy,
		BaseGroupCount:           base,
		NormalizedGroupCount:     len(groups) - base,
	}
	log.Info("Run metrics computed",
		"mean_balanced_accuracy", m.MeanBalancedAccuracy,
		"roc_auc", m.ROCAUC,
		"delta_vs_baseline", m.DeltaBalancedAccuracy,
	)
	out.Metrics = m
	return out, nil
}

// rocAUC is the Mann-Whitney formulation with midrank tie handling: the
// probability a random positive outscores a random negative, ties counting
// half.
func rocAUC(scores []float64, labels []int) (float64, error) {
	n := len(scores)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return scores[idx[a]] < scores[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && scores[idx[j]] == scores[idx[i]] {
			j++
		}
		mid := float64(i+j+1) / 2.0
		for k := i; k < j; k++ {
			ranks[idx[k]] = mid
		}
		i = j
	}

	var rankSum float64
	var nPos, nNeg int
	for i, l := range labels {
		if l == 1 {
			rankSum += ranks[i]
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0, fmt.Errorf("%w: AUC needs both classes", ErrMetricsUndefined)
	}
	u := rankSum - float64(nPos)*float64(nPos+1)/2.0
	return u / (float64(nPos) * float64(nNeg)), nil
}
