package steps

import (
	"context"
	"fmt"
	"testing"

	types "github.com/yungbote/neurodecode/internal/domain"
)

// syntheticTable builds a 10-subject, 10-trials-each table whose single
// informative feature cleanly separates the classes across all subjects.
func syntheticTable() *types.TrialTable {
	table := &types.TrialTable{}
	for s := 0; s < 10; s++ {
		subject := fmt.Sprintf("sub-%02d", s+1)
		for i := 0; i < 10; i++ {
			label := types.LabelFrequentNonTarget
			value := -1.0 + 0.1*float64(i%3)
			if i%5 == 0 {
				label = types.LabelRareTarget
				value = 1.0 + 0.1*float64(i%3)
			}
			table.Records = append(table.Records, types.TrialRecord{
				Subject: subject,
				Run:     "01",
				Label:   label,
				Features: types.FeatureVector{Groups: []types.FeatureGroup{
					{Name: "erp_p3", Values: []float64{value}},
					{Name: "erp_p3_z", Values: []float64{value}},
				}},
			})
		}
	}
	return table
}

func runSyntheticCrossVal(t *testing.T) (*types.TrialTable, CrossValOutput) {
	t.Helper()
	table := syntheticTable()
	folds, err := AssignFolds(FoldAssignDeps{Log: testLogger(t)}, FoldAssignInput{
		Table: table, NSplits: 5, Seed: 42, BalanceTolerance: 2.0,
	})
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	policy, err := PolicyByName(PolicyTrainBalancedOptimal)
	if err != nil {
		t.Fatalf("policy lookup failed: %v", err)
	}
	out, err := RunCrossVal(context.Background(), CrossValDeps{Log: testLogger(t)}, CrossValInput{
		Table:      table,
		Assignment: folds.Assignment,
		Policy:     policy,
		Logistic:   LogisticConfig{LearningRate: 0.1, Iterations: 200, L2Penalty: 1e-4},
	})
	if err != nil {
		t.Fatalf("crossval failed: %v", err)
	}
	return table, out
}

func TestRunCrossValFoldShapes(t *testing.T) {
	table, out := runSyntheticCrossVal(t)
	if len(out.Folds) != 5 {
		t.Fatalf("got %d folds, want 5", len(out.Folds))
	}
	totalTest := 0
	for _, f := range out.Folds {
		if len(f.TestSubjects) != 2 {
			t.Fatalf("fold %d: %d test subjects, want 2", f.Fold, len(f.TestSubjects))
		}
		if f.NTrain != 80 || f.NTest != 20 {
			t.Fatalf("fold %d: train/test %d/%d, want 80/20", f.Fold, f.NTrain, f.NTest)
		}
		totalTest += f.NTest
	}
	if totalTest != len(table.Records) {
		t.Fatalf("folds test %d trials in total, want %d", totalTest, len(table.Records))
	}
}

func TestRunCrossValSeparableIsPerfect(t *testing.T) {
	_, out := runSyntheticCrossVal(t)
	for _, f := range out.Folds {
		if f.BalancedAccuracy != 1.0 {
			t.Fatalf("fold %d: separable data scored %v", f.Fold, f.BalancedAccuracy)
		}
		if f.ThresholdDegenerate {
			t.Fatalf("fold %d: unexpected degenerate threshold", f.Fold)
		}
	}
}

func TestRunCrossValScoresEveryTrialOnce(t *testing.T) {
	table, out := runSyntheticCrossVal(t)
	if len(out.OutOfFoldScores) != len(table.Records) {
		t.Fatalf("scores cover %d trials, want %d", len(out.OutOfFoldScores), len(table.Records))
	}
	for i, r := range table.Records {
		want := 0
		if r.Label == types.LabelRareTarget {
			want = 1
		}
		if out.OutOfFoldPreds[i] != want {
			t.Fatalf("trial %d (%s): predicted %d, want %d", i, r.Subject, out.OutOfFoldPreds[i], want)
		}
	}
}

func TestRunCrossValSingleClassTrainingDegrades(t *testing.T) {
	// sub-a contributes only frequent trials, so the fold that tests
	// sub-b trains on a single class. The run must still complete, with
	// that fold falling back to a 0.5 threshold and the degenerate flag.
	table := &types.TrialTable{}
	addTrial := func(subject string, label types.StimulusLabel, value float64) {
		table.Records = append(table.Records, types.TrialRecord{
			Subject: subject,
			Run:     "01",
			Label:   label,
			Features: types.FeatureVector{Groups: []types.FeatureGroup{
				{Name: "erp_p3", Values: []float64{value}},
			}},
		})
	}
	for i := 0; i < 6; i++ {
		addTrial("sub-a", types.LabelFrequentNonTarget, -1.0)
	}
	for i := 0; i < 3; i++ {
		addTrial("sub-b", types.LabelFrequentNonTarget, -1.0)
		addTrial("sub-b", types.LabelRareTarget, 1.0)
	}

	folds, err := AssignFolds(FoldAssignDeps{Log: testLogger(t)}, FoldAssignInput{
		Table: table, NSplits: 2, Seed: 42, BalanceTolerance: 2.0,
	})
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	policy, err := PolicyByName(PolicyTrainBalancedOptimal)
	if err != nil {
		t.Fatalf("policy lookup failed: %v", err)
	}
	out, err := RunCrossVal(context.Background(), CrossValDeps{Log: testLogger(t)}, CrossValInput{
		Table:      table,
		Assignment: folds.Assignment,
		Policy:     policy,
		Logistic:   LogisticConfig{LearningRate: 0.1, Iterations: 200, L2Penalty: 1e-4},
	})
	if err != nil {
		t.Fatalf("single-class training split must not abort the run: %v", err)
	}

	var degraded *types.FoldResult
	for i := range out.Folds {
		for _, s := range out.Folds[i].TestSubjects {
			if s == "sub-b" {
				degraded = &out.Folds[i]
			}
		}
	}
	if degraded == nil {
		t.Fatalf("no fold tests sub-b: %+v", out.Folds)
	}
	if !degraded.ThresholdDegenerate {
		t.Fatalf("fold %d trained on one class but is not flagged degenerate", degraded.Fold)
	}
	if degraded.Threshold != 0.5 {
		t.Fatalf("degenerate fold threshold: got %v, want 0.5", degraded.Threshold)
	}
	if degraded.BalancedAccuracy != 0.5 {
		t.Fatalf("all-frequent training should predict at chance, got %v", degraded.BalancedAccuracy)
	}
	for i, r := range table.Records {
		if r.Subject != "sub-b" {
			continue
		}
		if out.OutOfFoldScores[i] != 0.0 {
			t.Fatalf("trial %d: degenerate score %v, want the training positive rate 0", i, out.OutOfFoldScores[i])
		}
		if out.OutOfFoldPreds[i] != 0 {
			t.Fatalf("trial %d: degenerate prediction %d, want 0", i, out.OutOfFoldPreds[i])
		}
	}
	for _, f := range out.Folds {
		if f.Fold != degraded.Fold && f.ThresholdDegenerate {
			t.Fatalf("fold %d flagged degenerate despite mixed training classes", f.Fold)
		}
	}
}

func TestComputeMetricsPooled(t *testing.T) {
	table, out := runSyntheticCrossVal(t)
	metricsOut, err := ComputeMetrics(MetricsDeps{Log: testLogger(t)}, MetricsInput{
		Table:           table,
		Folds:           out.Folds,
		OutOfFoldScores: out.OutOfFoldScores,
		OutOfFoldPreds:  out.OutOfFoldPreds,
		Seed:            42,
		ThresholdPolicy: PolicyTrainBalancedOptimal,
		BaseGroupCount:  1,
	})
	if err != nil {
		t.Fatalf("metrics failed: %v", err)
	}
	m := metricsOut.Metrics
	if total := m.Confusion.Total(); total != len(table.Records) {
		t.Fatalf("pooled confusion totals %d, want %d", total, len(table.Records))
	}
	if m.Confusion.FP != 0 || m.Confusion.FN != 0 {
		t.Fatalf("separable data should pool cleanly, got %+v", m.Confusion)
	}
	if m.MeanBalancedAccuracy != 1.0 || m.MinBalancedAccuracy != 1.0 || m.MaxBalancedAccuracy != 1.0 {
		t.Fatalf("balanced accuracy summary: mean=%v min=%v max=%v",
			m.MeanBalancedAccuracy, m.MinBalancedAccuracy, m.MaxBalancedAccuracy)
	}
	if m.ROCAUC != 1.0 {
		t.Fatalf("separable data should give AUC 1.0, got %v", m.ROCAUC)
	}
	if m.BaselineBalancedAccuracy != 0.5 {
		t.Fatalf("baseline must be 0.5, got %v", m.BaselineBalancedAccuracy)
	}
	if m.DeltaBalancedAccuracy != 0.5 {
		t.Fatalf("delta vs baseline: got %v, want 0.5", m.DeltaBalancedAccuracy)
	}
	if m.BaseGroupCount != 1 || m.NormalizedGroupCount != 1 {
		t.Fatalf("group counts: base=%d normalized=%d", m.BaseGroupCount, m.NormalizedGroupCount)
	}
}

func TestComputeMetricsRejectsBadGroupCount(t *testing.T) {
	table, out := runSyntheticCrossVal(t)
	for _, base := range []int{0, 3} {
		_, err := ComputeMetrics(MetricsDeps{Log: testLogger(t)}, MetricsInput{
			Table:           table,
			Folds:           out.Folds,
			OutOfFoldScores: out.OutOfFoldScores,
			OutOfFoldPreds:  out.OutOfFoldPreds,
			Seed:            42,
			ThresholdPolicy: PolicyTrainBalancedOptimal,
			BaseGroupCount:  base,
		})
		if err == nil {
			t.Fatalf("base group count %d must be rejected for a 2-group table", base)
		}
	}
}

func TestRocAUCTieHandling(t *testing.T) {
	// All scores equal: every ordering is a coin flip, AUC must be 0.5.
	auc, err := rocAUC([]float64{0.5, 0.5, 0.5, 0.5}, []int{0, 1, 0, 1})
	if err != nil {
		t.Fatalf("auc failed: %v", err)
	}
	if auc != 0.5 {
		t.Fatalf("tied scores: got AUC %v, want 0.5", auc)
	}

	auc, err = rocAUC([]float64{0.1, 0.4, 0.35, 0.8}, []int{0, 0, 1, 1})
	if err != nil {
		t.Fatalf("auc failed: %v", err)
	}
	if auc != 0.75 {
		t.Fatalf("got AUC %v, want 0.75", auc)
	}
}

func TestComputeMetricsSingleClassFails(t *testing.T) {
	table := &types.TrialTable{}
	for i := 0; i < 4; i++ {
		table.Records = append(table.Records, types.TrialRecord{
			Subject: "sub-01",
			Label:   types.LabelRareTarget,
			Features: types.FeatureVector{Groups: []types.FeatureGroup{
				{Name: "erp_p3", Values: []float64{float64(i)}},
			}},
		})
	}
	_, err := ComputeMetrics(MetricsDeps{Log: testLogger(t)}, MetricsInput{
		Table:           table,
		Folds:           []types.FoldResult{{Fold: 0, BalancedAccuracy: 0.5}},
		OutOfFoldScores: []float64{0.1, 0.2, 0.3, 0.4},
		OutOfFoldPreds:  []int{0, 0, 1, 1},
		BaseGroupCount:  1,
	})
	if err == nil {
		t.Fatalf("expected failure when pooled truth has one class")
	}
}
