package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	types "github.com/yungbote/neurodecode/internal/domain"
	"github.com/yungbote/neurodecode/internal/pkg/logger"
)

func TestWriteResults(t *testing.T) {
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	outPath := filepath.Join(t.TempDir(), "report", "results.md")

	in := ReportInput{
		Dataset: "openneuro_candidate_1",
		Task:    "VisualOddball",
		Counts: types.BuildCounts{
			EventFilesDiscovered: 12,
			EEGFilesProcessed:    10,
			EEGFilesSkipped:      2,
			TrialsExtracted:      480,
			TrialsSkipped:        6,
			ClassCounts: map[types.StimulusLabel]int{
				types.LabelFrequentNonTarget: 400,
				types.LabelRareTarget:        80,
			},
			SubjectsMissingClass: []string{"07"},
		},
		Metrics: types.RunMetrics{
			Folds: []types.FoldResult{
				{Fold: 0, Threshold: 0.5, BalancedAccuracy: 0.71, NTrain: 384, NTest: 96, TestSubjects: []string{"01", "02"}},
				{Fold: 1, Threshold: 0.48, BalancedAccuracy: 0.66, NTrain: 384, NTest: 96, TestSubjects: []string{"03", "04"}},
			},
			MeanBalancedAccuracy:     0.685,
			MinBalancedAccuracy:      0.66,
			MaxBalancedAccuracy:      0.71,
			Confusion:                types.ConfusionMatrix{TN: 360, FP: 40, FN: 30, TP: 50},
			ROCAUC:                   0.74,
			BaselineBalancedAccuracy: 0.5,
			DeltaBalancedAccuracy:    0.185,
			Seed:                     42,
			ThresholdPolicy:          "train_balanced_optimal",
			BaseGroupCount:           15,
			NormalizedGroupCount:     15,
		},
		FigurePaths: map[string]string{"roc curve": "../figures/roc_curve.png"},
	}

	if err := NewReportService(log).WriteResults(in, outPath); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	raw, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	report := string(raw)

	for _, want := range []string{
		"# Results Summary",
		"Event files discovered: 12",
		"Trials extracted: 480",
		"15 base + 15 subject-normalized",
		"Mean balanced accuracy: 0.6850",
		"Confusion matrix (TN, FP, FN, TP): (360, 40, 30, 50)",
		"subjects missing a class: 07",
		"roc curve: ../figures/roc_curve.png",
	} {
		if !strings.Contains(report, want) {
			t.Fatalf("report missing %q\n%s", want, report)
		}
	}
}
