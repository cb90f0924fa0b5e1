package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	types "github.com/yungbote/neurodecode/internal/domain"
	"github.com/yungbote/neurodecode/internal/pkg/logger"
)

type ReportInput struct {
	Dataset string
	Task    string
	Counts  types.BuildCounts
	Metrics types.RunMetrics

	// FigurePaths maps figure names to their written locations, relative
	// to the report directory.
	FigurePaths map[string]string
}

type ReportService interface {
	WriteResults(in ReportInput, outPath string) error
}

type reportService struct {
	log *logger.Logger
}

func NewReportService(log *logger.Logger) ReportService {
	return &reportService{log: log.With("service", "ReportService")}
}

// WriteResults renders the run summary as markdown: dataset counts, pooled
// cross-validation metrics, and links to generated figures.
func (s *reportService) WriteResults(in ReportInput, outPath string) error {
	var b strings.Builder
	b.WriteString("# Results Summary\n\n")

	fmt.Fprintf(&b, "Dataset `%s`, task `%s`, seed %d, threshold policy `%s`.\n\n",
		in.Dataset, in.Task, in.Metrics.Seed, in.Metrics.ThresholdPolicy)

	b.WriteString("## Dataset and Features\n")
	fmt.Fprintf(&b, "- Event files discovered: %d\n", in.Counts.EventFilesDiscovered)
	fmt.Fprintf(&b, "- EEG files processed: %d\n", in.Counts.EEGFilesProcessed)
	fmt.Fprintf(&b, "- EEG files skipped: %d\n", in.Counts.EEGFilesSkipped)
	fmt.Fprintf(&b, "- Trials extracted: %d\n", in.Counts.TrialsExtracted)
	fmt.Fprintf(&b, "- Trials skipped: %d\n", in.Counts.TrialsSkipped)
	fmt.Fprintf(&b, "- Feature groups: %d base + %d subject-normalized\n",
		in.Metrics.BaseGroupCount, in.Metrics.NormalizedGroupCount)
	classes := make([]string, 0, len(in.Counts.ClassCounts))
	for l := range in.Counts.ClassCounts {
		classes = append(classes, string(l))
	}
	sort.Strings(classes)
	for _, c := range classes {
		fmt.Fprintf(&b, "- Class `%s`: %d trials\n", c, in.Counts.ClassCounts[types.StimulusLabel(c)])
	}
	if len(in.Counts.SubjectsMissingClass) > 0 {
		fmt.Fprintf(&b, "- Caveat: subjects missing a class: %s\n",
			strings.Join(in.Counts.SubjectsMissingClass, ", "))
	}
	b.WriteString("\n## Modeling\n")
	fmt.Fprintf(&b, "- CV folds: %d\n", len(in.Metrics.Folds))
	fmt.Fprintf(&b, "- Mean balanced accuracy: %.4f (min %.4f, max %.4f)\n",
		in.Metrics.MeanBalancedAccuracy, in.Metrics.MinBalancedAccuracy, in.Metrics.MaxBalancedAccuracy)
	fmt.Fprintf(&b, "- Baseline balanced accuracy: %.4f\n", in.Metrics.BaselineBalancedAccuracy)
	fmt.Fprintf(&b, "- Model minus baseline: %+.4f\n", in.Metrics.DeltaBalancedAccuracy)
	fmt.Fprintf(&b, "- ROC AUC: %.4f\n", in.Metrics.ROCAUC)
	cm := in.Metrics.Confusion
	fmt.Fprintf(&b, "- Confusion matrix (TN, FP, FN, TP): (%d, %d, %d, %d)\n", cm.TN, cm.FP, cm.FN, cm.TP)

	b.WriteString("\n### Folds\n")
	b.WriteString("| fold | test subjects | n_train | n_test | threshold | balanced accuracy |\n")
	b.WriteString("|------|---------------|---------|--------|-----------|-------------------|\n")
	for _, f := range in.Metrics.Folds {
		mark := ""
		if f.ThresholdDegenerate {
			mark = " (degenerate)"
		}
		fmt.Fprintf(&b, "| %d | %s | %d | %d | %.4f%s | %.4f |\n",
			f.Fold, strings.Join(f.TestSubjects, " "), f.NTrain, f.NTest, f.Threshold, mark, f.BalancedAccuracy)
	}

	if len(in.FigurePaths) > 0 {
		b.WriteString("\n## Figures\n")
		names := make([]string, 0, len(in.FigurePaths))
		for n := range in.FigurePaths {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(&b, "- %s: %s\n", n, in.FigurePaths[n])
		}
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := os.WriteFile(outPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", outPath, err)
	}
	s.log.Info("Report written", "path", outPath)
	return nil
}
