package steps

import (
	"fmt"
	"sort"

	types "github.com/yungbote/neurodecode/internal/domain"
	"github.com/yungbote/neurodecode/internal/pkg/logger"
)

type FoldAssignDeps struct {
	Log *logger.Logger
}

type FoldAssignInput struct {
	Table   *types.TrialTable
	NSplits int
	Seed    int64

	// BalanceTolerance bounds the heaviest fold at tolerance * (total/K)
	// trials. Zero disables the check.
	BalanceTolerance float64
}

type FoldAssignOutput struct {
	Assignment types.FoldAssignment
}

// AssignFolds partitions subjects into NSplits folds so every trial of a
// subject lands in exactly one fold, balancing folds by trial count:
// subjects are taken largest-first and each goes to the currently lightest
// fold. Ties break on subject ID, then fold index, so the result is fully
// deterministic.
func AssignFolds(deps FoldAssignDeps, in FoldAssignInput) (FoldAssignOutput, error) {
	out := FoldAssignOutput{}
	if deps.Log == nil {
		return out, fmt.Errorf("folds: missing deps")
	}
	if in.Table == nil || len(in.Table.Records) == 0 {
		return out, fmt.Errorf("folds: %w", ErrTableEmpty)
	}
	if in.NSplits < 2 {
		return out, fmt.Errorf("folds: %w: n_splits must be >= 2, got %d", ErrFoldAssignment, in.NSplits)
	}
	log := deps.Log.With("step", "folds")

	counts := in.Table.TrialCountsBySubject()
	if len(counts) < in.NSplits {
		return out, fmt.Errorf("folds: %w: %d subjects for %d splits", ErrFoldAssignment, len(counts), in.NSplits)
	}

	type subjectLoad struct {
		subject string
		trials  int
	}
	loads := make([]subjectLoad, 0, len(counts))
	total := 0
	for subject, n := range counts {
		loads = append(loads, subjectLoad{subject: subject, trials: n})
		total += n
	}
	sort.Slice(loads, func(i, j int) bool {
		if loads[i].trials != loads[j].trials {
			return loads[i].trials > loads[j].trials
		}
		return loads[i].subject < loads[j].subject
	})

	foldSubjects := make([][]string, in.NSplits)
	foldTrials := make([]int, in.NSplits)
	for _, l := range loads {
		lightest := 0
		for f := 1; f < in.NSplits; f++ {
			if foldTrials[f] < foldTrials[lightest] {
				lightest = f
			}
		}
		foldSubjects[lightest] = append(foldSubjects[lightest], l.subject)
		foldTrials[lightest] += l.trials
	}
	for f := range foldSubjects {
		sort.Strings(foldSubjects[f])
	}

	if in.BalanceTolerance > 0 {
		ideal := float64(total) / float64(in.NSplits)
		for f, n := range foldTrials {
			if float64(n) > in.BalanceTolerance*ideal {
				return out, fmt.Errorf("folds: %w: fold %d holds %d trials, ideal %.1f, tolerance %.1fx",
					ErrFoldAssignment, f, n, ideal, in.BalanceTolerance)
			}
		}
	}

	log.Info("Folds assigned", "n_splits", in.NSplits, "subjects", len(counts), "trials", total, "fold_trials", foldTrials)

	out.Assignment = types.FoldAssignment{Seed: in.Seed, TestSubjects: foldSubjects}
	return out, nil
}
