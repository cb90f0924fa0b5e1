package steps

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/neurodecode/internal/bids"
	types "github.com/yungbote/neurodecode/internal/domain"
	"github.com/yungbote/neurodecode/internal/epochs"
	"github.com/yungbote/neurodecode/internal/pkg/logger"
)

type TableBuildDeps struct {
	Log    *logger.Logger
	Source epochs.Source
}

type TableBuildInput struct {
	Features FeatureConfig

	// BIDSRoot, when set, is scanned for events.tsv files so the output
	// counts can be reconciled against the raw dataset.
	BIDSRoot string

	// Workers caps per-subject parallelism. 0 means runtime.NumCPU.
	Workers int
}

type TableBuildOutput struct {
	Table  *types.TrialTable
	Counts types.BuildCounts
}

// BuildTrialTable extracts and subject-normalizes every trial the source
// supplies. Subjects are processed independently in parallel; each writes
// into its own pre-reserved slot, so record order is deterministic.
func BuildTrialTable(ctx context.Context, deps TableBuildDeps, in TableBuildInput) (TableBuildOutput, error) {
	out := TableBuildOutput{}
	if deps.Log == nil || deps.Source == nil {
		return out, fmt.Errorf("table_build: missing deps")
	}
	log := deps.Log.With("step", "table_build")

	refs, err := deps.Source.Runs(ctx)
	if err != nil {
		return out, fmt.Errorf("table_build: list runs: %w", err)
	}

	// Group runs by subject, keeping the source's stable run order.
	subjects := make([]string, 0)
	runsBySubject := map[string][]epochs.RunRef{}
	for _, ref := range refs {
		if _, ok := runsBySubject[ref.Subject]; !ok {
			subjects = append(subjects, ref.Subject)
		}
		runsBySubject[ref.Subject] = append(runsBySubject[ref.Subject], ref)
	}
	sort.Strings(subjects)

	var (
		sourceDiscovered atomic.Int64
		sourceEpoched    atomic.Int64
		filesProcessed   atomic.Int64
		filesSkipped     atomic.Int64
		trialsSkipped    atomic.Int64
	)

	workers := in.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	// One slot per subject; no shared mutable state across workers.
	slots := make([][]types.TrialRecord, len(subjects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for idx, subject := range subjects {
		idx, subject := idx, subject
		g.Go(func() error {
			var baseVectors []types.FeatureVector
			var meta []struct {
				run   string
				label types.StimulusLabel
			}

			for _, ref := range runsBySubject[subject] {
				bundle, err := deps.Source.Load(gctx, ref)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					log.Warn("Skipping unreadable run", "subject", ref.Subject, "run", ref.Run, "error", err)
					filesSkipped.Add(1)
					continue
				}
				sourceDiscovered.Add(int64(bundle.SourceFilesDiscovered))
				sourceEpoched.Add(int64(bundle.SourceFilesEpoched))
				filesProcessed.Add(1)

				for i := range bundle.Trials {
					epoch := bundle.Epoch(i)
					if epoch.Label != types.LabelFrequentNonTarget && epoch.Label != types.LabelRareTarget {
						continue
					}
					fv, err := ExtractFeatures(&epoch, in.Features)
					if err != nil {
						if !IsExtractionSkip(err) {
							return fmt.Errorf("table_build: subject %s: %w", subject, err)
						}
						trialsSkipped.Add(1)
						continue
					}
					baseVectors = append(baseVectors, fv)
					meta = append(meta, struct {
						run   string
						label types.StimulusLabel
					}{run: ref.Run, label: epoch.Label})
				}
			}

			normalized, err := NormalizeSubject(baseVectors)
			if err != nil {
				return fmt.Errorf("table_build: subject %s: %w", subject, err)
			}
			records := make([]types.TrialRecord, len(normalized))
			for i, fv := range normalized {
				records[i] = types.TrialRecord{
					Subject:  subject,
					Run:      meta[i].run,
					Label:    meta[i].label,
					Features: fv,
				}
			}
			slots[idx] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	table := &types.TrialTable{}
	for _, records := range slots {
		table.Records = append(table.Records, records...)
	}

	counts := types.BuildCounts{
		SourceFilesDiscovered: int(sourceDiscovered.Load()),
		SourceFilesEpoched:    int(sourceEpoched.Load()),
		EEGFilesProcessed:     int(filesProcessed.Load()),
		EEGFilesSkipped:       int(filesSkipped.Load()),
		TrialsExtracted:       len(table.Records),
		TrialsSkipped:         int(trialsSkipped.Load()),
		ClassCounts:           table.ClassCounts(),
		SubjectsMissingClass:  subjectsMissingClass(table),
	}
	if in.BIDSRoot != "" {
		eventFiles, err := bids.DiscoverEventFiles(in.BIDSRoot)
		if err != nil {
			log.Warn("Could not count event files", "error", err)
		} else {
			counts.EventFilesDiscovered = len(eventFiles)
		}
	}

	log.Info("Trial table built",
		"subjects", len(subjects),
		"trials", counts.TrialsExtracted,
		"trials_skipped", counts.TrialsSkipped,
		"files_processed", counts.EEGFilesProcessed,
		"files_skipped", counts.EEGFilesSkipped,
	)

	out.Table = table
	out.Counts = counts
	return out, nil
}

// subjectsMissingClass lists subjects that contributed zero trials of one
// class. Such subjects are tolerated but recorded as a caveat.
func subjectsMissingClass(table *types.TrialTable) []string {
	perSubject := map[string]map[types.StimulusLabel]int{}
	for _, r := range table.Records {
		if perSubject[r.Subject] == nil {
			perSubject[r.Subject] = map[types.StimulusLabel]int{}
		}
		perSubject[r.Subject][r.Label]++
	}
	var missing []string
	for subject, counts := range perSubject {
		if counts[types.LabelFrequentNonTarget] == 0 || counts[types.LabelRareTarget] == 0 {
			missing = append(missing, subject)
		}
	}
	sort.Strings(missing)
	return missing
}
