package decoding

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/neurodecode/internal/app"
	"github.com/yungbote/neurodecode/internal/data/repos/runs"
	types "github.com/yungbote/neurodecode/internal/domain"
	"github.com/yungbote/neurodecode/internal/epochs"
	"github.com/yungbote/neurodecode/internal/modules/decoding/steps"
	"github.com/yungbote/neurodecode/internal/pkg/dbctx"
	"github.com/yungbote/neurodecode/internal/pkg/logger"
)

type Deps struct {
	Log    *logger.Logger
	Source epochs.Source

	// Runs is optional; when nil the run stamp is not persisted.
	Runs runs.DecodingRunRepo
}

type Input struct {
	Config app.Config
}

type Output struct {
	Table   *types.TrialTable
	Counts  types.BuildCounts
	Metrics types.RunMetrics
	RunID   uuid.UUID

	// OutOfFoldScores is indexed like Table.Records.
	OutOfFoldScores []float64
}

// FeatureConfigFrom maps the analysis configuration onto the extraction
// schema.
func FeatureConfigFrom(cfg app.AnalysisConfig) steps.FeatureConfig {
	fc := steps.FeatureConfig{
		ROIChannels: cfg.ROIChannels,
		TotalLowHz:  cfg.TotalPowerLowHz,
		TotalHighHz: cfg.TotalPowerHighHz,
	}
	for _, w := range cfg.ERPWindows {
		fc.Windows = append(fc.Windows, steps.Window{Name: w.Name, StartSec: w.StartSec, EndSec: w.EndSec})
	}
	for _, b := range cfg.Bands {
		fc.Bands = append(fc.Bands, steps.Band{Name: b.Name, LowHz: b.LowHz, HighHz: b.HighHz})
	}
	return fc
}

// Run executes the full evaluation: trial table build, subject-grouped fold
// assignment, per-fold training and scoring, pooled metrics, and a single
// persisted run stamp.
func Run(ctx context.Context, deps Deps, in Input) (Output, error) {
	out := Output{}
	if deps.Log == nil || deps.Source == nil {
		return out, fmt.Errorf("decoding: missing deps")
	}
	log := deps.Log.With("module", "decoding")
	cfg := in.Config

	featureCfg := FeatureConfigFrom(cfg.Analysis)
	tableOut, err := steps.BuildTrialTable(ctx, steps.TableBuildDeps{Log: deps.Log, Source: deps.Source}, steps.TableBuildInput{
		Features: featureCfg,
		BIDSRoot: cfg.Data.BIDSRoot,
		Workers:  cfg.Modeling.Workers,
	})
	if err != nil {
		return out, err
	}
	out.Table = tableOut.Table
	out.Counts = tableOut.Counts
	if len(tableOut.Table.Records) == 0 {
		return out, fmt.Errorf("decoding: %w", steps.ErrTableEmpty)
	}

	foldOut, err := steps.AssignFolds(steps.FoldAssignDeps{Log: deps.Log}, steps.FoldAssignInput{
		Table:            tableOut.Table,
		NSplits:          cfg.Modeling.NSplits,
		Seed:             cfg.Project.RandomSeed,
		BalanceTolerance: cfg.Modeling.FoldBalanceTolerance,
	})
	if err != nil {
		return out, err
	}

	policy, err := steps.PolicyByName(cfg.Modeling.ThresholdPolicy)
	if err != nil {
		return out, err
	}

	cvOut, err := steps.RunCrossVal(ctx, steps.CrossValDeps{Log: deps.Log}, steps.CrossValInput{
		Table:      tableOut.Table,
		Assignment: foldOut.Assignment,
		Policy:     policy,
		Logistic: steps.LogisticConfig{
			LearningRate: cfg.Modeling.LearningRate,
			Iterations:   cfg.Modeling.Iterations,
			L2Penalty:    cfg.Modeling.L2Penalty,
		},
	})
	if err != nil {
		return out, err
	}

	metricsOut, err := steps.ComputeMetrics(steps.MetricsDeps{Log: deps.Log}, steps.MetricsInput{
		Table:           tableOut.Table,
		Folds:           cvOut.Folds,
		OutOfFoldScores: cvOut.OutOfFoldScores,
		OutOfFoldPreds:  cvOut.OutOfFoldPreds,
		Seed:            cfg.Project.RandomSeed,
		ThresholdPolicy: policy.Name(),
		BaseGroupCount:  len(featureCfg.BaseGroupNames()),
	})
	if err != nil {
		return out, err
	}
	out.Metrics = metricsOut.Metrics
	out.OutOfFoldScores = cvOut.OutOfFoldScores

	if deps.Runs != nil {
		stamp, err := buildRunStamp(cfg, tableOut.Table, tableOut.Counts, metricsOut.Metrics)
		if err != nil {
			return out, err
		}
		created, err := deps.Runs.Create(dbctx.Context{Ctx: ctx}, stamp)
		if err != nil {
			return out, fmt.Errorf("decoding: persist run stamp: %w", err)
		}
		out.RunID = created.ID
		log.Info("Run stamp persisted", "run_id", created.ID)
	}
	return out, nil
}

func buildRunStamp(cfg app.Config, table *types.TrialTable, counts types.BuildCounts, m types.RunMetrics) (*types.DecodingRun, error) {
	cc, err := json.Marshal(counts.ClassCounts)
	if err != nil {
		return nil, fmt.Errorf("decoding: marshal class counts: %w", err)
	}
	bc, err := json.Marshal(counts)
	if err != nil {
		return nil, fmt.Errorf("decoding: marshal build counts: %w", err)
	}
	fm, err := json.Marshal(m.Folds)
	if err != nil {
		return nil, fmt.Errorf("decoding: marshal fold metrics: %w", err)
	}
	return &types.DecodingRun{
		ID:                       uuid.New(),
		Dataset:                  cfg.Project.Dataset,
		Task:                     cfg.Analysis.TaskName,
		Seed:                     m.Seed,
		NSplits:                  cfg.Modeling.NSplits,
		ThresholdPolicy:          m.ThresholdPolicy,
		NSubjects:                len(table.Subjects()),
		NTrials:                  len(table.Records),
		BaseGroupCount:           m.BaseGroupCount,
		NormalizedGroupCount:     m.NormalizedGroupCount,
		MeanBalancedAccuracy:     m.MeanBalancedAccuracy,
		MinBalancedAccuracy:      m.MinBalancedAccuracy,
		MaxBalancedAccuracy:      m.MaxBalancedAccuracy,
		ROCAUC:                   m.ROCAUC,
		BaselineBalancedAccuracy: m.BaselineBalancedAccuracy,
		DeltaBalancedAccuracy:    m.DeltaBalancedAccuracy,
		TrueNegatives:            m.Confusion.TN,
		FalsePositives:           m.Confusion.FP,
		FalseNegatives:           m.Confusion.FN,
		TruePositives:            m.Confusion.TP,
		ClassCounts:              datatypes.JSON(cc),
		BuildCounts:              datatypes.JSON(bc),
		FoldMetrics:              datatypes.JSON(fm),
	}, nil
}
