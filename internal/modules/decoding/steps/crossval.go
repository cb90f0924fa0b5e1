package steps

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	types "github.com/yungbote/neurodecode/internal/domain"
	"github.com/yungbote/neurodecode/internal/pkg/logger"
)

type CrossValDeps struct {
	Log *logger.Logger
}

type CrossValInput struct {
	Table      *types.TrialTable
	Assignment types.FoldAssignment
	Policy     ThresholdPolicy
	Logistic   LogisticConfig
}

type CrossValOutput struct {
	Folds []types.FoldResult

	// OutOfFoldScores and OutOfFoldPreds are indexed like Table.Records;
	// every trial is scored exactly once, by the fold that held it out.
	OutOfFoldScores []float64
	OutOfFoldPreds  []int
}

// RunCrossVal trains one model per fold on the trials of the training
// subjects and scores the held-out subjects' trials. Folds are independent
// and run in parallel; each writes only its own test indices.
func RunCrossVal(ctx context.Context, deps CrossValDeps, in CrossValInput) (CrossValOutput, error) {
	out := CrossValOutput{}
	if deps.Log == nil {
		return out, fmt.Errorf("crossval: missing deps")
	}
	if in.Table == nil || len(in.Table.Records) == 0 {
		return out, fmt.Errorf("crossval: %w", ErrTableEmpty)
	}
	if in.Policy == nil {
		return out, fmt.Errorf("crossval: missing threshold policy")
	}
	log := deps.Log.With("step", "crossval")

	records := in.Table.Records
	features := make([][]float64, len(records))
	labels := make([]int, len(records))
	width := len(records[0].Features.Flatten())
	for i, r := range records {
		features[i] = r.Features.Flatten()
		if len(features[i]) != width {
			return out, fmt.Errorf("crossval: record %d has %d features, want %d", i, len(features[i]), width)
		}
		labels[i] = r.Label.Binary()
	}

	folds := make([]types.FoldResult, in.Assignment.NumFolds())
	scores := make([]float64, len(records))
	preds := make([]int, len(records))

	g, gctx := errgroup.WithContext(ctx)
	for fold := 0; fold < in.Assignment.NumFolds(); fold++ {
		fold := fold
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			testSubjects := map[string]bool{}
			for _, s := range in.Assignment.TestSubjects[fold] {
				testSubjects[s] = true
			}
			var trainIdx, testIdx []int
			for i, r := range records {
				if testSubjects[r.Subject] {
					testIdx = append(testIdx, i)
				} else {
					trainIdx = append(trainIdx, i)
				}
			}
			if len(trainIdx) == 0 || len(testIdx) == 0 {
				return fmt.Errorf("crossval: fold %d: %w: empty split", fold, ErrFoldAssignment)
			}

			yTrain := make([]int, len(trainIdx))
			nPos := 0
			for i, idx := range trainIdx {
				yTrain[i] = labels[idx]
				nPos += labels[idx]
			}

			var (
				testScores []float64
				threshold  float64
				degenerate bool
			)
			if nPos == 0 || nPos == len(trainIdx) {
				// Single-class training split: nothing to fit, so score
				// every test trial with the training positive rate and
				// fall back to the fixed 0.5 threshold.
				rate := float64(nPos) / float64(len(trainIdx))
				testScores = make([]float64, len(testIdx))
				for i := range testScores {
					testScores[i] = rate
				}
				threshold = 0.5
				degenerate = true
				log.Warn("Training split has a single class, falling back to constant scores",
					"fold", fold,
					"positive_rate", rate,
				)
			} else {
				xTrain := rowsMatrix(features, trainIdx, width)
				scaler := FitScaler(xTrain)
				model, err := TrainLogistic(scaler.Transform(xTrain), yTrain, in.Logistic)
				if err != nil {
					return fmt.Errorf("crossval: fold %d: %w", fold, err)
				}

				trainScores := model.Scores(scaler.Transform(xTrain))
				threshold, degenerate = in.Policy.Select(trainScores, yTrain)

				xTest := rowsMatrix(features, testIdx, width)
				testScores = model.Scores(scaler.Transform(xTest))
			}

			var cm types.ConfusionMatrix
			for i, idx := range testIdx {
				scores[idx] = testScores[i]
				pred := 0
				if testScores[i] >= threshold {
					pred = 1
				}
				preds[idx] = pred
				switch {
				case labels[idx] == 1 && pred == 1:
					cm.TP++
				case labels[idx] == 1 && pred == 0:
					cm.FN++
				case labels[idx] == 0 && pred == 1:
					cm.FP++
				default:
					cm.TN++
				}
			}

			folds[fold] = types.FoldResult{
				Fold:                fold,
				Threshold:           threshold,
				ThresholdDegenerate: degenerate,
				BalancedAccuracy:    cm.BalancedAccuracy(),
				NTrain:              len(trainIdx),
				NTest:               len(testIdx),
				TestSubjects:        in.Assignment.TestSubjects[fold],
			}
			log.Info("Fold evaluated",
				"fold", fold,
				"n_train", len(trainIdx),
				"n_test", len(testIdx),
				"threshold", threshold,
				"balanced_accuracy", folds[fold].BalancedAccuracy,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	out.Folds = folds
	out.OutOfFoldScores = scores
	out.OutOfFoldPreds = preds
	return out, nil
}

func rowsMatrix(features [][]float64, idx []int, width int) *mat.Dense {
	m := mat.NewDense(len(idx), width, nil)
	for i, row := range idx {
		m.SetRow(i, features[row])
	}
	return m
}
