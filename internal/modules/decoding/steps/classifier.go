package steps

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Scaler standardizes feature columns with statistics estimated on the
// training split only. Constant columns map to zero.
type Scaler struct {
	Mean []float64
	Std  []float64
}

func FitScaler(x *mat.Dense) *Scaler {
	rows, cols := x.Dims()
	s := &Scaler{Mean: make([]float64, cols), Std: make([]float64, cols)}
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, x)
		mean := floats.Sum(col) / float64(rows)
		variance := 0.0
		for _, v := range col {
			d := v - mean
			variance += d * d
		}
		s.Mean[j] = mean
		s.Std[j] = math.Sqrt(variance / float64(rows))
	}
	return s
}

func (s *Scaler) Transform(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if s.Std[j] == 0 {
				out.Set(i, j, 0)
			} else {
				out.Set(i, j, (x.At(i, j)-s.Mean[j])/s.Std[j])
			}
		}
	}
	return out
}

// LogisticModel is a binary logistic regression trained by full-batch
// gradient descent with balanced class weights, so the rare class pulls
// the decision boundary as hard as the frequent one.
type LogisticModel struct {
	Weights []float64
	Bias    float64
}

type LogisticConfig struct {
	LearningRate float64
	Iterations   int
	L2Penalty    float64
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}

// TrainLogistic fits on standardized features x with binary labels y.
// Weight init is zero and updates are full-batch, so training is
// deterministic for a given input ordering-independent sum.
func TrainLogistic(x *mat.Dense, y []int, cfg LogisticConfig) (*LogisticModel, error) {
	rows, cols := x.Dims()
	if rows != len(y) {
		return nil, fmt.Errorf("classifier: %d rows vs %d labels", rows, len(y))
	}
	nPos := 0
	for _, v := range y {
		if v == 1 {
			nPos++
		}
	}
	nNeg := rows - nPos
	if nPos == 0 || nNeg == 0 {
		return nil, fmt.Errorf("classifier: training split has a single class")
	}

	// sklearn-style balanced weights: n / (2 * n_class).
	wPos := float64(rows) / (2.0 * float64(nPos))
	wNeg := float64(rows) / (2.0 * float64(nNeg))
	sampleW := make([]float64, rows)
	wSum := 0.0
	for i, v := range y {
		if v == 1 {
			sampleW[i] = wPos
		} else {
			sampleW[i] = wNeg
		}
		wSum += sampleW[i]
	}

	model := &LogisticModel{Weights: make([]float64, cols)}
	grad := make([]float64, cols)
	row := make([]float64, cols)
	for iter := 0; iter < cfg.Iterations; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		gradBias := 0.0
		for i := 0; i < rows; i++ {
			mat.Row(row, i, x)
			z := model.Bias + floats.Dot(model.Weights, row)
			resid := sampleW[i] * (sigmoid(z) - float64(y[i]))
			floats.AddScaled(grad, resid, row)
			gradBias += resid
		}
		for j := range grad {
			grad[j] = grad[j]/wSum + cfg.L2Penalty*model.Weights[j]
		}
		gradBias /= wSum
		floats.AddScaled(model.Weights, -cfg.LearningRate, grad)
		model.Bias -= cfg.LearningRate * gradBias
	}
	return model, nil
}

// Scores returns the positive-class probability for each row of x.
func (m *LogisticModel) Scores(x *mat.Dense) []float64 {
	rows, cols := x.Dims()
	scores := make([]float64, rows)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, x)
		scores[i] = sigmoid(m.Bias + floats.Dot(m.Weights, row))
	}
	return scores
}
