package services

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	types "github.com/yungbote/neurodecode/internal/domain"
	"github.com/yungbote/neurodecode/internal/pkg/logger"
)

type FigureService interface {
	ClassBalanceFigure(counts map[types.StimulusLabel]int, outPath string) error
	FoldAccuracyFigure(metrics types.RunMetrics, outPath string) error
	ROCFigure(scores []float64, labels []int, auc float64, outPath string) error
	ConfusionFigure(cm types.ConfusionMatrix, outPath string) error
}

type figureService struct {
	log *logger.Logger
}

func NewFigureService(log *logger.Logger) FigureService {
	return &figureService{log: log.With("service", "FigureService")}
}

// ClassBalanceFigure draws per-class trial counts as a bar chart.
func (s *figureService) ClassBalanceFigure(counts map[types.StimulusLabel]int, outPath string) error {
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, string(l))
	}
	sort.Strings(labels)

	values := make(plotter.Values, len(labels))
	for i, l := range labels {
		values[i] = float64(counts[types.StimulusLabel(l)])
	}

	p := plot.New()
	p.Title.Text = "Trial counts per class"
	p.Y.Label.Text = "Trials"
	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return fmt.Errorf("figures: class balance bars: %w", err)
	}
	bars.Color = color.NRGBA{R: 0x3b, G: 0x7d, B: 0xd8, A: 0xff}
	p.Add(bars)
	p.NominalX(labels...)

	return s.save(p, outPath)
}

// FoldAccuracyFigure draws per-fold balanced accuracy with the chance
// baseline overlaid.
func (s *figureService) FoldAccuracyFigure(metrics types.RunMetrics, outPath string) error {
	values := make(plotter.Values, len(metrics.Folds))
	names := make([]string, len(metrics.Folds))
	for i, f := range metrics.Folds {
		values[i] = f.BalancedAccuracy
		names[i] = fmt.Sprintf("fold %d", f.Fold)
	}

	p := plot.New()
	p.Title.Text = "Balanced accuracy per fold"
	p.Y.Label.Text = "Balanced accuracy"
	p.Y.Min = 0
	p.Y.Max = 1

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return fmt.Errorf("figures: fold accuracy bars: %w", err)
	}
	bars.Color = color.NRGBA{R: 0x2f, G: 0xa8, B: 0x6b, A: 0xff}
	p.Add(bars)
	p.NominalX(names...)

	baseline := plotter.XYs{
		{X: -0.5, Y: metrics.BaselineBalancedAccuracy},
		{X: float64(len(metrics.Folds)) - 0.5, Y: metrics.BaselineBalancedAccuracy},
	}
	line, err := plotter.NewLine(baseline)
	if err != nil {
		return fmt.Errorf("figures: baseline line: %w", err)
	}
	line.LineStyle.Width = vg.Points(1)
	line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	line.Color = color.NRGBA{R: 0xcc, G: 0x44, B: 0x44, A: 0xff}
	p.Add(line)
	p.Legend.Add("chance", line)

	return s.save(p, outPath)
}

// ROCFigure draws the pooled out-of-fold ROC curve.
func (s *figureService) ROCFigure(scores []float64, labels []int, auc float64, outPath string) error {
	curve := rocCurve(scores, labels)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("ROC (AUC = %.3f)", auc)
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1

	line, err := plotter.NewLine(curve)
	if err != nil {
		return fmt.Errorf("figures: roc line: %w", err)
	}
	line.Color = color.NRGBA{R: 0x3b, G: 0x7d, B: 0xd8, A: 0xff}
	line.Width = vg.Points(1.5)
	p.Add(line)

	diag, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return fmt.Errorf("figures: roc diagonal: %w", err)
	}
	diag.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	diag.Color = color.NRGBA{R: 0x99, G: 0x99, B: 0x99, A: 0xff}
	p.Add(diag)

	return s.save(p, outPath)
}

// ConfusionFigure rasterizes the pooled confusion matrix as a 2x2 heatmap
// with cell counts, rendered directly so the cell annotations stay legible
// at small sizes.
func (s *figureService) ConfusionFigure(cm types.ConfusionMatrix, outPath string) error {
	const (
		width   = 520
		height  = 520
		margin  = 90.0
		cell    = (float64(width) - 2*margin) / 2.0
		maxTone = 0.85
	)

	ttf, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return fmt.Errorf("figures: parse font: %w", err)
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Rows are truth, columns are prediction: [TN FP; FN TP].
	grid := [2][2]int{{cm.TN, cm.FP}, {cm.FN, cm.TP}}
	maxCount := 1
	for _, row := range grid {
		for _, v := range row {
			if v > maxCount {
				maxCount = v
			}
		}
	}

	valueFace := truetype.NewFace(ttf, &truetype.Options{Size: 26})
	labelFace := truetype.NewFace(ttf, &truetype.Options{Size: 16})

	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			x := margin + float64(c)*cell
			y := margin + float64(r)*cell
			tone := maxTone * float64(grid[r][c]) / float64(maxCount)
			dc.SetRGB(1-tone, 1-tone*0.55, 1-tone*0.15)
			dc.DrawRectangle(x, y, cell, cell)
			dc.Fill()
			dc.SetRGB(0.25, 0.25, 0.25)
			dc.DrawRectangle(x, y, cell, cell)
			dc.SetLineWidth(1)
			dc.Stroke()

			dc.SetFontFace(valueFace)
			dc.SetRGB(0.1, 0.1, 0.1)
			dc.DrawStringAnchored(fmt.Sprintf("%d", grid[r][c]), x+cell/2, y+cell/2, 0.5, 0.5)
		}
	}

	dc.SetFontFace(labelFace)
	dc.SetRGB(0.1, 0.1, 0.1)
	dc.DrawStringAnchored("Predicted "+string(types.LabelFrequentNonTarget), margin+cell/2, margin-24, 0.5, 0.5)
	dc.DrawStringAnchored("Predicted "+string(types.LabelRareTarget), margin+cell+cell/2, margin-24, 0.5, 0.5)

	dc.Push()
	dc.RotateAbout(-gg.Radians(90), margin-24, margin+cell/2)
	dc.DrawStringAnchored("True "+string(types.LabelFrequentNonTarget), margin-24, margin+cell/2, 0.5, 0.5)
	dc.Pop()
	dc.Push()
	dc.RotateAbout(-gg.Radians(90), margin-24, margin+cell+cell/2)
	dc.DrawStringAnchored("True "+string(types.LabelRareTarget), margin-24, margin+cell+cell/2, 0.5, 0.5)
	dc.Pop()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("figures: %w", err)
	}
	if err := dc.SavePNG(outPath); err != nil {
		return fmt.Errorf("figures: save %s: %w", outPath, err)
	}
	s.log.Info("Figure written", "path", outPath)
	return nil
}

func (s *figureService) save(p *plot.Plot, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("figures: %w", err)
	}
	if err := p.Save(6*vg.Inch, 4.5*vg.Inch, outPath); err != nil {
		return fmt.Errorf("figures: save %s: %w", outPath, err)
	}
	s.log.Info("Figure written", "path", outPath)
	return nil
}

// rocCurve sweeps thresholds from high to low over the distinct scores and
// emits one (FPR, TPR) point per threshold.
func rocCurve(scores []float64, labels []int) plotter.XYs {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	var nPos, nNeg int
	for _, l := range labels {
		if l == 1 {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}}
	}

	curve := plotter.XYs{{X: 0, Y: 0}}
	tp, fp := 0, 0
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && scores[idx[j]] == scores[idx[i]] {
			if labels[idx[j]] == 1 {
				tp++
			} else {
				fp++
			}
			j++
		}
		curve = append(curve, plotter.XY{
			X: float64(fp) / float64(nNeg),
			Y: float64(tp) / float64(nPos),
		})
		i = j
	}
	return curve
}
