package steps

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	types "github.com/yungbote/neurodecode/internal/domain"
)

// Window is a fixed post-stimulus latency range (seconds).
type Window struct {
	Name     string
	StartSec float64
	EndSec   float64
}

// Band is a named frequency range (Hz).
type Band struct {
	Name   string
	LowHz  float64
	HighHz float64
}

// FeatureConfig fixes the extraction schema for a whole run. Every trial is
// extracted with the same channel subset, windows, and bands; nothing is
// inferred per trial.
type FeatureConfig struct {
	// ROIChannels is the fixed channel subset. Selected channels are
	// averaged into a single trace before any descriptor is computed.
	ROIChannels []string
	Windows     []Window
	Bands       []Band

	// Total-power range for relative band power.
	TotalLowHz  float64
	TotalHighHz float64
}

var waveformNames = []string{
	"wave_peak_max",
	"wave_peak_min",
	"wave_peak_to_peak",
	"wave_mean_abs",
	"wave_std",
	"wave_abs_area",
}

// BaseGroupNames returns the fixed base schema in emission order.
func (c FeatureConfig) BaseGroupNames() []string {
	names := make([]string, 0, len(c.Windows)+len(waveformNames)+2*len(c.Bands))
	for _, w := range c.Windows {
		names = append(names, "erp_"+w.Name)
	}
	names = append(names, waveformNames...)
	for _, b := range c.Bands {
		names = append(names, "bp_"+b.Name)
	}
	for _, b := range c.Bands {
		names = append(names, "bp_"+b.Name+"_rel")
	}
	return names
}

// ExtractFeatures converts one epoch into a base feature vector. A skip
// error means the trial must be dropped and counted, never zero-filled.
func ExtractFeatures(epoch *types.Epoch, cfg FeatureConfig) (types.FeatureVector, error) {
	selected := selectROI(epoch, cfg.ROIChannels)
	if len(selected) == 0 {
		return types.FeatureVector{}, fmt.Errorf("%w: channels=%v roi=%v", ErrEpochNoROI, epoch.Channels, cfg.ROIChannels)
	}

	n := epoch.NumSamples()
	for _, row := range selected {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return types.FeatureVector{}, fmt.Errorf("%w: subject=%s run=%s", ErrEpochNonFinite, epoch.Subject, epoch.Run)
			}
		}
	}

	type span struct{ start, end int }
	spans := make([]span, len(cfg.Windows))
	for i, w := range cfg.Windows {
		start := int(math.Round((w.StartSec - epoch.TMinSec) * epoch.SampleRate))
		end := int(math.Round((w.EndSec - epoch.TMinSec) * epoch.SampleRate))
		if start < 0 || end > n || start >= end {
			return types.FeatureVector{}, fmt.Errorf("%w: window=%s samples=%d", ErrEpochTooShort, w.Name, n)
		}
		spans[i] = span{start: start, end: end}
	}

	trace := averageChannels(selected, n)

	groups := make([]types.FeatureGroup, 0, len(cfg.Windows)+len(waveformNames)+2*len(cfg.Bands))

	for i, w := range cfg.Windows {
		mean := stat.Mean(trace[spans[i].start:spans[i].end], nil)
		groups = append(groups, types.FeatureGroup{Name: "erp_" + w.Name, Values: []float64{mean}})
	}

	groups = append(groups, waveformGroups(trace, epoch.SampleRate)...)

	bandPowers, totalPower := bandPower(trace, epoch.SampleRate, cfg)
	for i, b := range cfg.Bands {
		groups = append(groups, types.FeatureGroup{Name: "bp_" + b.Name, Values: []float64{bandPowers[i]}})
	}
	for i, b := range cfg.Bands {
		rel := 0.0
		if totalPower > 0 {
			rel = bandPowers[i] / totalPower
		}
		groups = append(groups, types.FeatureGroup{Name: "bp_" + b.Name + "_rel", Values: []float64{rel}})
	}

	return types.FeatureVector{Groups: groups}, nil
}

// selectROI returns the epoch rows for configured channels, in ROI order.
func selectROI(epoch *types.Epoch, roi []string) [][]float64 {
	index := make(map[string]int, len(epoch.Channels))
	for i, name := range epoch.Channels {
		index[name] = i
	}
	var rows [][]float64
	for _, name := range roi {
		if i, ok := index[name]; ok && i < len(epoch.Data) {
			rows = append(rows, epoch.Data[i])
		}
	}
	return rows
}

func averageChannels(rows [][]float64, n int) []float64 {
	trace := make([]float64, n)
	for _, row := range rows {
		for i := 0; i < n && i < len(row); i++ {
			trace[i] += row[i]
		}
	}
	inv := 1.0 / float64(len(rows))
	for i := range trace {
		trace[i] *= inv
	}
	return trace
}

func waveformGroups(trace []float64, sampleRate float64) []types.FeatureGroup {
	maxV := math.Inf(-1)
	minV := math.Inf(1)
	var sumAbs float64
	for _, v := range trace {
		if v > maxV {
			maxV = v
		}
		if v < minV {
			minV = v
		}
		sumAbs += math.Abs(v)
	}
	meanAbs := sumAbs / float64(len(trace))
	std := stat.PopStdDev(trace, nil)

	// Trapezoidal integral of |signal| over the epoch window.
	dt := 1.0 / sampleRate
	var area float64
	for i := 0; i+1 < len(trace); i++ {
		area += (math.Abs(trace[i]) + math.Abs(trace[i+1])) / 2.0 * dt
	}

	values := []float64{maxV, minV, maxV - minV, meanAbs, std, area}
	groups := make([]types.FeatureGroup, len(waveformNames))
	for i, name := range waveformNames {
		groups[i] = types.FeatureGroup{Name: name, Values: []float64{values[i]}}
	}
	return groups
}
