package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/neurodecode/internal/pkg/logger"
	"github.com/yungbote/neurodecode/internal/utils"
)

// ERPWindow is a fixed post-stimulus latency window (seconds).
type ERPWindow struct {
	Name     string  `yaml:"name"`
	StartSec float64 `yaml:"start_sec"`
	EndSec   float64 `yaml:"end_sec"`
}

// Band is a named frequency range (Hz).
type Band struct {
	Name   string  `yaml:"name"`
	LowHz  float64 `yaml:"low_hz"`
	HighHz float64 `yaml:"high_hz"`
}

type ProjectConfig struct {
	Dataset    string `yaml:"dataset"`
	RandomSeed int64  `yaml:"random_seed"`
}

type DataConfig struct {
	BIDSRoot       string `yaml:"bids_root"`
	DerivativesDir string `yaml:"derivatives_dir"`
	OutputsDir     string `yaml:"outputs_dir"`
}

type AnalysisConfig struct {
	TaskName    string   `yaml:"task_name"`
	TargetLabel string   `yaml:"target_label"`
	ClassLabels []string `yaml:"class_labels"`

	// ROIChannels is the fixed channel subset feeding ERP-window and
	// waveform features. Channel-averaged, declared here, never inferred
	// per trial.
	ROIChannels []string    `yaml:"roi_channels"`
	ERPWindows  []ERPWindow `yaml:"erp_windows"`
	Bands       []Band      `yaml:"bands"`

	// Total-power range for relative band power.
	TotalPowerLowHz  float64 `yaml:"total_power_low_hz"`
	TotalPowerHighHz float64 `yaml:"total_power_high_hz"`
}

type ModelingConfig struct {
	NSplits              int     `yaml:"n_splits"`
	ThresholdPolicy      string  `yaml:"threshold_policy"`
	LearningRate         float64 `yaml:"learning_rate"`
	Iterations           int     `yaml:"iterations"`
	L2Penalty            float64 `yaml:"l2_penalty"`
	FoldBalanceTolerance float64 `yaml:"fold_balance_tolerance"`
	Workers              int     `yaml:"workers"`
}

type ExecutionConfig struct {
	RunDataLoading   bool `yaml:"run_data_loading"`
	RunFeatures      bool `yaml:"run_features"`
	RunModeling      bool `yaml:"run_modeling"`
	RunVisualization bool `yaml:"run_visualization"`
	RunReport        bool `yaml:"run_report"`
	DryRun           bool `yaml:"dry_run"`
}

type Config struct {
	Project   ProjectConfig   `yaml:"project"`
	Data      DataConfig      `yaml:"data"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Modeling  ModelingConfig  `yaml:"modeling"`
	Execution ExecutionConfig `yaml:"execution"`
}

// Default returns the validated baseline configuration for the visual
// oddball task.
func Default() Config {
	return Config{
		Project: ProjectConfig{
			Dataset:    "openneuro_candidate_1",
			RandomSeed: 42,
		},
		Data: DataConfig{
			BIDSRoot:       "data/raw",
			DerivativesDir: "data/derivatives/neurodecode-epochs",
			OutputsDir:     "outputs",
		},
		Analysis: AnalysisConfig{
			TaskName:    "VisualOddball",
			TargetLabel: "value",
			ClassLabels: []string{"Frequent_NonTarget", "Rare_Target"},
			ROIChannels: []string{"Fz", "Cz", "Pz", "P3", "P4", "Oz"},
			ERPWindows: []ERPWindow{
				{Name: "n1", StartSec: 0.080, EndSec: 0.150},
				{Name: "p2", StartSec: 0.150, EndSec: 0.275},
				{Name: "p3", StartSec: 0.275, EndSec: 0.500},
			},
			Bands: []Band{
				{Name: "theta", LowHz: 4, HighHz: 8},
				{Name: "alpha", LowHz: 8, HighHz: 13},
				{Name: "beta", LowHz: 13, HighHz: 30},
			},
			TotalPowerLowHz:  1,
			TotalPowerHighHz: 45,
		},
		Modeling: ModelingConfig{
			NSplits:              5,
			ThresholdPolicy:      "train_balanced_optimal",
			LearningRate:         0.1,
			Iterations:           200,
			L2Penalty:            1e-4,
			FoldBalanceTolerance: 2.0,
			Workers:              0, // 0 means runtime.NumCPU
		},
		Execution: ExecutionConfig{
			RunDataLoading:   true,
			RunFeatures:      true,
			RunModeling:      true,
			RunVisualization: true,
			RunReport:        true,
			DryRun:           false,
		},
	}
}

// Load reads a YAML config file over the defaults. Absent keys keep their
// default values.
func Load(path string, log *logger.Logger) (Config, error) {
	cfg := Default()
	if path == "" {
		path = utils.GetEnv("NEURODECODE_CONFIG", "", log)
	}
	if path == "" {
		if log != nil {
			log.Info("No config file given, using defaults")
		}
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot honor.
func (c *Config) Validate() error {
	if c.Modeling.NSplits < 2 {
		return fmt.Errorf("config: modeling.n_splits must be >= 2, got %d", c.Modeling.NSplits)
	}
	if len(c.Analysis.ROIChannels) == 0 {
		return fmt.Errorf("config: analysis.roi_channels must not be empty")
	}
	if len(c.Analysis.ERPWindows) == 0 {
		return fmt.Errorf("config: analysis.erp_windows must not be empty")
	}
	for _, w := range c.Analysis.ERPWindows {
		if w.EndSec <= w.StartSec {
			return fmt.Errorf("config: erp window %q has non-positive span", w.Name)
		}
	}
	for _, b := range c.Analysis.Bands {
		if b.HighHz <= b.LowHz {
			return fmt.Errorf("config: band %q has non-positive span", b.Name)
		}
	}
	if c.Analysis.TotalPowerHighHz <= c.Analysis.TotalPowerLowHz {
		return fmt.Errorf("config: total power range has non-positive span")
	}
	if c.Modeling.FoldBalanceTolerance < 1 {
		return fmt.Errorf("config: modeling.fold_balance_tolerance must be >= 1")
	}
	return nil
}
