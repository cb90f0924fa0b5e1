package domain

import "sort"

// StimulusLabel is the binary stimulus category of an oddball trial.
type StimulusLabel string

const (
	LabelFrequentNonTarget StimulusLabel = "Frequent_NonTarget"
	LabelRareTarget        StimulusLabel = "Rare_Target"
)

// Binary maps the rare/target class to 1 and everything else to 0.
func (l StimulusLabel) Binary() int {
	if l == LabelRareTarget {
		return 1
	}
	return 0
}

// Epoch is one stimulus-locked, baseline-corrected voltage segment as
// produced by the upstream preprocessing stage. Data is channel-major.
type Epoch struct {
	Subject    string
	Task       string
	Run        string
	SampleRate float64 // Hz
	TMinSec    float64 // time of the first sample relative to stimulus onset
	Channels   []string
	Data       [][]float64 // [channel][sample]
	Label      StimulusLabel
}

func (e *Epoch) NumSamples() int {
	if len(e.Data) == 0 {
		return 0
	}
	return len(e.Data[0])
}

// SampleAt returns the sample index for a time (seconds, stimulus-relative),
// clamped into [0, NumSamples].
func (e *Epoch) SampleAt(tSec float64) int {
	idx := int((tSec - e.TMinSec) * e.SampleRate)
	if idx < 0 {
		idx = 0
	}
	if n := e.NumSamples(); idx > n {
		idx = n
	}
	return idx
}

// FeatureGroup is one named, ordered slice of feature values.
type FeatureGroup struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// FeatureVector is an ordered collection of feature groups. Group order and
// per-group length are fixed for every trial in a run.
type FeatureVector struct {
	Groups []FeatureGroup `json:"groups"`
}

func (fv FeatureVector) GroupNames() []string {
	names := make([]string, 0, len(fv.Groups))
	for _, g := range fv.Groups {
		names = append(names, g.Name)
	}
	return names
}

// Flatten concatenates all group values in group order.
func (fv FeatureVector) Flatten() []float64 {
	n := 0
	for _, g := range fv.Groups {
		n += len(g.Values)
	}
	out := make([]float64, 0, n)
	for _, g := range fv.Groups {
		out = append(out, g.Values...)
	}
	return out
}

// TrialRecord is one trial that survived extraction and normalization.
type TrialRecord struct {
	Subject  string        `json:"subject"`
	Run      string        `json:"run"`
	Label    StimulusLabel `json:"label"`
	Features FeatureVector `json:"features"`
}

// TrialTable is the ordered collection of all modeling-ready trials.
// Record order is stable (subject, run, trial index) for reproducibility.
type TrialTable struct {
	Records []TrialRecord `json:"records"`
}

// Subjects returns the distinct subject ids in ascending order.
func (t *TrialTable) Subjects() []string {
	seen := map[string]bool{}
	for _, r := range t.Records {
		seen[r.Subject] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (t *TrialTable) TrialCountsBySubject() map[string]int {
	counts := map[string]int{}
	for _, r := range t.Records {
		counts[r.Subject]++
	}
	return counts
}

func (t *TrialTable) ClassCounts() map[StimulusLabel]int {
	counts := map[StimulusLabel]int{}
	for _, r := range t.Records {
		counts[r.Label]++
	}
	return counts
}

// BuildCounts is the audit contract for how much data actually entered
// modeling. Every field is part of the pipeline output, not a diagnostic.
type BuildCounts struct {
	EventFilesDiscovered  int                   `json:"event_files_discovered"`
	SourceFilesDiscovered int                   `json:"source_files_discovered"`
	SourceFilesEpoched    int                   `json:"source_files_epoched"`
	EEGFilesProcessed     int                   `json:"eeg_files_processed"`
	EEGFilesSkipped       int                   `json:"eeg_files_skipped"`
	TrialsExtracted       int                   `json:"trials_extracted"`
	TrialsSkipped         int                   `json:"trials_skipped"`
	ClassCounts           map[StimulusLabel]int `json:"class_counts"`
	SubjectsMissingClass  []string              `json:"subjects_missing_class,omitempty"`
}

// FoldAssignment maps every subject to exactly one held-out fold.
type FoldAssignment struct {
	Seed         int64      `json:"seed"`
	TestSubjects [][]string `json:"test_subjects"` // fold index -> sorted subject ids
}

func (f *FoldAssignment) NumFolds() int { return len(f.TestSubjects) }

// FoldOf returns the fold whose test set holds the subject, or -1.
func (f *FoldAssignment) FoldOf(subject string) int {
	for k, subjects := range f.TestSubjects {
		for _, s := range subjects {
			if s == subject {
				return k
			}
		}
	}
	return -1
}

// FoldResult is the recorded outcome of one cross-validation fold.
type FoldResult struct {
	Fold                int      `json:"fold"`
	Threshold           float64  `json:"threshold"`
	ThresholdDegenerate bool     `json:"threshold_degenerate"`
	BalancedAccuracy    float64  `json:"balanced_accuracy"`
	NTrain              int      `json:"n_train"`
	NTest               int      `json:"n_test"`
	TestSubjects        []string `json:"test_subjects"`
}

// ConfusionMatrix uses the rare/target class as positive.
type ConfusionMatrix struct {
	TN int `json:"tn"`
	FP int `json:"fp"`
	FN int `json:"fn"`
	TP int `json:"tp"`
}

func (m ConfusionMatrix) Total() int { return m.TN + m.FP + m.FN + m.TP }

// BalancedAccuracy is the mean of per-class recall. A class absent from the
// truth contributes zero recall, matching the metric's chance floor.
func (m ConfusionMatrix) BalancedAccuracy() float64 {
	var tpr, tnr float64
	if pos := m.TP + m.FN; pos > 0 {
		tpr = float64(m.TP) / float64(pos)
	}
	if neg := m.TN + m.FP; neg > 0 {
		tnr = float64(m.TN) / float64(neg)
	}
	return (tpr + tnr) / 2.0
}

// BaselineBalancedAccuracy is the majority-class / chance reference.
const BaselineBalancedAccuracy = 0.5

// RunMetrics is the immutable output record of one evaluation run.
type RunMetrics struct {
	Folds                    []FoldResult    `json:"folds"`
	MeanBalancedAccuracy     float64         `json:"mean_balanced_accuracy"`
	MinBalancedAccuracy      float64         `json:"min_balanced_accuracy"`
	MaxBalancedAccuracy      float64         `json:"max_balanced_accuracy"`
	Confusion                ConfusionMatrix `json:"confusion_matrix"`
	ROCAUC                   float64         `json:"roc_auc"`
	BaselineBalancedAccuracy float64         `json:"baseline_balanced_accuracy"`
	DeltaBalancedAccuracy    float64         `json:"delta_balanced_accuracy"`
	Seed                     int64           `json:"seed"`
	ThresholdPolicy          string          `json:"threshold_policy"`
	BaseGroupCount           int             `json:"base_group_count"`
	NormalizedGroupCount     int             `json:"normalized_group_count"`
}
