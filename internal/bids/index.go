package bids

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const eegSuffix = "_eeg"

var eegExtensions = []string{".edf", ".bdf", ".vhdr", ".set", ".fif"}

// IndexRecord describes one EEG recording and its sidecar files.
type IndexRecord struct {
	Subject        string `json:"sub"`
	Session        string `json:"ses"`
	Task           string `json:"task"`
	Run            string `json:"run"`
	Acquisition    string `json:"acq"`
	Datatype       string `json:"datatype"`
	EEGFile        string `json:"eeg_file"`
	EventsTSV      string `json:"events_tsv"`
	ChannelsTSV    string `json:"channels_tsv"`
	EventsExists   bool   `json:"events_exists"`
	ChannelsExists bool   `json:"channels_exists"`
}

// IndexSummary holds compact dataset-level counts.
type IndexSummary struct {
	NFiles    int `json:"n_files"`
	NSubjects int `json:"n_subjects"`
	NTasks    int `json:"n_tasks"`
}

// ValidateRoot reports whether a dataset root carries the required marker.
func ValidateRoot(root string) bool {
	_, err := os.Stat(filepath.Join(root, "dataset_description.json"))
	return err == nil
}

// DiscoverEEGFiles returns all BIDS EEG recordings under root, sorted.
func DiscoverEEGFiles(root string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, nil
	}
	var discovered []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		for _, ext := range eegExtensions {
			if strings.HasSuffix(name, eegSuffix+ext) {
				discovered = append(discovered, path)
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bids: discover eeg files: %w", err)
	}
	sort.Strings(discovered)
	return discovered, nil
}

// DiscoverEventFiles returns all per-recording events.tsv files under root.
func DiscoverEventFiles(root string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, nil
	}
	var discovered []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), "_events.tsv") && strings.HasPrefix(filepath.Base(filepath.Dir(filepath.Dir(path))), "sub-") {
			discovered = append(discovered, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("bids: discover event files: %w", err)
	}
	sort.Strings(discovered)
	return discovered, nil
}

// Entities are the BIDS key-value pairs parsed from a file name stem.
type Entities struct {
	Subject     string
	Session     string
	Task        string
	Run         string
	Acquisition string
}

// ParseEntities extracts sub/ses/task/run/acq entities from a name stem.
func ParseEntities(stem string) Entities {
	var e Entities
	for _, part := range strings.Split(stem, "_") {
		key, value, ok := strings.Cut(part, "-")
		if !ok {
			continue
		}
		switch key {
		case "sub":
			e.Subject = value
		case "ses":
			e.Session = value
		case "task":
			e.Task = value
		case "run":
			e.Run = value
		case "acq":
			e.Acquisition = value
		}
	}
	return e
}

// SidecarPaths returns the events.tsv and channels.tsv paths associated with
// an EEG recording file.
func SidecarPaths(eegFile string) (eventsPath, channelsPath string) {
	base := filepath.Base(eegFile)
	stem := base
	if idx := strings.LastIndex(base, "."); idx >= 0 {
		stem = base[:idx]
	}
	stem = strings.TrimSuffix(stem, eegSuffix)
	dir := filepath.Dir(eegFile)
	return filepath.Join(dir, stem+"_events.tsv"), filepath.Join(dir, stem+"_channels.tsv")
}

// BuildIndex assembles a tabular index of EEG recordings with sidecar
// existence flags.
func BuildIndex(root string) ([]IndexRecord, error) {
	files, err := DiscoverEEGFiles(root)
	if err != nil {
		return nil, err
	}
	records := make([]IndexRecord, 0, len(files))
	for _, file := range files {
		base := filepath.Base(file)
		stem := base
		if idx := strings.LastIndex(base, "."); idx >= 0 {
			stem = base[:idx]
		}
		entities := ParseEntities(stem)
		eventsPath, channelsPath := SidecarPaths(file)
		records = append(records, IndexRecord{
			Subject:        entities.Subject,
			Session:        entities.Session,
			Task:           entities.Task,
			Run:            entities.Run,
			Acquisition:    entities.Acquisition,
			Datatype:       filepath.Base(filepath.Dir(file)),
			EEGFile:        file,
			EventsTSV:      eventsPath,
			ChannelsTSV:    channelsPath,
			EventsExists:   fileExists(eventsPath),
			ChannelsExists: fileExists(channelsPath),
		})
	}
	return records, nil
}

// SummarizeIndex returns dataset-level counts from the index.
func SummarizeIndex(records []IndexRecord) IndexSummary {
	subjects := map[string]bool{}
	tasks := map[string]bool{}
	for _, r := range records {
		if r.Subject != "" {
			subjects[r.Subject] = true
		}
		if r.Task != "" {
			tasks[r.Task] = true
		}
	}
	return IndexSummary{
		NFiles:    len(records),
		NSubjects: len(subjects),
		NTasks:    len(tasks),
	}
}

// WriteIndexCSV writes the index table.
func WriteIndexCSV(records []IndexRecord, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("bids: create index csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"sub", "ses", "task", "run", "acq", "datatype", "eeg_file", "events_tsv", "channels_tsv", "events_exists", "channels_exists"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Subject, r.Session, r.Task, r.Run, r.Acquisition, r.Datatype,
			r.EEGFile, r.EventsTSV, r.ChannelsTSV,
			fmt.Sprintf("%t", r.EventsExists), fmt.Sprintf("%t", r.ChannelsExists),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteIndexSummaryJSON writes the compact dataset summary.
func WriteIndexSummaryJSON(summary IndexSummary, outputPath string) error {
	payload, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, append(payload, '\n'), 0o644)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
