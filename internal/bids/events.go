package bids

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// StimulusEvent is one row of an events.tsv sidecar with its raw code
// resolved through the task-level Levels mapping.
type StimulusEvent struct {
	OnsetSec    float64
	DurationSec float64
	Sample      int
	RawCode     string
	Label       string
}

// LoadEventLevels reads the task-level events sidecar
// (task-<name>_events.json) and returns its value.Levels mapping from raw
// event codes to human-readable labels. A missing sidecar yields an empty map.
func LoadEventLevels(root, taskName string) (map[string]string, error) {
	path := filepath.Join(root, fmt.Sprintf("task-%s_events.json", taskName))
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("bids: read task events sidecar: %w", err)
	}

	var payload struct {
		Value struct {
			Levels map[string]string `json:"Levels"`
		} `json:"value"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("bids: parse task events sidecar %s: %w", path, err)
	}
	if payload.Value.Levels == nil {
		return map[string]string{}, nil
	}
	return payload.Value.Levels, nil
}

// ReadEvents parses an events.tsv file, mapping each row's value through the
// levels mapping. targetColumn names the column carrying the event code.
func ReadEvents(path, targetColumn string, levels map[string]string) ([]StimulusEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("bids: open events tsv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("bids: parse events tsv %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	header := map[string]int{}
	for i, name := range rows[0] {
		header[strings.TrimSpace(name)] = i
	}

	events := make([]StimulusEvent, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rawCode := cellAt(row, header, targetColumn)
		label := rawCode
		if mapped, ok := levels[rawCode]; ok {
			label = mapped
		}
		events = append(events, StimulusEvent{
			OnsetSec:    coerceFloat(cellAt(row, header, "onset")),
			DurationSec: coerceFloat(cellAt(row, header, "duration")),
			Sample:      coerceInt(cellAt(row, header, "sample")),
			RawCode:     rawCode,
			Label:       label,
		})
	}
	return events, nil
}

func cellAt(row []string, header map[string]int, column string) string {
	idx, ok := header[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// coerceFloat tolerates the BIDS "n/a" placeholder and blank cells.
func coerceFloat(value string) float64 {
	if value == "" || strings.EqualFold(value, "n/a") {
		return 0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
}

func coerceInt(value string) int {
	if value == "" || strings.EqualFold(value, "n/a") {
		return 0
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return int(f)
}
