package epochs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	types "github.com/yungbote/neurodecode/internal/domain"
	"github.com/yungbote/neurodecode/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	return log
}

func sampleBundle() *Bundle {
	return &Bundle{
		Ref:        RunRef{Subject: "01", Task: "VisualOddball", Run: "02"},
		SampleRate: 256,
		TMinSec:    -0.2,
		Channels:   []string{"Fz", "Cz"},
		Trials: []Trial{
			{
				Label: types.LabelRareTarget,
				Data:  [][]float64{{1, 2, 3}, {4, 5, 6}},
			},
			{
				Label: types.LabelFrequentNonTarget,
				Data:  [][]float64{{-1, -2, -3}, {-4, -5, -6}},
			},
		},
		SourceFilesDiscovered: 2,
		SourceFilesEpoched:    1,
	}
}

func TestDerivativeRoundTrip(t *testing.T) {
	root := t.TempDir()
	want := sampleBundle()
	if err := WriteBundle(root, want); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	source := NewDerivativeSource(root, testLogger(t))
	refs, err := source.Runs(context.Background())
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}
	if len(refs) != 1 || refs[0] != want.Ref {
		t.Fatalf("runs: got %v", refs)
	}

	got, err := source.Load(context.Background(), refs[0])
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.SampleRate != want.SampleRate || got.TMinSec != want.TMinSec {
		t.Fatalf("timing mismatch: %+v", got)
	}
	if got.SourceFilesDiscovered != 2 || got.SourceFilesEpoched != 1 {
		t.Fatalf("source counts mismatch: %+v", got)
	}
	if len(got.Trials) != len(want.Trials) {
		t.Fatalf("got %d trials, want %d", len(got.Trials), len(want.Trials))
	}
	for i := range want.Trials {
		if got.Trials[i].Label != want.Trials[i].Label {
			t.Fatalf("trial %d: label %q, want %q", i, got.Trials[i].Label, want.Trials[i].Label)
		}
		for ch := range want.Trials[i].Data {
			for s := range want.Trials[i].Data[ch] {
				if got.Trials[i].Data[ch][s] != want.Trials[i].Data[ch][s] {
					t.Fatalf("trial %d ch %d sample %d: %v != %v",
						i, ch, s, got.Trials[i].Data[ch][s], want.Trials[i].Data[ch][s])
				}
			}
		}
	}
}

func TestDerivativeLoadRejectsTruncatedPayload(t *testing.T) {
	root := t.TempDir()
	bundle := sampleBundle()
	if err := WriteBundle(root, bundle); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	payload := filepath.Join(root, "sub-01", "sub-01_task-VisualOddball_run-02_epochs.f64")
	if err := os.Truncate(payload, 16); err != nil {
		t.Fatalf("truncate failed: %v", err)
	}

	source := NewDerivativeSource(root, testLogger(t))
	if _, err := source.Load(context.Background(), bundle.Ref); err == nil {
		t.Fatalf("expected error for truncated payload")
	}
}

func TestDerivativeRunsEmptyRoot(t *testing.T) {
	source := NewDerivativeSource(t.TempDir(), testLogger(t))
	refs, err := source.Runs(context.Background())
	if err != nil {
		t.Fatalf("runs failed: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no runs, got %v", refs)
	}
}
