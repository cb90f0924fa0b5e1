package steps

import (
	"context"
	"math"
	"testing"

	types "github.com/yungbote/neurodecode/internal/domain"
	"github.com/yungbote/neurodecode/internal/epochs"
)

func testBundle(subject, run string, nTrials int) *epochs.Bundle {
	const (
		nChannels = 3
		nSamples  = 180
	)
	b := &epochs.Bundle{
		Ref:                   epochs.RunRef{Subject: subject, Task: "VisualOddball", Run: run},
		SampleRate:            256,
		TMinSec:               -0.2,
		Channels:              []string{"Fz", "Cz", "Pz"},
		SourceFilesDiscovered: 1,
		SourceFilesEpoched:    1,
	}
	for i := 0; i < nTrials; i++ {
		label := types.LabelFrequentNonTarget
		if i%4 == 0 {
			label = types.LabelRareTarget
		}
		data := make([][]float64, nChannels)
		for ch := range data {
			data[ch] = make([]float64, nSamples)
			for s := range data[ch] {
				data[ch][s] = math.Sin(2*math.Pi*10*float64(s)/256.0) + 0.1*float64(i)
			}
		}
		b.Trials = append(b.Trials, epochs.Trial{Label: label, Data: data})
	}
	return b
}

func TestBuildTrialTable(t *testing.T) {
	source := epochs.NewMemorySource(
		testBundle("01", "01", 8),
		testBundle("01", "02", 8),
		testBundle("02", "01", 8),
	)
	out, err := BuildTrialTable(context.Background(), TableBuildDeps{Log: testLogger(t), Source: source}, TableBuildInput{
		Features: testFeatureConfig(),
		Workers:  2,
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if got := len(out.Table.Records); got != 24 {
		t.Fatalf("got %d records, want 24", got)
	}
	if out.Counts.TrialsExtracted != 24 || out.Counts.TrialsSkipped != 0 {
		t.Fatalf("counts: %+v", out.Counts)
	}
	if out.Counts.EEGFilesProcessed != 3 || out.Counts.EEGFilesSkipped != 0 {
		t.Fatalf("file counts: %+v", out.Counts)
	}
	if out.Counts.SourceFilesDiscovered != 3 || out.Counts.SourceFilesEpoched != 3 {
		t.Fatalf("source counts: %+v", out.Counts)
	}

	// Subject order, then run order, must be stable.
	prev := ""
	for _, r := range out.Table.Records {
		if r.Subject < prev {
			t.Fatalf("records out of subject order: %s after %s", r.Subject, prev)
		}
		prev = r.Subject
	}

	// Every record carries the doubled schema: 15 base + 15 z groups.
	names := out.Table.Records[0].Features.GroupNames()
	if len(names) != 30 {
		t.Fatalf("got %d groups, want 30", len(names))
	}
	if names[15] != "erp_n1_z" {
		t.Fatalf("first normalized group is %q", names[15])
	}
}

func TestBuildTrialTableCountsSkips(t *testing.T) {
	bad := testBundle("01", "01", 4)
	bad.Trials[1].Data[0][5] = math.NaN()
	source := epochs.NewMemorySource(bad, testBundle("02", "01", 4))

	out, err := BuildTrialTable(context.Background(), TableBuildDeps{Log: testLogger(t), Source: source}, TableBuildInput{
		Features: testFeatureConfig(),
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if out.Counts.TrialsSkipped != 1 {
		t.Fatalf("skipped %d trials, want 1", out.Counts.TrialsSkipped)
	}
	if out.Counts.TrialsExtracted != 7 {
		t.Fatalf("extracted %d trials, want 7", out.Counts.TrialsExtracted)
	}
}

func TestBuildTrialTableFlagsMissingClass(t *testing.T) {
	oneClass := testBundle("03", "01", 3)
	for i := range oneClass.Trials {
		oneClass.Trials[i].Label = types.LabelFrequentNonTarget
	}
	source := epochs.NewMemorySource(testBundle("01", "01", 8), oneClass)

	out, err := BuildTrialTable(context.Background(), TableBuildDeps{Log: testLogger(t), Source: source}, TableBuildInput{
		Features: testFeatureConfig(),
	})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(out.Counts.SubjectsMissingClass) != 1 || out.Counts.SubjectsMissingClass[0] != "03" {
		t.Fatalf("missing-class subjects: %v", out.Counts.SubjectsMissingClass)
	}
}
