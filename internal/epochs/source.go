package epochs

import (
	"context"

	types "github.com/yungbote/neurodecode/internal/domain"
)

// RunRef identifies one subject/run recording in a source.
type RunRef struct {
	Subject string
	Task    string
	Run     string
}

// Trial is one preprocessed epoch within a bundle.
type Trial struct {
	Label types.StimulusLabel
	Data  [][]float64 // [channel][sample]
}

// Bundle carries every epoch of one subject/run plus the upstream
// preprocessing counts needed to reconcile skips end to end.
type Bundle struct {
	Ref        RunRef
	SampleRate float64
	TMinSec    float64
	Channels   []string
	Trials     []Trial

	// Per-run upstream accounting: raw files the preprocessing stage saw vs
	// files it successfully epoched.
	SourceFilesDiscovered int
	SourceFilesEpoched    int
}

// Source supplies preprocessed epoch bundles. Implementations must return
// runs in a stable order.
type Source interface {
	Runs(ctx context.Context) ([]RunRef, error)
	Load(ctx context.Context, ref RunRef) (*Bundle, error)
}

// Epoch materializes one trial of a bundle as a standalone epoch.
func (b *Bundle) Epoch(i int) types.Epoch {
	t := b.Trials[i]
	return types.Epoch{
		Subject:    b.Ref.Subject,
		Task:       b.Ref.Task,
		Run:        b.Ref.Run,
		SampleRate: b.SampleRate,
		TMinSec:    b.TMinSec,
		Channels:   b.Channels,
		Data:       t.Data,
		Label:      t.Label,
	}
}
