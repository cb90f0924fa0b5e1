package epochs

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	types "github.com/yungbote/neurodecode/internal/domain"
	"github.com/yungbote/neurodecode/internal/pkg/logger"
)

const headerSuffix = "_epochs.json"

// bundleHeader is the JSON sidecar the preprocessing stage writes next to
// each raw float64 payload under the derivatives tree.
type bundleHeader struct {
	Subject               string   `json:"subject"`
	Task                  string   `json:"task"`
	Run                   string   `json:"run"`
	SampleRate            float64  `json:"sample_rate"`
	TMinSec               float64  `json:"tmin_sec"`
	Channels              []string `json:"channels"`
	Labels                []string `json:"labels"`
	NSamples              int      `json:"n_samples"`
	DataFile              string   `json:"data_file"`
	SourceFilesDiscovered int      `json:"source_files_discovered"`
	SourceFilesEpoched    int      `json:"source_files_epoched"`
}

// DerivativeSource reads epoch bundles produced by the upstream
// preprocessing stage: one JSON header plus one little-endian float64
// payload (trial-major, then channel, then sample) per subject/run.
type DerivativeSource struct {
	root string
	log  *logger.Logger
}

func NewDerivativeSource(root string, baseLog *logger.Logger) *DerivativeSource {
	return &DerivativeSource{
		root: root,
		log:  baseLog.With("component", "DerivativeSource"),
	}
}

func (s *DerivativeSource) Runs(ctx context.Context) ([]RunRef, error) {
	var headers []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), headerSuffix) {
			headers = append(headers, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("epochs: derivatives root not found: %s", s.root)
		}
		return nil, fmt.Errorf("epochs: scan derivatives: %w", err)
	}
	sort.Strings(headers)

	refs := make([]RunRef, 0, len(headers))
	for _, path := range headers {
		header, err := s.readHeader(path)
		if err != nil {
			return nil, err
		}
		refs = append(refs, RunRef{Subject: header.Subject, Task: header.Task, Run: header.Run})
	}
	return refs, nil
}

func (s *DerivativeSource) Load(ctx context.Context, ref RunRef) (*Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := s.headerPath(ref)
	header, err := s.readHeader(path)
	if err != nil {
		return nil, err
	}
	if header.SampleRate <= 0 {
		return nil, fmt.Errorf("epochs: %s: non-positive sample_rate", path)
	}
	if len(header.Channels) == 0 || header.NSamples <= 0 {
		return nil, fmt.Errorf("epochs: %s: empty channel or sample dimensions", path)
	}

	nTrials := len(header.Labels)
	nChannels := len(header.Channels)
	data, err := s.readPayload(filepath.Join(filepath.Dir(path), header.DataFile), nTrials*nChannels*header.NSamples)
	if err != nil {
		return nil, err
	}

	trials := make([]Trial, nTrials)
	for t := 0; t < nTrials; t++ {
		channels := make([][]float64, nChannels)
		for c := 0; c < nChannels; c++ {
			offset := (t*nChannels + c) * header.NSamples
			channels[c] = data[offset : offset+header.NSamples]
		}
		trials[t] = Trial{
			Label: types.StimulusLabel(header.Labels[t]),
			Data:  channels,
		}
	}

	return &Bundle{
		Ref:                   ref,
		SampleRate:            header.SampleRate,
		TMinSec:               header.TMinSec,
		Channels:              header.Channels,
		Trials:                trials,
		SourceFilesDiscovered: header.SourceFilesDiscovered,
		SourceFilesEpoched:    header.SourceFilesEpoched,
	}, nil
}

func (s *DerivativeSource) headerPath(ref RunRef) string {
	name := fmt.Sprintf("sub-%s_task-%s_run-%s%s", ref.Subject, ref.Task, ref.Run, headerSuffix)
	return filepath.Join(s.root, "sub-"+ref.Subject, name)
}

func (s *DerivativeSource) readHeader(path string) (*bundleHeader, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("epochs: read header: %w", err)
	}
	var header bundleHeader
	if err := json.Unmarshal(raw, &header); err != nil {
		return nil, fmt.Errorf("epochs: parse header %s: %w", path, err)
	}
	if header.Subject == "" || header.DataFile == "" {
		return nil, fmt.Errorf("epochs: header %s missing subject or data_file", path)
	}
	return &header, nil
}

func (s *DerivativeSource) readPayload(path string, expected int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("epochs: open payload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if got := info.Size(); got != int64(expected)*8 {
		return nil, fmt.Errorf("epochs: payload %s has %d bytes, want %d", path, got, int64(expected)*8)
	}

	data := make([]float64, expected)
	if err := binary.Read(bufio.NewReader(f), binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("epochs: read payload %s: %w", path, err)
	}
	return data, nil
}

// WriteBundle serializes a bundle into the derivative layout. Used by ingest
// tooling and tests; the production writer is the preprocessing stage.
func WriteBundle(root string, b *Bundle) error {
	dir := filepath.Join(root, "sub-"+b.Ref.Subject)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	stem := fmt.Sprintf("sub-%s_task-%s_run-%s_epochs", b.Ref.Subject, b.Ref.Task, b.Ref.Run)

	nSamples := 0
	if len(b.Trials) > 0 && len(b.Trials[0].Data) > 0 {
		nSamples = len(b.Trials[0].Data[0])
	}
	labels := make([]string, len(b.Trials))
	flat := make([]float64, 0, len(b.Trials)*len(b.Channels)*nSamples)
	for i, t := range b.Trials {
		labels[i] = string(t.Label)
		for _, channel := range t.Data {
			flat = append(flat, channel...)
		}
	}

	header := bundleHeader{
		Subject:               b.Ref.Subject,
		Task:                  b.Ref.Task,
		Run:                   b.Ref.Run,
		SampleRate:            b.SampleRate,
		TMinSec:               b.TMinSec,
		Channels:              b.Channels,
		Labels:                labels,
		NSamples:              nSamples,
		DataFile:              stem + ".f64",
		SourceFilesDiscovered: b.SourceFilesDiscovered,
		SourceFilesEpoched:    b.SourceFilesEpoched,
	}
	headerJSON, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, stem+".json"), append(headerJSON, '\n'), 0o644); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, stem+".f64"))
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, flat); err != nil {
		return err
	}
	return w.Flush()
}
