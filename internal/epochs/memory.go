package epochs

import (
	"context"
	"fmt"
	"sort"
)

// MemorySource serves bundles from memory. Intended for tests and synthetic
// evaluation runs.
type MemorySource struct {
	bundles map[RunRef]*Bundle
}

func NewMemorySource(bundles ...*Bundle) *MemorySource {
	out := &MemorySource{bundles: map[RunRef]*Bundle{}}
	for _, b := range bundles {
		out.bundles[b.Ref] = b
	}
	return out
}

func (s *MemorySource) Add(b *Bundle) {
	s.bundles[b.Ref] = b
}

func (s *MemorySource) Runs(ctx context.Context) ([]RunRef, error) {
	refs := make([]RunRef, 0, len(s.bundles))
	for ref := range s.bundles {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Subject != refs[j].Subject {
			return refs[i].Subject < refs[j].Subject
		}
		if refs[i].Task != refs[j].Task {
			return refs[i].Task < refs[j].Task
		}
		return refs[i].Run < refs[j].Run
	})
	return refs, nil
}

func (s *MemorySource) Load(ctx context.Context, ref RunRef) (*Bundle, error) {
	b, ok := s.bundles[ref]
	if !ok {
		return nil, fmt.Errorf("epochs: no bundle for %s/%s/%s", ref.Subject, ref.Task, ref.Run)
	}
	return b, nil
}
