package hooks

import (
	"context"
	"sync"

	"github.com/conneroisu/isle/internal/channel"
	"github.com/conneroisu/isle/internal/deps"
)

// Reporter posts client-bound modules to the collector at most once per URL.
// A Reporter belongs to exactly one build and is discarded with it.
type Reporter struct {
	ep channel.Endpoint[deps.DependencyRecord]

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewReporter returns a reporter sending on ep.
func NewReporter(ep channel.Endpoint[deps.DependencyRecord]) *Reporter {
	return &Reporter{ep: ep, seen: make(map[string]struct{})}
}

// Report sends rec unless its URL was already reported. A failed send is
// returned and the URL stays unreported.
func (r *Reporter) Report(ctx context.Context, rec deps.DependencyRecord) error {
	r.mu.Lock()
	if _, ok := r.seen[rec.URL]; ok {
		r.mu.Unlock()
		return nil
	}
	r.seen[rec.URL] = struct{}{}
	r.mu.Unlock()

	if err := r.ep.Send(ctx, rec); err != nil {
		r.mu.Lock()
		delete(r.seen, rec.URL)
		r.mu.Unlock()
		return err
	}
	return nil
}

// Reported returns how many distinct URLs have been sent.
func (r *Reporter) Reported() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// Close closes the reporting endpoint, ending the collector's drain.
func (r *Reporter) Close() error {
	return r.ep.Close()
}
