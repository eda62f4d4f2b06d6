package catalog

import (
	"fmt"
	"sort"
	"sync"
)

// GalleryError is one per-gallery failure collected into a pass report.
type GalleryError struct {
	GalleryName string
	Err         error
}

func (e GalleryError) Error() string {
	return fmt.Sprintf("%s: %v", e.GalleryName, e.Err)
}

// PassReport is the aggregate result of one synchronization or archive pass.
// Per-gallery errors are collected here rather than aborting the run, so the
// pass always completes with an explicit success/failure list.
type PassReport struct {
	mu       sync.Mutex
	synced   []string
	skipped  []string
	failures []GalleryError
	drained  int
}

func (r *PassReport) AddSynced(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synced = append(r.synced, name)
}

func (r *PassReport) AddSkipped(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped = append(r.skipped, name)
}

func (r *PassReport) AddFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, GalleryError{GalleryName: name, Err: err})
}

func (r *PassReport) AddDrained(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drained += n
}

// Synced returns the names of galleries processed successfully, sorted.
func (r *PassReport) Synced() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.synced...)
	sort.Strings(out)
	return out
}

// Skipped returns the names of galleries skipped by policy, sorted.
func (r *PassReport) Skipped() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.skipped...)
	sort.Strings(out)
	return out
}

// Failures returns the per-gallery errors sorted by gallery name.
func (r *PassReport) Failures() []GalleryError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]GalleryError(nil), r.failures...)
	sort.Slice(out, func(i, j int) bool { return out[i].GalleryName < out[j].GalleryName })
	return out
}

// Drained returns the number of pending removals applied.
func (r *PassReport) Drained() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drained
}

// Summary renders a one-line human-readable result.
func (r *PassReport) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("%d synced, %d skipped, %d failed, %d removals drained",
		len(r.synced), len(r.skipped), len(r.failures), r.drained)
}
