package testutil

import (
	"context"
	"sync"

	"h2hcat/internal/catalog"
)

// RecordingNotifier counts refresh requests.
type RecordingNotifier struct {
	mu    sync.Mutex
	calls int
	// Err, when set, is returned from RefreshLibrary.
	Err error
}

var _ catalog.Notifier = (*RecordingNotifier)(nil)

func (n *RecordingNotifier) RefreshLibrary(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return n.Err
}

// Calls returns the number of refresh requests received.
func (n *RecordingNotifier) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}
