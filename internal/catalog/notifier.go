package catalog

import "context"

// Notifier tells an external media server that new content was published.
// Calls are best-effort: a failure is logged by the caller and never rolls
// back an archive publish.
type Notifier interface {
	// RefreshLibrary asks the server to rescan its library.
	RefreshLibrary(ctx context.Context) error
}

// NopNotifier ignores all notifications. Used when no media server is
// configured and in tests.
type NopNotifier struct{}

func (NopNotifier) RefreshLibrary(context.Context) error { return nil }
