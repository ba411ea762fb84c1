package transport

import "termsonic/internal/pipeline"

// SnapshotSource provides the most recently published spectrum snapshot.
// Implementations must return complete, self-consistent values; the
// pipeline's mailbox satisfies this.
type SnapshotSource interface {
	Snapshot() pipeline.Snapshot
}

// Publisher defines a component that pushes snapshots off-process.
// Implementations run their own goroutine between Start and Close and must
// never block the analysis or display paths.
type Publisher interface {
	Start()
	Close() error
}
