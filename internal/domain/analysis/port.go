package analysis

import "context"

// Repository port (interface for persistence)
type Repository interface {
	Insert(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id ID) (*Record, error)

	// MarkPaid flips paid to true and stores the session reference. It is a
	// no-op when the record is already paid with the same reference; it never
	// reverts paid to false.
	MarkPaid(ctx context.Context, id ID, sessionRef string) error

	// SetFullAnalysis writes the full report only when none is stored yet and
	// reports whether this caller won the write. Losing callers re-read.
	SetFullAnalysis(ctx context.Context, id ID, full *FullAnalysis) (bool, error)
}

// ArchiveStore port (interface for report archival)
type ArchiveStore interface {
	PutReport(ctx context.Context, id ID, data []byte) (string, error)
}
