package repository

import (
	"context"
	"errors"
)

// ErrNotFound is returned by callers that require at least one matching row.
var ErrNotFound = errors.New("segments not found")

// SegmentIndex is the durable metadata store for segments, keyed by source hash.
// Query results for a hash are always ordered by ascending sequence.
type SegmentIndex interface {
	// Init creates the schema; safe to call on every start.
	Init(ctx context.Context) error
	// Insert stores seg and returns its id. A second insert for the same
	// (FileHash, Sequence) replaces the earlier row and keeps its id.
	Insert(ctx context.Context, seg Segment) (int64, error)
	QueryByHash(ctx context.Context, fileHash string) ([]Segment, error)
	// QueryByID returns nil when no row matches.
	QueryByID(ctx context.Context, id int64) (*Segment, error)
	// QueryBySequence returns nil when no row matches.
	QueryBySequence(ctx context.Context, fileHash string, sequence int) (*Segment, error)
	DeleteByHash(ctx context.Context, fileHash string) (int64, error)
	Close()
}
