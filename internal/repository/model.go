package repository

import "time"

// Segment is the metadata row for one stored sentence segment.
type Segment struct {
	// ID is assigned by the index on insert; zero means not yet persisted.
	ID            int64
	FileHash      string
	Timestamp     time.Time
	Sequence      int
	LengthSeconds float64
	// Text is empty when the interval was detected but not recognized.
	Text        string
	StoragePath string
	// SegmentHash is the SHA-256 of the stored segment bytes.
	SegmentHash string
	CreatedAt   time.Time
}
