package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
)

var (
	ErrStorageIO         = errors.New("storage i/o failed")
	ErrIntegrityMismatch = errors.New("stored segment failed integrity check")
	ErrInvalidHash       = errors.New("invalid content hash")
)

// Hash returns the lowercase hex SHA-256 of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// IsValidHash reports whether s looks like a value produced by Hash.
func IsValidHash(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

// Store keeps segment blobs under a directory tree derived from the source hash.
type Store interface {
	PathFor(hash string) (string, error)
	Save(hash string, sequence int, data []byte) (string, error)
	Open(location string) (io.ReadCloser, error)
	// Verify reports whether the bytes at location hash to expectedHash.
	// Read failures yield false.
	Verify(location, expectedHash string) bool
	RemoveAll(hash string) error

	SaveTemporary(data []byte) (string, error)
	RemoveTemporary(location string) error
	PurgeTemporary() (int, error)
}
