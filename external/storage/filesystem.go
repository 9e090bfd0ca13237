package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/foxseedlab/segmentd/internal/storage"
)

const (
	tempDirName = "temp"
	dirPerm     = 0o755
	filePerm    = 0o644
)

// FilesystemStore lays segments out as <base>/<h[0:2]>/<h[2:4]>/<h>/segment_NNNN.<ext>.
type FilesystemStore struct {
	baseDir      string
	segmentExt   string
	temporaryExt string
}

// NewFilesystemStore creates the base directory if needed. segmentExt is the
// extension of stored segments and temporaryExt the extension of staged input,
// both without a leading dot.
func NewFilesystemStore(baseDir, segmentExt, temporaryExt string) (*FilesystemStore, error) {
	if err := os.MkdirAll(baseDir, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: create base dir: %v", storage.ErrStorageIO, err)
	}
	return &FilesystemStore{
		baseDir:      baseDir,
		segmentExt:   segmentExt,
		temporaryExt: temporaryExt,
	}, nil
}

func (s *FilesystemStore) leafDir(hash string) (string, error) {
	if !storage.IsValidHash(hash) {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidHash, hash)
	}
	return filepath.Join(s.baseDir, hash[0:2], hash[2:4], hash), nil
}

func (s *FilesystemStore) PathFor(hash string) (string, error) {
	dir, err := s.leafDir(hash)
	if err != nil {
		return "", err
	}
	// MkdirAll treats an existing directory as success, so concurrent first writers are fine.
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("%w: create segment dir: %v", storage.ErrStorageIO, err)
	}
	return dir, nil
}

func (s *FilesystemStore) Save(hash string, sequence int, data []byte) (string, error) {
	dir, err := s.PathFor(hash)
	if err != nil {
		return "", err
	}
	location := filepath.Join(dir, fmt.Sprintf("segment_%04d.%s", sequence, s.segmentExt))
	if err := writeFileAtomic(location, data); err != nil {
		return "", err
	}
	return location, nil
}

func (s *FilesystemStore) Open(location string) (io.ReadCloser, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("%w: open file: %v", storage.ErrStorageIO, err)
	}
	return f, nil
}

func (s *FilesystemStore) Verify(location, expectedHash string) bool {
	f, err := os.Open(location)
	if err != nil {
		return false
	}
	defer func() {
		_ = f.Close()
	}()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false
	}
	return hex.EncodeToString(h.Sum(nil)) == expectedHash
}

func (s *FilesystemStore) RemoveAll(hash string) error {
	dir, err := s.leafDir(hash)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: remove segment dir: %v", storage.ErrStorageIO, err)
	}
	// Shard directories are shared; drop them only once they are empty.
	_ = os.Remove(filepath.Dir(dir))
	_ = os.Remove(filepath.Dir(filepath.Dir(dir)))
	return nil
}

func (s *FilesystemStore) tempDir() string {
	return filepath.Join(s.baseDir, tempDirName)
}

func (s *FilesystemStore) SaveTemporary(data []byte) (string, error) {
	dir := s.tempDir()
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("%w: create temp dir: %v", storage.ErrStorageIO, err)
	}
	location := filepath.Join(dir, storage.Hash(data)+"."+s.temporaryExt)
	if err := writeFileAtomic(location, data); err != nil {
		return "", err
	}
	return location, nil
}

func (s *FilesystemStore) RemoveTemporary(location string) error {
	if err := os.Remove(location); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: remove temp file: %v", storage.ErrStorageIO, err)
	}
	return nil
}

func (s *FilesystemStore) PurgeTemporary() (int, error) {
	entries, err := os.ReadDir(s.tempDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: list temp dir: %v", storage.ErrStorageIO, err)
	}
	removed := 0
	for _, e := range entries {
		// Dot files are in-flight writes.
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if err := os.Remove(filepath.Join(s.tempDir(), e.Name())); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, fmt.Errorf("%w: purge temp file: %v", storage.ErrStorageIO, err)
		}
		removed++
	}
	return removed, nil
}

// writeFileAtomic replaces path with data via a sibling temp file and rename,
// so readers never observe a partially written segment.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".write-*")
	if err != nil {
		return fmt.Errorf("%w: create file: %v", storage.ErrStorageIO, err)
	}
	tmp := f.Name()
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}
	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("%w: write file: %v", storage.ErrStorageIO, err)
	}
	if err := f.Chmod(filePerm); err != nil {
		cleanup()
		return fmt.Errorf("%w: chmod file: %v", storage.ErrStorageIO, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: close file: %v", storage.ErrStorageIO, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: rename file: %v", storage.ErrStorageIO, err)
	}
	return nil
}
