package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/modelibr/modelibr/common/apperrors"
	"github.com/modelibr/modelibr/common/logger"
)

// Store is the physical file store shared by the API and worker processes.
// All writes go through a write-then-rename publish so a partial write is
// never visible at a record's final path.
type Store interface {
	// Stage streams r into a temporary file under the root while computing
	// its sha256 digest. The staged file is not visible at any final path.
	Stage(r io.Reader) (*StagedFile, error)
	// Publish atomically moves a staged file to relPath. Publishing over an
	// existing path is allowed; racing writers of the same digest write
	// identical bytes, so the last rename wins harmlessly.
	Publish(staged *StagedFile, relPath string) error
	// Discard removes a staged file that will not be published.
	Discard(staged *StagedFile) error
	// Create opens a writer that publishes to relPath on Close.
	Create(relPath string) (io.WriteCloser, error)
	// Open opens the file at relPath for reading.
	Open(relPath string) (io.ReadCloser, error)
	// Exists reports whether a file is present at relPath.
	Exists(relPath string) (bool, error)
	// Remove deletes the file at relPath.
	Remove(relPath string) error
	// AbsPath resolves relPath against the storage root.
	AbsPath(relPath string) string
}

// StagedFile is a fully written but unpublished upload
type StagedFile struct {
	TempPath  string
	Digest    string
	SizeBytes int64
}

// DiskStore implements Store on a local directory root
type DiskStore struct {
	root string
	log  *logger.Logger
}

// NewDiskStore creates a disk store rooted at root, creating it if needed
func NewDiskStore(root string, log *logger.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(filepath.Join(root, ".staging"), 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "create storage root", err)
	}
	return &DiskStore{root: root, log: log}, nil
}

// Root returns the storage root directory
func (s *DiskStore) Root() string {
	return s.root
}

// AbsPath resolves relPath against the storage root
func (s *DiskStore) AbsPath(relPath string) string {
	return filepath.Join(s.root, filepath.FromSlash(relPath))
}

// Stage streams r into a temp file while hashing it
func (s *DiskStore) Stage(r io.Reader) (*StagedFile, error) {
	tmp, err := os.CreateTemp(filepath.Join(s.root, ".staging"), "upload-*")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "create staging file", err)
	}

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if cerr := tmp.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, apperrors.Wrap(apperrors.KindStorage, "write staging file", err)
	}

	return &StagedFile{
		TempPath:  tmp.Name(),
		Digest:    hex.EncodeToString(hasher.Sum(nil)),
		SizeBytes: size,
	}, nil
}

// Publish atomically renames a staged file into place
func (s *DiskStore) Publish(staged *StagedFile, relPath string) error {
	dst := s.AbsPath(relPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "create content directory", err)
	}
	if err := os.Rename(staged.TempPath, dst); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "publish staged file", err)
	}
	return nil
}

// Discard removes an unpublished staged file
func (s *DiskStore) Discard(staged *StagedFile) error {
	if err := os.Remove(staged.TempPath); err != nil && !os.IsNotExist(err) {
		return apperrors.Wrap(apperrors.KindStorage, "discard staged file", err)
	}
	return nil
}

// Create opens a writer whose content becomes visible at relPath only on Close
func (s *DiskStore) Create(relPath string) (io.WriteCloser, error) {
	tmp, err := os.CreateTemp(filepath.Join(s.root, ".staging"), "artifact-*")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "create staging file", err)
	}
	return &publishWriter{store: s, tmp: tmp, relPath: relPath}, nil
}

// Open opens the file at relPath for reading
func (s *DiskStore) Open(relPath string) (io.ReadCloser, error) {
	f, err := os.Open(s.AbsPath(relPath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.Newf(apperrors.KindNotFound, "file not found: %s", relPath)
		}
		return nil, apperrors.Wrap(apperrors.KindStorage, "open file", err)
	}
	return f, nil
}

// Exists reports whether a file is present at relPath
func (s *DiskStore) Exists(relPath string) (bool, error) {
	_, err := os.Stat(s.AbsPath(relPath))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, apperrors.Wrap(apperrors.KindStorage, "stat file", err)
}

// Remove deletes the file at relPath
func (s *DiskStore) Remove(relPath string) error {
	if err := os.Remove(s.AbsPath(relPath)); err != nil && !os.IsNotExist(err) {
		return apperrors.Wrap(apperrors.KindStorage, "remove file", err)
	}
	return nil
}

// ContentPath builds the canonical relative path for a content hash:
// <category>/<first two hash chars>/<hash>.<ext>. Unique per digest, with a
// fan-out level to keep directory listings bounded.
func ContentPath(category, digest, ext string) string {
	name := digest
	if ext != "" {
		name = fmt.Sprintf("%s.%s", digest, ext)
	}
	return filepath.ToSlash(filepath.Join(category, digest[:2], name))
}

type publishWriter struct {
	store   *DiskStore
	tmp     *os.File
	relPath string
}

func (w *publishWriter) Write(p []byte) (int, error) {
	return w.tmp.Write(p)
}

func (w *publishWriter) Close() error {
	if err := w.tmp.Close(); err != nil {
		os.Remove(w.tmp.Name())
		return apperrors.Wrap(apperrors.KindStorage, "close staging file", err)
	}
	return w.store.Publish(&StagedFile{TempPath: w.tmp.Name()}, w.relPath)
}
