package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"time"

	"github.com/modelibr/modelibr/common/apperrors"
	"github.com/modelibr/modelibr/common/cache"
	"github.com/modelibr/modelibr/common/logger"
	"github.com/modelibr/modelibr/common/models"
	"github.com/modelibr/modelibr/common/storage"
)

// FileStore is the persistence the content store needs. Create must report
// a conflict error when the content hash already exists; GetByHash returns
// (nil, nil) on a miss.
type FileStore interface {
	Create(ctx context.Context, file *models.File) error
	GetByHash(ctx context.Context, contentHash string) (*models.File, error)
	Delete(ctx context.Context, contentHash string) error
	HasReferences(ctx context.Context, contentHash string) (bool, error)
}

// ContentStoreService implements the deduplicating content store. Identical
// content resolves to one record and one physical file no matter how many
// times or under what names it is uploaded.
type ContentStoreService struct {
	files  FileStore
	store  storage.Store
	policy *UploadPolicy
	log    *logger.Logger

	// Optional read-through cache for content records. Records are immutable
	// per hash, so entries only need invalidation on delete.
	cache    cache.Cache
	cacheTTL time.Duration
}

// NewContentStoreService creates a new content store service
func NewContentStoreService(files FileStore, store storage.Store, policy *UploadPolicy, log *logger.Logger) *ContentStoreService {
	return &ContentStoreService{
		files:  files,
		store:  store,
		policy: policy,
		log:    log,
	}
}

// Resolve stores an upload and returns its content record. The stream is
// validated, staged while hashing, then either deduplicated against an
// existing record or published and inserted. A record whose physical file
// has gone missing is purged and recreated rather than returned.
func (s *ContentStoreService) Resolve(ctx context.Context, r io.Reader, originalName string, category models.FileCategory, declaredSize int64) (*models.File, error) {
	// Reject before any bytes are read or hashed.
	if err := s.policy.Check(originalName, category, declaredSize); err != nil {
		return nil, err
	}

	staged, err := s.store.Stage(r)
	if err != nil {
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}

	// The declared size came from the client; re-validate with what actually
	// arrived when they disagree.
	if staged.SizeBytes != declaredSize {
		if err := s.policy.Check(originalName, category, staged.SizeBytes); err != nil {
			s.discard(staged)
			return nil, err
		}
	}

	existing, err := s.files.GetByHash(ctx, staged.Digest)
	if err != nil {
		s.discard(staged)
		return nil, err
	}

	if existing != nil {
		healed, err := s.healOrphan(ctx, existing)
		if err != nil {
			s.discard(staged)
			return nil, err
		}
		if !healed {
			// Dedup hit: the record and its file are both intact.
			s.discard(staged)
			s.log.Info("upload deduplicated",
				"content_hash", existing.ContentHash,
				"original_name", originalName,
				"stored_name", existing.StoredName,
			)
			return existing, nil
		}
		// The record was an orphan and has been purged; fall through and
		// recreate it from the staged upload.
	}

	record := &models.File{
		ContentHash:  staged.Digest,
		StoredName:   storedName(staged.Digest, originalName),
		RelativePath: storage.ContentPath(string(category), staged.Digest, models.ExtensionOf(originalName)),
		SizeBytes:    staged.SizeBytes,
		MimeType:     mimeTypeOf(originalName),
		OriginalName: originalName,
		Category:     category,
		CreatedAt:    time.Now().UTC(),
	}

	// Publish before insert so a record is never visible without its file.
	if err := s.store.Publish(staged, record.RelativePath); err != nil {
		s.discard(staged)
		return nil, err
	}

	if err := s.files.Create(ctx, record); err != nil {
		if apperrors.IsConflict(err) {
			// A concurrent upload of the same content won the insert race.
			// Both writers published identical bytes, so resolving to the
			// winner's record loses nothing.
			winner, getErr := s.files.GetByHash(ctx, staged.Digest)
			if getErr != nil {
				return nil, getErr
			}
			if winner != nil {
				s.log.Info("upload lost insert race, resolved to winner",
					"content_hash", winner.ContentHash,
					"original_name", originalName,
				)
				return winner, nil
			}
		}
		return nil, err
	}

	s.log.Info("upload stored",
		"content_hash", record.ContentHash,
		"original_name", originalName,
		"category", category,
		"size_bytes", record.SizeBytes,
	)

	return record, nil
}

// EnableCache adds a read-through cache in front of record lookups on the
// download path
func (s *ContentStoreService) EnableCache(c cache.Cache, ttl time.Duration) {
	s.cache = c
	s.cacheTTL = ttl
}

// Open returns the content record and a reader over its physical file. A
// record whose file has gone missing is purged so the next upload of the
// same content can recreate it.
func (s *ContentStoreService) Open(ctx context.Context, contentHash string) (*models.File, io.ReadCloser, error) {
	record, err := s.lookupRecord(ctx, contentHash)
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		return nil, nil, apperrors.Newf(apperrors.KindNotFound, "file not found: %s", contentHash)
	}

	rc, err := s.store.Open(record.RelativePath)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.log.Warn("content record is orphaned, purging",
				"content_hash", record.ContentHash,
				"relative_path", record.RelativePath,
			)
			if delErr := s.files.Delete(ctx, record.ContentHash); delErr != nil && !apperrors.IsNotFound(delErr) {
				s.log.Error("failed to purge orphaned record", "content_hash", record.ContentHash, "error", delErr)
			}
			s.evict(ctx, record.ContentHash)
			return nil, nil, apperrors.Newf(apperrors.KindNotFound, "file not found: %s", contentHash)
		}
		return nil, nil, err
	}

	return record, rc, nil
}

// Purge permanently deletes a content record and its physical file. It
// refuses while any model version still references the hash.
func (s *ContentStoreService) Purge(ctx context.Context, contentHash string) error {
	record, err := s.files.GetByHash(ctx, contentHash)
	if err != nil {
		return err
	}
	if record == nil {
		return apperrors.Newf(apperrors.KindNotFound, "file not found: %s", contentHash)
	}

	referenced, err := s.files.HasReferences(ctx, contentHash)
	if err != nil {
		return err
	}
	if referenced {
		return apperrors.Newf(apperrors.KindConflict,
			"file %s is still referenced by model versions", contentHash)
	}

	if err := s.files.Delete(ctx, contentHash); err != nil {
		return err
	}
	s.evict(ctx, contentHash)

	if err := s.store.Remove(record.RelativePath); err != nil {
		// The record is gone; a leftover physical file is unreachable and
		// harmless, so log instead of failing the purge.
		s.log.Error("failed to remove purged file from disk",
			"content_hash", contentHash,
			"relative_path", record.RelativePath,
			"error", err,
		)
	}

	s.log.Info("file purged", "content_hash", contentHash)
	return nil
}

// healOrphan checks that an existing record's physical file is present.
// When the file is missing the stale record is purged and true is returned
// so the caller recreates it.
func (s *ContentStoreService) healOrphan(ctx context.Context, record *models.File) (bool, error) {
	present, err := s.store.Exists(record.RelativePath)
	if err != nil {
		return false, err
	}
	if present {
		return false, nil
	}

	s.log.Warn("content record is orphaned, recreating",
		"content_hash", record.ContentHash,
		"relative_path", record.RelativePath,
	)

	if err := s.files.Delete(ctx, record.ContentHash); err != nil && !apperrors.IsNotFound(err) {
		return false, fmt.Errorf("failed to purge orphaned record: %w", err)
	}
	s.evict(ctx, record.ContentHash)

	return true, nil
}

// lookupRecord reads a content record through the cache when one is enabled
func (s *ContentStoreService) lookupRecord(ctx context.Context, contentHash string) (*models.File, error) {
	key := recordCacheKey(contentHash)

	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			record := &models.File{}
			if err := json.Unmarshal(raw, record); err == nil {
				return record, nil
			}
		}
	}

	record, err := s.files.GetByHash(ctx, contentHash)
	if err != nil || record == nil {
		return record, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(record); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
				s.log.Warn("failed to cache content record", "content_hash", contentHash, "error", err)
			}
		}
	}

	return record, nil
}

func (s *ContentStoreService) evict(ctx context.Context, contentHash string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, recordCacheKey(contentHash)); err != nil {
		s.log.Warn("failed to evict cached record", "content_hash", contentHash, "error", err)
	}
}

func recordCacheKey(contentHash string) string {
	return "file:" + contentHash
}

func (s *ContentStoreService) discard(staged *storage.StagedFile) {
	if err := s.store.Discard(staged); err != nil {
		s.log.Warn("failed to discard staged upload", "temp_path", staged.TempPath, "error", err)
	}
}

// storedName is the canonical on-disk name: the digest plus the original
// extension
func storedName(digest, originalName string) string {
	if ext := models.ExtensionOf(originalName); ext != "" {
		return fmt.Sprintf("%s.%s", digest, ext)
	}
	return digest
}

func mimeTypeOf(name string) string {
	if ext := models.ExtensionOf(name); ext != "" {
		if mt := mime.TypeByExtension("." + ext); mt != "" {
			return mt
		}
	}
	return "application/octet-stream"
}
