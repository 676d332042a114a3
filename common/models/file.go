package models

import (
	"path"
	"strings"
	"time"
)

// FileCategory declares what kind of asset an uploaded file is. The category
// decides the storage subdirectory and how thumbnails are rendered.
type FileCategory string

const (
	CategoryModel   FileCategory = "model"
	CategoryTexture FileCategory = "texture"
	CategorySprite  FileCategory = "sprite"
	CategorySound   FileCategory = "sound"
)

// ParseFileCategory validates a category string from the wire
func ParseFileCategory(s string) (FileCategory, bool) {
	switch FileCategory(strings.ToLower(s)) {
	case CategoryModel:
		return CategoryModel, true
	case CategoryTexture:
		return CategoryTexture, true
	case CategorySprite:
		return CategorySprite, true
	case CategorySound:
		return CategorySound, true
	}
	return "", false
}

// File is the catalog record for one physical file on disk, identified by the
// sha256 hex digest of its content. At most one live record exists per hash;
// the database primary key on content_hash is the deduplication authority.
type File struct {
	ContentHash  string       `json:"content_hash"`
	StoredName   string       `json:"stored_name"`
	RelativePath string       `json:"relative_path"`
	SizeBytes    int64        `json:"size_bytes"`
	MimeType     string       `json:"mime_type"`
	OriginalName string       `json:"original_name"`
	Category     FileCategory `json:"category"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Extension returns the lowercased extension of the original file name,
// without the leading dot
func (f *File) Extension() string {
	return ExtensionOf(f.OriginalName)
}

// ExtensionOf returns the lowercased extension of name without the leading dot
func ExtensionOf(name string) string {
	ext := strings.ToLower(path.Ext(name))
	return strings.TrimPrefix(ext, ".")
}
