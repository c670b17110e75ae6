package model

import (
	"path"
	"strings"
	"time"
)

// DateLayout is the capture date format stored in a record.
const DateLayout = "2006-01-02"

// ContentScheme prefixes identifiers that live in the media index.
const ContentScheme = "content://"

// Photo is the metadata record kept for one photo, keyed by its identifier.
type Photo struct {
	ID        string `json:"id"`        // content URI (scoped) or absolute path (legacy)
	Tags      string `json:"tags"`      // comma-joined, free-form
	Date      string `json:"date"`      // YYYY-MM-DD
	CreatedAt int64  `json:"createdAt"` // unix millis
	Favorite  bool   `json:"favorite"`

	// Folder is derived from the identifier when listing; it is never persisted.
	Folder string `json:"folder,omitempty"`
}

// NewPhotoParams holds parameters for creating a new Photo.
type NewPhotoParams struct {
	ID       string
	Tags     string
	Favorite bool
	Now      time.Time // zero = time.Now()
}

// NewPhoto creates a Photo stamped with the current date and time.
func NewPhoto(params NewPhotoParams) Photo {
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	return Photo{
		ID:        params.ID,
		Tags:      strings.TrimSpace(params.Tags),
		Date:      now.Format(DateLayout),
		CreatedAt: now.UnixMilli(),
		Favorite:  params.Favorite,
	}
}

// TagList splits the comma-joined tags, dropping blanks.
func (p Photo) TagList() []string {
	var tags []string
	for _, t := range strings.Split(p.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// HasTag reports whether the photo carries tag (case-insensitive).
func (p Photo) HasTag(tag string) bool {
	for _, t := range p.TagList() {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Created returns CreatedAt as a time.
func (p Photo) Created() time.Time {
	return time.UnixMilli(p.CreatedAt)
}

// Name returns the last path element of the identifier.
func (p Photo) Name() string {
	return path.Base(strings.TrimSuffix(p.ID, "/"))
}

// IsContentURI reports whether id addresses a media index row.
func IsContentURI(id string) bool {
	return strings.HasPrefix(id, ContentScheme)
}

// imageExtensions lists the file extensions treated as photos on disk.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// IsImageFile reports whether name has a photo extension (case-insensitive).
func IsImageFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
