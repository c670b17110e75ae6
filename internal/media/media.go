// Package media is the shared media index: a queryable registry of photo
// rows, each with a display name, a MIME type and a relative path, whose
// bytes are read and written through the index.
package media

import (
	"errors"
	"io"
	"strings"
	"time"
)

// URIPrefix addresses a row of the index by id.
const URIPrefix = "content://media/external/images/media/"

// DefaultMimeType is used when a row carries no MIME type.
const DefaultMimeType = "image/jpeg"

var (
	ErrNotFound         = errors.New("media row not found")
	ErrPermissionDenied = errors.New("media access denied")
)

// Row is one entry of the media index.
type Row struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"displayName"`
	MimeType     string    `json:"mimeType"`
	RelativePath string    `json:"relativePath"` // always ends with "/"
	Size         int64     `json:"size"`
	DateAdded    time.Time `json:"dateAdded"`
}

// URI returns the identifier of the row.
func (r Row) URI() string {
	return URIPrefix + r.ID
}

// Path returns the relative path joined with the display name.
func (r Row) Path() string {
	return r.RelativePath + r.DisplayName
}

// ParseURI extracts the row id from a URI produced by Row.URI.
func ParseURI(uri string) (string, bool) {
	id, ok := strings.CutPrefix(uri, URIPrefix)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// NewRow describes a row to insert.
type NewRow struct {
	DisplayName  string
	MimeType     string // empty = DefaultMimeType
	RelativePath string
}

// Selection filters a query. Exactly one field is normally set;
// an empty Selection matches every row.
type Selection struct {
	RelativePathPrefix string // rows whose relative path starts with this
	RelativePath       string // rows whose relative path equals this
}

// Index is the media index.
type Index interface {
	Query(sel Selection) ([]Row, error)
	Get(id string) (Row, error)
	Insert(row NewRow) (Row, error)
	OpenReader(id string) (io.ReadCloser, error)
	// OpenWriter truncates the row's content.
	OpenWriter(id string) (io.WriteCloser, error)
	Delete(id string) error
}

// NormalizeDir makes a relative path end with exactly one "/".
func NormalizeDir(rel string) string {
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return ""
	}
	return rel + "/"
}
