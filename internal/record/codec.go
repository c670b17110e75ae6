// Package record encodes photo metadata records and the serialized list
// that holds them inside a single persisted string value.
//
// A record is `identifier|tags|date|createdAtMillis|favorite|`. Entries written
// by early versions lack the tags field (`identifier|date|createdAtMillis|favorite`)
// and are decoded with empty tags.
package record

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/nikbrunner/gorg/internal/model"
)

// Separator delimits the fields of a record.
const Separator = "|"

// ErrEmptyIdentifier is returned when a record has no identifier field.
var ErrEmptyIdentifier = errors.New("record has no identifier")

// Encode serializes p. A separator inside tags is replaced by a comma.
func Encode(p model.Photo) string {
	var b strings.Builder
	b.WriteString(p.ID)
	b.WriteString(Separator)
	b.WriteString(strings.ReplaceAll(p.Tags, Separator, ","))
	b.WriteString(Separator)
	b.WriteString(p.Date)
	b.WriteString(Separator)
	if p.CreatedAt != 0 {
		b.WriteString(strconv.FormatInt(p.CreatedAt, 10))
	}
	b.WriteString(Separator)
	b.WriteString(strconv.FormatBool(p.Favorite))
	b.WriteString(Separator)
	return b.String()
}

// Decode parses one record. A missing date or timestamp defaults to now.
func Decode(entry string, now time.Time) (model.Photo, error) {
	raw := strings.Split(entry, Separator)
	p := model.Photo{ID: raw[0]}
	if p.ID == "" {
		return model.Photo{}, ErrEmptyIdentifier
	}

	var date, ts, fav string
	switch {
	case len(raw) >= 5:
		p.Tags = raw[1]
		date, ts, fav = raw[2], raw[3], raw[4]
	case len(raw) == 4:
		// legacy: identifier|date|ts|fav
		date, ts, fav = raw[1], raw[2], raw[3]
	}

	p.Date = date
	if p.Date == "" {
		p.Date = now.Format(model.DateLayout)
	}
	p.CreatedAt = now.UnixMilli()
	if ms, err := strconv.ParseInt(ts, 10, 64); err == nil {
		p.CreatedAt = ms
	}
	p.Favorite = fav == "true"

	return p, nil
}

// HasIdentifier reports whether entry is the record for id.
// Matching includes the separator so "a.jpg" never matches "a.jpg.bak".
func HasIdentifier(entry, id string) bool {
	return id != "" && strings.HasPrefix(entry, id+Separator)
}

// IndexOf returns the position of the first entry for id, or -1.
func IndexOf(entries []string, id string) int {
	for i, e := range entries {
		if HasIdentifier(e, id) {
			return i
		}
	}
	return -1
}
