package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EmptyBlob is the serialized form of an empty list.
const EmptyBlob = "[]"

// ParseBlob decodes the persisted list. A blank blob is an empty list.
func ParseBlob(blob string) ([]string, error) {
	if strings.TrimSpace(blob) == "" {
		return []string{}, nil
	}
	var entries []string
	if err := json.Unmarshal([]byte(blob), &entries); err != nil {
		return nil, fmt.Errorf("parse record list: %w", err)
	}
	if entries == nil {
		entries = []string{}
	}
	return entries, nil
}

// FormatBlob serializes entries in order.
func FormatBlob(entries []string) string {
	if len(entries) == 0 {
		return EmptyBlob
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entries); err != nil {
		return EmptyBlob
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// The Raw* functions operate on a blob that failed to parse. They work on the
// text directly and are best-effort: they may leave the blob malformed.

// quote returns s as a JSON string literal.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

// tokenStart is the text that opens the entry for id inside a blob.
func tokenStart(id string) string {
	return strings.TrimSuffix(quote(id), `"`) + Separator
}

// RawContains reports whether the blob text holds an entry for id.
func RawContains(blob, id string) bool {
	return strings.Contains(blob, tokenStart(id))
}

// RawAppend appends entry before the closing bracket. An unterminated blob
// is returned unchanged.
func RawAppend(blob, entry string) string {
	trimmed := strings.TrimSpace(blob)
	switch {
	case trimmed == "" || trimmed == EmptyBlob:
		return "[" + quote(entry) + "]"
	case strings.HasSuffix(trimmed, "]"):
		return tidy(trimmed[:len(trimmed)-1] + "," + quote(entry) + "]")
	default:
		return trimmed
	}
}

// RawReplace substitutes every occurrence of old with new. Any identifier
// that contains old as a substring is rewritten too.
func RawReplace(blob, old, new string) string {
	if old == "" {
		return blob
	}
	return strings.ReplaceAll(blob, old, new)
}

// RawRemove drops every quoted entry for id.
func RawRemove(blob, id string) string {
	return removeTokens(blob, tokenStart(id))
}

// RawRemovePrefix drops every quoted entry whose identifier starts with prefix.
func RawRemovePrefix(blob, prefix string) string {
	return removeTokens(blob, strings.TrimSuffix(quote(prefix), `"`))
}

func removeTokens(blob, start string) string {
	for {
		i := strings.Index(blob, start)
		if i < 0 {
			break
		}
		j := strings.Index(blob[i+1:], `"`)
		if j < 0 {
			break
		}
		blob = blob[:i] + blob[i+1+j+1:]
	}
	return tidy(blob)
}

// RawSetTags fills the tags of an entry whose tags are empty.
// It reports false when no such entry was found.
func RawSetTags(blob, id, tags string) (string, bool) {
	old := tokenStart(id) + Separator
	if !strings.Contains(blob, old) {
		return blob, false
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(quote(tags), `"`), `"`)
	return strings.Replace(blob, old, tokenStart(id)+inner+Separator, 1), true
}

// RawSetFavorite rewrites the first entry for id with the given flag.
func RawSetFavorite(blob, id string, favorite bool, now time.Time) (string, bool) {
	i := strings.Index(blob, tokenStart(id))
	if i < 0 {
		return blob, false
	}
	j := strings.Index(blob[i+1:], `"`)
	if j < 0 {
		return blob, false
	}
	end := i + 1 + j
	var entry string
	if err := json.Unmarshal([]byte(blob[i:end+1]), &entry); err != nil {
		return blob, false
	}
	p, err := Decode(entry, now)
	if err != nil {
		return blob, false
	}
	p.Favorite = favorite
	return blob[:i] + quote(Encode(p)) + blob[end+1:], true
}

// tidy repairs separators left behind by removals.
func tidy(blob string) string {
	for strings.Contains(blob, ",,") {
		blob = strings.ReplaceAll(blob, ",,", ",")
	}
	blob = strings.ReplaceAll(blob, "[,", "[")
	blob = strings.ReplaceAll(blob, ",]", "]")
	trimmed := strings.TrimSpace(strings.NewReplacer("[", "", "]", "", ",", "").Replace(blob))
	if trimmed == "" {
		return EmptyBlob
	}
	return blob
}
