package store

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nikbrunner/gorg/internal/model"
	"github.com/nikbrunner/gorg/internal/record"
	"github.com/nikbrunner/gorg/internal/storage"
)

// Photos is the metadata record store.
//
// Records live as one serialized list under storage.KeyPhotos. When that list
// cannot be parsed, operations fall back to editing its raw text; see the
// record package for what that can and cannot do.
type Photos struct {
	s   storage.Storage
	log *slog.Logger
	now func() time.Time
}

// NewPhotos creates a Photos store on top of s.
func NewPhotos(s storage.Storage, opts Options) *Photos {
	return &Photos{s: s, log: opts.logger(), now: opts.clock()}
}

// Upsert creates the record for id or merges into the existing one.
// Blank tags keep the stored tags; favorite=false keeps the stored flag.
func (p *Photos) Upsert(id, tags string, favorite bool) error {
	if id == "" {
		return ErrEmptyIdentifier
	}
	tags = strings.TrimSpace(tags)
	now := p.now()

	return p.update("upsert", func(entries []string) []string {
		i := record.IndexOf(entries, id)
		if i < 0 {
			return append(entries, record.Encode(model.NewPhoto(model.NewPhotoParams{
				ID: id, Tags: tags, Favorite: favorite, Now: now,
			})))
		}
		existing, err := record.Decode(entries[i], now)
		if err != nil {
			return entries
		}
		if tags != "" {
			existing.Tags = tags
		}
		if favorite {
			existing.Favorite = true
		}
		entries[i] = record.Encode(existing)
		return entries
	}, func(blob string) string {
		if !record.RawContains(blob, id) {
			return record.RawAppend(blob, record.Encode(model.NewPhoto(model.NewPhotoParams{
				ID: id, Tags: tags, Favorite: favorite, Now: now,
			})))
		}
		if tags != "" {
			blob, _ = record.RawSetTags(blob, id, tags)
		}
		if favorite {
			blob, _ = record.RawSetFavorite(blob, id, true, now)
		}
		return blob
	})
}

// SetTags overwrites the tags of id, creating the record if absent.
func (p *Photos) SetTags(id, tags string) error {
	if id == "" {
		return ErrEmptyIdentifier
	}
	tags = strings.TrimSpace(tags)
	now := p.now()

	return p.update("set tags", func(entries []string) []string {
		i := record.IndexOf(entries, id)
		if i < 0 {
			return append(entries, record.Encode(model.NewPhoto(model.NewPhotoParams{
				ID: id, Tags: tags, Now: now,
			})))
		}
		existing, err := record.Decode(entries[i], now)
		if err != nil {
			return entries
		}
		existing.Tags = tags
		entries[i] = record.Encode(existing)
		return entries
	}, func(blob string) string {
		if !record.RawContains(blob, id) {
			return record.RawAppend(blob, record.Encode(model.NewPhoto(model.NewPhotoParams{
				ID: id, Tags: tags, Now: now,
			})))
		}
		next, ok := record.RawSetTags(blob, id, tags)
		if !ok {
			p.log.Warn("tags left unchanged", "id", id)
		}
		return next
	})
}

// SetFavorite overwrites the favorite flag of id, creating the record if absent.
func (p *Photos) SetFavorite(id string, favorite bool) error {
	if id == "" {
		return ErrEmptyIdentifier
	}
	now := p.now()

	return p.update("set favorite", func(entries []string) []string {
		i := record.IndexOf(entries, id)
		if i < 0 {
			return append(entries, record.Encode(model.NewPhoto(model.NewPhotoParams{
				ID: id, Favorite: favorite, Now: now,
			})))
		}
		existing, err := record.Decode(entries[i], now)
		if err != nil {
			return entries
		}
		existing.Favorite = favorite
		entries[i] = record.Encode(existing)
		return entries
	}, func(blob string) string {
		if !record.RawContains(blob, id) {
			return record.RawAppend(blob, record.Encode(model.NewPhoto(model.NewPhotoParams{
				ID: id, Favorite: favorite, Now: now,
			})))
		}
		next, _ := record.RawSetFavorite(blob, id, favorite, now)
		return next
	})
}

// Rename rewrites the identifier of the record for oldID.
// With no such record it substitutes oldID with newID across the raw list,
// which also rewrites any identifier that merely contains oldID.
func (p *Photos) Rename(oldID, newID string) error {
	if oldID == "" || newID == "" {
		return ErrEmptyIdentifier
	}
	if oldID == newID {
		return nil
	}
	now := p.now()

	return p.updateRaw("rename", func(blob string, entries []string, parsed bool) string {
		if parsed {
			if i := record.IndexOf(entries, oldID); i >= 0 {
				if existing, err := record.Decode(entries[i], now); err == nil {
					existing.ID = newID
					entries[i] = record.Encode(existing)
					return record.FormatBlob(entries)
				}
			}
		}
		return record.RawReplace(blob, oldID, newID)
	})
}

// RenamePrefix rewrites every identifier starting with oldPrefix to start with
// newPrefix instead. An unreadable list gets a raw substitution.
func (p *Photos) RenamePrefix(oldPrefix, newPrefix string) error {
	if oldPrefix == "" {
		return ErrEmptyIdentifier
	}
	if oldPrefix == newPrefix {
		return nil
	}
	return p.update("rename prefix", func(entries []string) []string {
		for i, e := range entries {
			if strings.HasPrefix(e, oldPrefix) {
				entries[i] = newPrefix + strings.TrimPrefix(e, oldPrefix)
			}
		}
		return entries
	}, func(blob string) string {
		return record.RawReplace(blob, oldPrefix, newPrefix)
	})
}

// Remove deletes every record whose identifier equals id.
func (p *Photos) Remove(id string) error {
	if id == "" {
		return ErrEmptyIdentifier
	}
	return p.update("remove", func(entries []string) []string {
		kept := entries[:0]
		for _, e := range entries {
			if !record.HasIdentifier(e, id) {
				kept = append(kept, e)
			}
		}
		return kept
	}, func(blob string) string {
		return record.RawRemove(blob, id)
	})
}

// RemovePrefix deletes every record whose identifier starts with prefix.
func (p *Photos) RemovePrefix(prefix string) error {
	if prefix == "" {
		return ErrEmptyIdentifier
	}
	return p.update("remove prefix", func(entries []string) []string {
		kept := entries[:0]
		for _, e := range entries {
			if !strings.HasPrefix(e, prefix) {
				kept = append(kept, e)
			}
		}
		return kept
	}, func(blob string) string {
		return record.RawRemovePrefix(blob, prefix)
	})
}

// Exists reports whether a record for id is stored.
func (p *Photos) Exists(id string) bool {
	if id == "" {
		return false
	}
	mu.Lock()
	defer mu.Unlock()

	blob, entries, parsed := p.read("exists")
	if !parsed {
		return record.RawContains(blob, id)
	}
	return record.IndexOf(entries, id) >= 0
}

// Get returns the record for id.
func (p *Photos) Get(id string) (model.Photo, bool) {
	mu.Lock()
	defer mu.Unlock()

	_, entries, _ := p.read("get")
	i := record.IndexOf(entries, id)
	if i < 0 {
		return model.Photo{}, false
	}
	photo, err := record.Decode(entries[i], p.now())
	if err != nil {
		return model.Photo{}, false
	}
	return photo, true
}

// All returns every decodable record in stored order.
func (p *Photos) All() []model.Photo {
	mu.Lock()
	defer mu.Unlock()

	_, entries, _ := p.read("all")
	now := p.now()
	photos := make([]model.Photo, 0, len(entries))
	for _, e := range entries {
		photo, err := record.Decode(e, now)
		if err != nil {
			p.log.Debug("skipping record", "entry", e, "error", err)
			continue
		}
		photos = append(photos, photo)
	}
	return photos
}

// read loads the list. Callers hold mu. parsed is false when the blob is
// unreadable; entries is then nil.
func (p *Photos) read(op string) (blob string, entries []string, parsed bool) {
	blob, err := p.s.GetString(storage.KeyPhotos, record.EmptyBlob)
	if err != nil {
		p.log.Error("read records", "op", op, "error", err)
		return record.EmptyBlob, []string{}, true
	}
	entries, err = record.ParseBlob(blob)
	if err != nil {
		p.log.Warn("record list unreadable, using raw text", "op", op, "error", err)
		return blob, nil, false
	}
	return blob, entries, true
}

// update applies structured to the parsed list, or raw to the blob text when
// the list cannot be parsed, and writes the result back.
func (p *Photos) update(op string, structured func([]string) []string, raw func(string) string) error {
	return p.updateRaw(op, func(blob string, entries []string, parsed bool) string {
		if !parsed {
			return raw(blob)
		}
		return record.FormatBlob(structured(entries))
	})
}

func (p *Photos) updateRaw(op string, apply func(blob string, entries []string, parsed bool) string) error {
	mu.Lock()
	defer mu.Unlock()

	blob, err := p.s.GetString(storage.KeyPhotos, record.EmptyBlob)
	if err != nil {
		p.log.Error("read records", "op", op, "error", err)
		return fmt.Errorf("%s: read records: %w", op, err)
	}

	entries, perr := record.ParseBlob(blob)
	if perr != nil {
		p.log.Warn("record list unreadable, editing raw text", "op", op, "error", perr)
	}

	next := apply(blob, entries, perr == nil)
	if next == blob {
		return nil
	}
	if err := p.s.PutString(storage.KeyPhotos, next); err != nil {
		p.log.Error("write records", "op", op, "error", err)
		return fmt.Errorf("%s: write records: %w", op, err)
	}
	return nil
}
