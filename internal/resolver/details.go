package resolver

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"

	"github.com/nikbrunner/gorg/internal/media"
	"github.com/nikbrunner/gorg/internal/model"
)

// Details describes one photo for display.
type Details struct {
	ID        string
	Name      string
	Folder    string
	MimeType  string
	Size      int64
	Width     int
	Height    int
	DateTaken time.Time
	Tags      string
	Favorite  bool
}

// SizeString formats Size for humans.
func (d Details) SizeString() string {
	return humanize.Bytes(uint64(d.Size))
}

// Resolution returns "WxH", or "" when the image could not be decoded.
func (d Details) Resolution() string {
	if d.Width == 0 || d.Height == 0 {
		return ""
	}
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Details reads the photo id and its metadata record.
// The date taken comes from EXIF, falling back to when the file was added.
func (r *Resolver) Details(id string) (Details, error) {
	d := Details{ID: id, Name: model.Photo{ID: id}.Name()}

	var added time.Time
	if rowID, ok := media.ParseURI(id); ok && r.index != nil {
		row, err := r.index.Get(rowID)
		if err != nil {
			return Details{}, err
		}
		d.Name = row.DisplayName
		d.MimeType = row.MimeType
		added = row.DateAdded
	} else {
		info, err := os.Stat(id)
		if err != nil {
			return Details{}, err
		}
		added = info.ModTime()
	}
	d.Folder, _ = r.FolderOf(id)

	rc, err := r.Open(id)
	if err != nil {
		return Details{}, err
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return Details{}, fmt.Errorf("read %s: %w", id, err)
	}
	d.Size = int64(len(data))

	detected := mimetype.Detect(data)
	if d.MimeType == "" {
		d.MimeType = detected.String()
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		d.Width, d.Height = cfg.Width, cfg.Height
	} else {
		r.log.Debug("image header unreadable", "id", id, "error", err)
	}

	d.DateTaken = added
	// only JPEG and TIFF carry EXIF
	if detected.Is("image/jpeg") || detected.Is("image/tiff") {
		if x, err := exif.Decode(bytes.NewReader(data)); err == nil {
			if taken, err := x.DateTime(); err == nil {
				d.DateTaken = taken
			}
		}
	}

	if r.photos != nil {
		if p, ok := r.photos.Get(id); ok {
			d.Tags = p.Tags
			d.Favorite = p.Favorite
		}
	}
	return d, nil
}
