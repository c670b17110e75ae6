package relocate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/nikbrunner/gorg/internal/media"
	"github.com/nikbrunner/gorg/internal/resolver"
)

// CaptureName is the display name given to a photo captured at t.
func CaptureName(t time.Time) string {
	return "IMG_" + t.Format("20060102_150405") + ".jpg"
}

// Capture adds the freshly captured image at tmpPath to folder under a
// timestamped name, deletes tmpPath and returns the new identifier.
func (e *Engine) Capture(folder, tmpPath string) (string, error) {
	id, err := e.add(folder, tmpPath, CaptureName(e.now()))
	if err != nil {
		return "", err
	}
	if err := os.Remove(tmpPath); err != nil {
		e.log.Warn("capture file left behind", "path", tmpPath, "error", err)
	}
	return id, nil
}

// Import adds a copy of the image at srcPath to folder, keeping its base
// name, and returns the new identifier. srcPath is left in place.
func (e *Engine) Import(folder, srcPath string) (string, error) {
	return e.add(folder, srcPath, filepath.Base(srcPath))
}

func (e *Engine) add(folder, src, name string) (string, error) {
	folder, err := e.validator.FolderName(folder)
	if err != nil {
		return "", err
	}

	mt, err := mimetype.DetectFile(src)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", src, err)
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: %s is %s", ErrNotImage, src, mt.String())
	}

	var id string
	if e.legacy() {
		destDir, err := e.folderDir(folder)
		if err != nil {
			return "", err
		}
		if err := os.MkdirAll(destDir, 0755); err != nil {
			return "", err
		}
		id = e.uniquePath(destDir, name, "_")
		if err := copyFile(src, id); err != nil {
			return "", err
		}
	} else {
		row, err := e.insertFile(src, media.NewRow{
			DisplayName:  name,
			MimeType:     mt.String(),
			RelativePath: resolver.FolderRelativePath(folder),
		})
		if err != nil {
			return "", err
		}
		id = row.URI()
		e.register(folder)
	}

	if e.photos != nil {
		if err := e.photos.Upsert(id, "", false); err != nil {
			e.log.Error("record not created", "id", id, "error", err)
		}
	}
	e.log.Info("photo added", "id", id, "folder", folder)
	return id, nil
}

// insertFile creates a media row holding the content of the file src.
func (e *Engine) insertFile(src string, nr media.NewRow) (media.Row, error) {
	in, err := os.Open(src)
	if err != nil {
		return media.Row{}, fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	row, err := e.index.Insert(nr)
	if err != nil {
		return media.Row{}, fmt.Errorf("insert: %w", err)
	}

	out, err := e.index.OpenWriter(row.ID)
	if err != nil {
		e.discard(row)
		return media.Row{}, fmt.Errorf("open destination: %w", err)
	}
	if _, err := io.CopyBuffer(out, in, make([]byte, copyBufferSize)); err != nil {
		out.Close()
		e.discard(row)
		return media.Row{}, fmt.Errorf("copy: %w", err)
	}
	if err := out.Close(); err != nil {
		e.discard(row)
		return media.Row{}, fmt.Errorf("copy: %w", err)
	}
	return row, nil
}
