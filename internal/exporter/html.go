// Package exporter writes selections of photos out of the library: as a
// printable PDF, or as an HTML album that the importer can read back.
package exporter

import (
	"fmt"
	"html"
	"path/filepath"
	"strings"
	"time"

	"github.com/nikbrunner/gorg/internal/model"
)

// DefaultAlbumPath returns the default album file path inside dir.
// Format: <dir>/gallery-album-YYYY-MM-DD.html
func DefaultAlbumPath(dir string, now time.Time) string {
	filename := fmt.Sprintf("gallery-album-%s.html", now.Format(model.DateLayout))
	return filepath.Join(dir, filename)
}

// ExportHTML exports the library as an HTML album. Each folder is a heading
// followed by a list of its photos; photos outside every folder come last.
func ExportHTML(lib *model.Library) string {
	var b strings.Builder

	// Header
	b.WriteString("<!DOCTYPE GALLERY-ORGANIZER-Album-1>\n")
	b.WriteString("<META HTTP-EQUIV=\"Content-Type\" CONTENT=\"text/html; charset=UTF-8\">\n")
	b.WriteString("<TITLE>Photos</TITLE>\n")
	b.WriteString("<H1>Photos</H1>\n")
	b.WriteString("<DL><p>\n")

	prefix := "    "
	for _, folder := range lib.Folders {
		// Write folder header
		fmt.Fprintf(&b, "%s<DT><H3>%s</H3>\n", prefix, html.EscapeString(folder.Name))
		fmt.Fprintf(&b, "%s<DL><p>\n", prefix)

		writePhotos(&b, lib.GetPhotosInFolder(folder.Name), prefix+"    ")

		// Close folder
		fmt.Fprintf(&b, "%s</DL><p>\n", prefix)
	}
	writePhotos(&b, lib.GetPhotosInFolder(""), prefix)

	// Footer
	b.WriteString("</DL><p>\n")

	return b.String()
}

func writePhotos(b *strings.Builder, photos []model.Photo, prefix string) {
	for _, p := range photos {
		fmt.Fprintf(b,
			"%s<DT><A HREF=\"%s\" ADD_DATE=\"%d\" DATE=\"%s\" TAGS=\"%s\" FAVORITE=\"%t\">%s</A>\n",
			prefix,
			html.EscapeString(p.ID),
			p.Created().Unix(),
			html.EscapeString(p.Date),
			html.EscapeString(p.Tags),
			p.Favorite,
			html.EscapeString(p.Name()),
		)
	}
}
