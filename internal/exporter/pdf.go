package exporter

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
	_ "golang.org/x/image/webp"
)

// A4 in points.
const (
	pageWidth  = 595.0
	pageHeight = 842.0
)

// maxImageSide bounds the pixel size embedded per page.
const maxImageSide = 2480

// ErrNothingToExport is returned for an empty selection.
var ErrNothingToExport = errors.New("no photos selected")

// Opener opens the content of a photo by identifier.
type Opener interface {
	Open(id string) (io.ReadCloser, error)
}

// PDFName returns the file name for an export. A blank name becomes
// GalleryOrganizer_<millis>.pdf and ".pdf" is appended when missing.
func PDFName(name string, now time.Time) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "GalleryOrganizer_" + strconv.FormatInt(now.UnixMilli(), 10)
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	return name
}

// ExportPDF writes the photos ids to a new PDF in dir and returns its path.
func ExportPDF(dir, name string, ids []string, open Opener, logger *slog.Logger, now time.Time) (string, error) {
	if len(ids) == 0 {
		return "", ErrNothingToExport
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, PDFName(name, now))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := WritePDF(f, ids, open, logger); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// WritePDF writes one A4 page per photo: landscape for wide images,
// portrait otherwise, the image scaled to fit and centred. A photo that
// cannot be read or decoded gets a blank page.
func WritePDF(w io.Writer, ids []string, open Opener, logger *slog.Logger) error {
	if len(ids) == 0 {
		return ErrNothingToExport
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	a4 := fpdf.SizeType{Wd: pageWidth, Ht: pageHeight}
	for i, id := range ids {
		img, err := decode(open, id)
		if err != nil {
			logger.Warn("blank page for unreadable photo", "id", id, "error", err)
			pdf.AddPageFormat("P", a4)
			continue
		}

		b := img.Bounds()
		orientation := "P"
		if b.Dx() > b.Dy() {
			orientation = "L"
		}
		pdf.AddPageFormat(orientation, a4)

		if b.Dx() > maxImageSide || b.Dy() > maxImageSide {
			img = imaging.Fit(img, maxImageSide, maxImageSide, imaging.Lanczos)
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
			logger.Warn("blank page for unencodable photo", "id", id, "error", err)
			continue
		}

		pw, ph := pdf.GetPageSize()
		scale := math.Min(pw/float64(b.Dx()), ph/float64(b.Dy()))
		dw, dh := float64(b.Dx())*scale, float64(b.Dy())*scale

		opts := fpdf.ImageOptions{ImageType: "JPG"}
		name := fmt.Sprintf("page%d", i)
		pdf.RegisterImageOptionsReader(name, opts, &buf)
		pdf.ImageOptions(name, (pw-dw)/2, (ph-dh)/2, dw, dh, false, opts, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func decode(open Opener, id string) (image.Image, error) {
	rc, err := open.Open(id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return imaging.Decode(rc, imaging.AutoOrientation(true))
}
