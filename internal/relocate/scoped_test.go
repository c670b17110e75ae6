package relocate_test

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/nikbrunner/gorg/internal/media"
	"github.com/nikbrunner/gorg/internal/media/mediatest"
	"github.com/nikbrunner/gorg/internal/relocate"
	"github.com/nikbrunner/gorg/internal/storage"
	"github.com/nikbrunner/gorg/internal/store"
	"github.com/nikbrunner/gorg/internal/validation"
)

var fixedNow = time.Date(2025, 6, 1, 12, 30, 45, 0, time.Local)

type scopedFixture struct {
	index   *mediatest.Index
	photos  *store.Photos
	folders *store.Folders
	engine  *relocate.Engine
}

func newScoped(t *testing.T) *scopedFixture {
	t.Helper()
	s := storage.NewMemoryStorage()
	clock := func() time.Time { return fixedNow }
	f := &scopedFixture{
		index:   mediatest.New(),
		photos:  store.NewPhotos(s, store.Options{Now: clock}),
		folders: store.NewFolders(s, store.Options{}),
	}
	f.engine = relocate.New(relocate.Options{
		Index:   f.index,
		Photos:  f.photos,
		Folders: f.folders,
		Now:     clock,
	})
	return f
}

// add puts a photo with a tagged favorite record into the index.
func (f *scopedFixture) add(t *testing.T, rel, name string) media.Row {
	t.Helper()
	row := f.index.Add("Pictures/GalleryOrganizer/"+rel, name, []byte("bytes of "+name))
	assert.NilError(t, f.photos.Upsert(row.URI(), "tag-"+name, true))
	return row
}

// find returns the row at path, failing the test if there is none.
func (f *scopedFixture) find(t *testing.T, path string) media.Row {
	t.Helper()
	rows, err := f.index.Query(media.Selection{})
	assert.NilError(t, err)
	for _, r := range rows {
		if r.Path() == path {
			return r
		}
	}
	t.Fatalf("no row at %s; have %v", path, f.index.Paths())
	return media.Row{}
}

func TestMoveFolder_NestsUnderDestination(t *testing.T) {
	f := newScoped(t)
	a := f.add(t, "Trip/", "a.jpg")
	f.add(t, "Trip/sub/", "b.jpg")
	assert.NilError(t, f.folders.Add("Trip"))

	res, err := f.engine.MoveFolder("Trip", "Work")
	assert.NilError(t, err)
	assert.Equal(t, res.Relocated, 2)
	assert.Check(t, res.OK())

	assert.DeepEqual(t, f.index.Paths(), []string{
		"Pictures/GalleryOrganizer/Work/Trip/a.jpg",
		"Pictures/GalleryOrganizer/Work/Trip/sub/b.jpg",
	})

	moved := f.find(t, "Pictures/GalleryOrganizer/Work/Trip/a.jpg")
	content, _ := f.index.Content(moved.ID)
	assert.Equal(t, string(content), "bytes of a.jpg")

	assert.Check(t, !f.photos.Exists(a.URI()))
	p, ok := f.photos.Get(moved.URI())
	assert.Assert(t, ok)
	assert.Equal(t, p.Tags, "tag-a.jpg")
	assert.Check(t, p.Favorite)

	assert.Check(t, !f.folders.Contains("Trip"))
	assert.Check(t, f.folders.Contains("Work"))
}

func TestCopyFolder_DropsTagsAndFavorite(t *testing.T) {
	f := newScoped(t)
	a := f.add(t, "Trip/", "a.jpg")

	res, err := f.engine.CopyFolder("Trip", "Work")
	assert.NilError(t, err)
	assert.Equal(t, res.Relocated, 1)
	assert.Equal(t, f.index.Len(), 2)

	orig, ok := f.photos.Get(a.URI())
	assert.Assert(t, ok)
	assert.Equal(t, orig.Tags, "tag-a.jpg")

	cp := f.find(t, "Pictures/GalleryOrganizer/Work/Trip/a.jpg")
	rec, ok := f.photos.Get(cp.URI())
	assert.Assert(t, ok)
	assert.Equal(t, rec.Tags, "")
	assert.Check(t, !rec.Favorite)
	assert.Equal(t, rec.Date, "2025-06-01")
}

func TestRelocate_SameFolderRejected(t *testing.T) {
	f := newScoped(t)
	f.add(t, "Trip/", "a.jpg")
	before := f.index.Paths()

	for name, op := range map[string]func(string, string) (relocate.Result, error){
		"copy folder": f.engine.CopyFolder,
		"move folder": f.engine.MoveFolder,
		"copy photos": f.engine.CopyPhotos,
		"move photos": f.engine.MovePhotos,
	} {
		t.Run(name, func(t *testing.T) {
			res, err := op("Trip", "Trip")
			assert.ErrorIs(t, err, relocate.ErrSameFolder)
			assert.Equal(t, res.Relocated, 0)
			assert.DeepEqual(t, f.index.Paths(), before)
		})
	}
}

func TestMovePhotos_RowFailureIsIsolated(t *testing.T) {
	f := newScoped(t)
	a := f.add(t, "Trip/", "a.jpg")
	b := f.add(t, "Trip/", "b.jpg")
	c := f.add(t, "Trip/", "c.jpg")
	f.index.FailInsert = func(nr media.NewRow) error {
		if nr.DisplayName == "b.jpg" {
			return mediatest.ErrInjected
		}
		return nil
	}

	res, err := f.engine.MovePhotos("Trip", "Work")
	assert.NilError(t, err)

	assert.Equal(t, res.Relocated, 2)
	assert.Assert(t, is.Len(res.Failures, 1))
	assert.Equal(t, res.Failures[0].Identifier, b.URI())
	assert.ErrorIs(t, res.Failures[0].Reason, mediatest.ErrInjected)
	assert.ErrorIs(t, res.Err(), mediatest.ErrInjected)

	assert.DeepEqual(t, f.index.Paths(), []string{
		"Pictures/GalleryOrganizer/Trip/b.jpg",
		"Pictures/GalleryOrganizer/Work/a.jpg",
		"Pictures/GalleryOrganizer/Work/c.jpg",
	})
	assert.Check(t, f.photos.Exists(b.URI()))
	for _, moved := range []media.Row{a, c} {
		assert.Check(t, !f.photos.Exists(moved.URI()))
	}
	assert.Check(t, f.photos.Exists(f.find(t, "Pictures/GalleryOrganizer/Work/c.jpg").URI()))
}

func TestCopyPhotos_WriteFailureRemovesPartialRow(t *testing.T) {
	f := newScoped(t)
	f.add(t, "Trip/", "a.jpg")
	f.index.FailWrite = func(string) error { return mediatest.ErrInjected }

	res, err := f.engine.CopyPhotos("Trip", "Work")
	assert.NilError(t, err)

	assert.Equal(t, res.Relocated, 0)
	assert.Check(t, is.Len(res.Failures, 1))
	assert.Equal(t, f.index.Len(), 1)
}

func TestMovePhotos_SourceDeleteFailureKeepsSource(t *testing.T) {
	f := newScoped(t)
	a := f.add(t, "Trip/", "a.jpg")
	f.index.FailDelete = func(id string) error {
		if id == a.ID {
			return mediatest.ErrInjected
		}
		return nil
	}

	res, err := f.engine.MovePhotos("Trip", "Work")
	assert.NilError(t, err)

	assert.Equal(t, res.Relocated, 0)
	assert.DeepEqual(t, f.index.Paths(), []string{"Pictures/GalleryOrganizer/Trip/a.jpg"})
	assert.Check(t, f.photos.Exists(a.URI()))
}

func TestMovePhotos_TopLevelOnly(t *testing.T) {
	f := newScoped(t)
	f.add(t, "Trip/", "a.jpg")
	f.add(t, "Trip/sub/", "b.jpg")

	res, err := f.engine.MovePhotos("Trip", "Work")
	assert.NilError(t, err)
	assert.Equal(t, res.Relocated, 1)

	assert.DeepEqual(t, f.index.Paths(), []string{
		"Pictures/GalleryOrganizer/Trip/sub/b.jpg",
		"Pictures/GalleryOrganizer/Work/a.jpg",
	})
}

func TestMoveFolder_PartialFailureKeepsRegistration(t *testing.T) {
	f := newScoped(t)
	f.add(t, "Trip/", "a.jpg")
	assert.NilError(t, f.folders.Add("Trip"))
	f.index.FailRead = func(string) error { return mediatest.ErrInjected }

	res, err := f.engine.MoveFolder("Trip", "Work")
	assert.NilError(t, err)
	assert.Check(t, !res.OK())
	assert.Check(t, f.folders.Contains("Trip"))
}

func TestRelocate_UnknownFolder(t *testing.T) {
	f := newScoped(t)

	_, err := f.engine.CopyFolder("Nope", "Work")
	assert.ErrorIs(t, err, relocate.ErrFolderNotFound)
}

func TestRelocate_EmptyRegisteredFolder(t *testing.T) {
	f := newScoped(t)
	assert.NilError(t, f.folders.Add("Empty"))

	res, err := f.engine.MoveFolder("Empty", "Work")
	assert.NilError(t, err)
	assert.Equal(t, res.Relocated, 0)
	assert.Check(t, !f.folders.Contains("Empty"))
}

func TestRelocate_DeniedListingRejectsBatch(t *testing.T) {
	f := newScoped(t)
	f.add(t, "Trip/", "a.jpg")
	assert.NilError(t, f.folders.Add("Trip"))
	f.index.FailQuery = func(media.Selection) error { return media.ErrPermissionDenied }

	_, err := f.engine.MoveFolder("Trip", "Work")
	assert.ErrorIs(t, err, media.ErrPermissionDenied)
	assert.Check(t, f.folders.Contains("Trip"))
}

func TestDeleteFolder_InvalidSource(t *testing.T) {
	f := newScoped(t)
	f.add(t, "Trip/", "a.jpg")
	f.add(t, "", "root.jpg")

	for _, name := range []string{"", "..", "Trip/sub"} {
		_, err := f.engine.DeleteFolder(name)
		assert.ErrorIs(t, err, validation.ErrInvalidFolderName, name)
	}
	assert.Equal(t, f.index.Len(), 2)
}

func TestRelocate_InvalidDestination(t *testing.T) {
	f := newScoped(t)
	f.add(t, "Trip/", "a.jpg")

	_, err := f.engine.CopyPhotos("Trip", "a/b")
	assert.ErrorIs(t, err, validation.ErrInvalidFolderName)
	assert.Equal(t, f.index.Len(), 1)
}

func TestMoveTo_Selected(t *testing.T) {
	f := newScoped(t)
	a := f.add(t, "Trip/", "a.jpg")
	w := f.add(t, "Work/", "w.jpg")

	res, err := f.engine.MoveTo([]string{a.URI(), w.URI(), "/not/a/uri.jpg"}, "Work")
	assert.NilError(t, err)

	assert.Equal(t, res.Relocated, 1)
	assert.Assert(t, is.Len(res.Failures, 2))
	assert.Equal(t, res.Failures[0].Identifier, w.URI())
	assert.ErrorIs(t, res.Failures[0].Reason, relocate.ErrSameFolder)
	assert.ErrorIs(t, res.Failures[1].Reason, media.ErrNotFound)

	moved := f.find(t, "Pictures/GalleryOrganizer/Work/a.jpg")
	p, ok := f.photos.Get(moved.URI())
	assert.Assert(t, ok)
	assert.Check(t, p.Favorite)
}

func TestCopyTo_Selected(t *testing.T) {
	f := newScoped(t)
	a := f.add(t, "Trip/", "a.jpg")

	res, err := f.engine.CopyTo([]string{a.URI()}, "New")
	assert.NilError(t, err)
	assert.Equal(t, res.Relocated, 1)
	assert.Equal(t, f.index.Len(), 2)
	assert.Check(t, f.folders.Contains("New"))
}

func TestRenameFolder(t *testing.T) {
	f := newScoped(t)
	a := f.add(t, "Trip/", "a.jpg")
	f.add(t, "Trip/sub/", "b.jpg")
	assert.NilError(t, f.folders.Add("Trip"))

	name, res, err := f.engine.RenameFolder("Trip", " Holiday ")
	assert.NilError(t, err)
	assert.Equal(t, name, "Holiday")
	assert.Equal(t, res.Relocated, 2)

	assert.DeepEqual(t, f.index.Paths(), []string{
		"Pictures/GalleryOrganizer/Holiday/a.jpg",
		"Pictures/GalleryOrganizer/Holiday/sub/b.jpg",
	})
	assert.Check(t, !f.photos.Exists(a.URI()))
	assert.Check(t, !f.folders.Contains("Trip"))
	assert.Check(t, f.folders.Contains("Holiday"))
}

func TestRenameFolder_Rejections(t *testing.T) {
	f := newScoped(t)
	assert.NilError(t, f.folders.Add("Trip"))

	_, _, err := f.engine.RenameFolder("Trip", "Trip")
	assert.ErrorIs(t, err, relocate.ErrSameFolder)

	_, _, err = f.engine.RenameFolder("Trip", "")
	assert.ErrorIs(t, err, validation.ErrInvalidFolderName)
}

func TestCreateFolder(t *testing.T) {
	f := newScoped(t)

	name, err := f.engine.CreateFolder("  Trip ")
	assert.NilError(t, err)
	assert.Equal(t, name, "Trip")
	assert.Check(t, f.folders.Contains("Trip"))

	_, err = f.engine.CreateFolder("..")
	assert.ErrorIs(t, err, validation.ErrInvalidFolderName)
}

func TestDeleteFolder(t *testing.T) {
	f := newScoped(t)
	a := f.add(t, "Trip/", "a.jpg")
	b := f.add(t, "Trip/sub/", "b.jpg")
	f.add(t, "Work/", "w.jpg")
	assert.NilError(t, f.folders.Add("Trip"))

	res, err := f.engine.DeleteFolder("Trip")
	assert.NilError(t, err)
	assert.Equal(t, res.Relocated, 2)

	assert.DeepEqual(t, f.index.Paths(), []string{"Pictures/GalleryOrganizer/Work/w.jpg"})
	assert.Check(t, !f.photos.Exists(a.URI()))
	assert.Check(t, !f.photos.Exists(b.URI()))
	assert.Check(t, !f.folders.Contains("Trip"))
}

func TestDeletePhotos(t *testing.T) {
	f := newScoped(t)
	a := f.add(t, "Trip/", "a.jpg")

	res := f.engine.DeletePhotos([]string{a.URI(), media.URIPrefix + "999"})

	assert.Equal(t, res.Relocated, 1)
	assert.Check(t, is.Len(res.Failures, 1))
	assert.Equal(t, f.index.Len(), 0)
	assert.Check(t, !f.photos.Exists(a.URI()))
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	assert.NilError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))))
	assert.NilError(t, os.MkdirAll(filepath.Dir(path), 0755))
	assert.NilError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestCapture(t *testing.T) {
	f := newScoped(t)
	tmp := filepath.Join(t.TempDir(), "capture.tmp")
	writePNG(t, tmp)

	id, err := f.engine.Capture("Trip", tmp)
	assert.NilError(t, err)

	rowID, ok := media.ParseURI(id)
	assert.Assert(t, ok)
	row, err := f.index.Get(rowID)
	assert.NilError(t, err)
	assert.Equal(t, row.Path(), "Pictures/GalleryOrganizer/Trip/IMG_20250601_123045.jpg")
	assert.Equal(t, row.MimeType, "image/png")
	assert.Check(t, row.Size > 0)

	_, err = os.Stat(tmp)
	assert.Check(t, os.IsNotExist(err), "capture file is removed")
	assert.Check(t, f.photos.Exists(id))
	assert.Check(t, f.folders.Contains("Trip"))
}

func TestImport(t *testing.T) {
	f := newScoped(t)
	src := filepath.Join(t.TempDir(), "holiday.png")
	writePNG(t, src)

	id, err := f.engine.Import("Trip", src)
	assert.NilError(t, err)
	assert.Check(t, strings.HasPrefix(id, media.URIPrefix))

	_, err = os.Stat(src)
	assert.NilError(t, err, "import keeps the source")
	f.find(t, "Pictures/GalleryOrganizer/Trip/holiday.png")
}

func TestImport_NotImage(t *testing.T) {
	f := newScoped(t)
	src := filepath.Join(t.TempDir(), "notes.txt")
	assert.NilError(t, os.WriteFile(src, []byte("hello"), 0644))

	_, err := f.engine.Import("Trip", src)
	assert.ErrorIs(t, err, relocate.ErrNotImage)
	assert.Equal(t, f.index.Len(), 0)
}

func TestCaptureName(t *testing.T) {
	assert.Equal(t, relocate.CaptureName(fixedNow), "IMG_20250601_123045.jpg")
}
