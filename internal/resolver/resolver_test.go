package resolver_test

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/nikbrunner/gorg/internal/media"
	"github.com/nikbrunner/gorg/internal/media/mediatest"
	"github.com/nikbrunner/gorg/internal/model"
	"github.com/nikbrunner/gorg/internal/resolver"
	"github.com/nikbrunner/gorg/internal/storage"
	"github.com/nikbrunner/gorg/internal/store"
)

type fixture struct {
	index   *mediatest.Index
	photos  *store.Photos
	folders *store.Folders
	res     *resolver.Resolver
}

func newScoped(t *testing.T) *fixture {
	t.Helper()
	s := storage.NewMemoryStorage()
	f := &fixture{
		index:   mediatest.New(),
		photos:  store.NewPhotos(s, store.Options{}),
		folders: store.NewFolders(s, store.Options{}),
	}
	f.res = resolver.New(resolver.Options{Index: f.index, Photos: f.photos, Folders: f.folders})
	return f
}

func counts(folders []model.Folder) map[string]int {
	m := map[string]int{}
	for _, f := range folders {
		m[f.Name] = f.PhotoCount
	}
	return m
}

func TestFolders_NestedCounting(t *testing.T) {
	f := newScoped(t)
	f.index.Add("Pictures/GalleryOrganizer/Trip/", "a.jpg", nil)
	f.index.Add("Pictures/GalleryOrganizer/Trip/sub/", "b.jpg", nil)

	all, err := f.res.Folders(resolver.ListOptions{})
	assert.NilError(t, err)
	assert.DeepEqual(t, counts(all), map[string]int{"Trip": 2})

	top, err := f.res.Folders(resolver.ListOptions{TopLevelOnly: true})
	assert.NilError(t, err)
	assert.DeepEqual(t, counts(top), map[string]int{"Trip": 1})
}

func TestFolders_RegistrySeedsEmptyFolders(t *testing.T) {
	f := newScoped(t)
	assert.NilError(t, f.folders.Add("Empty"))
	f.index.Add("Pictures/GalleryOrganizer/Trip/", "a.jpg", nil)

	folders, err := f.res.Folders(resolver.ListOptions{})
	assert.NilError(t, err)

	assert.Assert(t, is.Len(folders, 2))
	assert.Equal(t, folders[0].Name, "Empty")
	assert.Check(t, folders[0].IsEmpty())
	assert.Equal(t, folders[0].RelativePath, "Pictures/GalleryOrganizer/Empty/")
	assert.Equal(t, folders[1].PhotoCount, 1)
}

func TestFolders_SkipsRowsOutsideFolders(t *testing.T) {
	f := newScoped(t)
	f.index.Add("Pictures/GalleryOrganizer/", "stray.jpg", nil)
	f.index.Add("Pictures/Screenshots/", "s.png", nil)
	f.index.Add("Pictures/GalleryOrganizer/Trip/", "a.jpg", nil)

	folders, err := f.res.Folders(resolver.ListOptions{})
	assert.NilError(t, err)
	assert.DeepEqual(t, counts(folders), map[string]int{"Trip": 1})
}

func TestFolders_PermissionDeniedIsEmpty(t *testing.T) {
	f := newScoped(t)
	f.index.Add("Pictures/GalleryOrganizer/Trip/", "a.jpg", nil)
	f.index.FailQuery = func(media.Selection) error { return media.ErrPermissionDenied }

	folders, err := f.res.Folders(resolver.ListOptions{})
	assert.NilError(t, err)
	assert.Check(t, is.Len(folders, 0))
}

func TestFolders_QueryFailureIsReported(t *testing.T) {
	f := newScoped(t)
	f.index.FailQuery = func(media.Selection) error { return mediatest.ErrInjected }

	_, err := f.res.Folders(resolver.ListOptions{})
	assert.ErrorIs(t, err, mediatest.ErrInjected)
}

func TestPhotos_MergesMetadata(t *testing.T) {
	f := newScoped(t)
	a := f.index.Add("Pictures/GalleryOrganizer/Trip/", "a.jpg", nil)
	f.index.Add("Pictures/GalleryOrganizer/Trip/sub/", "b.jpg", nil)
	f.index.Add("Pictures/GalleryOrganizer/Work/", "c.jpg", nil)
	assert.NilError(t, f.photos.Upsert(a.URI(), "beach", true))

	photos, err := f.res.Photos("Trip", resolver.ListOptions{})
	assert.NilError(t, err)
	assert.Assert(t, is.Len(photos, 2))
	assert.Equal(t, photos[0].ID, a.URI())
	assert.Equal(t, photos[0].Tags, "beach")
	assert.Check(t, photos[0].Favorite)
	assert.Equal(t, photos[0].Folder, "Trip")
	assert.Equal(t, photos[1].Tags, "")
	assert.Equal(t, photos[1].Date, photos[1].Created().Format(model.DateLayout))

	top, err := f.res.Photos("Trip", resolver.ListOptions{TopLevelOnly: true})
	assert.NilError(t, err)
	assert.Check(t, is.Len(top, 1))
}

func TestLibrary(t *testing.T) {
	f := newScoped(t)
	f.index.Add("Pictures/GalleryOrganizer/Trip/", "a.jpg", nil)
	f.index.Add("Pictures/GalleryOrganizer/", "stray.jpg", nil)
	f.index.Add("Pictures/GalleryOrganizer/Work/", "c.jpg", nil)

	lib, err := f.res.Library()
	assert.NilError(t, err)
	assert.Check(t, is.Len(lib.Folders, 2))
	assert.Check(t, is.Len(lib.Photos, 2))
	assert.Check(t, is.Len(lib.GetPhotosInFolder("Work"), 1))
}

func TestFolderOf(t *testing.T) {
	f := newScoped(t)
	a := f.index.Add("Pictures/GalleryOrganizer/Trip/sub/", "a.jpg", nil)

	name, ok := f.res.FolderOf(a.URI())
	assert.Check(t, ok)
	assert.Equal(t, name, "Trip")

	_, ok = f.res.FolderOf(media.URIPrefix + "999")
	assert.Check(t, !ok)
}

func TestFolderOfRelativePath(t *testing.T) {
	tests := []struct {
		rel    string
		want   string
		wantOK bool
	}{
		{"Pictures/GalleryOrganizer/Trip/", "Trip", true},
		{"Pictures/GalleryOrganizer/Trip/sub/", "Trip", true},
		{"Pictures/GalleryOrganizer/", "", false},
		{"Pictures/GalleryOrganizer/Trip", "", false},
		{"DCIM/Camera/", "", false},
	}

	for _, tt := range tests {
		got, ok := resolver.FolderOfRelativePath(tt.rel)
		assert.Check(t, is.Equal(ok, tt.wantOK), tt.rel)
		assert.Check(t, is.Equal(got, tt.want), tt.rel)
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	assert.NilError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestDetails_Scoped(t *testing.T) {
	f := newScoped(t)
	content := pngBytes(t, 40, 30)
	row := f.index.Add("Pictures/GalleryOrganizer/Trip/", "a.png", content)
	assert.NilError(t, f.photos.Upsert(row.URI(), "x,y", true))

	d, err := f.res.Details(row.URI())
	assert.NilError(t, err)

	assert.Equal(t, d.Name, "a.png")
	assert.Equal(t, d.Folder, "Trip")
	assert.Equal(t, d.Size, int64(len(content)))
	assert.Equal(t, d.Resolution(), "40x30")
	assert.Check(t, d.DateTaken.Equal(row.DateAdded), "no EXIF falls back to date added")
	assert.Equal(t, d.Tags, "x,y")
	assert.Check(t, d.Favorite)
	assert.Check(t, d.SizeString() != "")
}

func TestDetails_Undecodable(t *testing.T) {
	f := newScoped(t)
	row := f.index.Add("Pictures/GalleryOrganizer/Trip/", "a.jpg", []byte("not an image"))

	d, err := f.res.Details(row.URI())
	assert.NilError(t, err)
	assert.Equal(t, d.Resolution(), "")
}

func TestDetails_Missing(t *testing.T) {
	f := newScoped(t)

	_, err := f.res.Details(media.URIPrefix + "404")
	assert.ErrorIs(t, err, media.ErrNotFound)
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	assert.NilError(t, os.MkdirAll(filepath.Dir(path), 0755))
	assert.NilError(t, os.WriteFile(path, data, 0644))
}

func TestLegacy(t *testing.T) {
	root := filepath.Join(t.TempDir(), "GalleryOrganizer")
	writeFile(t, filepath.Join(root, "Trip", "a.JPG"), pngBytes(t, 2, 1))
	writeFile(t, filepath.Join(root, "Trip", "notes.txt"), []byte("x"))
	writeFile(t, filepath.Join(root, "Trip", "sub", "b.webp"), []byte("x"))
	writeFile(t, filepath.Join(root, "loose.jpg"), []byte("x"))
	assert.NilError(t, os.MkdirAll(filepath.Join(root, "Empty"), 0755))

	s := storage.NewMemoryStorage()
	photos := store.NewPhotos(s, store.Options{})
	res := resolver.New(resolver.Options{LegacyRoot: root, Photos: photos})
	assert.Check(t, res.Legacy())

	all, err := res.Folders(resolver.ListOptions{})
	assert.NilError(t, err)
	assert.DeepEqual(t, counts(all), map[string]int{"Empty": 0, "Trip": 2})

	top, err := res.Folders(resolver.ListOptions{TopLevelOnly: true})
	assert.NilError(t, err)
	assert.DeepEqual(t, counts(top), map[string]int{"Empty": 0, "Trip": 1})

	a := filepath.Join(root, "Trip", "a.JPG")
	assert.NilError(t, photos.SetTags(a, "old"))
	list, err := res.Photos("Trip", resolver.ListOptions{TopLevelOnly: true})
	assert.NilError(t, err)
	assert.Assert(t, is.Len(list, 1))
	assert.Equal(t, list[0].Tags, "old")
	assert.Equal(t, list[0].Folder, "Trip")

	d, err := res.Details(a)
	assert.NilError(t, err)
	assert.Equal(t, d.Resolution(), "2x1")
	assert.Equal(t, d.Folder, "Trip")
}

func TestLegacy_MissingRoot(t *testing.T) {
	res := resolver.New(resolver.Options{LegacyRoot: filepath.Join(t.TempDir(), "nope")})

	folders, err := res.Folders(resolver.ListOptions{})
	assert.NilError(t, err)
	assert.Check(t, is.Len(folders, 0))
}
