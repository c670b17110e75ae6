// Package resolver derives folder and photo listings from where photos
// actually live: the media index in scoped mode, a directory tree in legacy
// mode. Nothing is cached; every call re-scans.
package resolver

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/nikbrunner/gorg/internal/media"
	"github.com/nikbrunner/gorg/internal/model"
	"github.com/nikbrunner/gorg/internal/storage"
	"github.com/nikbrunner/gorg/internal/store"
)

// Options configures a Resolver.
type Options struct {
	Index      media.Index // scoped mode
	LegacyRoot string      // legacy mode; when set the index is not used
	Photos     *store.Photos
	Folders    *store.Folders
	Logger     *slog.Logger
}

// ListOptions narrows a listing.
type ListOptions struct {
	// TopLevelOnly counts only photos directly inside a folder,
	// not those in nested directories.
	TopLevelOnly bool
}

// Resolver lists folders and photos.
type Resolver struct {
	index      media.Index
	legacyRoot string
	photos     *store.Photos
	folders    *store.Folders
	log        *slog.Logger
}

// New creates a Resolver.
func New(opts Options) *Resolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		index:      opts.Index,
		legacyRoot: opts.LegacyRoot,
		photos:     opts.Photos,
		folders:    opts.Folders,
		log:        logger,
	}
}

// Legacy reports whether the resolver walks a directory tree.
func (r *Resolver) Legacy() bool {
	return r.legacyRoot != ""
}

// FolderRelativePath is the media index relative path of folder name.
func FolderRelativePath(name string) string {
	return storage.AppRelativeRoot + name + "/"
}

// FolderOfRelativePath returns the folder a relative path belongs to.
// Paths outside the application root, or directly at it, belong to none.
func FolderOfRelativePath(rel string) (string, bool) {
	rest, ok := strings.CutPrefix(rel, storage.AppRelativeRoot)
	if !ok {
		return "", false
	}
	name, _, found := strings.Cut(rest, "/")
	if !found || name == "" {
		return "", false
	}
	return name, true
}

// Folders lists every folder with its photo count, sorted by name.
func (r *Resolver) Folders(opts ListOptions) ([]model.Folder, error) {
	if r.Legacy() {
		return r.legacyFolders(opts)
	}

	counts := map[string]int{}
	if r.folders != nil {
		names, err := r.folders.Names()
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			counts[n] = 0
		}
	}

	rows, err := r.queryRows(media.Selection{RelativePathPrefix: storage.AppRelativeRoot})
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		name, ok := FolderOfRelativePath(row.RelativePath)
		if !ok {
			continue
		}
		if opts.TopLevelOnly && row.RelativePath != FolderRelativePath(name) {
			// nested photos still make the folder visible
			if _, seen := counts[name]; !seen {
				counts[name] = 0
			}
			continue
		}
		counts[name]++
	}

	folders := make([]model.Folder, 0, len(counts))
	for name, n := range counts {
		folders = append(folders, model.NewFolder(model.NewFolderParams{
			Name:         name,
			RelativePath: FolderRelativePath(name),
			PhotoCount:   n,
		}))
	}
	sortFolders(folders)
	return folders, nil
}

func (r *Resolver) legacyFolders(opts ListOptions) ([]model.Folder, error) {
	entries, err := os.ReadDir(r.legacyRoot)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.Folder{}, nil
		}
		if errors.Is(err, fs.ErrPermission) {
			r.log.Warn("folder listing denied", "root", r.legacyRoot, "error", err)
			return []model.Folder{}, nil
		}
		return nil, fmt.Errorf("list folders: %w", err)
	}

	folders := []model.Folder{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(r.legacyRoot, e.Name())
		files, err := r.legacyFiles(dir, opts.TopLevelOnly)
		if err != nil {
			return nil, err
		}
		folders = append(folders, model.NewFolder(model.NewFolderParams{
			Name:       e.Name(),
			Dir:        dir,
			PhotoCount: len(files),
		}))
	}
	sortFolders(folders)
	return folders, nil
}

// FolderNames returns the names from Folders.
func (r *Resolver) FolderNames() ([]string, error) {
	folders, err := r.Folders(ListOptions{})
	if err != nil {
		return nil, err
	}
	names := make([]string, len(folders))
	for i, f := range folders {
		names[i] = f.Name
	}
	return names, nil
}

// Photos lists the photos of folder merged with their metadata records.
// Photos without a record get defaults from the file itself.
func (r *Resolver) Photos(folder string, opts ListOptions) ([]model.Photo, error) {
	if r.Legacy() {
		files, err := r.legacyFiles(filepath.Join(r.legacyRoot, folder), opts.TopLevelOnly)
		if err != nil {
			return nil, err
		}
		return r.mergeFiles(files), nil
	}

	sel := media.Selection{RelativePathPrefix: FolderRelativePath(folder)}
	if opts.TopLevelOnly {
		sel = media.Selection{RelativePath: FolderRelativePath(folder)}
	}
	rows, err := r.queryRows(sel)
	if err != nil {
		return nil, err
	}
	return r.mergeRows(rows), nil
}

// Library returns every folder and every photo that belongs to one.
func (r *Resolver) Library() (*model.Library, error) {
	lib := model.NewLibrary()

	folders, err := r.Folders(ListOptions{})
	if err != nil {
		return nil, err
	}
	lib.Folders = folders

	if r.Legacy() {
		for _, f := range folders {
			files, err := r.legacyFiles(f.Dir, false)
			if err != nil {
				return nil, err
			}
			lib.Photos = append(lib.Photos, r.mergeFiles(files)...)
		}
		return lib, nil
	}

	rows, err := r.queryRows(media.Selection{RelativePathPrefix: storage.AppRelativeRoot})
	if err != nil {
		return nil, err
	}
	rows = slices.DeleteFunc(rows, func(row media.Row) bool {
		_, ok := FolderOfRelativePath(row.RelativePath)
		return !ok
	})
	lib.Photos = r.mergeRows(rows)
	return lib, nil
}

// FolderOf returns the folder the photo id lives in.
func (r *Resolver) FolderOf(id string) (string, bool) {
	if r.Legacy() {
		rel, err := filepath.Rel(r.legacyRoot, id)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", false
		}
		name, _, found := strings.Cut(filepath.ToSlash(rel), "/")
		return name, found && name != ""
	}

	rowID, ok := media.ParseURI(id)
	if !ok || r.index == nil {
		return "", false
	}
	row, err := r.index.Get(rowID)
	if err != nil {
		return "", false
	}
	return FolderOfRelativePath(row.RelativePath)
}

// Stat reports whether the photo id still exists. A content URI cannot be
// looked up without a media index.
func (r *Resolver) Stat(id string) error {
	if rowID, ok := media.ParseURI(id); ok {
		if r.index == nil {
			return fmt.Errorf("%s: no media index", id)
		}
		_, err := r.index.Get(rowID)
		return err
	}
	_, err := os.Stat(id)
	return err
}

// Open returns the content of the photo id.
func (r *Resolver) Open(id string) (io.ReadCloser, error) {
	if rowID, ok := media.ParseURI(id); ok && r.index != nil {
		return r.index.OpenReader(rowID)
	}
	return os.Open(id)
}

// queryRows queries the index. A permission denial is an empty result.
func (r *Resolver) queryRows(sel media.Selection) ([]media.Row, error) {
	if r.index == nil {
		return []media.Row{}, nil
	}
	rows, err := r.index.Query(sel)
	if errors.Is(err, media.ErrPermissionDenied) {
		r.log.Warn("media query denied", "error", err)
		return []media.Row{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query media: %w", err)
	}
	return rows, nil
}

// legacyFiles returns the photo files in dir, sorted.
func (r *Resolver) legacyFiles(dir string, topLevelOnly bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == dir {
				return fs.SkipAll
			}
			if errors.Is(err, fs.ErrPermission) {
				r.log.Warn("directory listing denied", "dir", p, "error", err)
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if topLevelOnly && p != dir {
				return fs.SkipDir
			}
			return nil
		}
		if model.IsImageFile(d.Name()) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	return files, nil
}

// records indexes every stored record by identifier.
func (r *Resolver) records() map[string]model.Photo {
	byID := map[string]model.Photo{}
	if r.photos == nil {
		return byID
	}
	for _, p := range r.photos.All() {
		if _, dup := byID[p.ID]; !dup {
			byID[p.ID] = p
		}
	}
	return byID
}

func (r *Resolver) mergeRows(rows []media.Row) []model.Photo {
	byID := r.records()
	photos := make([]model.Photo, 0, len(rows))
	for _, row := range rows {
		p, ok := byID[row.URI()]
		if !ok {
			p = model.NewPhoto(model.NewPhotoParams{ID: row.URI(), Now: row.DateAdded})
		}
		p.Folder, _ = FolderOfRelativePath(row.RelativePath)
		photos = append(photos, p)
	}
	return photos
}

func (r *Resolver) mergeFiles(files []string) []model.Photo {
	byID := r.records()
	photos := make([]model.Photo, 0, len(files))
	for _, f := range files {
		p, ok := byID[f]
		if !ok {
			modTime := time.Now()
			if info, err := os.Stat(f); err == nil {
				modTime = info.ModTime()
			}
			p = model.NewPhoto(model.NewPhotoParams{ID: f, Now: modTime})
		}
		p.Folder, _ = r.FolderOf(f)
		photos = append(photos, p)
	}
	return photos
}

func sortFolders(folders []model.Folder) {
	slices.SortFunc(folders, func(a, b model.Folder) int {
		return strings.Compare(a.Name, b.Name)
	})
}
