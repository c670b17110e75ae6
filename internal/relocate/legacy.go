package relocate

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nikbrunner/gorg/internal/model"
)

// Name suffixes used when the destination already holds a file of that name.
const (
	copySuffix  = "_copy_"
	movedSuffix = "_moved_"
)

// folderDir returns the directory of folder name. It must be a directory
// strictly below the legacy root.
func (e *Engine) folderDir(name string) (string, error) {
	dir := filepath.Join(e.legacyRoot, name)
	rel, err := filepath.Rel(e.legacyRoot, dir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrOutsideLibrary, name)
	}
	return dir, nil
}

// legacyFiles returns the directory of folder name and the photos in it.
func (e *Engine) legacyFiles(name string, topLevelOnly bool) (string, []string, error) {
	dir, err := e.folderDir(name)
	if err != nil {
		return "", nil, err
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", nil, fmt.Errorf("%w: %q", ErrFolderNotFound, name)
	}

	var files []string
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				e.log.Warn("directory listing denied", "dir", p, "error", err)
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
		return "", nil, fmt.Errorf("list %s: %w", name, err)
	}
	return dir, files, nil
}

func (e *Engine) legacyRelocateFolder(src, destParent string, move bool) (Result, error) {
	srcDir, files, err := e.legacyFiles(src, false)
	if err != nil {
		return Result{}, err
	}

	parentDir, err := e.folderDir(destParent)
	if err != nil {
		return Result{}, err
	}
	base := filepath.Join(parentDir, src)
	var res Result
	for _, f := range files {
		rel, err := filepath.Rel(srcDir, f)
		if err != nil {
			res.fail(e.log, f, err)
			continue
		}
		e.relocateFile(&res, f, filepath.Join(base, filepath.Dir(rel)), move)
	}

	if move && res.OK() {
		pruneEmptyDirs(srcDir)
	}
	return res, nil
}

func (e *Engine) legacyRelocatePhotos(src, dest string, move bool) (Result, error) {
	_, files, err := e.legacyFiles(src, true)
	if err != nil {
		return Result{}, err
	}

	destDir, err := e.folderDir(dest)
	if err != nil {
		return Result{}, err
	}
	var res Result
	for _, f := range files {
		e.relocateFile(&res, f, destDir, move)
	}
	return res, nil
}

func (e *Engine) legacyRelocateSelected(res *Result, id, dest string, move bool) {
	info, err := os.Stat(id)
	if err != nil {
		res.fail(e.log, id, err)
		return
	}
	if info.IsDir() {
		res.fail(e.log, id, fmt.Errorf("%w: is a directory", ErrNotImage))
		return
	}

	destDir, err := e.folderDir(dest)
	if err != nil {
		res.fail(e.log, id, err)
		return
	}
	if filepath.Dir(id) == destDir {
		res.fail(e.log, id, ErrSameFolder)
		return
	}
	e.relocateFile(res, id, destDir, move)
}

func (e *Engine) legacyRenameFolder(oldName, newName string) (Result, error) {
	oldDir, files, err := e.legacyFiles(oldName, false)
	if err != nil {
		return Result{}, err
	}
	newDir, err := e.folderDir(newName)
	if err != nil {
		return Result{}, err
	}
	if _, err := os.Stat(newDir); err == nil {
		return Result{}, fmt.Errorf("rename %s: %q already exists", oldName, newName)
	}

	if err := os.Rename(oldDir, newDir); err != nil {
		return Result{}, fmt.Errorf("rename %s: %w", oldName, err)
	}
	if e.photos != nil {
		sep := string(filepath.Separator)
		if err := e.photos.RenamePrefix(oldDir+sep, newDir+sep); err != nil {
			e.log.Error("records not renamed", "from", oldDir, "to", newDir, "error", err)
		}
	}
	return Result{Relocated: len(files)}, nil
}

func (e *Engine) legacyDeleteFolder(name string) (Result, error) {
	dir, files, err := e.legacyFiles(name, false)
	if err != nil {
		return Result{}, err
	}

	if err := os.RemoveAll(dir); err != nil {
		return Result{}, fmt.Errorf("delete %s: %w", name, err)
	}
	if e.photos != nil {
		if err := e.photos.RemovePrefix(dir + string(filepath.Separator)); err != nil {
			e.log.Error("records not removed", "dir", dir, "error", err)
		}
	}
	return Result{Relocated: len(files)}, nil
}

func (e *Engine) legacyDelete(id string) error {
	return os.Remove(id)
}

func (e *Engine) legacyMkdir(name string) error {
	dir, err := e.folderDir(name)
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// relocateFile copies or moves the file src into destDir.
func (e *Engine) relocateFile(res *Result, src, destDir string, move bool) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		res.fail(e.log, src, err)
		return
	}

	suffix := copySuffix
	if move {
		suffix = movedSuffix
	}
	dst := e.uniquePath(destDir, filepath.Base(src), suffix)

	if move {
		if err := moveFile(src, dst); err != nil {
			res.fail(e.log, src, err)
			return
		}
		e.recordMove(src, dst)
	} else {
		if err := copyFile(src, dst); err != nil {
			res.fail(e.log, src, err)
			return
		}
		e.recordCopy(dst)
	}
	res.Relocated++
}

// uniquePath returns dir/name, or the first free
// dir/<stem><suffix><millis>[_<n>]<ext> when dir/name is taken.
func (e *Engine) uniquePath(dir, name, suffix string) string {
	p := filepath.Join(dir, name)
	if !taken(p) {
		return p
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stamp := fmt.Sprintf("%s%s%d", stem, suffix, e.now().UnixMilli())
	p = filepath.Join(dir, stamp+ext)
	for n := 1; taken(p); n++ {
		p = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stamp, n, ext))
	}
	return p
}

func taken(p string) bool {
	_, err := os.Lstat(p)
	return !errors.Is(err, fs.ErrNotExist)
}

// moveFile moves src to the new file dst, copying across devices.
// An existing dst is never replaced.
func moveFile(src, dst string) error {
	err := os.Link(src, dst)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("move: %w", err)
	}
	if err != nil {
		if err := copyFile(src, dst); err != nil {
			return err
		}
	}
	if err := os.Remove(src); err != nil {
		os.Remove(dst)
		return fmt.Errorf("delete source: %w", err)
	}
	return nil
}

// copyFile copies src to the new file dst. A partial dst is removed.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	if _, err := io.CopyBuffer(out, in, make([]byte, copyBufferSize)); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}

// pruneEmptyDirs removes dir and its subdirectories that are empty,
// deepest first.
func pruneEmptyDirs(dir string) {
	var dirs []string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			dirs = append(dirs, p)
		}
		return nil
	})
	slices.Reverse(dirs)
	for _, d := range dirs {
		_ = os.Remove(d)
	}
}
