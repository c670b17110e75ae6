// Package relocate copies, moves, renames and deletes folders and photos,
// keeping the media index (or the legacy directory tree), the metadata
// record store and the folder registry consistent with each other.
//
// Batches run row by row on the caller's goroutine. A failing row is
// recorded in the Result and the batch continues; rows already relocated
// stay relocated.
package relocate

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikbrunner/gorg/internal/media"
	"github.com/nikbrunner/gorg/internal/store"
	"github.com/nikbrunner/gorg/internal/validation"
)

const copyBufferSize = 8192

var (
	ErrSameFolder     = errors.New("source and destination folder are the same")
	ErrFolderNotFound = errors.New("folder not found")
	ErrNotImage       = errors.New("not an image")
	ErrOutsideLibrary = errors.New("folder outside the library")
)

// Failure is a row that could not be relocated.
type Failure struct {
	Identifier string
	Reason     error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Identifier, f.Reason)
}

func (f Failure) Unwrap() error {
	return f.Reason
}

// Result reports the outcome of a batch.
type Result struct {
	Relocated int
	Failures  []Failure
}

// OK reports whether every row succeeded.
func (r Result) OK() bool {
	return len(r.Failures) == 0
}

// Err joins the failures into one error, or returns nil.
func (r Result) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

func (r *Result) fail(log *slog.Logger, id string, err error) {
	log.Warn("row not relocated", "id", id, "error", err)
	r.Failures = append(r.Failures, Failure{Identifier: id, Reason: err})
}

// Options configures an Engine.
type Options struct {
	Index      media.Index // scoped mode
	LegacyRoot string      // legacy mode; when set the index is not used
	Photos     *store.Photos
	Folders    *store.Folders
	Validator  *validation.Validator // nil = validation.New()
	Logger     *slog.Logger
	Now        func() time.Time // nil = time.Now
}

// Engine performs relocations.
type Engine struct {
	index      media.Index
	legacyRoot string
	photos     *store.Photos
	folders    *store.Folders
	validator  *validation.Validator
	log        *slog.Logger
	now        func() time.Time
}

// New creates an Engine.
func New(opts Options) *Engine {
	e := &Engine{
		index:      opts.Index,
		legacyRoot: opts.LegacyRoot,
		photos:     opts.Photos,
		folders:    opts.Folders,
		validator:  opts.Validator,
		log:        opts.Logger,
		now:        opts.Now,
	}
	if e.validator == nil {
		e.validator = validation.New()
	}
	if e.log == nil {
		e.log = slog.New(slog.DiscardHandler)
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *Engine) legacy() bool {
	return e.legacyRoot != ""
}

// CopyFolder copies folder src, with everything nested in it, into
// destParent: "Trip/a.jpg" becomes "<destParent>/Trip/a.jpg".
// Copies carry no tags and are not favorites.
func (e *Engine) CopyFolder(src, destParent string) (Result, error) {
	return e.relocateFolder(src, destParent, false)
}

// MoveFolder moves folder src, with everything nested in it, into
// destParent. The source leaves the registry once every row has moved.
func (e *Engine) MoveFolder(src, destParent string) (Result, error) {
	return e.relocateFolder(src, destParent, true)
}

func (e *Engine) relocateFolder(src, destParent string, move bool) (Result, error) {
	dest, err := e.checkPair(src, destParent)
	if err != nil {
		return Result{}, err
	}

	var res Result
	if e.legacy() {
		res, err = e.legacyRelocateFolder(src, dest, move)
	} else {
		res, err = e.scopedRelocateFolder(src, dest, move)
	}
	if err != nil {
		return Result{}, err
	}
	e.register(dest)

	if move && res.OK() {
		e.unregister(src)
	}
	e.logBatch("folder", move, src, dest, res)
	return res, nil
}

// CopyPhotos copies the photos directly inside src into dest.
// Nested directories are left alone.
func (e *Engine) CopyPhotos(src, dest string) (Result, error) {
	return e.relocatePhotos(src, dest, false)
}

// MovePhotos moves the photos directly inside src into dest.
func (e *Engine) MovePhotos(src, dest string) (Result, error) {
	return e.relocatePhotos(src, dest, true)
}

func (e *Engine) relocatePhotos(src, dest string, move bool) (Result, error) {
	dest, err := e.checkPair(src, dest)
	if err != nil {
		return Result{}, err
	}

	var res Result
	if e.legacy() {
		res, err = e.legacyRelocatePhotos(src, dest, move)
	} else {
		res, err = e.scopedRelocatePhotos(src, dest, move)
	}
	if err != nil {
		return Result{}, err
	}
	e.register(dest)
	e.logBatch("photos", move, src, dest, res)
	return res, nil
}

// CopyTo copies the photos ids into folder dest.
func (e *Engine) CopyTo(ids []string, dest string) (Result, error) {
	return e.relocateSelected(ids, dest, false)
}

// MoveTo moves the photos ids into folder dest.
func (e *Engine) MoveTo(ids []string, dest string) (Result, error) {
	return e.relocateSelected(ids, dest, true)
}

func (e *Engine) relocateSelected(ids []string, dest string, move bool) (Result, error) {
	dest, err := e.validator.FolderName(dest)
	if err != nil {
		return Result{}, err
	}
	if err := e.prepareDest(dest); err != nil {
		return Result{}, err
	}

	var res Result
	for _, id := range ids {
		if e.legacy() {
			e.legacyRelocateSelected(&res, id, dest, move)
		} else {
			e.scopedRelocateSelected(&res, id, dest, move)
		}
	}
	e.logBatch("selection", move, "", dest, res)
	return res, nil
}

// RenameFolder renames folder oldName to newName and returns the validated
// new name. Photo identifiers under the folder are rewritten.
func (e *Engine) RenameFolder(oldName, newName string) (string, Result, error) {
	newName, err := e.checkPair(oldName, newName)
	if err != nil {
		return "", Result{}, err
	}

	var res Result
	if e.legacy() {
		res, err = e.legacyRenameFolder(oldName, newName)
	} else {
		res, err = e.scopedRenameFolder(oldName, newName)
	}
	if err != nil {
		return "", Result{}, err
	}

	if e.folders != nil {
		if err := e.folders.Rename(oldName, newName); err != nil {
			e.log.Error("folder registry not updated", "from", oldName, "to", newName, "error", err)
		}
	}
	e.log.Info("folder renamed", "from", oldName, "to", newName, "relocated", res.Relocated, "failed", len(res.Failures))
	return newName, res, nil
}

// CreateFolder validates name and creates an empty folder.
func (e *Engine) CreateFolder(name string) (string, error) {
	name, err := e.validator.FolderName(name)
	if err != nil {
		return "", err
	}
	if err := e.prepareDest(name); err != nil {
		return "", err
	}
	e.log.Info("folder created", "name", name)
	return name, nil
}

// DeleteFolder deletes every photo under folder name, nested ones included,
// with their records, then unregisters the folder.
func (e *Engine) DeleteFolder(name string) (Result, error) {
	if err := e.checkSource(name); err != nil {
		return Result{}, err
	}

	var res Result
	var err error
	if e.legacy() {
		res, err = e.legacyDeleteFolder(name)
	} else {
		res, err = e.scopedDeleteFolder(name)
	}
	if err != nil {
		return Result{}, err
	}
	if res.OK() {
		e.unregister(name)
	}
	e.log.Info("folder deleted", "name", name, "deleted", res.Relocated, "failed", len(res.Failures))
	return res, nil
}

// DeletePhotos deletes each photo and then its record.
// Result.Relocated counts deleted photos.
func (e *Engine) DeletePhotos(ids []string) Result {
	var res Result
	for _, id := range ids {
		var err error
		if e.legacy() {
			err = e.legacyDelete(id)
		} else {
			err = e.scopedDelete(id)
		}
		if err != nil {
			res.fail(e.log, id, err)
			continue
		}
		e.removeRecord(id)
		res.Relocated++
	}
	return res
}

// checkSource rejects a source name that is not a single folder segment,
// so a blank name or ".." never resolves to the library root or above it.
func (e *Engine) checkSource(name string) error {
	if _, err := e.validator.FolderName(name); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	return nil
}

// checkPair validates both names and rejects a self-relocation.
func (e *Engine) checkPair(src, dest string) (string, error) {
	if err := e.checkSource(src); err != nil {
		return "", err
	}
	dest, err := e.validator.FolderName(dest)
	if err != nil {
		return "", err
	}
	if src == dest {
		return "", fmt.Errorf("%w: %q", ErrSameFolder, src)
	}
	return dest, nil
}

// prepareDest makes sure folder name exists as a destination.
func (e *Engine) prepareDest(name string) error {
	if e.legacy() {
		return e.legacyMkdir(name)
	}
	if e.folders == nil {
		return nil
	}
	return e.folders.Add(name)
}

// register adds name to the registry so a destination that received no
// photo still shows up in scoped listings.
func (e *Engine) register(name string) {
	if e.legacy() || e.folders == nil {
		return
	}
	if err := e.folders.Add(name); err != nil {
		e.log.Error("folder registry not updated", "name", name, "error", err)
	}
}

func (e *Engine) unregister(name string) {
	if e.folders == nil {
		return
	}
	if err := e.folders.Remove(name); err != nil {
		e.log.Error("folder registry not updated", "name", name, "error", err)
	}
}

// recordCopy stores a fresh record for a copy. Copies never carry tags
// or the favorite flag.
func (e *Engine) recordCopy(id string) {
	if e.photos == nil {
		return
	}
	if err := e.photos.Upsert(id, "", false); err != nil {
		e.log.Error("record not created", "id", id, "error", err)
	}
}

func (e *Engine) recordMove(oldID, newID string) {
	if e.photos == nil {
		return
	}
	if err := e.photos.Rename(oldID, newID); err != nil {
		e.log.Error("record not renamed", "from", oldID, "to", newID, "error", err)
	}
}

func (e *Engine) removeRecord(id string) {
	if e.photos == nil {
		return
	}
	if err := e.photos.Remove(id); err != nil {
		e.log.Error("record not removed", "id", id, "error", err)
	}
}

func (e *Engine) logBatch(kind string, move bool, src, dest string, res Result) {
	op := "copy"
	if move {
		op = "move"
	}
	e.log.Info("relocation finished",
		"op", op, "kind", kind, "from", src, "to", dest,
		"relocated", res.Relocated, "failed", len(res.Failures))
}
