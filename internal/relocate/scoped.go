package relocate

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nikbrunner/gorg/internal/media"
	"github.com/nikbrunner/gorg/internal/resolver"
)

func (e *Engine) scopedRelocateFolder(src, destParent string, move bool) (Result, error) {
	srcRel := resolver.FolderRelativePath(src)
	rows, err := e.listRows(src, media.Selection{RelativePathPrefix: srcRel})
	if err != nil {
		return Result{}, err
	}

	base := resolver.FolderRelativePath(destParent) + src + "/"
	var res Result
	for _, row := range rows {
		e.relocateRow(&res, row, base+strings.TrimPrefix(row.RelativePath, srcRel), move)
	}
	return res, nil
}

func (e *Engine) scopedRelocatePhotos(src, dest string, move bool) (Result, error) {
	rows, err := e.listRows(src, media.Selection{RelativePath: resolver.FolderRelativePath(src)})
	if err != nil {
		return Result{}, err
	}

	destRel := resolver.FolderRelativePath(dest)
	var res Result
	for _, row := range rows {
		e.relocateRow(&res, row, destRel, move)
	}
	return res, nil
}

func (e *Engine) scopedRenameFolder(oldName, newName string) (Result, error) {
	oldRel := resolver.FolderRelativePath(oldName)
	rows, err := e.listRows(oldName, media.Selection{RelativePathPrefix: oldRel})
	if err != nil {
		return Result{}, err
	}

	newRel := resolver.FolderRelativePath(newName)
	var res Result
	for _, row := range rows {
		e.relocateRow(&res, row, newRel+strings.TrimPrefix(row.RelativePath, oldRel), true)
	}
	return res, nil
}

func (e *Engine) scopedRelocateSelected(res *Result, id, dest string, move bool) {
	rowID, ok := media.ParseURI(id)
	if !ok {
		res.fail(e.log, id, fmt.Errorf("%w: not a media identifier", media.ErrNotFound))
		return
	}
	row, err := e.index.Get(rowID)
	if err != nil {
		res.fail(e.log, id, err)
		return
	}

	destRel := resolver.FolderRelativePath(dest)
	if row.RelativePath == destRel {
		res.fail(e.log, id, ErrSameFolder)
		return
	}
	if row.DisplayName == "" {
		row.DisplayName = fmt.Sprintf("IMG_%d.jpg", e.now().UnixMilli())
	}
	e.relocateRow(res, row, destRel, move)
}

func (e *Engine) scopedDeleteFolder(name string) (Result, error) {
	rows, err := e.listRows(name, media.Selection{RelativePathPrefix: resolver.FolderRelativePath(name)})
	if err != nil {
		return Result{}, err
	}

	var res Result
	for _, row := range rows {
		if err := e.index.Delete(row.ID); err != nil {
			res.fail(e.log, row.URI(), err)
			continue
		}
		e.removeRecord(row.URI())
		res.Relocated++
	}
	return res, nil
}

func (e *Engine) scopedDelete(id string) error {
	rowID, ok := media.ParseURI(id)
	if !ok {
		return fmt.Errorf("%w: not a media identifier", media.ErrNotFound)
	}
	return e.index.Delete(rowID)
}

// listRows queries the rows of folder. A folder with no rows that is not
// registered does not exist. A denied query rejects the batch.
func (e *Engine) listRows(folder string, sel media.Selection) ([]media.Row, error) {
	rows, err := e.index.Query(sel)
	if errors.Is(err, media.ErrPermissionDenied) {
		e.log.Warn("media query denied", "folder", folder, "error", err)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", folder, err)
	}
	if len(rows) == 0 && (e.folders == nil || !e.folders.Contains(folder)) {
		return nil, fmt.Errorf("%w: %q", ErrFolderNotFound, folder)
	}
	return rows, nil
}

// relocateRow copies row to destRel and, when moving, deletes the source and
// carries its record over. Any failure leaves the source untouched.
func (e *Engine) relocateRow(res *Result, row media.Row, destRel string, move bool) {
	dst, err := e.copyRow(row, destRel)
	if err != nil {
		res.fail(e.log, row.URI(), err)
		return
	}

	if move {
		if err := e.index.Delete(row.ID); err != nil {
			e.discard(dst)
			res.fail(e.log, row.URI(), fmt.Errorf("delete source: %w", err))
			return
		}
		e.recordMove(row.URI(), dst.URI())
	} else {
		e.recordCopy(dst.URI())
	}
	res.Relocated++
}

// copyRow inserts a row at destRel and streams the content of row into it.
// A partially created row is deleted again.
func (e *Engine) copyRow(row media.Row, destRel string) (media.Row, error) {
	mime := row.MimeType
	if mime == "" {
		mime = media.DefaultMimeType
	}
	dst, err := e.index.Insert(media.NewRow{
		DisplayName:  row.DisplayName,
		MimeType:     mime,
		RelativePath: destRel,
	})
	if err != nil {
		return media.Row{}, fmt.Errorf("insert: %w", err)
	}

	if err := e.copyContent(row.ID, dst.ID); err != nil {
		e.discard(dst)
		return media.Row{}, err
	}
	return dst, nil
}

func (e *Engine) copyContent(srcID, dstID string) error {
	in, err := e.index.OpenReader(srcID)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := e.index.OpenWriter(dstID)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	if _, err := io.CopyBuffer(out, in, make([]byte, copyBufferSize)); err != nil {
		out.Close()
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}

// discard deletes a destination row, best-effort.
func (e *Engine) discard(row media.Row) {
	if err := e.index.Delete(row.ID); err != nil {
		e.log.Warn("partial row left behind", "id", row.URI(), "error", err)
	}
}
