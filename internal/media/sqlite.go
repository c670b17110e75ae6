package media

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/nikbrunner/gorg/internal/model"
	"github.com/nikbrunner/gorg/internal/storage"
)

// SQLiteIndex implements Index with rows in a SQLite table and the bytes of
// every row in a file named by its id under a blob directory.
type SQLiteIndex struct {
	db      *sql.DB
	blobDir string
	log     *slog.Logger
	now     func() time.Time
}

// NewSQLiteIndex opens or creates the index.
func NewSQLiteIndex(dbPath, blobDir string, logger *slog.Logger) (*SQLiteIndex, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for _, dir := range []string{filepath.Dir(dbPath), blobDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := storage.OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}

	idx := &SQLiteIndex{db: db, blobDir: blobDir, log: logger, now: time.Now}
	if err := idx.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

// Close closes the database connection.
func (i *SQLiteIndex) Close() error {
	return i.db.Close()
}

// Shutdown closes the database when the application container shuts down.
func (i *SQLiteIndex) Shutdown() error {
	return i.Close()
}

func (i *SQLiteIndex) migrate() error {
	var version int
	if err := i.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		version = 0
	}
	if version >= 1 {
		return nil
	}

	schema := `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS media (
			id TEXT PRIMARY KEY NOT NULL,
			display_name TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			relative_path TEXT NOT NULL,
			size INTEGER NOT NULL DEFAULT 0,
			date_added INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_media_relative_path ON media(relative_path);

		INSERT OR REPLACE INTO schema_version (version) VALUES (1);
	`
	_, err := i.db.Exec(schema)
	return err
}

// Query implements Index.
func (i *SQLiteIndex) Query(sel Selection) ([]Row, error) {
	q := "SELECT id, display_name, mime_type, relative_path, size, date_added FROM media"
	var args []any
	switch {
	case sel.RelativePath != "":
		q += " WHERE relative_path = ?"
		args = append(args, sel.RelativePath)
	case sel.RelativePathPrefix != "":
		// instr is case-sensitive and has no wildcards, unlike LIKE
		q += " WHERE instr(relative_path, ?) = 1"
		args = append(args, sel.RelativePathPrefix)
	}
	q += " ORDER BY relative_path, display_name"

	rows, err := i.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query media: %w", err)
	}
	defer rows.Close()

	result := []Row{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (Row, error) {
	var r Row
	var added int64
	if err := s.Scan(&r.ID, &r.DisplayName, &r.MimeType, &r.RelativePath, &r.Size, &added); err != nil {
		return Row{}, err
	}
	r.DateAdded = time.UnixMilli(added)
	return r, nil
}

// Get implements Index.
func (i *SQLiteIndex) Get(id string) (Row, error) {
	row := i.db.QueryRow(`
		SELECT id, display_name, mime_type, relative_path, size, date_added
		FROM media WHERE id = ?
	`, id)
	r, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return r, err
}

// Insert implements Index. The row starts out empty.
func (i *SQLiteIndex) Insert(nr NewRow) (Row, error) {
	r := Row{
		ID:           model.GenerateUUID(),
		DisplayName:  nr.DisplayName,
		MimeType:     nr.MimeType,
		RelativePath: NormalizeDir(nr.RelativePath),
		DateAdded:    i.now(),
	}
	if r.MimeType == "" {
		r.MimeType = DefaultMimeType
	}
	if r.DisplayName == "" || r.RelativePath == "" {
		return Row{}, fmt.Errorf("insert media: display name and relative path are required")
	}

	if err := os.WriteFile(i.blobPath(r.ID), nil, 0644); err != nil {
		return Row{}, mapFSError(err)
	}

	_, err := i.db.Exec(`
		INSERT INTO media (id, display_name, mime_type, relative_path, size, date_added)
		VALUES (?, ?, ?, ?, 0, ?)
	`, r.ID, r.DisplayName, r.MimeType, r.RelativePath, r.DateAdded.UnixMilli())
	if err != nil {
		os.Remove(i.blobPath(r.ID))
		return Row{}, fmt.Errorf("insert media: %w", err)
	}

	i.log.Debug("media row inserted", "id", r.ID, "path", r.Path())
	return r, nil
}

// OpenReader implements Index.
func (i *SQLiteIndex) OpenReader(id string) (io.ReadCloser, error) {
	if _, err := i.Get(id); err != nil {
		return nil, err
	}
	f, err := os.Open(i.blobPath(id))
	if err != nil {
		return nil, mapFSError(err)
	}
	return f, nil
}

// OpenWriter implements Index. Closing the writer records the new size.
func (i *SQLiteIndex) OpenWriter(id string) (io.WriteCloser, error) {
	if _, err := i.Get(id); err != nil {
		return nil, err
	}
	f, err := os.Create(i.blobPath(id))
	if err != nil {
		return nil, mapFSError(err)
	}
	return &rowWriter{f: f, idx: i, id: id}, nil
}

// rowWriter counts bytes written. It must not expose ReadFrom.
type rowWriter struct {
	f   *os.File
	idx *SQLiteIndex
	id  string
	n   int64
}

func (w *rowWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.n += int64(n)
	return n, err
}

func (w *rowWriter) Close() error {
	if err := w.f.Close(); err != nil {
		return err
	}
	_, err := w.idx.db.Exec("UPDATE media SET size = ? WHERE id = ?", w.n, w.id)
	return err
}

// Delete implements Index.
func (i *SQLiteIndex) Delete(id string) error {
	res, err := i.db.Exec("DELETE FROM media WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err := os.Remove(i.blobPath(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		i.log.Warn("media blob left behind", "id", id, "error", err)
	}
	return nil
}

func (i *SQLiteIndex) blobPath(id string) string {
	return filepath.Join(i.blobDir, id)
}

// mapFSError translates filesystem errors into index errors.
func mapFSError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
