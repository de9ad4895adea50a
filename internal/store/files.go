package store

import (
	"database/sql"
	"fmt"
	"time"
)

const fileCols = `id, path, language, content_hash, last_indexed`

func scanFile(row scanner) (*File, error) {
	f := &File{}
	var lastIndexed sql.NullTime
	if err := row.Scan(&f.ID, &f.Path, &f.Language, &f.ContentHash, &lastIndexed); err != nil {
		return nil, err
	}
	if lastIndexed.Valid {
		f.LastIndexed = lastIndexed.Time
	}
	return f, nil
}

// FileByPath returns the file record for path, or (nil, nil) if absent.
func (s *Store) FileByPath(path string) (*File, error) {
	row := s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: file by path: %w", err)
	}
	return f, nil
}

// FileByID returns the file record for id, or (nil, nil) if absent.
func (s *Store) FileByID(id int64) (*File, error) {
	row := s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE id = ?", id)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: file by id: %w", err)
	}
	return f, nil
}

// AllFilePaths bulk-loads every file id -> path mapping, for traversals
// that need to resolve many edges' file ids at once without N+1 queries
// (spec §4.E "none materialise the full graph in memory", which this
// supports by loading the cheap id->path index once per query).
func (s *Store) AllFilePaths() (map[int64]string, error) {
	rows, err := s.db.Query("SELECT id, path FROM files")
	if err != nil {
		return nil, fmt.Errorf("store: all file paths: %w", err)
	}
	defer rows.Close()
	out := make(map[int64]string)
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, fmt.Errorf("store: scan file path: %w", err)
		}
		out[id] = path
	}
	return out, rows.Err()
}

// FileState reports the outcome of UpsertFile (spec §4.C upsert_file).
type FileState int

const (
	FileInserted FileState = iota
	FileUnchanged
	FileReplacedStale
)

// UpsertFile inserts or replaces a file record. When an existing row has an
// identical content hash, the row (including last_indexed) is left untouched
// and FileUnchanged is returned (spec invariant 6). Otherwise, on
// ReplacedStale, UpsertFile deletes the file's owned rows itself (via
// deleteFileOwnedRowsTx) before updating the files row.
func (s *Store) UpsertFile(tx *sql.Tx, f *File) (FileState, error) {
	existing, err := s.fileByPathTx(tx, f.Path)
	if err != nil {
		return 0, err
	}

	if existing != nil && existing.ContentHash == f.ContentHash {
		f.ID = existing.ID
		f.LastIndexed = existing.LastIndexed
		return FileUnchanged, nil
	}

	state := FileInserted
	if existing != nil {
		state = FileReplacedStale
		if err := deleteFileOwnedRowsTx(tx, existing.ID); err != nil {
			return 0, err
		}
		if _, err := tx.Exec("DELETE FROM files WHERE id = ?", existing.ID); err != nil {
			return 0, fmt.Errorf("store: delete stale file row: %w", err)
		}
	}

	if f.LastIndexed.IsZero() {
		f.LastIndexed = time.Now()
	}
	res, err := tx.Exec(
		`INSERT INTO files (path, language, content_hash, last_indexed) VALUES (?, ?, ?, ?)`,
		f.Path, f.Language, f.ContentHash, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: file last insert id: %w", err)
	}
	f.ID = id
	return state, nil
}

func (s *Store) fileByPathTx(tx *sql.Tx, path string) (*File, error) {
	row := tx.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: file by path (tx): %w", err)
	}
	return f, nil
}

// DeleteFile removes a file record and cascades to every node it owns, and
// every edge/unresolved reference referencing those nodes (spec §3 File
// record ownership, §4.C delete_file).
func (s *Store) DeleteFile(path string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: delete file: begin: %w", err)
	}
	defer tx.Rollback()

	f, err := s.fileByPathTx(tx, path)
	if err != nil {
		return err
	}
	if f == nil {
		return nil
	}
	if err := deleteFileOwnedRowsTx(tx, f.ID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM files WHERE id = ?", f.ID); err != nil {
		return fmt.Errorf("store: delete file row: %w", err)
	}
	return tx.Commit()
}

// deleteFileOwnedRowsTx deletes every node owned by fileID and every edge or
// unresolved reference touching those nodes, in FK-safe order. It does not
// delete the files row itself.
func deleteFileOwnedRowsTx(tx *sql.Tx, fileID int64) error {
	rows, err := tx.Query("SELECT id FROM nodes WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("store: list owned nodes: %w", err)
	}
	var nodeIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("store: scan owned node id: %w", err)
		}
		nodeIDs = append(nodeIDs, id)
	}
	rows.Close()

	if len(nodeIDs) > 0 {
		placeholders := placeholderList(len(nodeIDs))
		args := int64sToArgs(nodeIDs)
		for _, q := range []string{
			"DELETE FROM edges WHERE source_id IN (" + placeholders + ")",
			"DELETE FROM edges WHERE target_id IN (" + placeholders + ")",
			"DELETE FROM unresolved_references WHERE source_node_id IN (" + placeholders + ")",
		} {
			if _, err := tx.Exec(q, args...); err != nil {
				return fmt.Errorf("store: cascade delete: %w", err)
			}
		}
	}

	// Edges/unresolved rows that merely cite this file as their lexical
	// site (file_id), independent of node ownership.
	for _, q := range []string{
		"DELETE FROM edges WHERE file_id = ?",
		"DELETE FROM unresolved_references WHERE file_id = ?",
	} {
		if _, err := tx.Exec(q, fileID); err != nil {
			return fmt.Errorf("store: cascade delete by file_id: %w", err)
		}
	}

	if _, err := tx.Exec("DELETE FROM nodes WHERE file_id = ?", fileID); err != nil {
		return fmt.Errorf("store: delete owned nodes: %w", err)
	}
	return nil
}

// FilesByLanguage returns every file record for a language.
func (s *Store) FilesByLanguage(language string) ([]*File, error) {
	rows, err := s.db.Query("SELECT "+fileCols+" FROM files WHERE language = ?", language)
	if err != nil {
		return nil, fmt.Errorf("store: files by language: %w", err)
	}
	defer rows.Close()
	var out []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DistinctLanguages returns every language with at least one indexed file.
func (s *Store) DistinctLanguages() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT language FROM files")
	if err != nil {
		return nil, fmt.Errorf("store: distinct languages: %w", err)
	}
	defer rows.Close()
	var langs []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		langs = append(langs, l)
	}
	return langs, rows.Err()
}

// Counts reports store-wide row counts (spec §6 `status` command/tool).
type Counts struct {
	Files       int
	Nodes       int
	Edges       int
	Unresolved  int
}

// Stats computes store-wide counts.
func (s *Store) Stats() (Counts, error) {
	var c Counts
	if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&c.Files); err != nil {
		return c, fmt.Errorf("store: count files: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&c.Nodes); err != nil {
		return c, fmt.Errorf("store: count nodes: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM edges").Scan(&c.Edges); err != nil {
		return c, fmt.Errorf("store: count edges: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM unresolved_references").Scan(&c.Unresolved); err != nil {
		return c, fmt.Errorf("store: count unresolved: %w", err)
	}
	return c, nil
}
