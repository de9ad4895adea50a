package store

import (
	"database/sql"
	"fmt"
)

const unresolvedCols = `id, source_node_id, reference_name, reference_kind, file_id, line`

func scanUnresolved(row scanner) (*UnresolvedReference, error) {
	u := &UnresolvedReference{}
	var line sql.NullInt64
	if err := row.Scan(&u.ID, &u.SourceNodeID, &u.ReferenceName, &u.ReferenceKind, &u.FileID, &line); err != nil {
		return nil, err
	}
	u.Line = int(line.Int64)
	return u, nil
}

// InsertUnresolved records a reference extraction could not bind to a
// symbol at extraction time, for the Resolver to match later (spec §3
// Unresolved reference, §4.B insert_unresolved).
func (s *Store) InsertUnresolved(tx *sql.Tx, u *UnresolvedReference) (int64, error) {
	var line any
	if u.Line != 0 {
		line = u.Line
	}
	res, err := tx.Exec(
		`INSERT INTO unresolved_references (source_node_id, reference_name, reference_kind, file_id, line)
		 VALUES (?, ?, ?, ?, ?)`,
		u.SourceNodeID, u.ReferenceName, u.ReferenceKind, u.FileID, line,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert unresolved reference %q: %w", u.ReferenceName, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: unresolved last insert id: %w", err)
	}
	u.ID = id
	return id, nil
}

// UnresolvedPage returns up to limit unresolved references with id > cursor,
// ordered by id, for the Resolver's batch-processing loop (spec §4.D
// "processes unresolved references in batches"). A cursor of 0 starts from
// the beginning.
func (s *Store) UnresolvedPage(cursor int64, limit int) ([]*UnresolvedReference, error) {
	rows, err := s.db.Query(
		"SELECT "+unresolvedCols+" FROM unresolved_references WHERE id > ? ORDER BY id LIMIT ?",
		cursor, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: unresolved page: %w", err)
	}
	defer rows.Close()

	var out []*UnresolvedReference
	for rows.Next() {
		u, err := scanUnresolved(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan unresolved: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteUnresolved removes an unresolved reference once the Resolver has
// turned it into an Edge (spec §4.D "consumes unresolved references").
func (s *Store) DeleteUnresolved(tx *sql.Tx, id int64) error {
	if _, err := tx.Exec("DELETE FROM unresolved_references WHERE id = ?", id); err != nil {
		return fmt.Errorf("store: delete unresolved %d: %w", id, err)
	}
	return nil
}

// CandidateNodesByName returns every node with the given name across the
// whole store, the Resolver's raw candidate set before scope ranking and
// ambiguity rules narrow it down (spec §4.D matching algorithm).
func (s *Store) CandidateNodesByName(name string) ([]*Node, error) {
	rows, err := s.db.Query("SELECT "+nodeCols+" FROM nodes WHERE name = ?", name)
	if err != nil {
		return nil, fmt.Errorf("store: candidate nodes by name: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}
