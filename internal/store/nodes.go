package store

import (
	"database/sql"
	"fmt"
	"strings"
)

const nodeCols = `id, kind, name, file_id, start_line, end_line, language, visibility, signature, docstring, parent_id`

func scanNode(row scanner) (*Node, error) {
	n := &Node{}
	var signature, docstring sql.NullString
	var parentID sql.NullInt64
	err := row.Scan(&n.ID, &n.Kind, &n.Name, &n.FileID, &n.StartLine, &n.EndLine,
		&n.Language, &n.Visibility, &signature, &docstring, &parentID)
	if err != nil {
		return nil, err
	}
	n.Signature = signature.String
	n.Docstring = docstring.String
	n.ParentID = parentID.Int64
	return n, nil
}

// InsertNode inserts a symbol node inside tx and returns its assigned id
// (spec §4.C insert_node).
func (s *Store) InsertNode(tx *sql.Tx, n *Node) (int64, error) {
	var parentID any
	if n.ParentID != 0 {
		parentID = n.ParentID
	}
	res, err := tx.Exec(
		`INSERT INTO nodes (kind, name, file_id, start_line, end_line, language, visibility, signature, docstring, parent_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Kind, n.Name, n.FileID, n.StartLine, n.EndLine, n.Language, n.Visibility,
		nullableString(n.Signature), nullableString(n.Docstring), parentID,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert node %q: %w", n.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: node last insert id: %w", err)
	}
	n.ID = id
	return id, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// NodeByID returns a single node by id, or (nil, nil) if absent.
func (s *Store) NodeByID(id int64) (*Node, error) {
	row := s.db.QueryRow("SELECT "+nodeCols+" FROM nodes WHERE id = ?", id)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: node by id: %w", err)
	}
	return n, nil
}

// NodesByIDs bulk-loads nodes by id, in no particular order, for
// traversals that have already computed a visited-id set in memory (spec
// §4.E "none materialise the full graph" — the bulk load is scoped to just
// the ids a BFS actually touched).
func (s *Store) NodesByIDs(ids []int64) ([]*Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query("SELECT "+nodeCols+" FROM nodes WHERE id IN ("+placeholderList(len(ids))+")", int64sToArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("store: nodes by ids: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// NodesByFile returns every node owned by a file, ordered by start line
// (spec §4.C nodes_by_file).
func (s *Store) NodesByFile(fileID int64) ([]*Node, error) {
	rows, err := s.db.Query("SELECT "+nodeCols+" FROM nodes WHERE file_id = ? ORDER BY start_line", fileID)
	if err != nil {
		return nil, fmt.Errorf("store: nodes by file: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// NodesByKinds bulk-loads every node whose kind is in kinds, for queries
// that scan the whole symbol table once rather than per-file (spec §4.E
// unused, and the context ranking tool).
func (s *Store) NodesByKinds(kinds ...string) ([]*Node, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	rows, err := s.db.Query("SELECT "+nodeCols+" FROM nodes WHERE kind IN ("+placeholderList(len(kinds))+")", stringsToArgs(kinds)...)
	if err != nil {
		return nil, fmt.Errorf("store: nodes by kinds: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

func stringsToArgs(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// NodeFilter narrows QueryNodesByName (spec §4.C query_nodes_by_name).
type NodeFilter struct {
	Kinds    []string
	Language string
}

// QueryNodesByName returns every node with the given name, optionally
// filtered by kind and language, ordered by (file_path, start_line) as
// required by find_by_name (spec §4.E).
func (s *Store) QueryNodesByName(name string, filter NodeFilter) ([]*Node, error) {
	where := []string{"n.name = ?"}
	args := []any{name}

	if len(filter.Kinds) > 0 {
		where = append(where, "n.kind IN ("+placeholderList(len(filter.Kinds))+")")
		for _, k := range filter.Kinds {
			args = append(args, k)
		}
	}
	if filter.Language != "" {
		where = append(where, "n.language = ?")
		args = append(args, filter.Language)
	}

	query := `SELECT ` + prefixCols("n", nodeCols) + ` FROM nodes n
		JOIN files f ON f.id = n.file_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY f.path, n.start_line`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query nodes by name: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

// QueryNodesByNamePrefix supports fuzzy/substring search for the `search`
// tool (spec §6), matching either an exact name or a case-insensitive
// substring.
func (s *Store) QueryNodesByNamePrefix(substr string, limit int) ([]*Node, error) {
	rows, err := s.db.Query(
		`SELECT `+prefixCols("n", nodeCols)+` FROM nodes n
		 JOIN files f ON f.id = n.file_id
		 WHERE n.name LIKE ? ESCAPE '\'
		 ORDER BY (n.name = ?) DESC, f.path, n.start_line
		 LIMIT ?`,
		"%"+escapeLike(substr)+"%", substr, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query nodes by name prefix: %w", err)
	}
	defer rows.Close()
	return scanNodes(rows)
}

func scanNodes(rows *sql.Rows) ([]*Node, error) {
	var out []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan node: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func prefixCols(alias, cols string) string {
	parts := strings.Split(cols, ", ")
	for i, p := range parts {
		parts[i] = alias + "." + p
	}
	return strings.Join(parts, ", ")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
