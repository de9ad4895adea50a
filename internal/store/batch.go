package store

import "fmt"

// Batch accumulates the nodes, edges, and unresolved references produced by
// extracting a single file, using negative placeholder ids so that a node's
// children and the edges/references pointing at it can be wired up before
// any of them have a real AUTOINCREMENT id. CommitBatch remaps those fake
// ids to real ones inside a single transaction, mirroring the teacher's
// BatchedStore/CommitBatch split between parallel workers and the lone
// writer goroutine (spec §5 concurrency model).
type Batch struct {
	File *File

	Nodes       []*Node
	Edges       []*Edge
	Unresolved  []*UnresolvedReference

	nextFakeID int64
}

// NewBatch starts a batch for the given file record. f.Path, f.Language and
// f.ContentHash must already be populated by the caller; f.ID is left unset
// and the real file id is assigned at commit time via UpsertFile.
func NewBatch(f *File) *Batch {
	return &Batch{File: f}
}

// AddNode appends a node to the batch and returns a negative fake id other
// entries in the same batch can reference as ParentID/SourceID/TargetID
// before the batch is committed.
func (b *Batch) AddNode(n *Node) int64 {
	b.nextFakeID--
	n.ID = b.nextFakeID
	b.Nodes = append(b.Nodes, n)
	return n.ID
}

// AddEdge appends an edge. SourceID/TargetID may be fake (negative) ids
// returned from AddNode in this same batch, or real ids from an earlier
// commit (e.g. edges into already-indexed files, though cross-file edges
// normally go through the Resolver instead).
func (b *Batch) AddEdge(e *Edge) {
	b.Edges = append(b.Edges, e)
}

// AddUnresolved appends an unresolved reference. SourceNodeID may be a fake
// id from this batch.
func (b *Batch) AddUnresolved(u *UnresolvedReference) {
	b.Unresolved = append(b.Unresolved, u)
}

// CommitBatch writes a prepared Batch transactionally: upserts the file
// record, inserts nodes in batch order (parents are appended before their
// children by every extraction script, so fake-id references always resolve
// against already-remapped real ids), then edges, then unresolved
// references, substituting real ids for fake ones throughout. Returns the
// resulting FileState (spec invariant 6 unchanged-file skip still applies:
// on FileUnchanged the batch's rows are discarded rather than written,
// since the file's owned rows are already correct).
func (s *Store) CommitBatch(b *Batch) (FileState, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	state, err := s.UpsertFile(tx, b.File)
	if err != nil {
		return 0, fmt.Errorf("store: commit batch: upsert file: %w", err)
	}
	if state == FileUnchanged {
		return state, tx.Commit()
	}

	fakeToReal := make(map[int64]int64, len(b.Nodes))
	for _, n := range b.Nodes {
		fakeID := n.ID
		n.FileID = b.File.ID
		if n.ParentID < 0 {
			real, ok := fakeToReal[n.ParentID]
			if !ok {
				return 0, fmt.Errorf("store: commit batch: node %q references unknown parent fake id %d", n.Name, n.ParentID)
			}
			n.ParentID = real
		}
		realID, err := s.InsertNode(tx, n)
		if err != nil {
			return 0, fmt.Errorf("store: commit batch: insert node: %w", err)
		}
		fakeToReal[fakeID] = realID
	}

	resolveID := func(id int64, label string) (int64, error) {
		if id >= 0 {
			return id, nil
		}
		real, ok := fakeToReal[id]
		if !ok {
			return 0, fmt.Errorf("store: commit batch: %s references unknown fake id %d", label, id)
		}
		return real, nil
	}

	for _, e := range b.Edges {
		src, err := resolveID(e.SourceID, "edge source")
		if err != nil {
			return 0, err
		}
		tgt, err := resolveID(e.TargetID, "edge target")
		if err != nil {
			return 0, err
		}
		e.SourceID, e.TargetID = src, tgt
		if e.FileID == 0 {
			e.FileID = b.File.ID
		}
		if err := s.InsertEdge(tx, e); err != nil {
			return 0, fmt.Errorf("store: commit batch: insert edge: %w", err)
		}
	}

	for _, u := range b.Unresolved {
		src, err := resolveID(u.SourceNodeID, "unresolved reference source")
		if err != nil {
			return 0, err
		}
		u.SourceNodeID = src
		u.FileID = b.File.ID
		if _, err := s.InsertUnresolved(tx, u); err != nil {
			return 0, fmt.Errorf("store: commit batch: insert unresolved: %w", err)
		}
	}

	return state, tx.Commit()
}
