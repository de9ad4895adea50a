package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/grahambrooks/codemap/internal/langregistry"
	"github.com/grahambrooks/codemap/internal/store"
)

// Pipeline runs a bounded worker pool over a set of file paths, each worker
// parsing and extracting independently, all of them feeding a single writer
// goroutine that serializes commits against the Store (spec §5 concurrency
// model: "many readers, one writer", mirroring the teacher's three-phase
// IndexFilesParallel).
type Pipeline struct {
	store     *store.Store
	extractor *Extractor
	languages map[string]bool // nil means "all languages"
}

// NewPipeline creates a Pipeline writing to s via ex. A nil or empty
// languages set means every registered language is indexed.
func NewPipeline(s *store.Store, ex *Extractor, languages []string) *Pipeline {
	p := &Pipeline{store: s, extractor: ex}
	if len(languages) > 0 {
		p.languages = make(map[string]bool, len(languages))
		for _, l := range languages {
			p.languages[l] = true
		}
	}
	return p
}

// Result reports the outcome of running the pipeline over a set of paths.
type Result struct {
	Inserted  int
	Updated   int
	Unchanged int
	Skipped   int
	Errors    []error
}

// resultJSON mirrors Result but renders Errors as strings, since the error
// interface has no exported fields for encoding/json to walk.
type resultJSON struct {
	Inserted  int
	Updated   int
	Unchanged int
	Skipped   int
	Errors    []string
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{Inserted: r.Inserted, Updated: r.Updated, Unchanged: r.Unchanged, Skipped: r.Skipped}
	for _, e := range r.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	return json.Marshal(out)
}

// Run indexes every path in paths. Phase A (serial) filters to supported,
// not-yet-seen-as-unchanged files; Phase B (parallel) parses and extracts
// each into its own Batch; Phase C (serial) commits batches one at a time
// through the single writer. A file whose content hash matches its stored
// record is skipped before any parsing happens (spec invariant 6).
func (p *Pipeline) Run(ctx context.Context, paths []string) (Result, error) {
	var res Result

	type candidate struct {
		path string
	}
	var candidates []candidate

	for _, path := range paths {
		if _, ok := langregistry.ForFile(path); !ok {
			res.Skipped++
			continue
		}
		lang, _ := langregistry.ForFile(path)
		if p.languages != nil && !p.languages[lang] {
			res.Skipped++
			continue
		}
		if content, err := os.ReadFile(path); err == nil {
			if f, err := p.store.FileByPath(path); err == nil && f != nil && f.ContentHash == ContentHash(content) {
				res.Unchanged++
				continue
			}
		}
		candidates = append(candidates, candidate{path: path})
	}

	if len(candidates) == 0 {
		return res, nil
	}

	numWorkers := min(runtime.NumCPU(), len(candidates))
	if numWorkers < 1 {
		numWorkers = 1
	}

	type extracted struct {
		path  string
		batch *store.Batch
		err   error
	}

	workCh := make(chan candidate, len(candidates))
	for _, c := range candidates {
		workCh <- c
	}
	close(workCh)

	resultCh := make(chan extracted, len(candidates))
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range workCh {
				content, err := os.ReadFile(c.path)
				if err != nil {
					resultCh <- extracted{path: c.path, err: fmt.Errorf("read %s: %w", c.path, err)}
					continue
				}
				batch, err := p.extractor.Extract(ctx, c.path, content)
				resultCh <- extracted{path: c.path, batch: batch, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	for r := range resultCh {
		if r.err != nil {
			res.Errors = append(res.Errors, r.err)
			continue
		}
		state, err := p.store.CommitBatch(r.batch)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("commit %s: %w", r.path, err))
			continue
		}
		switch state {
		case store.FileInserted:
			res.Inserted++
		case store.FileReplacedStale:
			res.Updated++
		case store.FileUnchanged:
			res.Unchanged++
		}
	}

	return res, nil
}

// PruneDeleted removes store records for files of the given language whose
// paths are not in stillPresent. Deletion is eager — applied within the same indexing pass,
// before resolution runs — rather than deferred, so a resolve pass never
// sees unresolved references pointing at nodes from a file that's already
// gone (spec open question: deleted-file handling).
func (p *Pipeline) PruneDeleted(language string, stillPresent map[string]bool) error {
	files, err := p.store.FilesByLanguage(language)
	if err != nil {
		return fmt.Errorf("pipeline: prune deleted: %w", err)
	}
	for _, f := range files {
		if stillPresent[f.Path] {
			continue
		}
		if err := p.store.DeleteFile(f.Path); err != nil {
			return fmt.Errorf("pipeline: prune deleted %s: %w", f.Path, err)
		}
	}
	return nil
}
