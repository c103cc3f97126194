// Package searchindex is the search engine boundary: a bleve index of issue
// documents written through bulk upserts and deletes keyed by issue key.
//
// Writes pass through a WriteGate. When the gate is closed, or the index is
// closed, Apply returns an error rather than dropping the bulk.
package searchindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	serrors "github.com/Aman-CERP/issuesync/internal/errors"
)

// ErrNotFound is returned by Get for a key with no document.
var ErrNotFound = errors.New("document not found")

// sourcePrefix namespaces the stored document JSON among bleve internal keys.
const sourcePrefix = "src/"

// Options configures Open.
type Options struct {
	// Writes gates bulk writes. Nil accepts every write.
	Writes WriteGate
}

// Bulk is one batch of writes. A key present in both lists ends up deleted.
type Bulk struct {
	Upserts []*Document
	Deletes []string
}

// Len returns the number of operations in the bulk.
func (b *Bulk) Len() int {
	return len(b.Upserts) + len(b.Deletes)
}

// Index holds issue documents.
type Index struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	writes WriteGate
	closed bool
}

// Open opens or creates the index at path. An empty path creates an in-memory index.
func Open(path string, opts Options) (*Index, error) {
	writes := opts.Writes
	if writes == nil {
		writes = alwaysOpen{}
	}

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(newMapping())
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, serrors.IndexUnavailable("failed to create index directory", err).WithDetail("path", path)
		}
		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, newMapping())
		} else if errors.Is(err, bleve.ErrorIndexMetaCorrupt) {
			// The store is authoritative: a corrupt index is rebuilt by `issuesync index`.
			slog.Warn("search_index_corrupted",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, serrors.New(serrors.ErrCodeCorruptIndex, "search index corrupted and cannot be removed", removeErr).
					WithDetail("path", path)
			}
			idx, err = bleve.New(path, newMapping())
			if err == nil {
				slog.Info("search_index_cleared",
					slog.String("path", path),
					slog.String("reason", "corruption detected, run `issuesync index` to rebuild"))
			}
		}
	}
	if err != nil {
		return nil, serrors.IndexUnavailable("failed to open search index", err).WithDetail("path", path)
	}

	return &Index{index: idx, path: path, writes: writes}, nil
}

// Path returns the on-disk location, empty for in-memory indexes.
func (x *Index) Path() string {
	return x.path
}

// WritesEnabled reports whether Apply would currently be accepted.
func (x *Index) WritesEnabled() bool {
	return x.writes.WritesEnabled()
}

// Apply writes the bulk as one batch. It fails when the index is closed, when
// writes are disabled, or when the engine rejects the batch.
func (x *Index) Apply(ctx context.Context, b *Bulk) error {
	if b == nil || b.Len() == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return serrors.New(serrors.ErrCodeIndexClosed, "search index is closed", nil)
	}
	if !x.writes.WritesEnabled() {
		return serrors.New(serrors.ErrCodeIndexReadOnly, "search index rejects writes", nil).
			WithDetail("operations", fmt.Sprint(b.Len())).
			WithSuggestion("unlock index writes or set index.read_only to false")
	}

	batch := x.index.NewBatch()
	for _, doc := range b.Upserts {
		source, err := json.Marshal(doc)
		if err != nil {
			return serrors.InternalError("failed to encode document", err).WithDetail("key", doc.Key)
		}
		if err := batch.Index(doc.Key, doc.fields()); err != nil {
			return serrors.New(serrors.ErrCodeIndexFailed, "failed to add document to batch", err).
				WithDetail("key", doc.Key)
		}
		batch.SetInternal(sourceKey(doc.Key), source)
	}
	for _, key := range b.Deletes {
		batch.Delete(key)
		batch.DeleteInternal(sourceKey(key))
	}

	if err := x.index.Batch(batch); err != nil {
		return serrors.IndexUnavailable("failed to execute batch", err).
			WithDetail("operations", fmt.Sprint(b.Len()))
	}
	return nil
}

// Get returns the document stored under key, or ErrNotFound.
func (x *Index) Get(ctx context.Context, key string) (*Document, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, serrors.New(serrors.ErrCodeIndexClosed, "search index is closed", nil)
	}
	source, err := x.index.GetInternal(sourceKey(key))
	if err != nil {
		return nil, serrors.IndexUnavailable("failed to read document", err).WithDetail("key", key)
	}
	if source == nil {
		return nil, ErrNotFound
	}
	var doc Document
	if err := json.Unmarshal(source, &doc); err != nil {
		return nil, serrors.InternalError("failed to decode document", err).WithDetail("key", key)
	}
	return &doc, nil
}

// Count returns the number of documents.
func (x *Index) Count(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return 0, serrors.New(serrors.ErrCodeIndexClosed, "search index is closed", nil)
	}
	n, err := x.index.DocCount()
	if err != nil {
		return 0, serrors.IndexUnavailable("failed to count documents", err)
	}
	return int(n), nil
}

// Keys returns every document key, sorted.
func (x *Index) Keys(ctx context.Context) ([]string, error) {
	return x.keys(ctx, bleve.NewMatchAllQuery())
}

// KeysByProject returns the keys of the documents whose project or branch is
// projectUUID, sorted.
func (x *Index) KeysByProject(ctx context.Context, projectUUID string) ([]string, error) {
	project := bleve.NewTermQuery(projectUUID)
	project.SetField(FieldProject)
	branch := bleve.NewTermQuery(projectUUID)
	branch.SetField(FieldBranch)
	return x.keys(ctx, bleve.NewDisjunctionQuery(project, branch))
}

func (x *Index) keys(ctx context.Context, q query.Query) ([]string, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, serrors.New(serrors.ErrCodeIndexClosed, "search index is closed", nil)
	}
	docCount, err := x.index.DocCount()
	if err != nil {
		return nil, serrors.IndexUnavailable("failed to count documents", err)
	}
	if docCount == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequest(q)
	req.Size = int(docCount)
	req.Fields = []string{}

	result, err := x.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, serrors.IndexUnavailable("failed to search document keys", err)
	}

	keys := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		keys[i] = hit.ID
	}
	slices.Sort(keys)
	return keys, nil
}

// Close closes the index. It is safe to call more than once.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return nil
	}
	x.closed = true
	return x.index.Close()
}

func sourceKey(key string) []byte {
	return []byte(sourcePrefix + key)
}
