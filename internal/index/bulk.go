package index

import (
	"context"
	"log/slog"
	"time"

	"github.com/Aman-CERP/issuesync/internal/searchindex"
)

// DefaultBulkSize is the number of operations sent to the index per batch.
const DefaultBulkSize = 500

// bulkIndexer buffers upserts and deletes and flushes them in batches. What a
// failed flush does depends on the recovery policy of the operation.
type bulkIndexer struct {
	index    *searchindex.Index
	op       operation
	policy   RecoveryPolicy
	size     int
	listener queueListener

	pending searchindex.Bulk
	written int
	failed  int
	err     error
	start   time.Time
}

func newBulkIndexer(idx *searchindex.Index, op operation, size int, listener queueListener) *bulkIndexer {
	if size <= 0 {
		size = DefaultBulkSize
	}
	return &bulkIndexer{
		index:    idx,
		op:       op,
		policy:   policyFor(op),
		size:     size,
		listener: listener,
		start:    time.Now(),
	}
}

// upsert queues a document write.
func (b *bulkIndexer) upsert(ctx context.Context, doc *searchindex.Document) error {
	b.pending.Upserts = append(b.pending.Upserts, doc)
	return b.maybeFlush(ctx)
}

// delete queues a document removal.
func (b *bulkIndexer) delete(ctx context.Context, key string) error {
	b.pending.Deletes = append(b.pending.Deletes, key)
	return b.maybeFlush(ctx)
}

func (b *bulkIndexer) maybeFlush(ctx context.Context) error {
	if b.pending.Len() < b.size {
		return nil
	}
	return b.flush(ctx)
}

// flush sends pending operations. Under FailFast a failure is returned and
// ends the operation; under Queue it is handed to the listener.
func (b *bulkIndexer) flush(ctx context.Context) error {
	if b.pending.Len() == 0 {
		return nil
	}
	batch := b.pending
	b.pending = searchindex.Bulk{}

	keys := make([]string, 0, batch.Len())
	for _, doc := range batch.Upserts {
		keys = append(keys, doc.Key)
	}
	keys = append(keys, batch.Deletes...)

	if err := b.index.Apply(ctx, &batch); err != nil {
		b.failed += len(keys)
		if b.err == nil {
			b.err = err
		}
		slog.Warn("bulk_write_failed",
			slog.String("operation", string(b.op)),
			slog.String("policy", b.policy.String()),
			slog.Int("operations", len(keys)),
			slog.String("error", err.Error()))
		if b.listener != nil {
			b.listener.onFailure(keys, err)
		}
		if b.policy == FailFast {
			return err
		}
		return nil
	}

	b.written += len(keys)
	if b.listener != nil {
		b.listener.onSuccess(keys)
	}
	return nil
}

// finish flushes what is left. Only FailFast operations get an error back.
func (b *bulkIndexer) finish(ctx context.Context) error {
	err := b.flush(ctx)
	slog.Debug("bulk_finished",
		slog.String("operation", string(b.op)),
		slog.Int("written", b.written),
		slog.Int("failed", b.failed),
		slog.Duration("duration", time.Since(b.start)))
	if b.policy == FailFast {
		return err
	}
	return nil
}
