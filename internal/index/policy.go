package index

import (
	"context"
	"log/slog"

	"github.com/Aman-CERP/issuesync/internal/store"
)

// RecoveryPolicy decides what an operation does with a failed index write.
type RecoveryPolicy int

const (
	// FailFast returns the failure to the caller and writes no queue rows.
	FailFast RecoveryPolicy = iota
	// Queue keeps the failure as queue rows for the Recovery Processor and
	// reports it only through IndexingResult.
	Queue
)

func (p RecoveryPolicy) String() string {
	switch p {
	case FailFast:
		return "fail_fast"
	case Queue:
		return "queue"
	default:
		return "unknown"
	}
}

type operation string

const (
	opStartup      operation = "startup"
	opAnalysis     operation = "analysis"
	opDeleteByKeys operation = "delete_by_keys"
	opCommit       operation = "commit"
	opReplay       operation = "replay"
)

// recoveryPolicies is the per-operation failure policy. Operations with no
// durable fallback fail fast; operations backed by queue rows never fail.
var recoveryPolicies = map[operation]RecoveryPolicy{
	opStartup:      FailFast,
	opAnalysis:     FailFast,
	opDeleteByKeys: FailFast,
	opCommit:       Queue,
	opReplay:       Queue,
}

func policyFor(op operation) RecoveryPolicy {
	if p, ok := recoveryPolicies[op]; ok {
		return p
	}
	return FailFast
}

// queueListener follows the bulk writes of a Queue operation and decides
// which queue items they resolve.
type queueListener interface {
	onSuccess(keys []string)
	onFailure(keys []string, err error)
	// resolved returns the items whose replay reached the index.
	resolved() []*store.QueueItem
}

// oneToOneListener resolves an item as soon as the document of its key is written.
// Several items may share a key; they resolve together.
type oneToOneListener struct {
	items     map[string][]*store.QueueItem
	succeeded map[string]bool
}

func newOneToOneListener(items map[string][]*store.QueueItem) *oneToOneListener {
	return &oneToOneListener{items: items, succeeded: make(map[string]bool, len(items))}
}

func (l *oneToOneListener) onSuccess(keys []string) {
	for _, k := range keys {
		l.succeeded[k] = true
	}
}

func (l *oneToOneListener) onFailure(keys []string, err error) {
	for _, k := range keys {
		delete(l.succeeded, k)
	}
}

func (l *oneToOneListener) resolved() []*store.QueueItem {
	var out []*store.QueueItem
	for k, items := range l.items {
		if l.succeeded[k] {
			out = append(out, items...)
		}
	}
	return out
}

// oneToManyListener resolves its items only when every write of the pass succeeded.
type oneToManyListener struct {
	items  []*store.QueueItem
	failed bool
}

func (l *oneToManyListener) onSuccess(keys []string) {}

func (l *oneToManyListener) onFailure(keys []string, err error) {
	l.failed = true
}

func (l *oneToManyListener) resolved() []*store.QueueItem {
	if l.failed {
		return nil
	}
	return l.items
}

// settle removes the resolved items of a replay from the queue and commits the
// session, so rows added earlier in it persist. Items whose removal cannot be
// committed stay queued and count as failures.
func settle(ctx context.Context, s *store.Session, total int, l queueListener) IndexingResult {
	var result IndexingResult
	done := l.resolved()
	if len(done) > 0 {
		if err := s.DeleteQueueItems(ctx, done...); err != nil {
			slog.Warn("queue_cleanup_failed",
				slog.Int("items", len(done)),
				slog.String("error", err.Error()))
			done = nil
		}
	}
	if err := s.Commit(); err != nil {
		slog.Warn("queue_commit_failed",
			slog.Int("items", len(done)),
			slog.String("error", err.Error()))
		done = nil
	}
	result.succeed(len(done))
	result.fail(total - len(done))
	return result
}
