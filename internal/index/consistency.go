package index

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/Aman-CERP/issuesync/internal/searchindex"
	"github.com/Aman-CERP/issuesync/internal/store"
)

// InconsistencyType categorizes detected issues.
type InconsistencyType int

const (
	// InconsistencyOrphan is a document with no issue row behind it.
	InconsistencyOrphan InconsistencyType = iota
	// InconsistencyMissing is an issue row with no document.
	InconsistencyMissing
)

func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphan:
		return "orphan"
	case InconsistencyMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Inconsistency is one key on which the store and the index disagree.
type Inconsistency struct {
	Type     InconsistencyType
	IssueKey string
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// StoreIssues and IndexDocuments are the sizes of both sides.
	StoreIssues     int
	IndexDocuments  int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// Consistent reports whether both sides hold the same keys.
func (r *CheckResult) Consistent() bool {
	return len(r.Inconsistencies) == 0
}

// Count returns the number of inconsistencies of type t.
func (r *CheckResult) Count(t InconsistencyType) int {
	n := 0
	for _, i := range r.Inconsistencies {
		if i.Type == t {
			n++
		}
	}
	return n
}

// ConsistencyChecker compares the issue keys of the store with the document
// keys of the index. It only compares keys, not document contents.
type ConsistencyChecker struct {
	db    *store.DB
	index *searchindex.Index
	now   func() time.Time
}

// NewConsistencyChecker creates a checker over the given store and index.
func NewConsistencyChecker(db *store.DB, idx *searchindex.Index) *ConsistencyChecker {
	return &ConsistencyChecker{db: db, index: idx, now: time.Now}
}

// Check lists orphan and missing documents, orphans first, each sorted by key.
func (c *ConsistencyChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	s := c.db.NewSession()
	storeKeys, err := s.IssueKeys(ctx)
	_ = s.Close()
	if err != nil {
		return nil, err
	}
	indexKeys, err := c.index.Keys(ctx)
	if err != nil {
		return nil, err
	}

	inStore := make(map[string]bool, len(storeKeys))
	for _, k := range storeKeys {
		inStore[k] = true
	}
	inIndex := make(map[string]bool, len(indexKeys))
	for _, k := range indexKeys {
		inIndex[k] = true
	}

	var issues []Inconsistency
	for _, k := range indexKeys {
		if !inStore[k] {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphan, IssueKey: k})
		}
	}
	for _, k := range storeKeys {
		if !inIndex[k] {
			issues = append(issues, Inconsistency{Type: InconsistencyMissing, IssueKey: k})
		}
	}

	return &CheckResult{
		StoreIssues:     len(storeKeys),
		IndexDocuments:  len(indexKeys),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// Repair queues one ISSUE_KEY item per inconsistency and commits them. Keyed
// replay then rewrites missing documents and deletes orphans.
func (c *ConsistencyChecker) Repair(ctx context.Context, issues []Inconsistency) ([]*store.QueueItem, error) {
	if len(issues) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(issues))
	for _, i := range issues {
		keys = append(keys, i.IssueKey)
	}
	slices.Sort(keys)
	keys = slices.Compact(keys)

	items := make([]*store.QueueItem, len(keys))
	for i, k := range keys {
		items[i] = store.NewQueueItem(searchindex.IndexTypeIssue, k, store.DocIDTypeIssueKey, "")
	}

	s := c.db.NewSession()
	defer s.Close()
	if err := s.InsertQueueItems(ctx, c.now(), items...); err != nil {
		return nil, err
	}
	if err := s.Commit(); err != nil {
		return nil, err
	}

	slog.Info("consistency_repair_queued", slog.Int("items", len(items)))
	return items, nil
}
