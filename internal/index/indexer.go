// Package index keeps the issue search index in sync with the store.
//
// Every write path goes through the Indexer, which materializes documents
// with the Builder and applies the recovery policy of the operation: fail
// fast, or keep es_queue rows for the Recovery Processor to replay.
package index

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/Aman-CERP/issuesync/internal/searchindex"
	"github.com/Aman-CERP/issuesync/internal/store"
)

// Config configures an Indexer.
type Config struct {
	DB      *store.DB
	Index   *searchindex.Index
	Builder *Builder
	// BulkSize is the number of operations per index batch.
	BulkSize int
	// Now stamps queue rows. Defaults to time.Now.
	Now func() time.Time
}

// Indexer orchestrates every write to the issue search index.
type Indexer struct {
	db       *store.DB
	index    *searchindex.Index
	builder  *Builder
	bulkSize int
	now      func() time.Time
}

// NewIndexer creates an Indexer.
func NewIndexer(cfg Config) *Indexer {
	builder := cfg.Builder
	if builder == nil {
		builder = NewBuilder(DefaultStandardsCacheSize)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Indexer{
		db:       cfg.DB,
		index:    cfg.Index,
		builder:  builder,
		bulkSize: cfg.BulkSize,
		now:      now,
	}
}

// IndexType is the index type whose queue items this indexer replays.
func (x *Indexer) IndexType() string {
	return searchindex.IndexTypeIssue
}

// AuthorizationScope describes the ownership records the read side checks
// for issue documents.
func (x *Indexer) AuthorizationScope() AuthorizationScope {
	return issueAuthorizationScope
}

// IndexOnStartup writes the document of every issue not on an excluded branch.
// It creates no queue rows: a failure is returned and the caller starts over.
// Documents go out in batches of the bulk size, so batches flushed before the
// failing one stay written; the rerun rewrites them.
func (x *Indexer) IndexOnStartup(ctx context.Context, excludedBranchUUIDs []string) error {
	start := time.Now()
	n, err := x.rebuild(ctx, opStartup, ScopeAll(excludedBranchUUIDs...))
	if err != nil {
		return err
	}
	slog.Info("index_on_startup_complete",
		slog.Int("documents", n),
		slog.Int("excluded_branches", len(excludedBranchUUIDs)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// IndexOnAnalysis rewrites the documents of the issues currently on a branch.
// Documents of issues no longer in the store are left alone, and a failure is
// returned without queuing anything.
func (x *Indexer) IndexOnAnalysis(ctx context.Context, branchUUID string) error {
	n, err := x.rebuild(ctx, opAnalysis, ScopeProject(branchUUID))
	if err != nil {
		return err
	}
	slog.Info("index_on_analysis_complete",
		slog.String("branch_uuid", branchUUID),
		slog.Int("documents", n))
	return nil
}

func (x *Indexer) rebuild(ctx context.Context, op operation, scope Scope) (int, error) {
	s := x.db.NewSession()
	defer s.Close()

	bulk := newBulkIndexer(x.index, op, x.bulkSize, nil)
	n := 0
	for doc, err := range x.builder.Documents(ctx, s, scope) {
		if err != nil {
			return n, err
		}
		if err := bulk.upsert(ctx, doc); err != nil {
			return n, err
		}
		n++
	}
	if err := bulk.finish(ctx); err != nil {
		return n, err
	}
	return n, nil
}

// CommitAndIndexIssues saves the dirty issues and their queue rows in one
// transaction, then writes their documents. Issues flagged Deleted, or gone
// from the store by then, are deleted from the index. Index failures leave the
// queue rows in place and show only in the result; the error reports a failure
// to save the issues, in which case nothing was committed.
func (x *Indexer) CommitAndIndexIssues(ctx context.Context, s *store.Session, issues []*store.Issue) (IndexingResult, error) {
	if len(issues) == 0 {
		return IndexingResult{}, nil
	}

	items := make([]*store.QueueItem, 0, len(issues))
	for _, issue := range issues {
		var err error
		if issue.Deleted {
			err = s.DeleteIssue(ctx, issue.Key)
		} else {
			err = s.UpsertIssue(ctx, issue)
		}
		if err != nil {
			_ = s.Rollback()
			return IndexingResult{}, err
		}
		items = append(items, store.NewQueueItem(searchindex.IndexTypeIssue, issue.Key, store.DocIDTypeIssueKey, issue.ProjectUUID))
	}
	if err := s.InsertQueueItems(ctx, x.now(), items...); err != nil {
		_ = s.Rollback()
		return IndexingResult{}, err
	}
	if err := s.Commit(); err != nil {
		return IndexingResult{}, err
	}

	return x.replay(ctx, s, opCommit, items), nil
}

// Index replays queue items. An ISSUE_KEY item rewrites the document of the
// issue, or deletes it when the issue is gone. A PROJECT_UUID item rewrites
// the issues of the branch and deletes the documents of that project with no
// issue behind them. Items of any other id type are logged and left queued.
// Resolved items are removed from the queue; nothing is returned as an error.
func (x *Indexer) Index(ctx context.Context, s *store.Session, items []*store.QueueItem) IndexingResult {
	return x.replay(ctx, s, opReplay, items)
}

func (x *Indexer) replay(ctx context.Context, s *store.Session, op operation, items []*store.QueueItem) IndexingResult {
	var result IndexingResult
	byKey := make(map[string][]*store.QueueItem)
	byProject := make(map[string][]*store.QueueItem)
	issueItems := 0
	for _, item := range items {
		switch item.DocIDType {
		case store.DocIDTypeIssueKey:
			byKey[item.DocID] = append(byKey[item.DocID], item)
			issueItems++
		case store.DocIDTypeProjectUUID:
			byProject[item.DocID] = append(byProject[item.DocID], item)
		default:
			slog.Error("unsupported_doc_id_type",
				slog.String("queue_uuid", item.UUID),
				slog.String("doc_id", item.DocID),
				slog.String("doc_id_type", item.DocIDType),
				slog.String("hint", "the row stays in es_queue until it is removed by hand"))
			result.fail(1)
		}
	}

	if issueItems > 0 {
		result = result.Add(x.replayIssues(ctx, s, op, byKey, issueItems))
	}
	projects := make([]string, 0, len(byProject))
	for uuid := range byProject {
		projects = append(projects, uuid)
	}
	slices.Sort(projects)
	for _, uuid := range projects {
		result = result.Add(x.replayProject(ctx, s, op, uuid, byProject[uuid]))
	}

	// Unsupported items alone never reach settle.
	if err := s.Commit(); err != nil {
		slog.Warn("queue_commit_failed", slog.String("error", err.Error()))
	}

	if result.Total > 0 {
		level := slog.LevelDebug
		if !result.IsSuccess() {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "replay_complete",
			slog.String("operation", string(op)),
			slog.Int("total", result.Total),
			slog.Int("success", result.Success),
			slog.Int("failures", result.Failures))
	}
	return result
}

func (x *Indexer) replayIssues(ctx context.Context, s *store.Session, op operation, byKey map[string][]*store.QueueItem, total int) IndexingResult {
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	listener := newOneToOneListener(byKey)
	bulk := newBulkIndexer(x.index, op, x.bulkSize, listener)

	found := make(map[string]bool, len(keys))
	var scrollErr error
	for doc, err := range x.builder.Documents(ctx, s, ScopeKeys(keys...)) {
		if err != nil {
			scrollErr = err
			break
		}
		found[doc.Key] = true
		_ = bulk.upsert(ctx, doc)
	}

	if scrollErr != nil {
		// Unwritten keys are unresolved and stay queued.
		slog.Warn("replay_scroll_failed",
			slog.Int("keys", len(keys)),
			slog.String("error", scrollErr.Error()))
	} else if err := x.deleteMissing(ctx, s, bulk, keys, found); err != nil {
		slog.Warn("replay_existence_check_failed",
			slog.Int("keys", len(keys)),
			slog.String("error", err.Error()))
	}
	_ = bulk.finish(ctx)

	return settle(ctx, s, total, listener)
}

// deleteMissing deletes the documents of the keys the scroll did not return
// and that have no issue row. Keys with a row that could not be built stay
// queued.
func (x *Indexer) deleteMissing(ctx context.Context, s *store.Session, bulk *bulkIndexer, keys []string, found map[string]bool) error {
	var missing []string
	for _, k := range keys {
		if !found[k] {
			missing = append(missing, k)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	existing, err := s.ExistingIssueKeys(ctx, missing)
	if err != nil {
		return err
	}
	for _, k := range missing {
		if existing[k] {
			slog.Warn("issue_not_buildable",
				slog.String("issue_key", k),
				slog.String("hint", "the rule or component of the issue is missing; the row stays queued"))
			continue
		}
		_ = bulk.delete(ctx, k)
	}
	return nil
}

func (x *Indexer) replayProject(ctx context.Context, s *store.Session, op operation, projectUUID string, items []*store.QueueItem) IndexingResult {
	listener := &oneToManyListener{items: items}
	bulk := newBulkIndexer(x.index, op, x.bulkSize, listener)

	current := make(map[string]bool)
	for doc, err := range x.builder.Documents(ctx, s, ScopeProject(projectUUID)) {
		if err != nil {
			listener.onFailure(nil, err)
			break
		}
		current[doc.Key] = true
		_ = bulk.upsert(ctx, doc)
	}
	if !listener.failed {
		if err := x.deleteOrphans(ctx, s, bulk, projectUUID, current); err != nil {
			slog.Warn("orphan_scan_failed",
				slog.String("project_uuid", projectUUID),
				slog.String("error", err.Error()))
			listener.onFailure(nil, err)
		}
	}
	_ = bulk.finish(ctx)

	return settle(ctx, s, len(items), listener)
}

// deleteOrphans removes the documents of a project that no issue row backs.
func (x *Indexer) deleteOrphans(ctx context.Context, s *store.Session, bulk *bulkIndexer, projectUUID string, current map[string]bool) error {
	indexed, err := x.index.KeysByProject(ctx, projectUUID)
	if err != nil {
		return err
	}
	var candidates []string
	for _, k := range indexed {
		if !current[k] {
			candidates = append(candidates, k)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	// Documents of other branches of the project match too; keep those with a row.
	existing, err := s.ExistingIssueKeys(ctx, candidates)
	if err != nil {
		return err
	}
	for _, k := range candidates {
		if !existing[k] {
			_ = bulk.delete(ctx, k)
		}
	}
	return nil
}

// DeleteByKeys removes documents from the index in one batch. It is not
// recoverable: on failure the error is returned, no queue row is written and
// the documents stay; the caller retries.
func (x *Indexer) DeleteByKeys(ctx context.Context, projectUUID string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	bulk := newBulkIndexer(x.index, opDeleteByKeys, len(keys), nil)
	for _, k := range keys {
		if err := bulk.delete(ctx, k); err != nil {
			return err
		}
	}
	if err := bulk.finish(ctx); err != nil {
		return err
	}
	slog.Info("issues_deleted_from_index",
		slog.String("project_uuid", projectUUID),
		slog.Int("keys", len(keys)))
	return nil
}

// PrepareForRecovery returns the queue items a project-level pass for cause
// needs, added to s without committing. Only DELETION needs any: one ISSUE_KEY
// item per document indexed under those projects.
func (x *Indexer) PrepareForRecovery(ctx context.Context, s *store.Session, projectUUIDs []string, cause Cause) ([]*store.QueueItem, error) {
	if !cause.ProducesRecoveryWork() {
		return nil, nil
	}

	var items []*store.QueueItem
	seen := make(map[string]bool)
	for _, uuid := range projectUUIDs {
		keys, err := x.index.KeysByProject(ctx, uuid)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if seen[k] {
				continue
			}
			seen[k] = true
			items = append(items, store.NewQueueItem(searchindex.IndexTypeIssue, k, store.DocIDTypeIssueKey, uuid))
		}
	}
	if err := s.InsertQueueItems(ctx, x.now(), items...); err != nil {
		return nil, err
	}

	slog.Info("recovery_prepared",
		slog.String("cause", cause.String()),
		slog.Int("projects", len(projectUUIDs)),
		slog.Int("items", len(items)))
	return items, nil
}

// DeleteProjects removes branches from the store and their documents from
// the index. The store deletion and the queue rows commit together; the rows
// then replay as tombstones, and stay queued if the index is unavailable.
func (x *Indexer) DeleteProjects(ctx context.Context, projectUUIDs []string) (IndexingResult, error) {
	s := x.db.NewSession()
	defer s.Close()

	items, err := x.PrepareForRecovery(ctx, s, projectUUIDs, CauseDeletion)
	if err != nil {
		return IndexingResult{}, err
	}
	for _, uuid := range projectUUIDs {
		n, err := s.DeleteProject(ctx, uuid)
		if err != nil {
			_ = s.Rollback()
			return IndexingResult{}, err
		}
		slog.Info("project_deleted",
			slog.String("project_uuid", uuid),
			slog.Int("issues", n))
	}
	if err := s.Commit(); err != nil {
		return IndexingResult{}, err
	}
	return x.Index(ctx, s, items), nil
}
