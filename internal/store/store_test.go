package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/issuesync/internal/errors"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), ".issuesync", "issues.db"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// seedBranch saves a project component, one file, one rule and n issues on that file.
func seedBranch(t *testing.T, s *Session, projectUUID, mainBranch string, n int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.UpsertComponent(ctx, &Component{
		UUID: projectUUID, OrganizationUUID: "org-1", Key: "proj:" + projectUUID,
		Scope: ScopeProject, Qualifier: QualifierProject, ProjectUUID: projectUUID,
		ModuleUUIDPath: "." + projectUUID + ".", MainBranchProjectUUID: mainBranch, Enabled: true,
	}))
	fileUUID := projectUUID + "-file"
	require.NoError(t, s.UpsertComponent(ctx, &Component{
		UUID: fileUUID, OrganizationUUID: "org-1", Key: "proj:src/main.go",
		Scope: ScopeFile, Qualifier: QualifierFile, Path: "src/main.go", Language: "go",
		ProjectUUID: projectUUID, ModuleUUID: projectUUID, ModuleUUIDPath: "." + projectUUID + ".", Enabled: true,
	}))
	require.NoError(t, s.UpsertRule(ctx, &Rule{
		UUID: "rule-1", Repository: "go", RuleKey: "S2077", Language: "go",
		SecurityStandards: []string{"cwe:89", "owaspTop10:a1"},
	}))
	for i := 0; i < n; i++ {
		line := i + 1
		require.NoError(t, s.UpsertIssue(ctx, &Issue{
			Key: fmt.Sprintf("%s-issue-%03d", projectUUID, i), RuleUUID: "rule-1",
			ComponentUUID: fileUUID, ProjectUUID: projectUUID,
			Severity: "MAJOR", Status: "OPEN", Type: "VULNERABILITY", Line: &line,
			Tags:      []string{"sql", "security"},
			CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			UpdatedAt: time.Date(2026, 1, 3, 3, 4, 5, 0, time.UTC),
		}))
	}
}

func TestOpen_InMemory(t *testing.T) {
	db, err := Open("", Options{})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, DriverModernc, db.Driver())
	n, err := db.NewSession().CountIssues(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("", Options{Driver: "postgres"})
	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeStoreOpen, serrors.GetCode(err))
}

func TestDB_CloseTwice(t *testing.T) {
	db, err := Open("", Options{})
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.NoError(t, db.Close())
}

func TestSession_CommitPersists(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Given: a session that saved issues and committed
	s := db.NewSession()
	seedBranch(t, s, "prj-a", "", 3)
	assert.True(t, s.InTransaction())
	require.NoError(t, s.Commit())
	assert.False(t, s.InTransaction())

	// Then: another session sees them
	other := db.NewSession()
	defer other.Close()
	n, err := other.CountIssues(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSession_CloseRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// Given: a session that saved issues but never committed
	s := db.NewSession()
	seedBranch(t, s, "prj-a", "", 2)

	// When: it is closed
	require.NoError(t, s.Close())

	// Then: nothing was persisted
	other := db.NewSession()
	defer other.Close()
	n, err := other.CountIssues(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSession_ReusableAfterCommit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s := db.NewSession()
	defer s.Close()
	seedBranch(t, s, "prj-a", "", 1)
	require.NoError(t, s.Commit())

	// When: the same session deletes and commits again
	require.NoError(t, s.DeleteIssue(ctx, "prj-a-issue-000"))
	require.NoError(t, s.Commit())

	_, err := s.GetIssue(ctx, "prj-a-issue-000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIssues_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := db.NewSession()
	defer s.Close()
	seedBranch(t, s, "prj-a", "", 1)

	issue, err := s.GetIssue(ctx, "prj-a-issue-000")
	require.NoError(t, err)
	assert.Equal(t, "rule-1", issue.RuleUUID)
	assert.Equal(t, "prj-a", issue.ProjectUUID)
	assert.Equal(t, []string{"sql", "security"}, issue.Tags)
	require.NotNil(t, issue.Line)
	assert.Equal(t, 1, *issue.Line)
	assert.Nil(t, issue.Effort)
	assert.Nil(t, issue.ClosedAt)
	assert.True(t, issue.CreatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))

	// And: upserting again replaces fields
	issue.Status = "CLOSED"
	closed := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	issue.ClosedAt = &closed
	require.NoError(t, s.UpsertIssue(ctx, issue))

	updated, err := s.GetIssue(ctx, "prj-a-issue-000")
	require.NoError(t, err)
	assert.Equal(t, "CLOSED", updated.Status)
	require.NotNil(t, updated.ClosedAt)
	assert.True(t, updated.ClosedAt.Equal(closed))
}

func TestIssues_KeysAndProjects(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := db.NewSession()
	defer s.Close()
	seedBranch(t, s, "prj-a", "", 2)
	seedBranch(t, s, "prj-b", "prj-a", 1)

	keys, err := s.IssueKeysByProject(ctx, "prj-b")
	require.NoError(t, err)
	assert.Equal(t, []string{"prj-b-issue-000"}, keys)

	all, err := s.IssueKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	projects, err := s.ProjectUUIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"prj-a", "prj-b"}, projects)

	// When: a branch is deleted
	removed, err := s.DeleteProject(ctx, "prj-a")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	projects, err = s.ProjectUUIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"prj-b"}, projects)
	_, err = s.GetComponent(ctx, "prj-a-file")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestComponentAndRule_NotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := db.NewSession()
	defer s.Close()

	_, err := s.GetComponent(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetRule(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetIssue(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueue_SameDocIDTwiceYieldsTwoRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := db.NewSession()
	defer s.Close()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// When: the same doc id is queued twice
	require.NoError(t, s.InsertQueueItems(ctx, now,
		NewQueueItem("issues", "K1", DocIDTypeIssueKey, "prj-a"),
		NewQueueItem("issues", "K1", DocIDTypeIssueKey, "prj-a")))

	// Then: two rows exist with distinct uuids
	n, err := s.CountQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	items, err := s.SelectQueueForRecovery(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.NotEqual(t, items[0].UUID, items[1].UUID)
	assert.Equal(t, "prj-a", items[0].DocRouting)
	assert.Equal(t, DocIDTypeIssueKey, items[0].DocIDType)
}

func TestQueue_SelectForRecovery(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := db.NewSession()
	defer s.Close()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Given: rows at t, t+1m and t+10m
	old := NewQueueItem("issues", "old", DocIDTypeIssueKey, "")
	old.CreatedAt = base
	mid := NewQueueItem("issues", "mid", DocIDTypeIssueKey, "")
	mid.CreatedAt = base.Add(time.Minute)
	young := NewQueueItem("issues", "young", DocIDTypeIssueKey, "")
	young.CreatedAt = base.Add(10 * time.Minute)
	require.NoError(t, s.InsertQueueItems(ctx, base, young, mid, old))

	// When: selecting rows older than t+5m
	items, err := s.SelectQueueForRecovery(ctx, base.Add(5*time.Minute), 10)
	require.NoError(t, err)

	// Then: only old rows come back, oldest first
	require.Len(t, items, 2)
	assert.Equal(t, "old", items[0].DocID)
	assert.Equal(t, "mid", items[1].DocID)

	// And: the limit applies
	items, err = s.SelectQueueForRecovery(ctx, base.Add(time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "old", items[0].DocID)

	oldest, err := s.OldestQueueItemAt(ctx)
	require.NoError(t, err)
	assert.True(t, oldest.Equal(base))
}

func TestQueue_DeleteByUUID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := db.NewSession()
	defer s.Close()
	now := time.Now()

	a := NewQueueItem("issues", "K1", DocIDTypeIssueKey, "")
	b := NewQueueItem("issues", "K1", DocIDTypeIssueKey, "")
	require.NoError(t, s.InsertQueueItems(ctx, now, a, b))

	// When: one of two rows for the same doc id is deleted
	require.NoError(t, s.DeleteQueueItems(ctx, a))

	// Then: the other remains
	items, err := s.SelectQueueForRecovery(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, b.UUID, items[0].UUID)
}

func TestQueue_EmptyOldest(t *testing.T) {
	db := newTestDB(t)
	s := db.NewSession()
	defer s.Close()

	oldest, err := s.OldestQueueItemAt(context.Background())
	require.NoError(t, err)
	assert.True(t, oldest.IsZero())
}

func TestScrollIssues_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := db.NewSession()
	defer s.Close()
	seedBranch(t, s, "prj-a", "", 3)
	seedBranch(t, s, "prj-b", "prj-a", 2)

	collect := func(f IssueFilter) []string {
		var keys []string
		for row, err := range s.ScrollIssues(ctx, f) {
			require.NoError(t, err)
			keys = append(keys, row.Issue.Key)
		}
		return keys
	}

	assert.Len(t, collect(IssueFilter{}), 5)
	assert.Equal(t, []string{"prj-b-issue-000", "prj-b-issue-001"}, collect(IssueFilter{ProjectUUID: "prj-b"}))
	assert.Len(t, collect(IssueFilter{ExcludedProjectUUIDs: []string{"prj-b"}}), 3)
	assert.Equal(t, []string{"prj-a-issue-001"}, collect(IssueFilter{Keys: []string{"prj-a-issue-001", "missing"}}))
	assert.Empty(t, collect(IssueFilter{Keys: []string{}}))
}

func TestScrollIssues_JoinsRuleAndComponents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := db.NewSession()
	defer s.Close()
	seedBranch(t, s, "prj-a", "", 0)
	seedBranch(t, s, "prj-b", "prj-a", 1)

	var rows []*IssueRow
	for row, err := range s.ScrollIssues(ctx, IssueFilter{ProjectUUID: "prj-b"}) {
		require.NoError(t, err)
		rows = append(rows, row)
	}
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "S2077", row.Rule.RuleKey)
	assert.Equal(t, []string{"cwe:89", "owaspTop10:a1"}, row.Rule.SecurityStandards)
	assert.Equal(t, "src/main.go", row.Component.Path)
	assert.Equal(t, ScopeFile, row.Component.Scope)
	assert.Equal(t, "org-1", row.OrganizationUUID)
	assert.Equal(t, "prj-a", row.MainBranchProjectUUID)
}

func TestScrollIssues_ProjectComponentNotYetSaved(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := db.NewSession()
	defer s.Close()

	// Given: an issue whose project component has not been saved
	seedBranch(t, s, "prj-a", "", 0)
	require.NoError(t, s.UpsertIssue(ctx, &Issue{
		Key: "late", RuleUUID: "rule-1", ComponentUUID: "prj-a-file", ProjectUUID: "prj-late",
		Status: "OPEN", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}))

	// When: scrolling by key
	var rows []*IssueRow
	for row, err := range s.ScrollIssues(ctx, IssueFilter{Keys: []string{"late"}}) {
		require.NoError(t, err)
		rows = append(rows, row)
	}

	// Then: the issue comes back with the organization of its component
	require.Len(t, rows, 1)
	assert.Equal(t, "prj-late", rows[0].Issue.ProjectUUID)
	assert.Equal(t, "org-1", rows[0].OrganizationUUID)
	assert.Empty(t, rows[0].MainBranchProjectUUID)
}

func TestScrollIssues_ManyKeysChunked(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := db.NewSession()
	defer s.Close()
	seedBranch(t, s, "prj-a", "", maxParams+10)

	keys, err := s.IssueKeys(ctx)
	require.NoError(t, err)

	count := 0
	for _, err := range s.ScrollIssues(ctx, IssueFilter{Keys: keys}) {
		require.NoError(t, err)
		count++
	}
	assert.Equal(t, maxParams+10, count)
}

func TestScrollIssues_EarlyBreak(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := db.NewSession()
	defer s.Close()
	seedBranch(t, s, "prj-a", "", 5)

	for row, err := range s.ScrollIssues(ctx, IssueFilter{}) {
		require.NoError(t, err)
		require.NotNil(t, row)
		break
	}

	// The connection is free again after breaking out.
	n, err := s.CountIssues(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestDirLock_SecondHolderRejected(t *testing.T) {
	dir := t.TempDir()

	first := NewDirLock(dir)
	require.NoError(t, first.TryLock())
	defer first.Unlock()

	second := NewDirLock(dir)
	err := second.TryLock()
	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeStoreLocked, serrors.GetCode(err))

	// After release the lock can be taken again.
	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	assert.NoError(t, second.Unlock())
	assert.NoError(t, second.Unlock())
}

func TestIssues_ExistingIssueKeys(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := db.NewSession()
	defer s.Close()
	seedBranch(t, s, "prj-a", "", 2)

	found, err := s.ExistingIssueKeys(ctx, []string{"prj-a-issue-000", "gone"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"prj-a-issue-000": true}, found)

	found, err = s.ExistingIssueKeys(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, found)
}
