// Package testkit builds stores, indexes and fixtures for tests.
package testkit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/issuesync/internal/searchindex"
	"github.com/Aman-CERP/issuesync/internal/store"
)

// Fixed identifiers used by the fixtures.
const (
	Organization = "org-test"
	RuleUUID     = "rule-sql-injection"
)

// Created is the creation date of fixture issues.
var Created = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)

// Env is a store on disk and an in-memory index whose writes can be locked.
type Env struct {
	DB     *store.DB
	Index  *searchindex.Index
	Writes *searchindex.WriteSwitch
}

// NewEnv opens a fresh Env closed at the end of the test.
func NewEnv(t testing.TB) *Env {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "issues.db"), store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	writes := searchindex.NewWriteSwitch(false)
	idx, err := searchindex.Open("", searchindex.Options{Writes: writes})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	return &Env{DB: db, Index: idx, Writes: writes}
}

// FileUUID is the uuid of the file component of a fixture branch.
func FileUUID(branchUUID string) string {
	return branchUUID + ":file"
}

// DirectoryUUID is the uuid of the directory component of a fixture branch.
func DirectoryUUID(branchUUID string) string {
	return branchUUID + ":dir"
}

// SeedBranch saves a branch: its project component, a directory, a file and
// the fixture rule. An empty mainBranchUUID makes it a main branch.
func (e *Env) SeedBranch(t testing.TB, branchUUID, mainBranchUUID string) {
	t.Helper()
	ctx := context.Background()
	s := e.DB.NewSession()
	defer s.Close()

	modulePath := "." + branchUUID + "."
	components := []*store.Component{
		{
			UUID: branchUUID, OrganizationUUID: Organization, Key: "key-" + branchUUID,
			Scope: store.ScopeProject, Qualifier: store.QualifierProject, ProjectUUID: branchUUID,
			ModuleUUIDPath: modulePath, MainBranchProjectUUID: mainBranchUUID, Enabled: true,
		},
		{
			UUID: DirectoryUUID(branchUUID), OrganizationUUID: Organization, Key: "key-" + branchUUID + ":src/db",
			Scope: store.ScopeDirectory, Qualifier: store.QualifierDirectory, Path: "src/db",
			ProjectUUID: branchUUID, ModuleUUID: branchUUID, ModuleUUIDPath: modulePath, Enabled: true,
		},
		{
			UUID: FileUUID(branchUUID), OrganizationUUID: Organization, Key: "key-" + branchUUID + ":src/db/query.go",
			Scope: store.ScopeFile, Qualifier: store.QualifierFile, Path: "src/db/query.go", Language: "go",
			ProjectUUID: branchUUID, ModuleUUID: branchUUID, ModuleUUIDPath: modulePath, Enabled: true,
		},
	}
	for _, c := range components {
		require.NoError(t, s.UpsertComponent(ctx, c))
	}
	require.NoError(t, s.UpsertRule(ctx, &store.Rule{
		UUID: RuleUUID, Repository: "go", RuleKey: "S3649", Language: "go",
		SecurityStandards: []string{"cwe:89", "owaspTop10:a1"},
	}))
	require.NoError(t, s.Commit())
}

// NewIssue returns an unsaved issue on the file of a fixture branch.
func NewIssue(key, branchUUID string) *store.Issue {
	line := 42
	return &store.Issue{
		Key:           key,
		RuleUUID:      RuleUUID,
		ComponentUUID: FileUUID(branchUUID),
		ProjectUUID:   branchUUID,
		Severity:      "CRITICAL",
		Status:        "OPEN",
		Type:          "VULNERABILITY",
		Author:        "dev@example.com",
		Line:          &line,
		Tags:          []string{"security"},
		CreatedAt:     Created,
		UpdatedAt:     Created,
	}
}

// SaveIssues commits issues to the store without touching the index.
func (e *Env) SaveIssues(t testing.TB, issues ...*store.Issue) {
	t.Helper()
	ctx := context.Background()
	s := e.DB.NewSession()
	defer s.Close()
	for _, issue := range issues {
		require.NoError(t, s.UpsertIssue(ctx, issue))
	}
	require.NoError(t, s.Commit())
}

// IndexKeys returns the sorted keys of the index.
func (e *Env) IndexKeys(t testing.TB) []string {
	t.Helper()
	keys, err := e.Index.Keys(context.Background())
	require.NoError(t, err)
	return keys
}

// IndexCount returns the number of documents.
func (e *Env) IndexCount(t testing.TB) int {
	t.Helper()
	n, err := e.Index.Count(context.Background())
	require.NoError(t, err)
	return n
}

// QueueCount returns the number of es_queue rows.
func (e *Env) QueueCount(t testing.TB) int {
	t.Helper()
	s := e.DB.NewSession()
	defer s.Close()
	n, err := s.CountQueue(context.Background())
	require.NoError(t, err)
	return n
}

// StoreCount returns the number of issues in the store.
func (e *Env) StoreCount(t testing.TB) int {
	t.Helper()
	s := e.DB.NewSession()
	defer s.Close()
	n, err := s.CountIssues(context.Background())
	require.NoError(t, err)
	return n
}

// Queue returns every es_queue row, oldest first.
func (e *Env) Queue(t testing.TB) []*store.QueueItem {
	t.Helper()
	s := e.DB.NewSession()
	defer s.Close()
	items, err := s.SelectQueueForRecovery(context.Background(), time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC), 1<<20)
	require.NoError(t, err)
	return items
}
