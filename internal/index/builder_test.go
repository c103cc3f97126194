package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/issuesync/internal/security"
	"github.com/Aman-CERP/issuesync/internal/store"
	"github.com/Aman-CERP/issuesync/internal/testkit"
)

func row(scope, path, mainBranch string, standards ...string) *store.IssueRow {
	return &store.IssueRow{
		Issue:                 *testkit.NewIssue("I1", "B1"),
		Rule:                  store.Rule{UUID: "r1", Repository: "java", RuleKey: "S2076", SecurityStandards: standards},
		Component:             store.Component{UUID: "c1", Scope: scope, Path: path, ModuleUUID: "B1", ModuleUUIDPath: ".B1."},
		OrganizationUUID:      "org-1",
		MainBranchProjectUUID: mainBranch,
	}
}

func TestBuilder_Document_MainBranch(t *testing.T) {
	doc := NewBuilder(0).Document(row(store.ScopeFile, "src/App.java", ""))

	assert.Equal(t, "B1", doc.ProjectUUID)
	assert.Equal(t, "B1", doc.BranchUUID)
	assert.True(t, doc.IsMainBranch)
	assert.Equal(t, "java:S2076", doc.RuleKey)
	assert.Equal(t, ".B1.", doc.ModulePath)
	require.NotNil(t, doc.DirectoryPath)
	assert.Equal(t, "src", *doc.DirectoryPath)
}

func TestBuilder_Document_NonMainBranch(t *testing.T) {
	doc := NewBuilder(0).Document(row(store.ScopeFile, "App.java", "P1"))

	assert.Equal(t, "P1", doc.ProjectUUID)
	assert.Equal(t, "B1", doc.BranchUUID)
	assert.False(t, doc.IsMainBranch)
	require.NotNil(t, doc.DirectoryPath)
	assert.Equal(t, RootDirectory, *doc.DirectoryPath)
}

func TestBuilder_Document_ProjectScopedIssue(t *testing.T) {
	doc := NewBuilder(0).Document(row(store.ScopeProject, "", ""))

	assert.Nil(t, doc.FilePath)
	assert.Nil(t, doc.DirectoryPath)
}

func TestBuilder_Document_SecurityStandards(t *testing.T) {
	b := NewBuilder(4)

	none := b.Document(row(store.ScopeFile, "a.go", ""))
	assert.Equal(t, []string{security.Unknown}, none.CWE)
	assert.Equal(t, security.Unknown, none.SonarSourceSecurity)

	injection := b.Document(row(store.ScopeFile, "a.go", "", "cwe:78", "owaspTop10:a1"))
	assert.Equal(t, []string{"78"}, injection.CWE)
	assert.Equal(t, "command-injection", injection.SonarSourceSecurity)

	// A cached classification is not shared with the documents built from it.
	again := b.Document(row(store.ScopeFile, "a.go", "", "cwe:78", "owaspTop10:a1"))
	again.CWE[0] = "mutated"
	assert.Equal(t, []string{"78"}, injection.CWE)
	third := b.Document(row(store.ScopeFile, "a.go", "", "cwe:78", "owaspTop10:a1"))
	assert.Equal(t, []string{"78"}, third.CWE)
}

func TestBuilder_Documents_RestartsOnEachRange(t *testing.T) {
	env := testkit.NewEnv(t)
	ctx := context.Background()
	env.SeedBranch(t, "P1", "")
	env.SeedBranch(t, "P2", "")
	env.SaveIssues(t, testkit.NewIssue("I1", "P1"), testkit.NewIssue("I2", "P1"), testkit.NewIssue("I3", "P2"))

	b := NewBuilder(0)
	s := env.DB.NewSession()
	defer s.Close()

	collect := func(scope Scope) []string {
		var keys []string
		for doc, err := range b.Documents(ctx, s, scope) {
			require.NoError(t, err)
			keys = append(keys, doc.Key)
		}
		return keys
	}

	seq := ScopeProject("P1")
	assert.Equal(t, []string{"I1", "I2"}, collect(seq))
	assert.Equal(t, []string{"I1", "I2"}, collect(seq))
	assert.Equal(t, []string{"I1", "I2", "I3"}, collect(ScopeAll()))
	assert.Equal(t, []string{"I3"}, collect(ScopeAll("P1")))
	assert.Equal(t, []string{"I2"}, collect(ScopeKeys("I2", "missing")))
	assert.Empty(t, collect(ScopeKeys()))
}

func TestScope_String(t *testing.T) {
	assert.Equal(t, "all", ScopeAll().String())
	assert.Equal(t, "project", ScopeProject("P1").String())
	assert.Equal(t, "keys", ScopeKeys("I1").String())
}
