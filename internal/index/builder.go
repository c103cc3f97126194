package index

import (
	"context"
	"iter"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/issuesync/internal/searchindex"
	"github.com/Aman-CERP/issuesync/internal/security"
	"github.com/Aman-CERP/issuesync/internal/store"
)

// DefaultStandardsCacheSize bounds the classifications kept by a Builder.
const DefaultStandardsCacheSize = 1024

// Scope selects the issues a Builder turns into documents.
type Scope struct {
	name   string
	filter store.IssueFilter
}

// ScopeAll selects every issue except those on the excluded branches.
func ScopeAll(excludedBranchUUIDs ...string) Scope {
	return Scope{name: "all", filter: store.IssueFilter{ExcludedProjectUUIDs: excludedBranchUUIDs}}
}

// ScopeProject selects the issues of one branch.
func ScopeProject(branchUUID string) Scope {
	return Scope{name: "project", filter: store.IssueFilter{ProjectUUID: branchUUID}}
}

// ScopeKeys selects the issues with the given keys. No keys selects nothing.
func ScopeKeys(keys ...string) Scope {
	if keys == nil {
		keys = []string{}
	}
	return Scope{name: "keys", filter: store.IssueFilter{Keys: keys}}
}

func (s Scope) String() string {
	return s.name
}

// Builder projects issue rows into search documents.
type Builder struct {
	standards *lru.Cache[string, security.Classification]
}

// NewBuilder creates a builder caching up to cacheSize security classifications.
func NewBuilder(cacheSize int) *Builder {
	if cacheSize <= 0 {
		cacheSize = DefaultStandardsCacheSize
	}
	cache, _ := lru.New[string, security.Classification](cacheSize)
	return &Builder{standards: cache}
}

// Documents streams the documents of the issues in scope. The sequence is
// lazy, and each range over it runs the store query again. Rows stay open
// while the caller consumes the sequence, so the caller must not use s for
// anything else until the range ends.
func (b *Builder) Documents(ctx context.Context, s *store.Session, scope Scope) iter.Seq2[*searchindex.Document, error] {
	return func(yield func(*searchindex.Document, error) bool) {
		for row, err := range s.ScrollIssues(ctx, scope.filter) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(b.Document(row), nil) {
				return
			}
		}
	}
}

// Document projects one joined issue row.
func (b *Builder) Document(row *store.IssueRow) *searchindex.Document {
	issue := &row.Issue
	doc := &searchindex.Document{
		Key:           issue.Key,
		Organization:  row.OrganizationUUID,
		Assignee:      issue.Assignee,
		Author:        issue.Author,
		ComponentUUID: issue.ComponentUUID,
		BranchUUID:    issue.ProjectUUID,
		ModuleUUID:    row.Component.ModuleUUID,
		ModulePath:    row.Component.ModuleUUIDPath,
		Language:      row.Component.Language,
		RuleUUID:      row.Rule.UUID,
		RuleKey:       row.Rule.Repository + ":" + row.Rule.RuleKey,
		Severity:      issue.Severity,
		Status:        issue.Status,
		Resolution:    issue.Resolution,
		Type:          issue.Type,
		Tags:          issue.Tags,
		Effort:        issue.Effort,
		Line:          issue.Line,
		CreatedAt:     issue.CreatedAt,
		UpdatedAt:     issue.UpdatedAt,
		ClosedAt:      issue.ClosedAt,
	}

	if row.MainBranchProjectUUID == "" {
		doc.ProjectUUID = issue.ProjectUUID
		doc.IsMainBranch = true
	} else {
		doc.ProjectUUID = row.MainBranchProjectUUID
	}

	doc.FilePath, doc.DirectoryPath = DerivePaths(row.Component.Scope, row.Component.Path)

	c := b.classify(row.Rule.SecurityStandards)
	doc.CWE = slices.Clone(c.CWE)
	doc.OWASPTop10 = slices.Clone(c.OWASPTop10)
	doc.SANSTop25 = slices.Clone(c.SANSTop25)
	doc.SonarSourceSecurity = c.SonarSourceSecurity
	return doc
}

// classify memoizes security.Classify on the declared standards themselves,
// so an edited rule never reads a stale entry.
func (b *Builder) classify(standards []string) security.Classification {
	key := strings.Join(standards, ",")
	if c, ok := b.standards.Get(key); ok {
		return c
	}
	c := security.Classify(standards)
	b.standards.Add(key, c)
	return c
}
