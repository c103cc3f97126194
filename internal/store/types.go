// Package store is the authoritative relational store: issues, the components
// and rules they reference, and the es_queue recovery table that records pending
// reconciliations with the search index.
package store

import (
	"context"
	"database/sql"
	"time"
)

// Component scopes.
const (
	ScopeProject   = "PRJ"
	ScopeDirectory = "DIR"
	ScopeFile      = "FIL"
)

// Component qualifiers.
const (
	QualifierProject   = "TRK"
	QualifierModule    = "BRC"
	QualifierDirectory = "DIR"
	QualifierFile      = "FIL"
	QualifierUnitTest  = "UTS"
)

// Queue item doc id types.
const (
	DocIDTypeIssueKey    = "ISSUE_KEY"
	DocIDTypeProjectUUID = "PROJECT_UUID"
)

// Issue is a row of the issues table.
type Issue struct {
	Key           string
	RuleUUID      string
	ComponentUUID string
	// ProjectUUID is the uuid of the project component of the branch the issue belongs to.
	ProjectUUID string
	Severity    string
	Status      string
	Resolution  string
	Type        string
	Assignee    string
	Author      string
	Line        *int
	Effort      *int64
	Tags        []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time

	// Deleted marks a dirty issue that is removed from the store instead of saved.
	Deleted bool
}

// Component is a row of the components table: a project (branch), module, directory or file.
type Component struct {
	UUID             string
	OrganizationUUID string
	Key              string
	Scope            string
	Qualifier        string
	// Path is relative to the module; empty for projects.
	Path     string
	Language string
	// ProjectUUID is the uuid of the project component this component belongs to.
	ProjectUUID    string
	ModuleUUID     string
	ModuleUUIDPath string
	// MainBranchProjectUUID is set on the project component of a non-main branch
	// and names the project component of its main branch.
	MainBranchProjectUUID string
	Enabled               bool
}

// Rule is a row of the rules table.
type Rule struct {
	UUID       string
	Repository string
	RuleKey    string
	Language   string
	// SecurityStandards holds prefixed tags such as "cwe:89" or "owaspTop10:a1".
	SecurityStandards []string
}

// QueueItem is a row of es_queue: the intent to reconcile one document id with the index.
// UUID is a surrogate id, so the same DocID may be queued any number of times.
type QueueItem struct {
	UUID       string
	DocType    string
	DocID      string
	DocIDType  string
	DocRouting string
	CreatedAt  time.Time
}

// IssueRow is one issue joined with its rule, component and project component.
type IssueRow struct {
	Issue     Issue
	Rule      Rule
	Component Component
	// OrganizationUUID and MainBranchProjectUUID come from the project component
	// when it is saved; otherwise the organization of Component and no main branch.
	OrganizationUUID      string
	MainBranchProjectUUID string
}

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)
