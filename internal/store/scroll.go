package store

import (
	"context"
	"database/sql"
	"iter"
	"strings"

	serrors "github.com/Aman-CERP/issuesync/internal/errors"
)

// IssueFilter narrows ScrollIssues. The zero value selects every issue.
type IssueFilter struct {
	// ProjectUUID restricts to the issues of one branch.
	ProjectUUID string
	// Keys restricts to the given issue keys. A non-nil empty slice selects nothing.
	Keys []string
	// ExcludedProjectUUIDs drops the issues of these branches.
	ExcludedProjectUUIDs []string
}

const scrollQuery = `SELECT ` + issueColumns + `,
	r.uuid, r.plugin_name, r.plugin_rule_key, r.language, r.security_standards,
	c.uuid, c.kee, c.scope, c.qualifier, c.path, c.language, c.project_uuid, c.module_uuid, c.module_uuid_path,
	COALESCE(p.organization_uuid, c.organization_uuid), p.main_branch_project_uuid
FROM issues i
INNER JOIN rules r ON r.uuid = i.rule_uuid
INNER JOIN components c ON c.uuid = i.component_uuid
LEFT JOIN components p ON p.uuid = i.project_uuid`

// ScrollIssues streams issues joined with their rule, component and project
// component. The project component may not be saved yet; such issues come back
// with the organization of their component and no main branch. Each range over
// the result runs the query again. Key lists are
// queried in chunks, so rows come back ordered by key within each chunk only.
func (s *Session) ScrollIssues(ctx context.Context, f IssueFilter) iter.Seq2[*IssueRow, error] {
	return func(yield func(*IssueRow, error) bool) {
		if f.Keys != nil && len(f.Keys) == 0 {
			return
		}
		if f.Keys == nil {
			s.scroll(ctx, f, nil, yield)
			return
		}
		for _, chunk := range chunks(f.Keys, maxParams) {
			if !s.scroll(ctx, f, chunk, yield) {
				return
			}
		}
	}
}

// scroll runs one query and reports whether the caller wants more rows.
func (s *Session) scroll(ctx context.Context, f IssueFilter, keys []string, yield func(*IssueRow, error) bool) bool {
	q, err := s.querier(ctx)
	if err != nil {
		yield(nil, err)
		return false
	}

	var (
		where []string
		args  []any
	)
	if f.ProjectUUID != "" {
		where = append(where, "i.project_uuid = ?")
		args = append(args, f.ProjectUUID)
	}
	if len(keys) > 0 {
		where = append(where, "i.kee IN ("+placeholders(len(keys))+")")
		for _, k := range keys {
			args = append(args, k)
		}
	}
	if len(f.ExcludedProjectUUIDs) > 0 {
		where = append(where, "i.project_uuid NOT IN ("+placeholders(len(f.ExcludedProjectUUIDs))+")")
		for _, u := range f.ExcludedProjectUUIDs {
			args = append(args, u)
		}
	}

	query := scrollQuery
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nORDER BY i.kee"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		yield(nil, serrors.StoreError("failed to scroll issues", err))
		return false
	}
	defer rows.Close()

	for rows.Next() {
		row, err := scanIssueRow(rows)
		if err != nil {
			yield(nil, serrors.StoreError("failed to scan issue row", err))
			return false
		}
		if !yield(row, nil) {
			return false
		}
	}
	if err := rows.Err(); err != nil {
		yield(nil, serrors.StoreError("failed to scroll issues", err))
		return false
	}
	return true
}

func scanIssueRow(rows *sql.Rows) (*IssueRow, error) {
	var (
		row                                        IssueRow
		ruleLanguage, standards                    sql.NullString
		path, language, moduleUUID, moduleUUIDPath sql.NullString
		organization, mainBranch                   sql.NullString
	)
	issue, err := scanIssue(rows,
		&row.Rule.UUID, &row.Rule.Repository, &row.Rule.RuleKey, &ruleLanguage, &standards,
		&row.Component.UUID, &row.Component.Key, &row.Component.Scope, &row.Component.Qualifier,
		&path, &language, &row.Component.ProjectUUID, &moduleUUID, &moduleUUIDPath,
		&organization, &mainBranch)
	if err != nil {
		return nil, err
	}

	row.Issue = *issue
	row.Rule.Language = ruleLanguage.String
	row.Rule.SecurityStandards = splitList(standards.String)
	row.Component.Path = path.String
	row.Component.Language = language.String
	row.Component.ModuleUUID = moduleUUID.String
	row.Component.ModuleUUIDPath = moduleUUIDPath.String
	row.Component.OrganizationUUID = organization.String
	row.OrganizationUUID = organization.String
	row.MainBranchProjectUUID = mainBranch.String
	return &row, nil
}
