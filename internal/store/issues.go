package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	serrors "github.com/Aman-CERP/issuesync/internal/errors"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

// UpsertIssue inserts or replaces an issue.
func (s *Session) UpsertIssue(ctx context.Context, issue *Issue) error {
	q, err := s.querier(ctx)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO issues (kee, rule_uuid, component_uuid, project_uuid, severity, status, resolution,
			issue_type, assignee, author_login, line, effort, tags,
			issue_creation_date, issue_update_date, issue_close_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kee) DO UPDATE SET
			rule_uuid = excluded.rule_uuid,
			component_uuid = excluded.component_uuid,
			project_uuid = excluded.project_uuid,
			severity = excluded.severity,
			status = excluded.status,
			resolution = excluded.resolution,
			issue_type = excluded.issue_type,
			assignee = excluded.assignee,
			author_login = excluded.author_login,
			line = excluded.line,
			effort = excluded.effort,
			tags = excluded.tags,
			issue_creation_date = excluded.issue_creation_date,
			issue_update_date = excluded.issue_update_date,
			issue_close_date = excluded.issue_close_date`,
		issue.Key, issue.RuleUUID, issue.ComponentUUID, issue.ProjectUUID,
		nullString(issue.Severity), nullString(issue.Status), nullString(issue.Resolution),
		nullString(issue.Type), nullString(issue.Assignee), nullString(issue.Author),
		nullInt(issue.Line), nullInt64(issue.Effort), nullString(joinList(issue.Tags)),
		millis(issue.CreatedAt), millis(issue.UpdatedAt), nullMillis(issue.ClosedAt))
	if err != nil {
		return serrors.StoreError("failed to save issue", err).WithDetail("issue_key", issue.Key)
	}
	return nil
}

// DeleteIssue removes an issue. Deleting a missing issue is not an error.
func (s *Session) DeleteIssue(ctx context.Context, key string) error {
	q, err := s.querier(ctx)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM issues WHERE kee = ?`, key); err != nil {
		return serrors.StoreError("failed to delete issue", err).WithDetail("issue_key", key)
	}
	return nil
}

// GetIssue returns the issue with the given key or ErrNotFound.
func (s *Session) GetIssue(ctx context.Context, key string) (*Issue, error) {
	q, err := s.querier(ctx)
	if err != nil {
		return nil, err
	}
	row := q.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues i WHERE i.kee = ?`, key)
	issue, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, serrors.StoreError("failed to load issue", err).WithDetail("issue_key", key)
	}
	return issue, nil
}

// IssueKeys returns every issue key, sorted.
func (s *Session) IssueKeys(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT kee FROM issues ORDER BY kee`)
}

// IssueKeysByProject returns the keys of the issues of one branch, sorted.
func (s *Session) IssueKeysByProject(ctx context.Context, projectUUID string) ([]string, error) {
	return s.queryStrings(ctx, `SELECT kee FROM issues WHERE project_uuid = ? ORDER BY kee`, projectUUID)
}

// ExistingIssueKeys returns the subset of keys that have an issue row.
func (s *Session) ExistingIssueKeys(ctx context.Context, keys []string) (map[string]bool, error) {
	found := make(map[string]bool, len(keys))
	for _, chunk := range chunks(keys, maxParams) {
		args := make([]any, len(chunk))
		for i, k := range chunk {
			args[i] = k
		}
		existing, err := s.queryStrings(ctx,
			`SELECT kee FROM issues WHERE kee IN (`+placeholders(len(chunk))+`)`, args...)
		if err != nil {
			return nil, err
		}
		for _, k := range existing {
			found[k] = true
		}
	}
	return found, nil
}

// CountIssues returns the number of issues.
func (s *Session) CountIssues(ctx context.Context) (int, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM issues`)
}

const issueColumns = `i.kee, i.rule_uuid, i.component_uuid, i.project_uuid, i.severity, i.status,
	i.resolution, i.issue_type, i.assignee, i.author_login, i.line, i.effort, i.tags,
	i.issue_creation_date, i.issue_update_date, i.issue_close_date`

type scanner interface {
	Scan(dest ...any) error
}

func scanIssue(row scanner, extra ...any) (*Issue, error) {
	var (
		issue                                       Issue
		severity, status, resolution, typ, assignee sql.NullString
		author, tags                                sql.NullString
		line, effort, created, updated, closed      sql.NullInt64
	)
	dest := []any{&issue.Key, &issue.RuleUUID, &issue.ComponentUUID, &issue.ProjectUUID,
		&severity, &status, &resolution, &typ, &assignee, &author, &line, &effort, &tags,
		&created, &updated, &closed}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	issue.Severity = severity.String
	issue.Status = status.String
	issue.Resolution = resolution.String
	issue.Type = typ.String
	issue.Assignee = assignee.String
	issue.Author = author.String
	issue.Tags = splitList(tags.String)
	if line.Valid {
		l := int(line.Int64)
		issue.Line = &l
	}
	if effort.Valid {
		e := effort.Int64
		issue.Effort = &e
	}
	issue.CreatedAt = fromMillis(created)
	issue.UpdatedAt = fromMillis(updated)
	if closed.Valid {
		c := time.UnixMilli(closed.Int64).UTC()
		issue.ClosedAt = &c
	}
	return &issue, nil
}

func (s *Session) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	q, err := s.querier(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, serrors.StoreError("query failed", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, serrors.StoreError("scan failed", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, serrors.StoreError("query failed", err)
	}
	return out, nil
}

func (s *Session) count(ctx context.Context, query string, args ...any) (int, error) {
	q, err := s.querier(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, serrors.StoreError("count failed", err)
	}
	return n, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func millis(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return millis(*t)
}

func fromMillis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

func joinList(items []string) string {
	return strings.Join(items, ",")
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
