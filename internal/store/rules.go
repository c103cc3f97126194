package store

import (
	"context"
	"database/sql"
	"errors"

	serrors "github.com/Aman-CERP/issuesync/internal/errors"
)

// UpsertRule inserts or replaces a rule.
func (s *Session) UpsertRule(ctx context.Context, r *Rule) error {
	q, err := s.querier(ctx)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO rules (uuid, plugin_name, plugin_rule_key, language, security_standards)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			plugin_name = excluded.plugin_name,
			plugin_rule_key = excluded.plugin_rule_key,
			language = excluded.language,
			security_standards = excluded.security_standards`,
		r.UUID, r.Repository, r.RuleKey, nullString(r.Language), nullString(joinList(r.SecurityStandards)))
	if err != nil {
		return serrors.StoreError("failed to save rule", err).WithDetail("rule_uuid", r.UUID)
	}
	return nil
}

// GetRule returns the rule with the given uuid or ErrNotFound.
func (s *Session) GetRule(ctx context.Context, uuid string) (*Rule, error) {
	q, err := s.querier(ctx)
	if err != nil {
		return nil, err
	}
	var (
		r                   Rule
		language, standards sql.NullString
	)
	err = q.QueryRowContext(ctx,
		`SELECT uuid, plugin_name, plugin_rule_key, language, security_standards FROM rules WHERE uuid = ?`, uuid).
		Scan(&r.UUID, &r.Repository, &r.RuleKey, &language, &standards)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, serrors.StoreError("failed to load rule", err).WithDetail("rule_uuid", uuid)
	}
	r.Language = language.String
	r.SecurityStandards = splitList(standards.String)
	return &r, nil
}
