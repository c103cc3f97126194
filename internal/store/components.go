package store

import (
	"context"
	"database/sql"
	"errors"

	serrors "github.com/Aman-CERP/issuesync/internal/errors"
)

// UpsertComponent inserts or replaces a component.
func (s *Session) UpsertComponent(ctx context.Context, c *Component) error {
	q, err := s.querier(ctx)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO components (uuid, organization_uuid, kee, scope, qualifier, path, language,
			project_uuid, module_uuid, module_uuid_path, main_branch_project_uuid, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			organization_uuid = excluded.organization_uuid,
			kee = excluded.kee,
			scope = excluded.scope,
			qualifier = excluded.qualifier,
			path = excluded.path,
			language = excluded.language,
			project_uuid = excluded.project_uuid,
			module_uuid = excluded.module_uuid,
			module_uuid_path = excluded.module_uuid_path,
			main_branch_project_uuid = excluded.main_branch_project_uuid,
			enabled = excluded.enabled`,
		c.UUID, c.OrganizationUUID, c.Key, c.Scope, c.Qualifier, nullString(c.Path), nullString(c.Language),
		c.ProjectUUID, nullString(c.ModuleUUID), nullString(c.ModuleUUIDPath),
		nullString(c.MainBranchProjectUUID), c.Enabled)
	if err != nil {
		return serrors.StoreError("failed to save component", err).WithDetail("component_uuid", c.UUID)
	}
	return nil
}

// GetComponent returns the component with the given uuid or ErrNotFound.
func (s *Session) GetComponent(ctx context.Context, uuid string) (*Component, error) {
	q, err := s.querier(ctx)
	if err != nil {
		return nil, err
	}
	var (
		c                                                      Component
		path, language, moduleUUID, moduleUUIDPath, mainBranch sql.NullString
	)
	err = q.QueryRowContext(ctx, `
		SELECT uuid, organization_uuid, kee, scope, qualifier, path, language, project_uuid,
			module_uuid, module_uuid_path, main_branch_project_uuid, enabled
		FROM components WHERE uuid = ?`, uuid).
		Scan(&c.UUID, &c.OrganizationUUID, &c.Key, &c.Scope, &c.Qualifier, &path, &language,
			&c.ProjectUUID, &moduleUUID, &moduleUUIDPath, &mainBranch, &c.Enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, serrors.StoreError("failed to load component", err).WithDetail("component_uuid", uuid)
	}
	c.Path = path.String
	c.Language = language.String
	c.ModuleUUID = moduleUUID.String
	c.ModuleUUIDPath = moduleUUIDPath.String
	c.MainBranchProjectUUID = mainBranch.String
	return &c, nil
}

// DeleteProject removes the components and issues of one branch and returns the
// number of issues removed.
func (s *Session) DeleteProject(ctx context.Context, projectUUID string) (int, error) {
	q, err := s.querier(ctx)
	if err != nil {
		return 0, err
	}
	res, err := q.ExecContext(ctx, `DELETE FROM issues WHERE project_uuid = ?`, projectUUID)
	if err != nil {
		return 0, serrors.StoreError("failed to delete project issues", err).WithDetail("project_uuid", projectUUID)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM components WHERE project_uuid = ?`, projectUUID); err != nil {
		return 0, serrors.StoreError("failed to delete project components", err).WithDetail("project_uuid", projectUUID)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ProjectUUIDs returns the uuids of every project component (branch), sorted.
func (s *Session) ProjectUUIDs(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx,
		`SELECT uuid FROM components WHERE uuid = project_uuid AND scope = ? ORDER BY uuid`, ScopeProject)
}
