package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/issuesync/internal/config"
	"github.com/Aman-CERP/issuesync/internal/store"
)

const changesetYAML = `components:
  - uuid: P1
    organization_uuid: org-1
    key: shop
    scope: PRJ
    qualifier: TRK
    project_uuid: P1
    module_uuid_path: .P1.
  - uuid: P1-file
    organization_uuid: org-1
    key: shop:src/db/query.go
    scope: FIL
    qualifier: FIL
    path: src/db/query.go
    language: go
    project_uuid: P1
    module_uuid: P1
    module_uuid_path: .P1.
rules:
  - uuid: rule-1
    repository: go
    key: S3649
    language: go
    security_standards: ["cwe:89", "owaspTop10:a1"]
issues:
  - key: I1
    rule_uuid: rule-1
    component_uuid: P1-file
    project_uuid: P1
    severity: CRITICAL
    status: OPEN
    type: VULNERABILITY
    line: 12
    created_at: 2026-04-01T09:30:00Z
    updated_at: 2026-04-01T09:30:00Z
  - key: I2
    rule_uuid: rule-1
    component_uuid: P1-file
    project_uuid: P1
    severity: MAJOR
    status: OPEN
    type: VULNERABILITY
    created_at: 2026-04-01T09:30:00Z
    updated_at: 2026-04-01T09:30:00Z
`

// newProject returns a project directory with a changeset file, isolated
// from the user configuration.
func newProject(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "changes.yaml"), []byte(changesetYAML), 0o644))
	return dir
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".issuesync.yaml"), []byte(content), 0o644))
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	return runContext(context.Background(), t, dir, args...)
}

func runContext(ctx context.Context, t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--dir", dir, "--no-color", "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(ctx)
	return buf.String(), err
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := run(t, dir, args...)
	require.NoError(t, err, out)
	return out
}

type statusJSON struct {
	StoreIssues    int  `json:"store_issues"`
	IndexDocuments int  `json:"index_documents"`
	QueueRows      int  `json:"queue_rows"`
	IndexWritable  bool `json:"index_writable"`
	Locked         bool `json:"locked"`
}

func status(t *testing.T, dir string) statusJSON {
	t.Helper()
	var s statusJSON
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, dir, "status", "--json")), &s))
	return s
}

// queueCount reads es_queue without taking the data directory lock.
func queueCount(t *testing.T, dir string) int {
	t.Helper()
	cfg := config.NewConfig()
	db, err := store.Open(cfg.StorePath(dir), store.Options{})
	require.NoError(t, err)
	defer db.Close()
	s := db.NewSession()
	defer s.Close()
	n, err := s.CountQueue(context.Background())
	require.NoError(t, err)
	return n
}

func writeFile(dir, name, content string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
}

func changes(dir string) string {
	return filepath.Join(dir, "changes.yaml")
}
