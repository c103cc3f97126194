package cmd

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	serrors "github.com/Aman-CERP/issuesync/internal/errors"
	"github.com/Aman-CERP/issuesync/internal/store"
)

// changeset is the file format of `issuesync commit`: components and rules
// to upsert, and the dirty issues to save or delete.
type changeset struct {
	Components []componentChange `yaml:"components"`
	Rules      []ruleChange      `yaml:"rules"`
	Issues     []issueChange     `yaml:"issues"`
}

type componentChange struct {
	UUID             string `yaml:"uuid"`
	OrganizationUUID string `yaml:"organization_uuid"`
	Key              string `yaml:"key"`
	Scope            string `yaml:"scope"`
	Qualifier        string `yaml:"qualifier"`
	Path             string `yaml:"path"`
	Language         string `yaml:"language"`
	ProjectUUID      string `yaml:"project_uuid"`
	ModuleUUID       string `yaml:"module_uuid"`
	ModuleUUIDPath   string `yaml:"module_uuid_path"`
	MainBranch       string `yaml:"main_branch_project_uuid"`
	Disabled         bool   `yaml:"disabled"`
}

type ruleChange struct {
	UUID              string   `yaml:"uuid"`
	Repository        string   `yaml:"repository"`
	Key               string   `yaml:"key"`
	Language          string   `yaml:"language"`
	SecurityStandards []string `yaml:"security_standards"`
}

type issueChange struct {
	Key           string     `yaml:"key"`
	RuleUUID      string     `yaml:"rule_uuid"`
	ComponentUUID string     `yaml:"component_uuid"`
	ProjectUUID   string     `yaml:"project_uuid"`
	Severity      string     `yaml:"severity"`
	Status        string     `yaml:"status"`
	Resolution    string     `yaml:"resolution"`
	Type          string     `yaml:"type"`
	Assignee      string     `yaml:"assignee"`
	Author        string     `yaml:"author"`
	Line          *int       `yaml:"line"`
	Effort        *int64     `yaml:"effort"`
	Tags          []string   `yaml:"tags"`
	CreatedAt     time.Time  `yaml:"created_at"`
	UpdatedAt     time.Time  `yaml:"updated_at"`
	ClosedAt      *time.Time `yaml:"closed_at"`
	Deleted       bool       `yaml:"deleted"`
}

// readChangeset parses and validates a changeset file.
func readChangeset(path string) (*changeset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, serrors.ValidationError("failed to read changeset", err).WithDetail("path", path)
	}
	var cs changeset
	if err := yaml.Unmarshal(data, &cs); err != nil {
		return nil, serrors.ValidationError("failed to parse changeset", err).WithDetail("path", path)
	}
	if err := cs.validate(); err != nil {
		return nil, serrors.ValidationError(err.Error(), nil).WithDetail("path", path)
	}
	return &cs, nil
}

func (cs *changeset) validate() error {
	for i, c := range cs.Components {
		if c.UUID == "" || c.ProjectUUID == "" || c.Scope == "" {
			return fmt.Errorf("components[%d]: uuid, project_uuid and scope are required", i)
		}
	}
	for i, r := range cs.Rules {
		if r.UUID == "" || r.Key == "" {
			return fmt.Errorf("rules[%d]: uuid and key are required", i)
		}
	}
	for i, is := range cs.Issues {
		if is.Key == "" {
			return fmt.Errorf("issues[%d]: key is required", i)
		}
		if !is.Deleted && (is.RuleUUID == "" || is.ComponentUUID == "" || is.ProjectUUID == "") {
			return fmt.Errorf("issues[%d] %s: rule_uuid, component_uuid and project_uuid are required", i, is.Key)
		}
	}
	return nil
}

func (c componentChange) toStore() *store.Component {
	return &store.Component{
		UUID:                  c.UUID,
		OrganizationUUID:      c.OrganizationUUID,
		Key:                   c.Key,
		Scope:                 c.Scope,
		Qualifier:             c.Qualifier,
		Path:                  c.Path,
		Language:              c.Language,
		ProjectUUID:           c.ProjectUUID,
		ModuleUUID:            c.ModuleUUID,
		ModuleUUIDPath:        c.ModuleUUIDPath,
		MainBranchProjectUUID: c.MainBranch,
		Enabled:               !c.Disabled,
	}
}

func (r ruleChange) toStore() *store.Rule {
	return &store.Rule{
		UUID:              r.UUID,
		Repository:        r.Repository,
		RuleKey:           r.Key,
		Language:          r.Language,
		SecurityStandards: r.SecurityStandards,
	}
}

func (is issueChange) toStore() *store.Issue {
	return &store.Issue{
		Key:           is.Key,
		RuleUUID:      is.RuleUUID,
		ComponentUUID: is.ComponentUUID,
		ProjectUUID:   is.ProjectUUID,
		Severity:      is.Severity,
		Status:        is.Status,
		Resolution:    is.Resolution,
		Type:          is.Type,
		Assignee:      is.Assignee,
		Author:        is.Author,
		Line:          is.Line,
		Effort:        is.Effort,
		Tags:          is.Tags,
		CreatedAt:     is.CreatedAt,
		UpdatedAt:     is.UpdatedAt,
		ClosedAt:      is.ClosedAt,
		Deleted:       is.Deleted,
	}
}
