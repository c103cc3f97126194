package searchindex

import "time"

// IndexTypeIssue names the issue documents this index holds.
const IndexTypeIssue = "issues/issue"

// Document is the denormalized search projection of one issue, keyed by issue key.
type Document struct {
	Key          string `json:"key"`
	Organization string `json:"organization"`
	Assignee     string `json:"assignee,omitempty"`
	Author       string `json:"author,omitempty"`

	ComponentUUID string `json:"componentUuid"`
	// ProjectUUID is the main branch project; BranchUUID the branch the issue lives on.
	ProjectUUID  string `json:"projectUuid"`
	BranchUUID   string `json:"branchUuid"`
	IsMainBranch bool   `json:"isMainBranch"`
	ModuleUUID   string `json:"moduleUuid,omitempty"`
	ModulePath   string `json:"modulePath,omitempty"`
	// DirectoryPath and FilePath are nil for issues on projects and modules.
	DirectoryPath *string `json:"directoryPath"`
	FilePath      *string `json:"filePath"`
	Language      string  `json:"language,omitempty"`

	RuleUUID   string   `json:"ruleUuid"`
	RuleKey    string   `json:"ruleKey"`
	Severity   string   `json:"severity,omitempty"`
	Status     string   `json:"status,omitempty"`
	Resolution string   `json:"resolution,omitempty"`
	Type       string   `json:"type,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Effort     *int64   `json:"effort,omitempty"`
	Line       *int     `json:"line,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`

	CWE                 []string `json:"cwe"`
	OWASPTop10          []string `json:"owaspTop10"`
	SANSTop25           []string `json:"sansTop25,omitempty"`
	SonarSourceSecurity string   `json:"sonarsourceSecurity"`
}

// fields is the searchable view of d handed to bleve.
func (d *Document) fields() map[string]any {
	f := map[string]any{
		FieldKey:          d.Key,
		FieldOrganization: d.Organization,
		FieldComponent:    d.ComponentUUID,
		FieldProject:      d.ProjectUUID,
		FieldBranch:       d.BranchUUID,
		FieldMainBranch:   d.IsMainBranch,
		FieldRule:         d.RuleKey,
		FieldSonarSource:  d.SonarSourceSecurity,
	}
	setString(f, FieldAssignee, d.Assignee)
	setString(f, FieldAuthor, d.Author)
	setString(f, FieldModule, d.ModuleUUID)
	setString(f, FieldLanguage, d.Language)
	setString(f, FieldSeverity, d.Severity)
	setString(f, FieldStatus, d.Status)
	setString(f, FieldResolution, d.Resolution)
	setString(f, FieldType, d.Type)
	if d.FilePath != nil {
		f[FieldFilePath] = *d.FilePath
	}
	if d.DirectoryPath != nil {
		f[FieldDirectoryPath] = *d.DirectoryPath
	}
	if len(d.Tags) > 0 {
		f[FieldTags] = d.Tags
	}
	if d.Effort != nil {
		f[FieldEffort] = float64(*d.Effort)
	}
	if d.Line != nil {
		f[FieldLine] = float64(*d.Line)
	}
	// bleve cannot represent the zero time.
	if !d.CreatedAt.IsZero() {
		f[FieldCreatedAt] = d.CreatedAt
	}
	if !d.UpdatedAt.IsZero() {
		f[FieldUpdatedAt] = d.UpdatedAt
	}
	if d.ClosedAt != nil {
		f[FieldClosedAt] = *d.ClosedAt
	}
	f[FieldCWE] = d.CWE
	f[FieldOWASP] = d.OWASPTop10
	if len(d.SANSTop25) > 0 {
		f[FieldSANS] = d.SANSTop25
	}
	return f
}

func setString(f map[string]any, field, v string) {
	if v != "" {
		f[field] = v
	}
}
