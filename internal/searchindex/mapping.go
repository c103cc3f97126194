package searchindex

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Indexed field names.
const (
	FieldKey           = "key"
	FieldOrganization  = "organization"
	FieldAssignee      = "assignee"
	FieldAuthor        = "author"
	FieldComponent     = "componentUuid"
	FieldProject       = "projectUuid"
	FieldBranch        = "branchUuid"
	FieldMainBranch    = "isMainBranch"
	FieldModule        = "moduleUuid"
	FieldDirectoryPath = "directoryPath"
	FieldFilePath      = "filePath"
	FieldLanguage      = "language"
	FieldRule          = "ruleKey"
	FieldSeverity      = "severity"
	FieldStatus        = "status"
	FieldResolution    = "resolution"
	FieldType          = "type"
	FieldTags          = "tags"
	FieldEffort        = "effort"
	FieldLine          = "line"
	FieldCreatedAt     = "createdAt"
	FieldUpdatedAt     = "updatedAt"
	FieldClosedAt      = "closedAt"
	FieldCWE           = "cwe"
	FieldOWASP         = "owaspTop10"
	FieldSANS          = "sansTop25"
	FieldSonarSource   = "sonarsourceSecurity"
)

var keywordFields = []string{
	FieldKey, FieldOrganization, FieldAssignee, FieldAuthor, FieldComponent, FieldProject,
	FieldBranch, FieldModule, FieldDirectoryPath, FieldFilePath, FieldLanguage, FieldRule,
	FieldSeverity, FieldStatus, FieldResolution, FieldType, FieldTags, FieldCWE, FieldOWASP,
	FieldSANS, FieldSonarSource,
}

// newMapping builds a static mapping: identifiers and facets are single
// keyword terms, so term queries match them exactly.
func newMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentStaticMapping()

	for _, name := range keywordFields {
		field := bleve.NewTextFieldMapping()
		field.Analyzer = keyword.Name
		field.Store = false
		field.IncludeInAll = false
		doc.AddFieldMappingsAt(name, field)
	}

	mainBranch := bleve.NewBooleanFieldMapping()
	mainBranch.Store = false
	doc.AddFieldMappingsAt(FieldMainBranch, mainBranch)

	for _, name := range []string{FieldEffort, FieldLine} {
		field := bleve.NewNumericFieldMapping()
		field.Store = false
		doc.AddFieldMappingsAt(name, field)
	}
	for _, name := range []string{FieldCreatedAt, FieldUpdatedAt, FieldClosedAt} {
		field := bleve.NewDateTimeFieldMapping()
		field.Store = false
		doc.AddFieldMappingsAt(name, field)
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = keyword.Name
	return im
}
