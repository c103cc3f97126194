package index

import (
	"github.com/Aman-CERP/issuesync/internal/searchindex"
	"github.com/Aman-CERP/issuesync/internal/store"
)

// AuthorizationScope tells the read side which ownership records govern
// access to an index type.
type AuthorizationScope struct {
	IndexType string
	accepts   func(*store.Component) bool
}

// Accepts reports whether c is an ownership record of this scope.
func (s AuthorizationScope) Accepts(c *store.Component) bool {
	return c != nil && s.accepts(c)
}

// issueAuthorizationScope: issues are owned by projects, never by files or directories.
var issueAuthorizationScope = AuthorizationScope{
	IndexType: searchindex.IndexTypeIssue,
	accepts: func(c *store.Component) bool {
		return c.Qualifier == store.QualifierProject
	},
}
