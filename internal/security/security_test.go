package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_NoStandards(t *testing.T) {
	// Given: a rule with no declared standards
	c := Classify(nil)

	// Then: every classification falls back to unknown
	assert.Equal(t, []string{Unknown}, c.CWE)
	assert.Equal(t, []string{Unknown}, c.OWASPTop10)
	assert.Empty(t, c.SANSTop25)
	assert.Equal(t, Unknown, c.SonarSourceSecurity)
}

func TestClassify_SQLInjection(t *testing.T) {
	c := Classify([]string{"cwe:89", "owaspTop10:a1", "cwe:89"})

	assert.Equal(t, []string{"89"}, c.CWE)
	assert.Equal(t, []string{"a1"}, c.OWASPTop10)
	assert.Equal(t, []string{SANSInsecureInteraction}, c.SANSTop25)
	assert.Equal(t, "sql-injection", c.SonarSourceSecurity)
}

func TestClassify_FirstCategoryWins(t *testing.T) {
	// 78 is command injection, 79 is xss; command injection comes first.
	c := Classify([]string{"cwe:79", "cwe:78"})

	assert.Equal(t, []string{"78", "79"}, c.CWE)
	assert.Equal(t, "command-injection", c.SonarSourceSecurity)
	assert.Equal(t, []string{SANSInsecureInteraction}, c.SANSTop25)
}

func TestClassify_SeveralSANSCategories(t *testing.T) {
	c := Classify([]string{"cwe:798", "cwe:22"})

	assert.Equal(t, []string{SANSPorousDefenses, SANSRiskyResource}, c.SANSTop25)
	assert.Equal(t, "path-traversal-injection", c.SonarSourceSecurity)
}

func TestClassify_StandardsWithoutCategory(t *testing.T) {
	// Given: standards that match no specific category
	c := Classify([]string{"cwe:1", "owaspTop10:a10"})

	// Then: the catch-all applies
	assert.Equal(t, Others, c.SonarSourceSecurity)
	assert.Empty(t, c.SANSTop25)
	assert.Equal(t, []string{"1"}, c.CWE)
}

func TestClassify_OnlyOWASP(t *testing.T) {
	c := Classify([]string{"owaspTop10:a3", "owaspTop10:a1"})

	assert.Equal(t, []string{Unknown}, c.CWE)
	assert.Equal(t, []string{"a1", "a3"}, c.OWASPTop10)
	assert.Equal(t, Others, c.SonarSourceSecurity)
}

func TestClassify_Deterministic(t *testing.T) {
	a := Classify([]string{"cwe:327", "cwe:311", "owaspTop10:a6", "owaspTop10:a3"})
	b := Classify([]string{"owaspTop10:a3", "cwe:311", "owaspTop10:a6", "cwe:327"})

	assert.Equal(t, a, b)
	assert.Equal(t, "weak-cryptography", a.SonarSourceSecurity)
}

func TestClassify_DoesNotMutateInput(t *testing.T) {
	in := []string{"cwe:89", "cwe:22"}
	_ = Classify(in)
	assert.Equal(t, []string{"cwe:89", "cwe:22"}, in)
}

func TestSonarSourceCategories(t *testing.T) {
	cats := SonarSourceCategories()
	assert.Equal(t, "sql-injection", cats[0])
	assert.Equal(t, "file-manipulation", cats[len(cats)-1])
	assert.Len(t, cats, 20)
}
