// Package security maps the security standards declared on a rule to the
// classifications carried by issue documents.
//
// Rules declare standards as prefixed tags ("cwe:89", "owaspTop10:a1"). The
// mapping is total: every input, including none, yields a classification.
package security

import (
	"slices"
	"strings"
)

// Unknown marks a classification for which the rule declares nothing.
const Unknown = "unknown"

// Others is the SonarSource category of a rule whose standards match no specific category.
const Others = "others"

const (
	prefixCWE   = "cwe:"
	prefixOWASP = "owaspTop10:"
)

// SANS Top 25 categories.
const (
	SANSInsecureInteraction = "insecure-interaction"
	SANSRiskyResource       = "risky-resource"
	SANSPorousDefenses      = "porous-defenses"
)

var sansTop25 = []struct {
	category string
	cwes     []string
}{
	{SANSInsecureInteraction, []string{"89", "78", "79", "434", "352", "601"}},
	{SANSRiskyResource, []string{"120", "22", "494", "829", "676", "131", "134", "190"}},
	{SANSPorousDefenses, []string{"306", "862", "798", "311", "807", "250", "863", "732", "327", "307", "759"}},
}

// sonarSource is ordered: the first category with a matching CWE wins.
var sonarSource = []struct {
	category string
	cwes     []string
}{
	{"sql-injection", []string{"89", "564", "943"}},
	{"command-injection", []string{"77", "78", "88", "214"}},
	{"path-traversal-injection", []string{"22"}},
	{"ldap-injection", []string{"90"}},
	{"xpath-injection", []string{"643"}},
	{"expression-lang-injection", []string{"917"}},
	{"rce", []string{"94", "95"}},
	{"dos", []string{"400", "624"}},
	{"ssrf", []string{"918"}},
	{"csrf", []string{"352"}},
	{"xss", []string{"79", "80", "81", "82", "83", "84", "85", "86", "87"}},
	{"log-injection", []string{"117"}},
	{"http-response-splitting", []string{"113"}},
	{"open-redirect", []string{"601"}},
	{"xxe", []string{"611", "827"}},
	{"object-injection", []string{"134", "470", "502"}},
	{"weak-cryptography", []string{"295", "297", "321", "322", "323", "324", "325", "326", "327", "328", "330", "780"}},
	{"auth", []string{"798", "640", "620", "549", "522", "521", "263", "262", "261", "259", "284"}},
	{"insecure-conf", []string{"102", "215", "311", "315", "346", "614", "489", "942"}},
	{"file-manipulation", []string{"97", "73"}},
}

// Classification is the security part of an issue document.
type Classification struct {
	CWE                 []string
	OWASPTop10          []string
	SANSTop25           []string
	SonarSourceSecurity string
}

// Classify derives the classification of a rule from its declared standards.
// Output slices are sorted and free of duplicates.
func Classify(standards []string) Classification {
	var cwe, owasp []string
	for _, s := range standards {
		s = strings.TrimSpace(s)
		switch {
		case strings.HasPrefix(s, prefixCWE):
			if v := strings.TrimPrefix(s, prefixCWE); v != "" {
				cwe = append(cwe, v)
			}
		case strings.HasPrefix(s, prefixOWASP):
			if v := strings.TrimPrefix(s, prefixOWASP); v != "" {
				owasp = append(owasp, v)
			}
		}
	}
	cwe = sortedUnique(cwe)
	owasp = sortedUnique(owasp)

	c := Classification{
		SANSTop25:           sans(cwe),
		SonarSourceSecurity: category(cwe, len(standards) > 0),
	}
	c.CWE = cwe
	if len(c.CWE) == 0 {
		c.CWE = []string{Unknown}
	}
	c.OWASPTop10 = owasp
	if len(c.OWASPTop10) == 0 {
		c.OWASPTop10 = []string{Unknown}
	}
	return c
}

func sans(cwe []string) []string {
	var out []string
	for _, entry := range sansTop25 {
		if intersects(entry.cwes, cwe) {
			out = append(out, entry.category)
		}
	}
	slices.Sort(out)
	return out
}

func category(cwe []string, declared bool) string {
	if !declared {
		return Unknown
	}
	for _, entry := range sonarSource {
		if intersects(entry.cwes, cwe) {
			return entry.category
		}
	}
	return Others
}

func intersects(table, cwe []string) bool {
	for _, c := range cwe {
		if slices.Contains(table, c) {
			return true
		}
	}
	return false
}

func sortedUnique(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	slices.Sort(values)
	return slices.Compact(values)
}

// SonarSourceCategories lists every specific SonarSource category in match order.
func SonarSourceCategories() []string {
	out := make([]string, len(sonarSource))
	for i, entry := range sonarSource {
		out[i] = entry.category
	}
	return out
}
