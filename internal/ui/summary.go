package ui

import (
	"fmt"
	"time"
)

// Summary is the outcome of an indexing or recovery command.
type Summary struct {
	Operation string        `json:"operation"`
	Total     int           `json:"total"`
	Success   int           `json:"success"`
	Failures  int           `json:"failures"`
	Loops     int           `json:"loops,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// Summary renders s. Failures are shown with a hint that the queue keeps them.
func (r *Renderer) Summary(s Summary) error {
	status := r.styles.Success.Render("ok")
	if s.Failures > 0 {
		status = r.styles.Warning.Render("partial")
	}
	r.printf("%s %s\n", r.styles.Header.Render(s.Operation), status)
	r.field("Documents", fmt.Sprintf("%d/%d", s.Success, s.Total))
	if s.Loops > 0 {
		r.field("Loops", fmt.Sprint(s.Loops))
	}
	r.field("Duration", s.Duration.Round(time.Millisecond).String())
	if s.Failures > 0 {
		r.field("Failures", r.styles.Warning.Render(fmt.Sprint(s.Failures)))
		r.printf("    %s\n", r.styles.Dim.Render("failed writes stay queued; run `issuesync recover` or leave `issuesync serve` running"))
	}
	return nil
}

// CheckReport is the outcome of a consistency check.
type CheckReport struct {
	StoreIssues    int           `json:"store_issues"`
	IndexDocuments int           `json:"index_documents"`
	Orphans        []string      `json:"orphans"`
	Missing        []string      `json:"missing"`
	Repaired       int           `json:"repaired"`
	Duration       time.Duration `json:"duration_ns"`
}

// maxListed bounds the keys printed per inconsistency kind.
const maxListed = 20

// Check renders c.
func (r *Renderer) Check(c CheckReport) error {
	r.printf("%s\n", r.styles.Header.Render("consistency check"))
	r.field("Issues", fmt.Sprint(c.StoreIssues))
	r.field("Documents", fmt.Sprint(c.IndexDocuments))
	if len(c.Orphans) == 0 && len(c.Missing) == 0 {
		r.field("Result", r.styles.Success.Render("consistent"))
		return nil
	}
	r.listKeys("Orphans", c.Orphans)
	r.listKeys("Missing", c.Missing)
	if c.Repaired > 0 {
		r.field("Queued", r.styles.Success.Render(fmt.Sprintf("%d repairs", c.Repaired)))
	} else {
		r.printf("    %s\n", r.styles.Dim.Render("run `issuesync check --repair` to queue repairs"))
	}
	return nil
}

func (r *Renderer) listKeys(label string, keys []string) {
	if len(keys) == 0 {
		return
	}
	r.field(label, r.styles.Error.Render(fmt.Sprint(len(keys))))
	for i, k := range keys {
		if i == maxListed {
			r.printf("      %s\n", r.styles.Dim.Render(fmt.Sprintf("... %d more", len(keys)-maxListed)))
			return
		}
		r.printf("      %s\n", k)
	}
}
