package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes the store, the index and the recovery backlog.
type StatusInfo struct {
	DataDir   string `json:"data_dir"`
	StorePath string `json:"store_path"`
	IndexPath string `json:"index_path"`

	StoreIssues    int   `json:"store_issues"`
	IndexDocuments int   `json:"index_documents"`
	StoreSize      int64 `json:"store_size"`
	IndexSize      int64 `json:"index_size"`
	IndexWritable  bool  `json:"index_writable"`

	QueueRows    int       `json:"queue_rows"`
	OldestQueued time.Time `json:"oldest_queued,omitzero"`

	RecoveryEnabled bool   `json:"recovery_enabled"`
	RecoveryEvery   string `json:"recovery_interval"`
	// Locked is true while another process holds the data directory; the
	// index is not opened then.
	Locked bool `json:"locked"`
}

// Renderer writes command output.
type Renderer struct {
	out    io.Writer
	styles Styles
	now    func() time.Time
}

// NewRenderer creates a renderer; color enables styling.
func NewRenderer(out io.Writer, color bool) *Renderer {
	return &Renderer{out: out, styles: GetStyles(color), now: time.Now}
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// Status renders info.
func (r *Renderer) Status(info StatusInfo) error {
	r.printf("%s\n\n", r.styles.Header.Render("issuesync status: "+info.DataDir))

	r.section("Store")
	r.field("Path", info.StorePath)
	r.field("Issues", fmt.Sprint(info.StoreIssues))
	r.field("Size", FormatBytes(info.StoreSize))
	r.println()

	r.section("Index")
	r.field("Path", info.IndexPath)
	if info.Locked {
		r.field("Documents", r.styles.Dim.Render("unknown while locked"))
	} else {
		r.field("Documents", r.drift(info.IndexDocuments, info.StoreIssues))
	}
	r.field("Size", FormatBytes(info.IndexSize))
	switch {
	case info.Locked:
	case info.IndexWritable:
		r.field("Writes", r.styles.Success.Render("enabled"))
	default:
		r.field("Writes", r.styles.Warning.Render("read-only"))
	}
	r.println()

	r.section("Recovery")
	switch {
	case info.QueueRows == 0:
		r.field("Queue", r.styles.Success.Render("empty"))
	default:
		r.field("Queue", r.styles.Warning.Render(fmt.Sprintf("%d rows", info.QueueRows)))
		if !info.OldestQueued.IsZero() {
			r.field("Oldest", FormatAge(r.now(), info.OldestQueued))
		}
	}
	if info.RecoveryEnabled {
		r.field("Schedule", "every "+info.RecoveryEvery)
	} else {
		r.field("Schedule", r.styles.Dim.Render("disabled"))
	}
	if info.Locked {
		r.field("Lock", r.styles.Warning.Render("held by another process"))
	}
	return nil
}

// drift renders the document count, flagged when it differs from the issue count.
func (r *Renderer) drift(docs, issues int) string {
	if docs == issues {
		return fmt.Sprint(docs)
	}
	return r.styles.Warning.Render(fmt.Sprintf("%d (store has %d)", docs, issues))
}

func (r *Renderer) section(name string) {
	r.printf("  %s\n", r.styles.Section.Render(name+":"))
}

func (r *Renderer) field(label, value string) {
	r.printf("    %s %s\n", r.styles.Label.Render(fmt.Sprintf("%-10s", label+":")), value)
}

func (r *Renderer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

func (r *Renderer) println() {
	_, _ = fmt.Fprintln(r.out)
}

// FormatAge renders how long before now t was.
func FormatAge(now, t time.Time) string {
	diff := now.Sub(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
