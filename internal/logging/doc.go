// Package logging configures the process-wide slog logger for issuesync.
//
// Without a file path, logs go to stderr: human-readable text on a terminal,
// JSON otherwise. With a file path, JSON lines are written to a size-rotated
// file and optionally mirrored to stderr.
package logging
