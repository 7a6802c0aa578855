package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/mkessler/virtlab/internal/challenge"
	"github.com/mkessler/virtlab/internal/snapshot"
)

// TableFormatter formats results as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

// FormatSnapshotList formats snapshots as a table.
func (f *TableFormatter) FormatSnapshotList(infos []snapshot.Info) (string, error) {
	if len(infos) == 0 {
		return "No snapshots found\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "NAME\tKIND\tVM STATE\tDISKS\tAGE\tDESCRIPTION")
	}

	for _, info := range infos {
		state := info.VMState
		if state == "" {
			state = "-"
		}

		age := "-"
		if !info.CreatedAt.IsZero() {
			age = formatAge(time.Since(info.CreatedAt))
		}

		desc := info.Description
		if desc == "" {
			desc = "-"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			info.Name, info.Kind, state, len(info.Disks), age, desc)
	}

	_ = w.Flush()
	return buf.String(), nil
}

// FormatReport formats a challenge report as a per-assertion table plus a
// verdict line.
func (f *TableFormatter) FormatReport(report challenge.Report) (string, error) {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, "RESULT\tASSERTION\tDETAIL")
	}

	for _, result := range report.Results {
		verdict := "PASS"
		detail := "-"
		if !result.Passed {
			verdict = "FAIL"
			detail = fmt.Sprintf("%s: got %s, want %s", result.Field, result.Observed, result.Expected)
			if result.Detail != "" {
				detail += " (" + result.Detail + ")"
			}
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", verdict, result.Description, detail)
	}
	_ = w.Flush()

	overall := "FAILED"
	if report.Passed {
		overall = "PASSED"
	}
	fmt.Fprintf(&buf, "\n%s: %s (score %d/%d, hints used %d)\n",
		report.ChallengeName, overall, report.Score, report.MaxScore, report.HintsUsed)

	return buf.String(), nil
}

// formatAge formats a duration as a human-readable age string.
// Examples: "5s", "2m", "3h", "4d", "2w"
func formatAge(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh", hours)
	}

	days := hours / 24
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}

	weeks := days / 7
	if weeks < 8 {
		return fmt.Sprintf("%dw", weeks)
	}

	years := days / 365
	if years > 0 {
		return fmt.Sprintf("%dy", years)
	}
	return fmt.Sprintf("%dd", days)
}
