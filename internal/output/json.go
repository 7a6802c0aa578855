package output

import (
	"encoding/json"
	"fmt"

	"github.com/mkessler/virtlab/internal/challenge"
	"github.com/mkessler/virtlab/internal/snapshot"
)

// JSONFormatter formats results as JSON.
type JSONFormatter struct{}

// FormatSnapshotList formats snapshots as a JSON array.
func (f *JSONFormatter) FormatSnapshotList(infos []snapshot.Info) (string, error) {
	if len(infos) == 0 {
		return "[]\n", nil
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshots to JSON: %w", err)
	}

	return string(data) + "\n", nil
}

// FormatReport formats a challenge report as JSON.
func (f *JSONFormatter) FormatReport(report challenge.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to JSON: %w", err)
	}

	return string(data) + "\n", nil
}
