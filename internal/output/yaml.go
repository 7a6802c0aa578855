package output

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mkessler/virtlab/internal/challenge"
	"github.com/mkessler/virtlab/internal/snapshot"
)

// YAMLFormatter formats results as YAML.
type YAMLFormatter struct{}

// FormatSnapshotList formats snapshots as a YAML list.
func (f *YAMLFormatter) FormatSnapshotList(infos []snapshot.Info) (string, error) {
	if len(infos) == 0 {
		return "", nil
	}

	data, err := yaml.Marshal(infos)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshots to YAML: %w", err)
	}

	return string(data), nil
}

// FormatReport formats a challenge report as YAML.
func (f *YAMLFormatter) FormatReport(report challenge.Report) (string, error) {
	data, err := yaml.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report to YAML: %w", err)
	}

	return string(data), nil
}
