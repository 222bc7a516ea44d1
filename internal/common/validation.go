package common

import (
	"fmt"
	"slices"
)

// ValidateReportFormat checks a requested run-report rendering against
// the formats enabled in config. An empty list places no restriction.
func ValidateReportFormat(format string, enabled []string) error {
	if len(enabled) == 0 || slices.Contains(enabled, format) {
		return nil
	}
	return fmt.Errorf("report format %q is not enabled; available formats: %v",
		format, enabled)
}
