package common

import (
	"testing"
)

func TestValidateReportFormat(t *testing.T) {
	tests := []struct {
		name          string
		format        string
		enabled       []string
		expectError   bool
		expectedError string
	}{
		{
			name:        "enabled format - json",
			format:      "json",
			enabled:     []string{"json", "text", "markdown", "latex"},
			expectError: false,
		},
		{
			name:        "enabled format - latex",
			format:      "latex",
			enabled:     []string{"json", "text", "markdown", "latex"},
			expectError: false,
		},
		{
			name:          "unknown format - xml",
			format:        "xml",
			enabled:       []string{"json", "text", "markdown", "latex"},
			expectError:   true,
			expectedError: `report format "xml" is not enabled; available formats: [json text markdown latex]`,
		},
		{
			name:          "case sensitive - JSON uppercase",
			format:        "JSON",
			enabled:       []string{"json", "text", "markdown", "latex"},
			expectError:   true,
			expectedError: `report format "JSON" is not enabled; available formats: [json text markdown latex]`,
		},
		{
			name:        "empty enabled list allows any format",
			format:      "xml",
			enabled:     []string{},
			expectError: false,
		},
		{
			name:          "single enabled format - mismatch",
			format:        "text",
			enabled:       []string{"json"},
			expectError:   true,
			expectedError: `report format "text" is not enabled; available formats: [json]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReportFormat(tt.format, tt.enabled)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
					return
				}
				if tt.expectedError != "" && err.Error() != tt.expectedError {
					t.Errorf("Expected error '%s', got '%s'", tt.expectedError, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("Expected no error but got: %v", err)
				}
			}
		})
	}
}
