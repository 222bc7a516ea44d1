package formatters

import (
	"encoding/json"
	"fmt"
	"strings"

	"tailorpress/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	// Register default formatters
	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "RunReport", &RunReportTextFormatter{})
	registry.RegisterFormatter("markdown", "RunReport", &RunReportMarkdownFormatter{})
	registry.RegisterFormatter("latex", "RunReport", &RunReportLaTeXFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

func getDataType(data any) string {
	switch data.(type) {
	case types.RunReport:
		return "RunReport"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// RunReportTextFormatter handles text formatting for pipeline run reports
type RunReportTextFormatter struct{}

func (rtf *RunReportTextFormatter) Format(data any) (string, error) {
	result, ok := data.(types.RunReport)
	if !ok {
		return "", fmt.Errorf("expected RunReport, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== TAILORED CONTENT ===\n\n")
	output.WriteString(fmt.Sprintf("Provider: %s\n", result.Provider))
	output.WriteString(fmt.Sprintf("Refinement turns used: %d\n\n", result.Turns))
	for _, section := range result.Content.Sections {
		if section.Title != "" {
			output.WriteString(section.Title)
			output.WriteString("\n")
			output.WriteString(strings.Repeat("-", len(section.Title)))
			output.WriteString("\n")
		}
		output.WriteString(strings.Join(section.Entries, "\n"))
		output.WriteString("\n\n")
	}

	output.WriteString("=== DOCUMENT ===\n")
	output.WriteString(fmt.Sprintf("Version: %d\n", result.Document.StageVersion))
	if len(result.Document.Warnings) > 0 {
		output.WriteString("Warnings:\n")
		for _, warning := range result.Document.Warnings {
			output.WriteString(fmt.Sprintf("- %s\n", warning))
		}
	}
	output.WriteString("\n")
	output.WriteString(result.Document.MarkupSource)
	output.WriteString("\n")

	if result.Compilation != nil {
		output.WriteString("\n=== COMPILATION ===\n")
		if result.Compilation.Succeeded {
			output.WriteString(fmt.Sprintf("Succeeded: %s\n", result.Compilation.ArtifactPath))
		} else {
			output.WriteString(fmt.Sprintf("Failed: %s\n", result.Compilation.Reason))
			if result.Compilation.LogExcerpt != "" {
				output.WriteString("\nLog excerpt:\n")
				output.WriteString(result.Compilation.LogExcerpt)
				output.WriteString("\n")
			}
		}
	}

	return output.String(), nil
}

func (rtf *RunReportTextFormatter) SupportedType() string {
	return "RunReport"
}

// RunReportMarkdownFormatter handles markdown formatting for pipeline run reports
type RunReportMarkdownFormatter struct{}

func (rmf *RunReportMarkdownFormatter) Format(data any) (string, error) {
	result, ok := data.(types.RunReport)
	if !ok {
		return "", fmt.Errorf("expected RunReport, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Tailored Resume\n\n")
	output.WriteString(fmt.Sprintf("**Provider:** %s\n\n", result.Provider))
	output.WriteString(fmt.Sprintf("**Refinement turns used:** %d\n\n", result.Turns))

	for _, section := range result.Content.Sections {
		if section.Title != "" {
			output.WriteString(fmt.Sprintf("## %s\n\n", section.Title))
		}
		output.WriteString(strings.Join(section.Entries, "\n"))
		output.WriteString("\n\n")
	}

	output.WriteString("## Document\n\n")
	output.WriteString(fmt.Sprintf("**Version:** %d\n\n", result.Document.StageVersion))
	if len(result.Document.Warnings) > 0 {
		output.WriteString("### Warnings\n")
		for _, warning := range result.Document.Warnings {
			output.WriteString(fmt.Sprintf("- %s\n", warning))
		}
		output.WriteString("\n")
	}
	output.WriteString("```latex\n")
	output.WriteString(result.Document.MarkupSource)
	output.WriteString("\n```\n")

	if result.Compilation != nil {
		output.WriteString("\n## Compilation\n\n")
		if result.Compilation.Succeeded {
			output.WriteString(fmt.Sprintf("**Succeeded:** `%s`\n", result.Compilation.ArtifactPath))
		} else {
			output.WriteString(fmt.Sprintf("**Failed:** %s\n", result.Compilation.Reason))
			if result.Compilation.LogExcerpt != "" {
				output.WriteString("\n```\n")
				output.WriteString(result.Compilation.LogExcerpt)
				output.WriteString("\n```\n")
			}
		}
	}

	return output.String(), nil
}

func (rmf *RunReportMarkdownFormatter) SupportedType() string {
	return "RunReport"
}

// RunReportLaTeXFormatter emits only the markup source, suitable for
// piping straight into a .tex file.
type RunReportLaTeXFormatter struct{}

func (rlf *RunReportLaTeXFormatter) Format(data any) (string, error) {
	result, ok := data.(types.RunReport)
	if !ok {
		return "", fmt.Errorf("expected RunReport, got %T", data)
	}
	return result.Document.MarkupSource + "\n", nil
}

func (rlf *RunReportLaTeXFormatter) SupportedType() string {
	return "RunReport"
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
