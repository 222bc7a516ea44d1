package common

import (
	"fmt"

	"tailorpress/internal/errors"
	"tailorpress/internal/formatters"
)

// CommandConfig holds common configuration for commands
type CommandConfig struct {
	OutputFile   string
	OutputFormat string
}

// ReportWriter renders a run report and delivers it to a file or stdout.
type ReportWriter struct {
	fileProcessor *FileProcessor
	registry      *formatters.FormatterRegistry
	logger        *errors.Logger
}

// NewReportWriter creates a report writer backed by the global
// formatter registry.
func NewReportWriter(logger *errors.Logger) *ReportWriter {
	return &ReportWriter{
		fileProcessor: NewFileProcessor(logger),
		registry:      formatters.GlobalRegistry,
		logger:        logger,
	}
}

// WriteReport renders the report in the requested format and writes it
// to the configured file, or stdout when no file is set.
func (rw *ReportWriter) WriteReport(report any, config CommandConfig) error {
	if err := rw.fileProcessor.ValidateOutputFile(config.OutputFile); err != nil {
		return err
	}

	rendered, err := rw.registry.Format(report, config.OutputFormat)
	if err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Failed to render report as %s", config.OutputFormat), err)
	}

	if config.OutputFile == "" {
		fmt.Print(rendered)
		return nil
	}

	if err := rw.fileProcessor.WriteFile(config.OutputFile, rendered); err != nil {
		return err
	}
	rw.logger.Info("Report written",
		"file", config.OutputFile, "format", config.OutputFormat)
	return nil
}
