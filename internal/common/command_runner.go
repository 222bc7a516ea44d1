package common

import (
	"context"
	"fmt"

	"tailorpress/internal/errors"
	"tailorpress/internal/types"
)

// BuildRequestFunc defines how to build a pipeline request from file contents.
type BuildRequestFunc func(contents []string) (types.TransformRequest, error)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc func(req types.TransformRequest, cfg CommandConfig)

// PipelineFunc runs the pipeline for a request and produces the run report.
type PipelineFunc func(context.Context, types.TransformRequest) (types.RunReport, error)

// RunPipelineCommand encapsulates the common logic for file-based CLI commands.
func RunPipelineCommand(
	ctx context.Context,
	logger *errors.Logger,
	cmdConfig CommandConfig,
	args []string,
	buildRequest BuildRequestFunc,
	runPipeline PipelineFunc,
	logDetails LogDetailsFunc,
) error {
	// Pass the logger when creating helpers
	fileProcessor := NewFileProcessor(logger)
	reportWriter := NewReportWriter(logger)

	contents, err := fileProcessor.ValidateAndReadDocuments(args...)
	if err != nil {
		return err
	}

	req, err := buildRequest(contents)
	if err != nil {
		return fmt.Errorf("failed to build request from file contents: %w", err)
	}

	logDetails(req, cmdConfig)

	report, err := runPipeline(ctx, req)
	if err != nil {
		return err
	}

	return reportWriter.WriteReport(report, cmdConfig)
}
