package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"tailorpress/internal/common"
	"tailorpress/internal/errors"
	"tailorpress/internal/pipeline"
	"tailorpress/internal/types"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [resume-file] [job-description-file]",
	Short: "Tailor a resume for a specific job description",
	Long: `Tailor your resume for a specific job description using AI.
The command takes two arguments: the path to your resume (plain text or PDF)
and the path to the job description file. The tailored content is formatted
as a LaTeX document and can optionally be compiled to PDF with --compile.

With --interactive, the command enters a refinement loop after the first
draft: type feedback to regenerate the document, or an empty line to finish.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		// Apply default format if not specified
		if runConfig.OutputFormat == "" {
			runConfig.OutputFormat = cfg.App.DefaultFormat
		}
		// Validate format against supported formats
		return common.ValidateReportFormat(runConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: runRun,
}

var (
	runConfig      common.CommandConfig
	runAPIKey      string
	runProvider    string
	runCompile     bool
	runOutputDir   string
	runInteractive bool
)

func init() {
	runCmd.Flags().StringVarP(&runConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	runCmd.Flags().StringVar(&runConfig.OutputFormat, "format", "", "Output format: json, text, markdown, or latex")
	runCmd.Flags().StringVar(&runAPIKey, "api-key", "", "Provider credential (default from config or environment)")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "Provider hint: openai, gemini, or groq (default: detect from credential)")
	runCmd.Flags().BoolVar(&runCompile, "compile", false, "Compile the document to PDF")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "Directory for compiled artifacts (default: temp directory)")
	runCmd.Flags().BoolVarP(&runInteractive, "interactive", "i", false, "Refine the document interactively before finalizing")

	// Add completion for format flag
	_ = runCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	engine := pipeline.NewEngine(cfg, logger)

	buildRequest := func(contents []string) (types.TransformRequest, error) {
		if len(contents) != 2 {
			return types.TransformRequest{}, fmt.Errorf("expected 2 file paths, got %d", len(contents))
		}
		return types.TransformRequest{
			ResumeText:         contents[0],
			JobDescriptionText: contents[1],
			Credential:         runAPIKey,
			ProviderHint:       runProvider,
			CompileDir:         runOutputDir,
		}, nil
	}

	logDetails := func(req types.TransformRequest, cmdCfg common.CommandConfig) {
		logger.Info("Starting resume tailoring",
			"resume_chars", len(req.ResumeText),
			"job_chars", len(req.JobDescriptionText),
			"compile", runCompile,
			"output_format", cmdCfg.OutputFormat)
	}

	execute := func(ctx context.Context, req types.TransformRequest) (types.RunReport, error) {
		run, err := engine.Run(ctx, req, runCompile)
		if err != nil {
			return types.RunReport{}, err
		}
		defer run.Close()

		if runInteractive {
			if err := refineInteractively(ctx, run, logger); err != nil {
				return types.RunReport{}, err
			}
		}

		doc := run.Finalize()
		return types.RunReport{
			Provider:    string(run.Provider),
			Content:     run.Content,
			Document:    doc,
			Compilation: run.Compilation(),
			Turns:       run.Session().TurnCount(),
		}, nil
	}

	err := common.RunPipelineCommand(
		cmd.Context(),
		logger,
		runConfig,
		args,
		buildRequest,
		execute,
		logDetails,
	)

	if err != nil {
		return fmt.Errorf("failed to tailor resume: %w", err)
	}
	logger.Info("Resume tailoring completed successfully")
	return nil
}

// refineInteractively reads feedback from stdin one line at a time and
// regenerates the document until the user finishes or turns run out.
func refineInteractively(ctx context.Context, run *pipeline.Run, logger *errors.Logger) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		remaining := run.Session().RemainingTurns()
		if remaining == 0 {
			fmt.Fprintln(os.Stderr, "No refinement turns remaining; finalizing.")
			return nil
		}

		fmt.Fprintf(os.Stderr, "\nFeedback (%d turns left, empty line to finish): ", remaining)
		if !scanner.Scan() {
			return scanner.Err()
		}

		feedback := strings.TrimSpace(scanner.Text())
		if feedback == "" || strings.EqualFold(feedback, "done") {
			return nil
		}

		doc, err := run.SubmitFeedback(ctx, feedback)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeSessionExhausted) {
				fmt.Fprintln(os.Stderr, "No refinement turns remaining; finalizing.")
				return nil
			}
			// A failed regeneration keeps the current document and
			// consumes no turn, so the loop can continue.
			logger.LogError(err, "Regeneration failed, keeping previous version")
			fmt.Fprintf(os.Stderr, "Regeneration failed: %v\n", err)
			continue
		}

		fmt.Fprintf(os.Stderr, "Updated document (version %d)\n", doc.StageVersion)
		if result := run.Compilation(); result != nil && !result.Succeeded {
			fmt.Fprintf(os.Stderr, "Compilation failed: %s\n", result.Reason)
		}
	}
}
