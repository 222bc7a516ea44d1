package compile

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"tailorpress/internal/config"
	"tailorpress/internal/errors"
	"tailorpress/internal/types"
)

// baseName is the stem used for the markup source and its artifacts.
const baseName = "resume"

// intermediateExtensions are the compiler byproducts reclaimed after
// every run, successful or not.
var intermediateExtensions = []string{
	".log", ".aux", ".out", ".synctex.gz", ".fdb_latexmk", ".fls",
}

// fatalMarkers are log substrings that mean the run failed even when an
// artifact file exists on disk.
var fatalMarkers = []string{
	"Fatal error occurred",
	"Emergency stop",
	"no output PDF file produced",
}

// Compiler turns LaTeX markup into a PDF by shelling out to pdflatex.
// Compilation failure is an outcome, not an error: callers always get a
// CompilationResult describing what happened.
type Compiler struct {
	cfg    config.CompilerConfig
	logger *errors.Logger
}

// NewCompiler creates a compiler from config.
func NewCompiler(cfg config.CompilerConfig, logger *errors.Logger) *Compiler {
	return &Compiler{cfg: cfg, logger: logger}
}

// Compile writes markup into workDir and runs the configured number of
// passes. When workDir is empty a fresh temp directory is created.
// Intermediate files are reclaimed unconditionally; after the call the
// working directory holds at most the markup source and, on success,
// the artifact. The returned error covers only setup faults (the work
// directory could not be prepared); compiler failures come back inside
// the result.
func (c *Compiler) Compile(ctx context.Context, markup, workDir string) (types.CompilationResult, error) {
	tracer := otel.Tracer("tailorpress.compile")
	ctx, span := tracer.Start(ctx, "compile.document")
	defer span.End()

	if workDir == "" {
		dir, err := os.MkdirTemp("", "tailorpress-compile-")
		if err != nil {
			return types.CompilationResult{}, errors.NewIOError(errors.ErrCodeFileNotReadable,
				"Failed to create compile working directory", err)
		}
		workDir = dir
	}

	texName := baseName + ".tex"
	texPath := filepath.Join(workDir, texName)
	if err := os.WriteFile(texPath, []byte(markup), 0o600); err != nil {
		return types.CompilationResult{}, errors.NewIOError(errors.ErrCodeFileNotReadable,
			"Failed to write markup source", err)
	}

	// Reclaim intermediates no matter how we leave this function.
	defer c.cleanup(workDir)

	span.SetAttributes(
		attribute.String("compile.command", c.cfg.Command),
		attribute.Int("compile.passes", c.cfg.Passes),
		attribute.Int("compile.markup_length", len(markup)),
	)

	if _, err := exec.LookPath(c.cfg.Command); err != nil {
		result := types.CompilationFailure(
			fmt.Sprintf("%s not found; install a LaTeX distribution to produce PDFs", c.cfg.Command), "")
		span.SetAttributes(attribute.Bool("compile.succeeded", false))
		c.removeArtifact(workDir)
		return result, nil
	}

	var lastOutput string
	var lastErr error
	for pass := 1; pass <= c.cfg.Passes; pass++ {
		output, err := c.runPass(ctx, workDir, texName)
		lastOutput = output
		lastErr = err
		if err != nil && ctx.Err() != nil {
			result := types.CompilationFailure("compilation timed out",
				tailLines(output, c.cfg.LogTailLines))
			span.SetAttributes(attribute.Bool("compile.succeeded", false))
			c.removeArtifact(workDir)
			return result, nil
		}
		// An early pass may exit nonzero and recover on the next one;
		// only the final pass decides the outcome.
		if c.logger != nil && err != nil {
			c.logger.Debug("Compiler pass exited nonzero",
				"pass", pass, "error", err.Error())
		}
	}

	excerpt := c.logExcerpt(workDir, lastOutput)
	artifactPath := filepath.Join(workDir, baseName+".pdf")

	if lastErr != nil {
		span.SetAttributes(attribute.Bool("compile.succeeded", false))
		c.removeArtifact(workDir)
		return types.CompilationFailure("compiler exited with an error", excerpt), nil
	}
	if hasFatalMarker(lastOutput) || hasFatalMarker(excerpt) {
		span.SetAttributes(attribute.Bool("compile.succeeded", false))
		c.removeArtifact(workDir)
		return types.CompilationFailure("compiler reported a fatal error", excerpt), nil
	}

	artifact, err := os.ReadFile(artifactPath)
	if err != nil {
		span.SetAttributes(attribute.Bool("compile.succeeded", false))
		c.removeArtifact(workDir)
		return types.CompilationFailure("no artifact produced", excerpt), nil
	}

	span.SetAttributes(
		attribute.Bool("compile.succeeded", true),
		attribute.Int("compile.artifact_bytes", len(artifact)),
	)
	return types.CompilationSuccess(artifact, artifactPath, excerpt), nil
}

// runPass executes one compiler pass with the configured timeout.
func (c *Compiler) runPass(ctx context.Context, workDir, texName string) (string, error) {
	passCtx := ctx
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		passCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(passCtx, c.cfg.Command, "-interaction=nonstopmode", texName)
	cmd.Dir = workDir

	output, err := cmd.CombinedOutput()
	return string(output), err
}

// logExcerpt prefers the compiler's .log file over captured stdout.
func (c *Compiler) logExcerpt(workDir, fallback string) string {
	logPath := filepath.Join(workDir, baseName+".log")
	if data, err := os.ReadFile(logPath); err == nil && len(data) > 0 {
		return tailLines(string(data), c.cfg.LogTailLines)
	}
	return tailLines(fallback, c.cfg.LogTailLines)
}

// cleanup removes intermediate compiler files. Failures are logged and
// otherwise ignored; cleanup never changes the compile outcome.
func (c *Compiler) cleanup(workDir string) {
	for _, ext := range intermediateExtensions {
		path := filepath.Join(workDir, baseName+ext)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			if c.logger != nil {
				c.logger.Warn("Failed to remove intermediate file",
					"path", path, "error", err.Error())
			}
		}
	}
}

// removeArtifact deletes the output PDF. A failed run must leave no
// artifact behind, including a stale one from an earlier compile in a
// pinned work directory.
func (c *Compiler) removeArtifact(workDir string) {
	path := filepath.Join(workDir, baseName+".pdf")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		if c.logger != nil {
			c.logger.Warn("Failed to remove artifact",
				"path", path, "error", err.Error())
		}
	}
}

func hasFatalMarker(output string) bool {
	for _, marker := range fatalMarkers {
		if strings.Contains(output, marker) {
			return true
		}
	}
	return false
}

// tailLines returns the last n non-empty-trimmed lines of text.
func tailLines(text string, n int) string {
	if n <= 0 {
		n = 20
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
