package pipeline

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"tailorpress/internal/compile"
	"tailorpress/internal/config"
	"tailorpress/internal/errors"
	"tailorpress/internal/format"
	"tailorpress/internal/provider"
	"tailorpress/internal/refine"
	"tailorpress/internal/transform"
	"tailorpress/internal/types"
)

// Engine orchestrates the linear pipeline:
// transform -> format -> (optional) compile, plus the refinement loop
// around the format stage.
type Engine struct {
	cfg      *config.Config
	compiler *compile.Compiler
	logger   *errors.Logger
}

// NewEngine creates a pipeline engine from config.
func NewEngine(cfg *config.Config, logger *errors.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		compiler: compile.NewCompiler(cfg.Compiler, logger),
		logger:   logger,
	}
}

// Run is one pipeline execution plus whatever refinement follows it.
// Provider and Content are fixed once Run returns; the document and
// compilation outcome advance with refinement turns, so they live
// behind locked accessors.
type Run struct {
	Provider provider.ID
	Content  types.TransformedContent

	mu          sync.Mutex
	document    types.FormattedDocument
	compilation *types.CompilationResult
	engine      *Engine
	generator   *format.Generator
	session     *refine.Session
	formatCfg   config.StageAIConfig
	invokers    []provider.Invoker
	compile     bool
	workDir     string
}

// Run executes the pipeline once. A compilation failure never aborts
// the run: the document comes back regardless, with the failure
// recorded in Compilation.
func (e *Engine) Run(ctx context.Context, req types.TransformRequest, compileOutput bool) (*Run, error) {
	tracer := otel.Tracer("tailorpress.pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()

	if strings.TrimSpace(req.ResumeText) == "" {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Resume text is required", nil)
	}
	if strings.TrimSpace(req.JobDescriptionText) == "" {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Job description text is required", nil)
	}

	credential := req.Credential
	if credential == "" {
		credential = e.cfg.AI.APIKey
	}
	hint := req.ProviderHint
	if hint == "" {
		hint = e.cfg.AI.Provider
	}

	transformCfg := e.cfg.GetTransformConfig()
	formatCfg := e.cfg.GetFormatConfig()

	transformInvoker, err := provider.New(ctx, credential, hint, "transform", e.cfg, transformCfg, e.logger)
	if err != nil {
		return nil, err
	}
	formatInvoker, err := provider.New(ctx, credential, hint, "format", e.cfg, formatCfg, e.logger)
	if err != nil {
		_ = transformInvoker.Close()
		return nil, err
	}

	run := &Run{
		Provider:  transformInvoker.Provider(),
		engine:    e,
		formatCfg: formatCfg,
		invokers:  []provider.Invoker{transformInvoker, formatInvoker},
		compile:   compileOutput,
		workDir:   req.CompileDir,
	}

	span.SetAttributes(
		attribute.String("llm.provider", string(run.Provider)),
		attribute.Bool("pipeline.compile", compileOutput),
	)

	transformer := transform.NewTransformer(transformInvoker, e.logger)
	content, err := retryTransient(ctx, e.logger, "transform", *transformCfg.MaxRetries, func() (types.TransformedContent, error) {
		return transformer.Transform(ctx, req.ResumeText, req.JobDescriptionText)
	})
	if err != nil {
		run.Close()
		span.RecordError(err)
		return nil, err
	}
	run.Content = content

	template, err := format.LoadTemplate(e.cfg.Compiler.TemplatePath)
	if err != nil {
		run.Close()
		return nil, err
	}
	run.generator = format.NewGenerator(formatInvoker, template, e.logger)

	doc, err := retryTransient(ctx, e.logger, "format", *formatCfg.MaxRetries, func() (types.FormattedDocument, error) {
		return run.generator.Generate(ctx, content, "")
	})
	if err != nil {
		run.Close()
		span.RecordError(err)
		return nil, err
	}
	run.document = doc

	if compileOutput {
		run.compileCurrent(ctx)
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("document.stage_version", doc.StageVersion),
	)
	return run, nil
}

// regenerator adapts the run's format generator to the session's
// Regenerator contract, with the same retry policy as the initial call.
type regenerator struct {
	run       *Run
	formatCfg config.StageAIConfig
}

func (r *regenerator) Regenerate(ctx context.Context, feedback string) (types.FormattedDocument, error) {
	e := r.run.engine
	return retryTransient(ctx, e.logger, "regenerate", *r.formatCfg.MaxRetries, func() (types.FormattedDocument, error) {
		return r.run.generator.Generate(ctx, r.run.Content, feedback)
	})
}

// StartRefinement opens the refinement session over the run's current
// document. Idempotent; the first call creates the session, later calls
// return it.
func (run *Run) StartRefinement() *refine.Session {
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.session == nil {
		var logger *errors.Logger
		if run.engine != nil {
			logger = run.engine.logger
		}
		run.session = refine.NewSession(run.document,
			&regenerator{run: run, formatCfg: run.formatCfg}, logger)
	}
	return run.session
}

// SubmitFeedback runs one refinement turn. On success the run's
// document advances and, when compilation is on, the new markup is
// recompiled; a compile failure is recorded but does not undo the turn.
func (run *Run) SubmitFeedback(ctx context.Context, feedback string) (types.FormattedDocument, error) {
	doc, err := run.StartRefinement().SubmitFeedback(ctx, feedback)
	if err != nil {
		return types.FormattedDocument{}, err
	}

	run.mu.Lock()
	run.document = doc
	run.mu.Unlock()

	if run.compile {
		run.compileCurrent(ctx)
	}

	return doc, nil
}

// Finalize terminates the refinement session and returns the final
// document. Idempotent; never fails.
func (run *Run) Finalize() types.FormattedDocument {
	return run.StartRefinement().Finalize()
}

// Session exposes the refinement state machine for turn accounting.
func (run *Run) Session() *refine.Session {
	return run.StartRefinement()
}

// Document returns the latest good document.
func (run *Run) Document() types.FormattedDocument {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.document
}

// Compilation returns the most recent compile outcome, nil when
// compilation was never requested. Each outcome is a fresh value, so
// the returned pointer is a stable snapshot.
func (run *Run) Compilation() *types.CompilationResult {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.compilation
}

// compileCurrent compiles the current document and records the outcome.
func (run *Run) compileCurrent(ctx context.Context) {
	run.mu.Lock()
	markup := run.document.MarkupSource
	workDir := run.workDir
	run.mu.Unlock()

	result, err := run.engine.compiler.Compile(ctx, markup, workDir)
	if err != nil {
		// Setup fault; represent it as a failed compilation so the
		// document still flows to the caller.
		failure := types.CompilationFailure(err.Error(), "")
		result = failure
	}

	if !result.Succeeded && run.engine.logger != nil {
		run.engine.logger.Warn("Compilation failed, returning document anyway",
			"reason", result.Reason)
	}

	run.mu.Lock()
	run.compilation = &result
	run.mu.Unlock()
}

// Close releases the run's provider transports.
func (run *Run) Close() {
	for _, inv := range run.invokers {
		if err := inv.Close(); err != nil && run.engine.logger != nil {
			run.engine.logger.Warn("Failed to close provider transport", "error", err.Error())
		}
	}
}
