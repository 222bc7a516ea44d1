package transform

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"tailorpress/internal/errors"
	"tailorpress/internal/provider"
	"tailorpress/internal/types"
)

// Transformer runs stage 1: one provider call rewriting the resume
// toward the job description, parsed into structured sections.
type Transformer struct {
	invoker provider.Invoker
	logger  *errors.Logger
}

// NewTransformer creates a stage 1 transformer bound to an invoker.
func NewTransformer(invoker provider.Invoker, logger *errors.Logger) *Transformer {
	return &Transformer{
		invoker: invoker,
		logger:  logger,
	}
}

// Transform performs one transformation call. It never retries; the
// caller owns the retry policy.
func (t *Transformer) Transform(ctx context.Context, resumeText, jobDescription string) (types.TransformedContent, error) {
	tracer := otel.Tracer("tailorpress.transform")
	ctx, span := tracer.Start(ctx, "transform.content")
	defer span.End()

	span.SetAttributes(
		attribute.String("llm.provider", string(t.invoker.Provider())),
		attribute.Int("input.resume_length", len(resumeText)),
		attribute.Int("input.job_length", len(jobDescription)),
	)

	if strings.TrimSpace(resumeText) == "" {
		return types.TransformedContent{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Resume text is empty", nil)
	}
	if strings.TrimSpace(jobDescription) == "" {
		return types.TransformedContent{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Job description is empty", nil)
	}

	systemPrompt, userPrompt := buildPrompts(resumeText, jobDescription)

	raw, err := t.invoker.Invoke(ctx, systemPrompt, userPrompt)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return types.TransformedContent{}, err
	}

	sections, err := ParseSections(raw)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		if t.logger != nil {
			t.logger.Warn("Transform completion could not be decomposed",
				"provider", t.invoker.Provider(),
				"completion_length", len(raw))
		}
		return types.TransformedContent{}, err
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("output.sections", len(sections)),
	)

	return types.TransformedContent{
		Sections: sections,
		Raw:      strings.TrimSpace(raw),
	}, nil
}
