package format

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"tailorpress/internal/errors"
	"tailorpress/internal/provider"
	"tailorpress/internal/types"
)

// Generator runs stage 2: one provider call embedding the structured
// content into a LaTeX template. Stage versions are per-instance and
// strictly increasing, starting at 1.
type Generator struct {
	invoker  provider.Invoker
	template string
	logger   *errors.Logger

	mu      sync.Mutex
	version int
}

// NewGenerator creates a stage 2 generator. An empty template selects
// the built-in one.
func NewGenerator(invoker provider.Invoker, template string, logger *errors.Logger) *Generator {
	if template == "" {
		template = DefaultTemplate
	}
	return &Generator{
		invoker:  invoker,
		template: template,
		logger:   logger,
	}
}

// Generate performs one formatting call. feedback is empty for the
// initial generation; during refinement it carries only the most recent
// feedback string, never the accumulated history. Only a successful
// call consumes a stage version, so the sequence stays contiguous.
func (g *Generator) Generate(ctx context.Context, content types.TransformedContent, feedback string) (types.FormattedDocument, error) {
	tracer := otel.Tracer("tailorpress.format")
	ctx, span := tracer.Start(ctx, "format.document")
	defer span.End()

	span.SetAttributes(
		attribute.String("llm.provider", string(g.invoker.Provider())),
		attribute.Bool("document.has_feedback", strings.TrimSpace(feedback) != ""),
	)

	if len(content.Sections) == 0 {
		return types.FormattedDocument{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"No structured content to format", nil)
	}

	escaped, warnings := renderContent(content)
	systemPrompt, userPrompt := buildPrompts(escaped, g.template, feedback)

	raw, err := g.invoker.Invoke(ctx, systemPrompt, userPrompt)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return types.FormattedDocument{}, err
	}

	markup := stripCodeFences(raw)
	if !strings.Contains(markup, `\documentclass`) || !strings.Contains(markup, `\begin{document}`) {
		err := errors.NewAIError(errors.ErrCodeResponseMalformed,
			"Format stage completion is not a LaTeX document", nil)
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return types.FormattedDocument{}, err
	}

	g.mu.Lock()
	g.version++
	version := g.version
	g.mu.Unlock()

	if len(warnings) > 0 && g.logger != nil {
		g.logger.Warn("Formatting produced escape warnings",
			"count", len(warnings),
			"stage_version", version)
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("document.stage_version", version),
		attribute.Int("document.markup_length", len(markup)),
	)

	return types.FormattedDocument{
		MarkupSource: markup,
		StageVersion: version,
		Warnings:     warnings,
	}, nil
}

// renderContent flattens the structured sections back into the text the
// prompt embeds, escaping each free-text line.
func renderContent(content types.TransformedContent) (string, []string) {
	var b strings.Builder
	var warnings []string

	for _, section := range content.Sections {
		if section.Title != "" {
			escapedTitle, w := EscapeText(section.Title)
			warnings = append(warnings, w...)
			b.WriteString("### ")
			b.WriteString(escapedTitle)
			b.WriteString("\n")
		}
		for _, entry := range section.Entries {
			escapedEntry, w := EscapeText(entry)
			warnings = append(warnings, w...)
			b.WriteString(escapedEntry)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String()), warnings
}

// stripCodeFences removes a surrounding markdown code fence when the
// model ignores the no-fences instruction.
func stripCodeFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}

	// Drop the opening fence line (``` or ```latex)
	lines = lines[1:]
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
