package provider

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"

	"tailorpress/internal/errors"
)

// geminiInvoker talks to Google Gemini through the official SDK.
type geminiInvoker struct {
	client   *genai.Client
	settings Settings
	breaker  *InvokeBreaker
}

var _ Invoker = (*geminiInvoker)(nil)

func newGeminiInvoker(ctx context.Context, settings Settings) (*geminiInvoker, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: settings.Credential,
	})
	if err != nil {
		return nil, errors.NewProviderError(errors.ErrCodeUpstreamFailed,
			"Failed to create Gemini client", err)
	}

	return &geminiInvoker{
		client:   client,
		settings: settings,
		breaker:  NewInvokeBreaker(settings.Stage, Gemini, settings.Breaker, settings.Logger),
	}, nil
}

func (g *geminiInvoker) Provider() ID { return Gemini }

// Invoke performs exactly one generation call. No retries happen here;
// transient failures surface to the caller classified as such.
func (g *geminiInvoker) Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	tracer := otel.Tracer("tailorpress.provider.gemini")
	ctx, span := tracer.Start(ctx, "gemini.invoke")
	defer span.End()

	span.SetAttributes(
		attribute.String("llm.provider", string(Gemini)),
		attribute.String("llm.model", g.settings.Profile.Model),
		attribute.String("llm.stage", g.settings.Stage),
		attribute.Float64("llm.temperature", float64(g.settings.Temperature)),
	)

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.settings.Temperature),
	}
	if g.settings.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(g.settings.MaxTokens)
	}
	if systemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	callCtx := ctx
	if g.settings.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.settings.Timeout)
		defer cancel()
	}

	text, err := g.breaker.Execute(func() (string, error) {
		result, err := g.client.Models.GenerateContent(callCtx, g.settings.Profile.Model,
			genai.Text(userPrompt), genCfg)
		if err != nil {
			return "", classifyTransportError(Gemini, err)
		}
		return result.Text(), nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		err := errors.NewAIError(errors.ErrCodeResponseMalformed,
			"Gemini returned an empty completion", nil)
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return "", err
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("llm.completion_length", len(text)),
	)
	return text, nil
}

func (g *geminiInvoker) Close() error {
	// The genai client holds no connections that need explicit teardown.
	return nil
}
