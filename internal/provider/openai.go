package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"tailorpress/internal/errors"
)

// chatInvoker talks to an OpenAI-compatible chat completions endpoint.
// Both OpenAI and Groq share this wire format; only the base URL and
// model differ.
type chatInvoker struct {
	httpClient *http.Client
	settings   Settings
	breaker    *InvokeBreaker
}

var _ Invoker = (*chatInvoker)(nil)

func newChatInvoker(settings Settings) (*chatInvoker, error) {
	if settings.Profile.BaseURL == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("No endpoint configured for provider %s", settings.Profile.ID), nil)
	}

	return &chatInvoker{
		httpClient: &http.Client{
			Timeout: settings.Timeout,
		},
		settings: settings,
		breaker:  NewInvokeBreaker(settings.Stage, settings.Profile.ID, settings.Breaker, settings.Logger),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *chatInvoker) Provider() ID { return c.settings.Profile.ID }

// Invoke performs exactly one chat completion call. No retries happen
// here; transient failures surface to the caller classified as such.
func (c *chatInvoker) Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	id := c.settings.Profile.ID

	tracer := otel.Tracer("tailorpress.provider.chat")
	ctx, span := tracer.Start(ctx, string(id)+".invoke")
	defer span.End()

	span.SetAttributes(
		attribute.String("llm.provider", string(id)),
		attribute.String("llm.model", c.settings.Profile.Model),
		attribute.String("llm.stage", c.settings.Stage),
		attribute.Float64("llm.temperature", float64(c.settings.Temperature)),
	)

	text, err := c.breaker.Execute(func() (string, error) {
		return c.complete(ctx, systemPrompt, userPrompt)
	})
	if err != nil {
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

func (c *chatInvoker) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	id := c.settings.Profile.ID

	var messages []chatMessage
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.settings.Profile.Model,
		Messages:    messages,
		Temperature: c.settings.Temperature,
		MaxTokens:   c.settings.MaxTokens,
	})
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeInternal,
			"Failed to encode chat completion request", err)
	}

	url := strings.TrimSuffix(c.settings.Profile.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", errors.NewInternalError(errors.ErrCodeInternal,
			"Failed to build chat completion request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.settings.Credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(id, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return "", classifyTransportError(id, err)
	}

	if resp.StatusCode != http.StatusOK {
		var parsed chatResponse
		cause := error(nil)
		if json.Unmarshal(respBody, &parsed) == nil && parsed.Error != nil {
			cause = fmt.Errorf("%s: %s", parsed.Error.Type, parsed.Error.Message)
		}
		return "", classifyStatus(id, resp.StatusCode, cause)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", errors.NewAIError(errors.ErrCodeResponseMalformed,
			fmt.Sprintf("Provider %s returned unparseable JSON", id), err)
	}

	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", errors.NewAIError(errors.ErrCodeResponseMalformed,
			fmt.Sprintf("Provider %s returned no completion choices", id), nil)
	}

	return parsed.Choices[0].Message.Content, nil
}

func (c *chatInvoker) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
