package provider

import (
	"context"
	"strings"
	"time"

	"tailorpress/internal/config"
	"tailorpress/internal/errors"
)

// ID identifies a supported LLM backend. The set is closed; anything
// outside it is rejected at detection time.
type ID string

const (
	OpenAI ID = "openai"
	Gemini ID = "gemini"
	Groq   ID = "groq"
)

// keyPrefixes maps literal credential prefixes to providers. Detection
// is exact prefix matching only, no heuristics on key length or charset.
var keyPrefixes = []struct {
	prefix string
	id     ID
}{
	{"sk-", OpenAI},
	{"AIza", Gemini},
	{"gsk_", Groq},
}

// Detect classifies a credential by its literal prefix. It fails closed:
// an unrecognized prefix is an error, never a guess.
func Detect(credential string) (ID, error) {
	if credential == "" {
		return "", errors.NewValidationError(errors.ErrCodeMissingAPIKey,
			"No provider credential supplied", nil)
	}

	for _, p := range keyPrefixes {
		if strings.HasPrefix(credential, p.prefix) {
			return p.id, nil
		}
	}

	return "", errors.NewProviderError(errors.ErrCodeCredentialUnrecognized,
		"Credential prefix does not match any supported provider", nil)
}

// ParseID validates an explicit provider name, for use as a hint that
// bypasses prefix detection.
func ParseID(name string) (ID, error) {
	switch ID(strings.ToLower(name)) {
	case OpenAI:
		return OpenAI, nil
	case Gemini:
		return Gemini, nil
	case Groq:
		return Groq, nil
	default:
		return "", errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Unknown provider: "+name, nil)
	}
}

// Profile describes how to reach a provider: which model to request and,
// for the OpenAI-compatible backends, which base URL to call. Gemini is
// reached through its SDK and carries no base URL.
type Profile struct {
	ID      ID
	Model   string
	BaseURL string
}

// ProfileFor builds the connection profile for a provider from config.
func ProfileFor(id ID, cfg *config.Config) Profile {
	switch id {
	case OpenAI:
		return Profile{ID: OpenAI, Model: cfg.AI.Models.OpenAI, BaseURL: cfg.AI.Endpoints.OpenAI}
	case Gemini:
		return Profile{ID: Gemini, Model: cfg.AI.Models.Gemini}
	case Groq:
		return Profile{ID: Groq, Model: cfg.AI.Models.Groq, BaseURL: cfg.AI.Endpoints.Groq}
	default:
		return Profile{ID: id}
	}
}

// Invoker performs a single LLM call. Implementations are stateless
// between calls and never retry internally; retry policy belongs to the
// caller, which can see the whole pipeline.
type Invoker interface {
	// Invoke sends one system+user prompt pair and returns the raw
	// completion text.
	Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Provider reports which backend this invoker talks to.
	Provider() ID

	// Close releases any underlying transport resources.
	Close() error
}

// Settings carries the per-stage invocation parameters resolved from
// config. One Invoker is built per pipeline stage.
type Settings struct {
	Credential  string
	Profile     Profile
	Stage       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	Breaker     config.CircuitBreakerConfig
	Logger      *errors.Logger
}

// New builds an Invoker for the given credential. An explicit hint
// selects the provider regardless of the credential's shape; without
// one the provider comes from prefix detection, which fails closed on
// unrecognized prefixes.
func New(ctx context.Context, credential, hint string, stage string, cfg *config.Config, stageCfg config.StageAIConfig, logger *errors.Logger) (Invoker, error) {
	if credential == "" {
		return nil, errors.NewValidationError(errors.ErrCodeMissingAPIKey,
			"No provider credential supplied", nil)
	}

	var id ID
	if hint != "" {
		hinted, err := ParseID(hint)
		if err != nil {
			return nil, err
		}
		id = hinted
	} else {
		detected, err := Detect(credential)
		if err != nil {
			return nil, err
		}
		id = detected
	}

	settings := Settings{
		Credential:  credential,
		Profile:     ProfileFor(id, cfg),
		Stage:       stage,
		Temperature: *stageCfg.Temperature,
		MaxTokens:   stageCfg.MaxTokens,
		Timeout:     *stageCfg.Timeout,
		Breaker:     stageCfg.CircuitBreaker,
		Logger:      logger,
	}

	switch id {
	case Gemini:
		return newGeminiInvoker(ctx, settings)
	case OpenAI, Groq:
		return newChatInvoker(settings)
	default:
		return nil, errors.NewProviderError(errors.ErrCodeCredentialUnrecognized,
			"Credential prefix does not match any supported provider", nil)
	}
}
