package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"tailorpress/internal/errors"
	"tailorpress/internal/observability"
	"tailorpress/internal/pipeline"
	"tailorpress/internal/refine"
	"tailorpress/internal/types"
)

// SessionResponse is the JSON shape returned for session-scoped endpoints
type SessionResponse struct {
	SessionID      string             `json:"sessionId"`
	State          string             `json:"state"`
	TurnsUsed      int                `json:"turnsUsed"`
	TurnsRemaining int                `json:"turnsRemaining"`
	Provider       string             `json:"provider"`
	Document       types.FormattedDocument `json:"document"`
	Compilation    *types.CompilationResult `json:"compilation,omitempty"`
}

// createTransformHandler wraps the transform pipeline with observability
func (s *Server) createTransformHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("tailorpress.api")
		ctx, span := tracer.Start(ctx, "api.transform")
		defer span.End()

		var req TransformAPIRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}

		if strings.TrimSpace(req.Resume) == "" {
			err := fmt.Errorf("missing resume")
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Missing resume", "resume field is required", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.JobDescription) == "" {
			err := fmt.Errorf("missing job description")
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Missing job description", "jobDescription field is required", http.StatusBadRequest)
			return
		}

		span.SetAttributes(
			attribute.Int("request.resume_length", len(req.Resume)),
			attribute.Int("request.job_length", len(req.JobDescription)),
			attribute.Bool("request.compile", req.Compile),
			attribute.String("operation", "transform"),
		)

		engine := pipeline.NewEngine(s.AppConfig, s.Logger)
		metrics := om.GetMetrics()

		var run *pipeline.Run
		err := metrics.TrackStage(ctx, "run", func(ctx context.Context) error {
			var runErr error
			run, runErr = engine.Run(ctx, types.TransformRequest{
				ResumeText:         req.Resume,
				JobDescriptionText: req.JobDescription,
				Credential:         req.APIKey,
				ProviderHint:       req.Provider,
			}, req.Compile)
			return runErr
		})

		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "pipeline"))
			metrics.RecordBusinessMetric(ctx, "run_completed", false,
				attribute.String("error", err.Error()))
			writeAppError(w, err, "Failed to transform resume")
			return
		}

		sessionID := s.Sessions.Put(run)

		metrics.RecordBusinessMetric(ctx, "run_completed", true,
			attribute.String("provider", string(run.Provider)))
		if result := run.Compilation(); result != nil {
			metrics.RecordBusinessMetric(ctx, "compilation", result.Succeeded)
		}

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.String("provider", string(run.Provider)),
			attribute.String("session.id", sessionID),
		)

		writeJSONResponse(w, http.StatusCreated, s.sessionResponse(sessionID, run))
	}
}

// createFeedbackHandler handles one refinement turn for a session
func (s *Server) createFeedbackHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("tailorpress.api")
		ctx, span := tracer.Start(ctx, "api.feedback")
		defer span.End()

		sessionID := r.PathValue("id")
		run, ok := s.Sessions.Get(sessionID)
		if !ok {
			writeErrorResponse(w, "Session not found", "Unknown or expired session ID", http.StatusNotFound)
			return
		}

		var req FeedbackAPIRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}

		span.SetAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("request.feedback_length", len(req.Feedback)),
			attribute.String("operation", "feedback"),
		)

		metrics := om.GetMetrics()
		_, err := run.SubmitFeedback(ctx, req.Feedback)
		metrics.RecordBusinessMetric(ctx, "refinement_turn", err == nil)

		if err != nil {
			span.RecordError(err)
			writeAppError(w, err, "Failed to apply feedback")
			return
		}

		if result := run.Compilation(); result != nil {
			metrics.RecordBusinessMetric(ctx, "compilation", result.Succeeded)
		}

		span.SetAttributes(attribute.Bool("success", true))
		writeJSONResponse(w, http.StatusOK, s.sessionResponse(sessionID, run))
	}
}

// createFinalizeHandler terminates a session and returns its final document
func (s *Server) createFinalizeHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tracer := om.Tracer("tailorpress.api")
		_, span := tracer.Start(r.Context(), "api.finalize")
		defer span.End()

		sessionID := r.PathValue("id")
		run, ok := s.Sessions.Get(sessionID)
		if !ok {
			writeErrorResponse(w, "Session not found", "Unknown or expired session ID", http.StatusNotFound)
			return
		}

		span.SetAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("operation", "finalize"),
		)

		run.Finalize()
		response := s.sessionResponse(sessionID, run)
		s.Sessions.Remove(sessionID)

		span.SetAttributes(attribute.Bool("success", true))
		writeJSONResponse(w, http.StatusOK, response)
	}
}

// createSessionStatusHandler returns the current state of a session
func (s *Server) createSessionStatusHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		run, ok := s.Sessions.Get(sessionID)
		if !ok {
			writeErrorResponse(w, "Session not found", "Unknown or expired session ID", http.StatusNotFound)
			return
		}

		writeJSONResponse(w, http.StatusOK, s.sessionResponse(sessionID, run))
	}
}

// sessionResponse builds the session-scoped response body
func (s *Server) sessionResponse(sessionID string, run *pipeline.Run) SessionResponse {
	session := run.Session()
	return SessionResponse{
		SessionID:      sessionID,
		State:          string(session.State()),
		TurnsUsed:      session.TurnCount(),
		TurnsRemaining: session.RemainingTurns(),
		Provider:       string(run.Provider),
		Document:       run.Document(),
		Compilation:    run.Compilation(),
	}
}

// healthHandler provides a basic liveness endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "tailorpress",
		"version": s.Version,
		"sessions": map[string]any{
			"active":    s.Sessions.Count(),
			"max_turns": refine.MaxTurns,
		},
	}

	writeJSONResponse(w, http.StatusOK, response)
}

// statsHandler provides server statistics including rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "tailorpress",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
		},
		"sessions": map[string]any{
			"active": s.Sessions.Count(),
		},
	}

	// Add rate limiting stats if enabled
	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	writeJSONResponse(w, http.StatusOK, response)
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) error {
	if r.Header.Get("Content-Type") != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
		}
		return fmt.Errorf("failed to read request body: %w", err)
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("Failed to close request body: %v", err)
		}
	}()

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse JSON: %w", err)
	}

	return nil
}

// writeJSONResponse writes a JSON response with the given status code
func writeJSONResponse(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, error, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   error,
		Message: message,
	}

	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		log.Printf("Failed to encode error response: %v", err)
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}

// createRateLimitMiddleware adds observability to rate limiting
func (s *Server) createRateLimitMiddleware(om *observability.ObservabilityManager) func(http.HandlerFunc) http.HandlerFunc {
	originalMiddleware := s.rateLimitMiddleware()

	return func(next http.HandlerFunc) http.HandlerFunc {
		return originalMiddleware(func(w http.ResponseWriter, r *http.Request) {
			// Wrap the ResponseWriter to detect rate limit responses
			wrapper := &responseWrapper{ResponseWriter: w, statusCode: 200}

			next(wrapper, r)

			if wrapper.statusCode == http.StatusTooManyRequests {
				metrics := om.GetMetrics()
				metrics.RecordBusinessMetric(r.Context(), "rate_limit_hit", true,
					attribute.String("endpoint", r.URL.Path),
					attribute.String("method", r.Method))
			}
		})
	}
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// writeAppError maps application error codes to HTTP status codes
func writeAppError(w http.ResponseWriter, err error, fallback string) {
	statusCode := http.StatusInternalServerError
	code := ""
	message := err.Error()

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
		switch appErr.Code {
		case errors.ErrCodeInvalidRequest, errors.ErrCodeCredentialUnrecognized,
			errors.ErrCodeInvalidFormat, errors.ErrCodeMissingAPIKey:
			statusCode = http.StatusBadRequest
		case errors.ErrCodeAuthFailed:
			statusCode = http.StatusUnauthorized
		case errors.ErrCodeRateLimited:
			statusCode = http.StatusTooManyRequests
		case errors.ErrCodeSessionExhausted:
			statusCode = http.StatusConflict
		case errors.ErrCodeSessionTerminated:
			statusCode = http.StatusGone
		case errors.ErrCodeNetworkTransient, errors.ErrCodeUpstreamFailed,
			errors.ErrCodeResponseMalformed:
			statusCode = http.StatusBadGateway
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   fallback,
		Message: message,
		Code:    code,
	}

	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		log.Printf("Failed to encode error response: %v", encodeErr)
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
