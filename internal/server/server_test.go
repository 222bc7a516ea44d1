package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tailorpress/internal/errors"
	"tailorpress/internal/pipeline"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{
			name:       "remote addr with port",
			remoteAddr: "192.0.2.10:51234",
			expected:   "192.0.2.10",
		},
		{
			name:       "x-forwarded-for single",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5"},
			remoteAddr: "192.0.2.10:51234",
			expected:   "203.0.113.5",
		},
		{
			name:       "x-forwarded-for list takes first",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5, 198.51.100.7"},
			remoteAddr: "192.0.2.10:51234",
			expected:   "203.0.113.5",
		},
		{
			name:       "x-forwarded-for garbage falls through to x-real-ip",
			headers:    map[string]string{"X-Forwarded-For": "not-an-ip", "X-Real-IP": "198.51.100.7"},
			remoteAddr: "192.0.2.10:51234",
			expected:   "198.51.100.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/health", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := getClientIP(r); got != tt.expected {
				t.Errorf("getClientIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGetRateLimitKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/transform", nil)
	r.RemoteAddr = "192.0.2.10:51234"
	if got := getRateLimitKey(r); got != "ip:192.0.2.10" {
		t.Errorf("expected IP key, got %q", got)
	}

	r.Header.Set("X-API-Key", "secret-key")
	if got := getRateLimitKey(r); got != "api:secret-key" {
		t.Errorf("expected API key key, got %q", got)
	}

	r.Header.Del("X-API-Key")
	r.Header.Set("Authorization", "Bearer bearer-key")
	if got := getRateLimitKey(r); got != "api:bearer-key" {
		t.Errorf("expected bearer key, got %q", got)
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := maskAPIKey("short"); got != "****" {
		t.Errorf("short keys should be fully masked, got %q", got)
	}
	if got := maskAPIKey("sk-abcdef123456"); got != "sk-abcde****" {
		t.Errorf("expected prefix mask, got %q", got)
	}
}

func TestRateLimiterBurst(t *testing.T) {
	limiter := NewRateLimiter(60, 2, nil)
	defer limiter.Close()

	if !limiter.Allow("k") || !limiter.Allow("k") {
		t.Fatal("burst capacity should admit the first two requests")
	}
	if limiter.Allow("k") {
		t.Error("third immediate request should be rejected")
	}
	// Independent keys have independent buckets
	if !limiter.Allow("other") {
		t.Error("separate key should not share the exhausted bucket")
	}
}

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore(time.Minute, nil)
	defer store.Close()

	run := &pipeline.Run{}
	id := store.Put(run)
	if id == "" {
		t.Fatal("expected non-empty session ID")
	}

	got, ok := store.Get(id)
	if !ok || got != run {
		t.Fatal("expected to retrieve the stored run")
	}
	if store.Count() != 1 {
		t.Errorf("expected 1 active session, got %d", store.Count())
	}

	store.Remove(id)
	if _, ok := store.Get(id); ok {
		t.Error("expected session to be gone after Remove")
	}

	if _, ok := store.Get("unknown-id"); ok {
		t.Error("unknown IDs should not resolve")
	}
}

func TestWriteAppErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid request",
			err:        errors.NewValidationError(errors.ErrCodeInvalidRequest, "Feedback text is required", nil),
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.ErrCodeInvalidRequest,
		},
		{
			name:       "unrecognized credential",
			err:        errors.NewProviderError(errors.ErrCodeCredentialUnrecognized, "Credential prefix not recognized", nil),
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.ErrCodeCredentialUnrecognized,
		},
		{
			name:       "session exhausted",
			err:        errors.NewValidationError(errors.ErrCodeSessionExhausted, "No refinement turns remaining", nil),
			wantStatus: http.StatusConflict,
			wantCode:   errors.ErrCodeSessionExhausted,
		},
		{
			name:       "session terminated",
			err:        errors.NewValidationError(errors.ErrCodeSessionTerminated, "Session already finalized", nil),
			wantStatus: http.StatusGone,
			wantCode:   errors.ErrCodeSessionTerminated,
		},
		{
			name:       "upstream failure",
			err:        errors.NewAIError(errors.ErrCodeUpstreamFailed, "Provider returned an error", nil),
			wantStatus: http.StatusBadGateway,
			wantCode:   errors.ErrCodeUpstreamFailed,
		},
		{
			name:       "auth failure",
			err:        errors.NewAIError(errors.ErrCodeAuthFailed, "Credential rejected", nil),
			wantStatus: http.StatusUnauthorized,
			wantCode:   errors.ErrCodeAuthFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeAppError(rec, tt.err, "Request failed")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("response body did not decode: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	logger := errors.NewLogger(0)
	srv := &Server{
		APIKeys: map[string]bool{"valid-key": true},
		Logger:  logger,
	}

	called := false
	handler := srv.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing key rejected", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodPost, "/api/v1/transform", nil))
		if rec.Code != http.StatusUnauthorized || called {
			t.Errorf("expected 401 without handler call, got %d called=%v", rec.Code, called)
		}
	})

	t.Run("invalid key rejected", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/transform", nil)
		r.Header.Set("X-API-Key", "wrong")
		handler(rec, r)
		if rec.Code != http.StatusUnauthorized || called {
			t.Errorf("expected 401 without handler call, got %d called=%v", rec.Code, called)
		}
	})

	t.Run("valid key admitted", func(t *testing.T) {
		called = false
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/transform", nil)
		r.Header.Set("X-API-Key", "valid-key")
		handler(rec, r)
		if rec.Code != http.StatusOK || !called {
			t.Errorf("expected handler call with 200, got %d called=%v", rec.Code, called)
		}
	})

	t.Run("no keys configured admits all", func(t *testing.T) {
		open := &Server{APIKeys: map[string]bool{}, Logger: logger}
		called = false
		rec := httptest.NewRecorder()
		open.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			called = true
		})(rec, httptest.NewRequest(http.MethodPost, "/api/v1/transform", nil))
		if !called {
			t.Error("expected handler call when no API keys configured")
		}
	})
}
