package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tailorpress/internal/config"
	"tailorpress/internal/errors"
	"tailorpress/internal/refine"
	"tailorpress/internal/types"
)

const stageOneCompletion = `Jane Doe
jane@example.com

### PROFESSIONAL EXPERIENCE
Acme Corp - Senior Engineer
- Led billing platform migration

### EDUCATION
B.S. Computer Science`

const stageTwoCompletion = `\documentclass[letterpaper,11pt]{article}
\begin{document}
Jane Doe resume v%d
\end{document}`

// fakeBackend serves an OpenAI-compatible chat completions endpoint.
// It answers the transform stage with sectioned text and the format
// stage with a LaTeX document carrying a call counter.
type fakeBackend struct {
	formatCalls atomic.Int64
	failFormat  atomic.Bool
	failStatus  int
}

func (b *fakeBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		user := req.Messages[len(req.Messages)-1].Content
		var completion string
		if strings.Contains(user, "LATEX TEMPLATE STRUCTURE") {
			if b.failFormat.Load() {
				w.WriteHeader(b.failStatus)
				fmt.Fprint(w, `{"error":{"message":"boom","type":"server_error"}}`)
				return
			}
			n := b.formatCalls.Add(1)
			completion = fmt.Sprintf(stageTwoCompletion, n)
		} else {
			completion = stageOneCompletion
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": completion}, "finish_reason": "stop"},
			},
		})
	}
}

func testEngineConfig(t *testing.T, backendURL, compilerCmd string) *config.Config {
	t.Helper()

	temp := float32(0.5)
	timeout := 5 * time.Second
	retries := 0

	cfg := &config.Config{}
	cfg.AI.Timeout = timeout
	cfg.AI.MaxRetries = retries
	cfg.AI.Temperature = temp
	cfg.AI.Models.Groq = "llama-3.1-8b-instant"
	cfg.AI.Endpoints.Groq = backendURL
	cfg.AI.Transform = config.StageAIConfig{Temperature: &temp, Timeout: &timeout, MaxRetries: &retries, MaxTokens: 1000}
	cfg.AI.Format = config.StageAIConfig{Temperature: &temp, Timeout: &timeout, MaxRetries: &retries, MaxTokens: 1000}
	cfg.Compiler = config.CompilerConfig{
		Command:      compilerCmd,
		Passes:       2,
		Timeout:      10 * time.Second,
		LogTailLines: 20,
	}
	return cfg
}

func writeFakeCompiler(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler scripts need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fakelatex")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write fake compiler: %v", err)
	}
	return path
}

func groqRequest() types.TransformRequest {
	return types.TransformRequest{
		ResumeText:         "resume body",
		JobDescriptionText: "job body",
		Credential:         "gsk_test_credential",
	}
}

func TestRunHappyPathWithCompile(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	fake := writeFakeCompiler(t, "printf 'PDFDATA' > resume.pdf\nexit 0")
	cfg := testEngineConfig(t, srv.URL, fake)
	engine := NewEngine(cfg, nil)

	run, err := engine.Run(context.Background(), groqRequest(), true)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	defer run.Close()

	if len(run.Content.Sections) == 0 {
		t.Error("Run() produced no structured content")
	}
	if run.Document().StageVersion != 1 {
		t.Errorf("initial StageVersion = %d, want 1", run.Document().StageVersion)
	}
	if !strings.Contains(run.Document().MarkupSource, `\documentclass`) {
		t.Error("document markup is not LaTeX")
	}
	result := run.Compilation()
	if result == nil || !result.Succeeded {
		t.Fatalf("Compilation() = %+v, want success", result)
	}
	if string(result.ArtifactBytes) != "PDFDATA" {
		t.Errorf("artifact = %q, want PDFDATA", result.ArtifactBytes)
	}
}

func TestRunCompilesIntoRequestedDirectory(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	fake := writeFakeCompiler(t, "printf 'PDFDATA' > resume.pdf\nexit 0")
	cfg := testEngineConfig(t, srv.URL, fake)
	engine := NewEngine(cfg, nil)

	outDir := t.TempDir()
	req := groqRequest()
	req.CompileDir = outDir

	run, err := engine.Run(context.Background(), req, true)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	defer run.Close()

	result := run.Compilation()
	if result == nil || !result.Succeeded {
		t.Fatalf("Compilation() = %+v, want success", result)
	}
	// The first compile, not just refinement recompiles, lands in the
	// requested directory
	wantPath := filepath.Join(outDir, "resume.pdf")
	if result.ArtifactPath != wantPath {
		t.Errorf("artifact path = %q, want %q", result.ArtifactPath, wantPath)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Errorf("artifact missing from requested directory: %v", err)
	}
}

func TestRunWithoutCompileSkipsCompiler(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	cfg := testEngineConfig(t, srv.URL, "missing-latex-binary")
	engine := NewEngine(cfg, nil)

	run, err := engine.Run(context.Background(), groqRequest(), false)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	defer run.Close()

	if result := run.Compilation(); result != nil {
		t.Errorf("Compilation() = %+v, want nil when compilation is off", result)
	}
}

func TestCompileFailureNeverAbortsRun(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	fake := writeFakeCompiler(t, "echo 'Fatal error occurred' > resume.log\nexit 1")
	cfg := testEngineConfig(t, srv.URL, fake)
	engine := NewEngine(cfg, nil)

	run, err := engine.Run(context.Background(), groqRequest(), true)
	if err != nil {
		t.Fatalf("Run() error: %v (compile failure must not abort)", err)
	}
	defer run.Close()

	if run.Document().MarkupSource == "" {
		t.Error("document missing despite compile failure")
	}
	result := run.Compilation()
	if result == nil || result.Succeeded {
		t.Fatalf("Compilation() = %+v, want recorded failure", result)
	}
	if result.Reason == "" {
		t.Error("compilation failure reason is empty")
	}
}

func TestRefinementAdvancesVersionsAndExhausts(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	cfg := testEngineConfig(t, srv.URL, "missing-latex-binary")
	engine := NewEngine(cfg, nil)

	run, err := engine.Run(context.Background(), groqRequest(), false)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	defer run.Close()

	lastVersion := run.Document().StageVersion
	for i := 1; i <= refine.MaxTurns; i++ {
		doc, err := run.SubmitFeedback(context.Background(), fmt.Sprintf("change %d", i))
		if err != nil {
			t.Fatalf("turn %d error: %v", i, err)
		}
		if doc.StageVersion <= lastVersion {
			t.Errorf("turn %d StageVersion = %d, want > %d", i, doc.StageVersion, lastVersion)
		}
		lastVersion = doc.StageVersion
		if run.Session().TurnCount() != i {
			t.Errorf("TurnCount after turn %d = %d", i, run.Session().TurnCount())
		}
	}

	before := run.Document()
	_, err = run.SubmitFeedback(context.Background(), "one too many")
	if !errors.HasCode(err, errors.ErrCodeSessionExhausted) {
		t.Errorf("sixth turn error = %v, want %s", err, errors.ErrCodeSessionExhausted)
	}
	if run.Document().MarkupSource != before.MarkupSource {
		t.Error("exhausted submit modified the current document")
	}

	final := run.Finalize()
	if final.MarkupSource != before.MarkupSource {
		t.Error("Finalize() returned a different document")
	}
}

func TestConcurrentReadsDuringRefinement(t *testing.T) {
	backend := &fakeBackend{}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	cfg := testEngineConfig(t, srv.URL, "missing-latex-binary")
	engine := NewEngine(cfg, nil)

	run, err := engine.Run(context.Background(), groqRequest(), false)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	defer run.Close()

	// Status reads race with refinement turns on the HTTP surface; the
	// accessors must stay consistent under the race detector.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if doc := run.Document(); doc.StageVersion < 1 {
				t.Errorf("Document() StageVersion = %d mid-refinement", doc.StageVersion)
				return
			}
			_ = run.Compilation()
			_ = run.Session().TurnCount()
		}
	}()

	for i := 1; i <= refine.MaxTurns; i++ {
		if _, err := run.SubmitFeedback(context.Background(), fmt.Sprintf("concurrent %d", i)); err != nil {
			t.Fatalf("turn %d error: %v", i, err)
		}
	}
	close(stop)
	wg.Wait()

	if run.Document().StageVersion <= 1 {
		t.Errorf("StageVersion = %d after refinement, want > 1", run.Document().StageVersion)
	}
}

func TestFailedRegenerationPreservesDocument(t *testing.T) {
	backend := &fakeBackend{failStatus: http.StatusInternalServerError}
	srv := httptest.NewServer(backend.handler())
	defer srv.Close()

	cfg := testEngineConfig(t, srv.URL, "missing-latex-binary")
	engine := NewEngine(cfg, nil)

	run, err := engine.Run(context.Background(), groqRequest(), false)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	defer run.Close()

	before := run.Document()
	backend.failFormat.Store(true)

	_, err = run.SubmitFeedback(context.Background(), "please fail")
	if err == nil {
		t.Fatal("SubmitFeedback() expected error from failing backend")
	}
	if run.Document().MarkupSource != before.MarkupSource {
		t.Error("failed regeneration modified the document")
	}
	if run.Session().TurnCount() != 0 {
		t.Errorf("TurnCount = %d after failed regeneration, want 0", run.Session().TurnCount())
	}

	// Recovery works and consumes the turn normally
	backend.failFormat.Store(false)
	if _, err := run.SubmitFeedback(context.Background(), "now succeed"); err != nil {
		t.Fatalf("recovery turn error: %v", err)
	}
	if run.Session().TurnCount() != 1 {
		t.Errorf("TurnCount = %d after recovery, want 1", run.Session().TurnCount())
	}
}

func TestRunRejectsUnrecognizedCredential(t *testing.T) {
	cfg := testEngineConfig(t, "http://unused", "missing-latex-binary")
	engine := NewEngine(cfg, nil)

	req := groqRequest()
	req.Credential = "unknown-prefix-key"

	_, err := engine.Run(context.Background(), req, false)
	if !errors.HasCode(err, errors.ErrCodeCredentialUnrecognized) {
		t.Errorf("Run() error = %v, want %s", err, errors.ErrCodeCredentialUnrecognized)
	}
}

func TestRetryTransient(t *testing.T) {
	t.Run("transient error retried until success", func(t *testing.T) {
		calls := 0
		got, err := retryTransient(context.Background(), nil, "op", 3, func() (string, error) {
			calls++
			if calls < 3 {
				return "", errors.NewNetworkError(errors.ErrCodeNetworkTransient, "blip", nil)
			}
			return "ok", nil
		})
		if err != nil {
			t.Fatalf("retryTransient() error: %v", err)
		}
		if got != "ok" || calls != 3 {
			t.Errorf("got %q after %d calls, want ok after 3", got, calls)
		}
	})

	t.Run("non-transient error returned immediately", func(t *testing.T) {
		calls := 0
		_, err := retryTransient(context.Background(), nil, "op", 3, func() (string, error) {
			calls++
			return "", errors.NewProviderError(errors.ErrCodeAuthFailed, "denied", nil)
		})
		if err == nil {
			t.Fatal("retryTransient() expected error")
		}
		if calls != 1 {
			t.Errorf("non-transient error retried: %d calls, want 1", calls)
		}
		if !errors.HasCode(err, errors.ErrCodeAuthFailed) {
			t.Errorf("error = %v, want AUTH_FAILED preserved", err)
		}
	})

	t.Run("exhausted retries return last error", func(t *testing.T) {
		calls := 0
		_, err := retryTransient(context.Background(), nil, "op", 2, func() (string, error) {
			calls++
			return "", errors.NewNetworkError(errors.ErrCodeNetworkTransient, "blip", nil)
		})
		if err == nil {
			t.Fatal("retryTransient() expected error")
		}
		if calls != 3 {
			t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls)
		}
	})
}
