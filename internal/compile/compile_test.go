package compile

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"tailorpress/internal/config"
)

func testConfig(command string) config.CompilerConfig {
	return config.CompilerConfig{
		Command:      command,
		Passes:       2,
		Timeout:      10 * time.Second,
		LogTailLines: 20,
	}
}

// writeFakeCompiler installs a shell script standing in for pdflatex.
func writeFakeCompiler(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler scripts need a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "fakelatex")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake compiler: %v", err)
	}
	return path
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names
}

func TestCompileSuccess(t *testing.T) {
	fake := writeFakeCompiler(t, `
printf 'PDFDATA' > resume.pdf
echo 'This is pdfTeX, output written on resume.pdf' > resume.log
touch resume.aux resume.out
exit 0`)

	workDir := t.TempDir()
	c := NewCompiler(testConfig(fake), nil)

	result, err := c.Compile(context.Background(), `\documentclass{article}\begin{document}x\end{document}`, workDir)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}

	if !result.Succeeded {
		t.Fatalf("Compile() failed: reason=%q excerpt=%q", result.Reason, result.LogExcerpt)
	}
	if string(result.ArtifactBytes) != "PDFDATA" {
		t.Errorf("artifact bytes = %q, want PDFDATA", result.ArtifactBytes)
	}
	if result.ArtifactPath != filepath.Join(workDir, "resume.pdf") {
		t.Errorf("artifact path = %q", result.ArtifactPath)
	}

	// Only the markup source and the artifact survive the run
	got := listDir(t, workDir)
	want := []string{"resume.pdf", "resume.tex"}
	if !slices.Equal(got, want) {
		t.Errorf("working directory after compile = %v, want %v", got, want)
	}
}

func TestCompileFailureCleansUpAndReportsExcerpt(t *testing.T) {
	fake := writeFakeCompiler(t, `
echo '! Undefined control sequence.' > resume.log
echo 'Fatal error occurred, no output PDF file produced!' >> resume.log
touch resume.aux resume.out
exit 1`)

	workDir := t.TempDir()
	c := NewCompiler(testConfig(fake), nil)

	result, err := c.Compile(context.Background(), `\documentclass{article}`, workDir)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}

	if result.Succeeded {
		t.Fatal("Compile() reported success for a failing compiler")
	}
	if result.Reason == "" {
		t.Error("failure result has empty reason")
	}
	if !strings.Contains(result.LogExcerpt, "Undefined control sequence") {
		t.Errorf("log excerpt = %q, want it to carry the compiler log tail", result.LogExcerpt)
	}

	// Intermediates are reclaimed even on failure
	got := listDir(t, workDir)
	want := []string{"resume.tex"}
	if !slices.Equal(got, want) {
		t.Errorf("working directory after failed compile = %v, want %v", got, want)
	}
}

func TestCompileFatalMarkerWithZeroExit(t *testing.T) {
	fake := writeFakeCompiler(t, `
printf 'PDFDATA' > resume.pdf
echo 'Fatal error occurred, no output PDF file produced!' > resume.log
exit 0`)

	workDir := t.TempDir()
	c := NewCompiler(testConfig(fake), nil)
	result, err := c.Compile(context.Background(), `\documentclass{article}`, workDir)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if result.Succeeded {
		t.Error("Compile() ignored a fatal log marker")
	}

	// The partial artifact must not survive a failed run
	got := listDir(t, workDir)
	want := []string{"resume.tex"}
	if !slices.Equal(got, want) {
		t.Errorf("working directory after fatal compile = %v, want %v", got, want)
	}
}

func TestCompileFailureRemovesStaleArtifact(t *testing.T) {
	workDir := t.TempDir()

	good := writeFakeCompiler(t, `
printf 'PDFDATA' > resume.pdf
exit 0`)
	c := NewCompiler(testConfig(good), nil)
	if result, err := c.Compile(context.Background(), `\documentclass{article}`, workDir); err != nil || !result.Succeeded {
		t.Fatalf("seed compile: err=%v result=%+v", err, result)
	}

	bad := writeFakeCompiler(t, `
echo 'Fatal error occurred' > resume.log
exit 1`)
	c = NewCompiler(testConfig(bad), nil)
	result, err := c.Compile(context.Background(), `\badmacro`, workDir)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if result.Succeeded {
		t.Fatal("Compile() reported success for a failing compiler")
	}

	// The PDF from the earlier successful compile must not linger for the
	// caller to mistake for fresh output
	got := listDir(t, workDir)
	want := []string{"resume.tex"}
	if !slices.Equal(got, want) {
		t.Errorf("pinned working directory after failed recompile = %v, want %v", got, want)
	}
}

func TestCompileRunsConfiguredPasses(t *testing.T) {
	fake := writeFakeCompiler(t, `
echo pass >> passes.count
printf 'PDFDATA' > resume.pdf
exit 0`)

	workDir := t.TempDir()
	c := NewCompiler(testConfig(fake), nil)

	result, err := c.Compile(context.Background(), `\documentclass{article}`, workDir)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if !result.Succeeded {
		t.Fatalf("Compile() failed: %q", result.Reason)
	}

	data, err := os.ReadFile(filepath.Join(workDir, "passes.count"))
	if err != nil {
		t.Fatalf("read pass counter: %v", err)
	}
	if got := strings.Count(string(data), "pass"); got != 2 {
		t.Errorf("compiler ran %d passes, want 2", got)
	}
}

func TestCompileMissingCompilerIsAFailureResult(t *testing.T) {
	c := NewCompiler(testConfig("definitely-not-a-real-latex-binary"), nil)

	result, err := c.Compile(context.Background(), `\documentclass{article}`, t.TempDir())
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if result.Succeeded {
		t.Fatal("Compile() succeeded with a missing compiler")
	}
	if !strings.Contains(result.Reason, "not found") {
		t.Errorf("reason = %q, want mention of the missing binary", result.Reason)
	}
}

func TestCompileCreatesTempWorkDirWhenEmpty(t *testing.T) {
	fake := writeFakeCompiler(t, `
printf 'PDFDATA' > resume.pdf
exit 0`)

	c := NewCompiler(testConfig(fake), nil)
	result, err := c.Compile(context.Background(), `\documentclass{article}`, "")
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if !result.Succeeded {
		t.Fatalf("Compile() failed: %q", result.Reason)
	}
	if result.ArtifactPath == "" {
		t.Error("artifact path empty for temp-dir compile")
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(filepath.Dir(result.ArtifactPath))
	})
}
