package format

import (
	"context"
	"strings"
	"testing"

	"tailorpress/internal/errors"
	"tailorpress/internal/provider"
	"tailorpress/internal/types"
)

func TestEscapeText(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		want         string
		wantWarnings int
	}{
		{
			name:  "plain text untouched",
			input: "Led a team of five engineers",
			want:  "Led a team of five engineers",
		},
		{
			name:  "reserved characters escaped",
			input: "Grew revenue 40% for R&D on a $2M budget (#1 team)",
			want:  `Grew revenue 40\% for R\&D on a \$2M budget (\#1 team)`,
		},
		{
			name:  "underscore and caret",
			input: "config_file uses x^2",
			want:  `config\_file uses x\textasciicircum{}2`,
		},
		{
			name:         "backslash warned",
			input:        `path\to\thing`,
			want:         `path\textbackslash{}to\textbackslash{}thing`,
			wantWarnings: 2,
		},
		{
			name:         "unbalanced braces warned",
			input:        "set {incomplete",
			want:         `set \{incomplete`,
			wantWarnings: 1,
		},
		{
			name:  "balanced braces escaped without warning",
			input: "struct {x int}",
			want:  `struct \{x int\}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, warnings := EscapeText(tt.input)
			if got != tt.want {
				t.Errorf("EscapeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if len(warnings) != tt.wantWarnings {
				t.Errorf("EscapeText(%q) warnings = %d (%v), want %d",
					tt.input, len(warnings), warnings, tt.wantWarnings)
			}
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	doc := "\\documentclass{article}\n\\begin{document}\nhi\n\\end{document}"

	tests := []struct {
		name  string
		input string
	}{
		{name: "no fences", input: doc},
		{name: "bare fences", input: "```\n" + doc + "\n```"},
		{name: "language fence", input: "```latex\n" + doc + "\n```"},
		{name: "fence with surrounding whitespace", input: "\n\n```latex\n" + doc + "\n```\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFences(tt.input); got != doc {
				t.Errorf("stripCodeFences() = %q, want %q", got, doc)
			}
		})
	}
}

const fakeLatexDoc = `\documentclass[letterpaper,11pt]{article}
\begin{document}
Jane Doe
\end{document}`

// fakeInvoker returns a canned completion or error.
type fakeInvoker struct {
	completion string
	err        error
	calls      int
	lastUser   string
}

func (f *fakeInvoker) Invoke(_ context.Context, _, userPrompt string) (string, error) {
	f.calls++
	f.lastUser = userPrompt
	if f.err != nil {
		return "", f.err
	}
	return f.completion, nil
}

func (f *fakeInvoker) Provider() provider.ID { return provider.Gemini }
func (f *fakeInvoker) Close() error          { return nil }

func sampleContent() types.TransformedContent {
	return types.TransformedContent{
		Sections: []types.ResumeSection{
			{Entries: []string{"Jane Doe", "jane@example.com"}},
			{Title: "PROFESSIONAL EXPERIENCE", Entries: []string{"Acme Corp - 40% latency win"}},
		},
		Raw: "raw text",
	}
}

func TestGenerateStampsIncreasingVersions(t *testing.T) {
	inv := &fakeInvoker{completion: fakeLatexDoc}
	gen := NewGenerator(inv, "", nil)

	for want := 1; want <= 3; want++ {
		doc, err := gen.Generate(context.Background(), sampleContent(), "")
		if err != nil {
			t.Fatalf("Generate() call %d error: %v", want, err)
		}
		if doc.StageVersion != want {
			t.Errorf("Generate() call %d StageVersion = %d, want %d", want, doc.StageVersion, want)
		}
	}
}

func TestGenerateFailureLeavesNoVersionGap(t *testing.T) {
	inv := &fakeInvoker{completion: fakeLatexDoc}
	gen := NewGenerator(inv, "", nil)

	doc, err := gen.Generate(context.Background(), sampleContent(), "")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if doc.StageVersion != 1 {
		t.Fatalf("StageVersion = %d, want 1", doc.StageVersion)
	}

	inv.err = errors.NewNetworkError(errors.ErrCodeNetworkTransient, "upstream blip", nil)
	if _, err := gen.Generate(context.Background(), sampleContent(), "retry me"); err == nil {
		t.Fatal("Generate() expected error from failing invoker")
	}

	// A non-LaTeX completion also fails without consuming a version
	inv.err = nil
	inv.completion = "not latex at all"
	if _, err := gen.Generate(context.Background(), sampleContent(), ""); err == nil {
		t.Fatal("Generate() expected error for malformed completion")
	}

	inv.completion = fakeLatexDoc
	doc, err = gen.Generate(context.Background(), sampleContent(), "")
	if err != nil {
		t.Fatalf("Generate() error after recovery: %v", err)
	}
	if doc.StageVersion != 2 {
		t.Errorf("StageVersion = %d after two failed calls, want contiguous 2", doc.StageVersion)
	}
}

func TestGenerateEmbedsEscapedContentAndFeedback(t *testing.T) {
	inv := &fakeInvoker{completion: fakeLatexDoc}
	gen := NewGenerator(inv, "", nil)

	content := types.TransformedContent{
		Sections: []types.ResumeSection{
			{Title: "SKILLS", Entries: []string{"C# and 100% uptime"}},
		},
	}

	doc, err := gen.Generate(context.Background(), content, "make the skills section shorter")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if !strings.Contains(inv.lastUser, `C\# and 100\% uptime`) {
		t.Error("user prompt does not contain escaped content")
	}
	if !strings.Contains(inv.lastUser, "make the skills section shorter") {
		t.Error("user prompt does not contain the feedback string")
	}
	if !strings.Contains(inv.lastUser, `\documentclass`) {
		t.Error("user prompt does not embed the template")
	}
	if doc.MarkupSource != fakeLatexDoc {
		t.Errorf("MarkupSource = %q, want completion text", doc.MarkupSource)
	}
}

func TestGenerateRecordsEscapeWarnings(t *testing.T) {
	inv := &fakeInvoker{completion: fakeLatexDoc}
	gen := NewGenerator(inv, "", nil)

	content := types.TransformedContent{
		Sections: []types.ResumeSection{
			{Title: "EXPERIENCE", Entries: []string{`Maintained C:\legacy\scripts for deployment`}},
		},
	}

	doc, err := gen.Generate(context.Background(), content, "")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if len(doc.Warnings) == 0 {
		t.Error("Generate() recorded no warnings for backslash-laden input")
	}
}

func TestGenerateRejectsNonLatexCompletion(t *testing.T) {
	inv := &fakeInvoker{completion: "Sorry, I cannot help with that."}
	gen := NewGenerator(inv, "", nil)

	_, err := gen.Generate(context.Background(), sampleContent(), "")
	if err == nil {
		t.Fatal("Generate() expected error for non-LaTeX completion")
	}
	if !errors.HasCode(err, errors.ErrCodeResponseMalformed) {
		t.Errorf("Generate() error = %v, want code %s", err, errors.ErrCodeResponseMalformed)
	}
}

func TestGenerateRejectsEmptyContent(t *testing.T) {
	inv := &fakeInvoker{completion: fakeLatexDoc}
	gen := NewGenerator(inv, "", nil)

	_, err := gen.Generate(context.Background(), types.TransformedContent{}, "")
	if err == nil {
		t.Fatal("Generate() expected error for empty content")
	}
	if inv.calls != 0 {
		t.Errorf("invoker called %d times for invalid input, want 0", inv.calls)
	}
}
