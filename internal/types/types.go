package types

// TransformRequest is the immutable input bundle for one pipeline run.
// Both text fields must be non-empty after extraction; the credential
// determines the provider when no hint is given.
type TransformRequest struct {
	ResumeText         string `json:"resumeText"`
	JobDescriptionText string `json:"jobDescriptionText"`
	Credential         string `json:"-"`
	ProviderHint       string `json:"providerHint,omitempty"`

	// CompileDir pins compilation to a caller-chosen directory. Empty
	// means a fresh temp directory per compile.
	CompileDir string `json:"-"`
}

// ResumeSection is one titled block of the transformed resume.
type ResumeSection struct {
	Title   string   `json:"title"`
	Entries []string `json:"entries"`
}

// TransformedContent is the output of the content transformation stage.
// It is produced fresh on every invocation and superseded, never mutated,
// during refinement. Raw preserves the full response text for the
// formatting stage and for feedback-driven regeneration.
type TransformedContent struct {
	Sections []ResumeSection `json:"sections"`
	Raw      string          `json:"raw"`
}

// FormattedDocument is the output of the formatting stage. Immutable once
// produced; refinement creates a new instance rather than editing in place.
type FormattedDocument struct {
	MarkupSource string   `json:"markupSource"`
	StageVersion int      `json:"stageVersion"`
	Warnings     []string `json:"warnings,omitempty"`
}

// CompilationResult is the tagged outcome of a document compilation.
// Exactly one of the success/failure field sets is populated.
type CompilationResult struct {
	Succeeded     bool   `json:"succeeded"`
	ArtifactBytes []byte `json:"-"`
	ArtifactPath  string `json:"artifactPath,omitempty"`
	Reason        string `json:"reason,omitempty"`
	LogExcerpt    string `json:"logExcerpt,omitempty"`
}

// CompilationSuccess builds a successful result.
func CompilationSuccess(artifact []byte, path, logExcerpt string) CompilationResult {
	return CompilationResult{
		Succeeded:     true,
		ArtifactBytes: artifact,
		ArtifactPath:  path,
		LogExcerpt:    logExcerpt,
	}
}

// CompilationFailure builds a failed result. The markup source remains
// valid output regardless of compilation outcome.
func CompilationFailure(reason, logExcerpt string) CompilationResult {
	return CompilationResult{
		Succeeded:  false,
		Reason:     reason,
		LogExcerpt: logExcerpt,
	}
}

// RunReport is the user-facing summary of one pipeline run, rendered by
// the output formatters.
type RunReport struct {
	Provider    string             `json:"provider"`
	Content     TransformedContent `json:"content"`
	Document    FormattedDocument  `json:"document"`
	Compilation *CompilationResult `json:"compilation,omitempty"`
	Turns       int                `json:"turns"`
}
