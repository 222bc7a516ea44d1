package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadPromptsFromFiles(t *testing.T) {
	tempDir := t.TempDir()

	systemPromptContent := "Test system prompt for transforming"
	userPromptContent := "Test user prompt template: %s and %s"

	systemPromptFile := filepath.Join(tempDir, "system.transform.md")
	userPromptFile := filepath.Join(tempDir, "user.transform.md")

	if err := os.WriteFile(systemPromptFile, []byte(systemPromptContent), 0600); err != nil {
		t.Fatalf("Failed to create test system prompt file: %v", err)
	}
	if err := os.WriteFile(userPromptFile, []byte(userPromptContent), 0600); err != nil {
		t.Fatalf("Failed to create test user prompt file: %v", err)
	}

	config := &Config{
		AI: AIConfig{
			CustomPrompts: PromptConfig{
				SystemPrompts: SystemPrompts{
					TransformResumeFile: systemPromptFile,
				},
				UserPrompts: UserPrompts{
					TransformResumeFile: userPromptFile,
				},
			},
		},
	}

	if err := config.LoadPromptsFromFiles(); err != nil {
		t.Fatalf("Failed to load prompts from files: %v", err)
	}

	set := LoadedPrompts()

	if set.TransformSystem != systemPromptContent {
		t.Errorf("Expected loaded system prompt content '%s', got '%s'",
			systemPromptContent, set.TransformSystem)
	}
	if set.TransformUser != userPromptContent {
		t.Errorf("Expected loaded user prompt content '%s', got '%s'",
			userPromptContent, set.TransformUser)
	}

	// File paths stay on the config so the watcher can keep observing them.
	if config.AI.CustomPrompts.SystemPrompts.TransformResumeFile != systemPromptFile {
		t.Error("Expected system prompt file path to be preserved")
	}
	if config.AI.CustomPrompts.UserPrompts.TransformResumeFile != userPromptFile {
		t.Error("Expected user prompt file path to be preserved")
	}
}

func TestLoadPromptsInlineFallback(t *testing.T) {
	config := &Config{
		AI: AIConfig{
			CustomPrompts: PromptConfig{
				SystemPrompts: SystemPrompts{
					FormatDocument: "  inline format instructions  ",
				},
			},
		},
	}

	if err := config.LoadPromptsFromFiles(); err != nil {
		t.Fatalf("Failed to load prompts: %v", err)
	}

	set := LoadedPrompts()
	if set.FormatSystem != "inline format instructions" {
		t.Errorf("Expected trimmed inline prompt, got '%s'", set.FormatSystem)
	}
	if set.TransformSystem != "" {
		t.Errorf("Expected empty transform system prompt, got '%s'", set.TransformSystem)
	}
}

func TestValidatePromptFiles(t *testing.T) {
	tempDir := t.TempDir()

	existingFile := filepath.Join(tempDir, "exists.md")
	if err := os.WriteFile(existingFile, []byte("content"), 0600); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	t.Run("all files exist", func(t *testing.T) {
		config := &Config{
			AI: AIConfig{
				CustomPrompts: PromptConfig{
					SystemPrompts: SystemPrompts{
						TransformResumeFile: existingFile,
						FormatDocumentFile:  existingFile,
					},
				},
			},
		}
		if err := config.validatePromptFiles(); err != nil {
			t.Errorf("Expected validation to pass, got: %v", err)
		}
	})

	t.Run("missing file reported", func(t *testing.T) {
		missing := filepath.Join(tempDir, "missing.md")
		config := &Config{
			AI: AIConfig{
				CustomPrompts: PromptConfig{
					UserPrompts: UserPrompts{
						FormatDocumentFile: missing,
					},
				},
			},
		}
		err := config.validatePromptFiles()
		if err == nil {
			t.Fatal("Expected validation error for missing file")
		}
		if !strings.Contains(err.Error(), "user format prompt file not found") {
			t.Errorf("Expected missing file message, got: %v", err)
		}
	})
}

func TestLoadPromptFromFile(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("valid file", func(t *testing.T) {
		file := filepath.Join(tempDir, "valid.md")
		if err := os.WriteFile(file, []byte("  prompt body\n"), 0600); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
		content, err := loadPromptFromFile(file, "system", "transform")
		if err != nil {
			t.Fatalf("Expected successful load, got: %v", err)
		}
		if content != "prompt body" {
			t.Errorf("Expected trimmed content 'prompt body', got '%s'", content)
		}
	})

	t.Run("empty file rejected", func(t *testing.T) {
		file := filepath.Join(tempDir, "empty.md")
		if err := os.WriteFile(file, []byte("   \n\n"), 0600); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
		_, err := loadPromptFromFile(file, "user", "format")
		if err == nil {
			t.Fatal("Expected error for empty prompt file")
		}
		if !strings.Contains(err.Error(), "is empty") {
			t.Errorf("Expected empty-file message, got: %v", err)
		}
	})

	t.Run("missing file rejected", func(t *testing.T) {
		_, err := loadPromptFromFile(filepath.Join(tempDir, "nope.md"), "system", "format")
		if err == nil {
			t.Fatal("Expected error for missing prompt file")
		}
		if !strings.Contains(err.Error(), "not accessible") {
			t.Errorf("Expected not-accessible message, got: %v", err)
		}
	})

	t.Run("invalid utf8 rejected", func(t *testing.T) {
		file := filepath.Join(tempDir, "binary.md")
		if err := os.WriteFile(file, []byte{0xff, 0xfe, 0x00}, 0600); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
		_, err := loadPromptFromFile(file, "system", "transform")
		if err == nil {
			t.Fatal("Expected error for non-UTF-8 prompt file")
		}
		if !strings.Contains(err.Error(), "not valid UTF-8") {
			t.Errorf("Expected UTF-8 message, got: %v", err)
		}
	})
}

func TestPromptFiles(t *testing.T) {
	config := &Config{
		AI: AIConfig{
			CustomPrompts: PromptConfig{
				SystemPrompts: SystemPrompts{
					TransformResumeFile: "/prompts/system.transform.md",
				},
				UserPrompts: UserPrompts{
					FormatDocumentFile: "/prompts/user.format.md",
				},
			},
		},
	}

	files := config.PromptFiles()
	if len(files) != 2 {
		t.Fatalf("Expected 2 configured prompt files, got %d: %v", len(files), files)
	}
	for _, want := range []string{"/prompts/system.transform.md", "/prompts/user.format.md"} {
		found := false
		for _, f := range files {
			if f == want {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected %s in prompt file list %v", want, files)
		}
	}
}
