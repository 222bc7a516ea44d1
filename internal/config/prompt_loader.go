package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"
)

// maxPromptFileSize is the largest prompt file we accept. Prompts are a
// few kilobytes at most; anything bigger is almost certainly a mistake.
const maxPromptFileSize = 256 * 1024

// PromptSet holds the resolved prompt text for both pipeline stages.
// Empty fields mean the built-in defaults apply.
type PromptSet struct {
	TransformSystem string
	TransformUser   string
	FormatSystem    string
	FormatUser      string
}

var (
	loadedPrompts   PromptSet
	loadedPromptsMu sync.RWMutex
)

// LoadedPrompts returns a copy of the currently loaded prompt set.
func LoadedPrompts() PromptSet {
	loadedPromptsMu.RLock()
	defer loadedPromptsMu.RUnlock()
	return loadedPrompts
}

// LoadPromptsFromFiles resolves custom prompts into the package-level
// store. File contents take priority over inline config values. Safe to
// call again after a config or prompt file change.
func (c *Config) LoadPromptsFromFiles() error {
	var set PromptSet

	resolve := func(file, inline, promptType, operation string) (string, error) {
		if file != "" {
			return loadPromptFromFile(file, promptType, operation)
		}
		return strings.TrimSpace(inline), nil
	}

	var err error
	sys := c.AI.CustomPrompts.SystemPrompts
	usr := c.AI.CustomPrompts.UserPrompts

	if set.TransformSystem, err = resolve(sys.TransformResumeFile, sys.TransformResume, "system", "transform"); err != nil {
		return err
	}
	if set.TransformUser, err = resolve(usr.TransformResumeFile, usr.TransformResume, "user", "transform"); err != nil {
		return err
	}
	if set.FormatSystem, err = resolve(sys.FormatDocumentFile, sys.FormatDocument, "system", "format"); err != nil {
		return err
	}
	if set.FormatUser, err = resolve(usr.FormatDocumentFile, usr.FormatDocument, "user", "format"); err != nil {
		return err
	}

	loadedPromptsMu.Lock()
	loadedPrompts = set
	loadedPromptsMu.Unlock()

	c.logPromptLoadingSummary(set)
	return nil
}

// loadPromptFromFile reads and validates a single prompt file
func loadPromptFromFile(filePath, promptType, operation string) (string, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s %s prompt file path '%s': %w", promptType, operation, filePath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("%s %s prompt file not accessible '%s': %w", promptType, operation, absPath, err)
	}
	if info.Size() > maxPromptFileSize {
		return "", fmt.Errorf("%s %s prompt file '%s' is too large (%d bytes, limit %d)", promptType, operation, absPath, info.Size(), maxPromptFileSize)
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s %s prompt file '%s': %w", promptType, operation, absPath, err)
	}

	if !utf8.Valid(content) {
		return "", fmt.Errorf("%s %s prompt file '%s' is not valid UTF-8", promptType, operation, absPath)
	}

	trimmed := strings.TrimSpace(string(content))
	if trimmed == "" {
		return "", fmt.Errorf("%s %s prompt file '%s' is empty", promptType, operation, absPath)
	}

	log.Printf("[CONFIG] Loaded %s %s prompt from file: %s (%d characters)",
		promptType, operation, absPath, len(trimmed))

	return trimmed, nil
}

// validatePromptFiles validates that configured prompt files exist before loading
func (c *Config) validatePromptFiles() error {
	var validationErrors []string

	validateFile := func(filePath, promptType, operation string) {
		if filePath == "" {
			return
		}

		absPath, err := filepath.Abs(filePath)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("invalid path for %s %s prompt: %s", promptType, operation, filePath))
			return
		}

		if _, err := os.Stat(absPath); os.IsNotExist(err) {
			validationErrors = append(validationErrors, fmt.Sprintf("%s %s prompt file not found: %s", promptType, operation, absPath))
		}
	}

	validateFile(c.AI.CustomPrompts.SystemPrompts.TransformResumeFile, "system", "transform")
	validateFile(c.AI.CustomPrompts.SystemPrompts.FormatDocumentFile, "system", "format")
	validateFile(c.AI.CustomPrompts.UserPrompts.TransformResumeFile, "user", "transform")
	validateFile(c.AI.CustomPrompts.UserPrompts.FormatDocumentFile, "user", "format")

	if len(validationErrors) > 0 {
		return fmt.Errorf("prompt file validation failed:\n%s", strings.Join(validationErrors, "\n"))
	}

	return nil
}

// PromptFiles lists the configured prompt file paths, for the watcher.
func (c *Config) PromptFiles() []string {
	var files []string
	for _, f := range []string{
		c.AI.CustomPrompts.SystemPrompts.TransformResumeFile,
		c.AI.CustomPrompts.SystemPrompts.FormatDocumentFile,
		c.AI.CustomPrompts.UserPrompts.TransformResumeFile,
		c.AI.CustomPrompts.UserPrompts.FormatDocumentFile,
	} {
		if f != "" {
			files = append(files, f)
		}
	}
	return files
}

// logPromptLoadingSummary logs a summary of loaded prompts
func (c *Config) logPromptLoadingSummary(set PromptSet) {
	count := 0

	promptChecks := []struct {
		content string
		message string
	}{
		{set.TransformSystem, "[CONFIG] Transform system prompt: loaded from config/file"},
		{set.TransformUser, "[CONFIG] Transform user prompt: loaded from config/file"},
		{set.FormatSystem, "[CONFIG] Format system prompt: loaded from config/file"},
		{set.FormatUser, "[CONFIG] Format user prompt: loaded from config/file"},
	}

	for _, check := range promptChecks {
		if check.content != "" {
			log.Println(check.message)
			count++
		}
	}

	if count == 0 {
		log.Println("[CONFIG] No custom prompts loaded - using built-in defaults")
	} else {
		log.Printf("[CONFIG] Total custom prompts loaded: %d", count)
	}
}
