package format

import (
	"fmt"
	"strings"

	"tailorpress/internal/config"
)

// DefaultSystemPrompt is the stage 2 system instruction.
const DefaultSystemPrompt = `You are a LaTeX formatting expert specializing in resume documents. Format the complete resume content into proper LaTeX structure.`

// DefaultUserPromptTemplate is the stage 2 user prompt. The two
// placeholders are the structured resume content and the LaTeX
// template, in that order.
const DefaultUserPromptTemplate = `You are a LaTeX expert. Format the following resume content into the provided LaTeX template structure.

TRANSFORMED RESUME CONTENT:
%s

LATEX TEMPLATE STRUCTURE:
%s

INSTRUCTIONS:
1. Extract all information from the transformed resume content
2. Properly format it into the LaTeX template structure
3. Use appropriate LaTeX commands for sections, subsections, bold text, lists, etc.
4. The content has already had special LaTeX characters escaped - keep the escapes intact
5. Maintain professional formatting and readability
6. Keep the template structure intact, only filling in the content
7. Use proper LaTeX list environments (itemize, enumerate) for bullet points
8. Format dates, names, and contact information appropriately

Return the complete LaTeX document ready to compile. Do not wrap the output in markdown code fences.`

// feedbackBlockTemplate carries the single most recent feedback string
// into a regeneration call.
const feedbackBlockTemplate = `

USER FEEDBACK ON THE PREVIOUS VERSION - APPLY THESE CHANGES:
%s

Regenerate the complete LaTeX document with this feedback applied while keeping everything else intact.`

// buildPrompts resolves the stage 2 prompts, preferring custom prompts
// loaded from config over the built-in defaults. feedback is empty on
// the first generation and carries only the latest feedback afterwards.
func buildPrompts(content, template, feedback string) (systemPrompt, userPrompt string) {
	loaded := config.LoadedPrompts()

	systemPrompt = DefaultSystemPrompt
	if loaded.FormatSystem != "" {
		systemPrompt = loaded.FormatSystem
	}

	userTemplate := DefaultUserPromptTemplate
	if loaded.FormatUser != "" {
		userTemplate = loaded.FormatUser
	}

	userPrompt = fmt.Sprintf(userTemplate, content, template)
	if strings.TrimSpace(feedback) != "" {
		userPrompt += fmt.Sprintf(feedbackBlockTemplate, strings.TrimSpace(feedback))
	}

	return systemPrompt, userPrompt
}
