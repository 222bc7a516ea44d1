package transform

import (
	"strings"

	"tailorpress/internal/errors"
	"tailorpress/internal/types"
)

// sectionMarker is the header prefix the stage 1 prompt instructs the
// model to emit.
const sectionMarker = "### "

// ParseSections decomposes the stage 1 completion into ordered sections.
// Lines before the first marker become an untitled header section (name
// and contact details). A completion with no markers at all cannot be
// decomposed and is rejected rather than passed through as free text.
func ParseSections(raw string) ([]types.ResumeSection, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, errors.NewAIError(errors.ErrCodeResponseMalformed,
			"Transform stage returned an empty completion", nil)
	}

	var sections []types.ResumeSection
	current := types.ResumeSection{}
	sawMarker := false

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, sectionMarker) {
			title := strings.TrimSpace(strings.TrimPrefix(trimmed, sectionMarker))
			if title == "" {
				continue
			}
			if len(current.Entries) > 0 || current.Title != "" {
				sections = append(sections, current)
			}
			current = types.ResumeSection{Title: title}
			sawMarker = true
			continue
		}

		if trimmed == "" {
			continue
		}
		current.Entries = append(current.Entries, trimmed)
	}

	if len(current.Entries) > 0 || current.Title != "" {
		sections = append(sections, current)
	}

	if !sawMarker {
		return nil, errors.NewAIError(errors.ErrCodeResponseMalformed,
			"Transform stage completion has no recognizable section headers", nil)
	}

	return sections, nil
}
