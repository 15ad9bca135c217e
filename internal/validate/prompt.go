package validate

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MinPromptLength is the minimum accepted prompt length after trimming.
	MinPromptLength = 3
	// MaxPromptLength is the maximum accepted prompt length.
	MaxPromptLength = 1000
)

var unsafePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(nsfw|porn|xxx)`),
	regexp.MustCompile(`(?i)(violence|gore|blood)`),
	regexp.MustCompile(`(?i)(hate|racist|discrimination)`),
}

// Prompt validates and normalizes a generation prompt: enforces length
// bounds, collapses whitespace and rejects unsafe content. Returns the
// cleaned prompt.
func Prompt(prompt string) (string, error) {
	cleaned := strings.Join(strings.Fields(prompt), " ")

	if len(cleaned) < MinPromptLength {
		return "", fmt.Errorf("prompt too short, minimum length: %d", MinPromptLength)
	}
	if len(cleaned) > MaxPromptLength {
		return "", fmt.Errorf("prompt too long, maximum length: %d", MaxPromptLength)
	}

	for _, pattern := range unsafePatterns {
		if pattern.MatchString(cleaned) {
			return "", fmt.Errorf("prompt contains unsafe content")
		}
	}

	return cleaned, nil
}
