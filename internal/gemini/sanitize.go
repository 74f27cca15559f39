package gemini

import (
	"strings"
	"unicode/utf8"
)

// MaxDescriptionLength is the maximum allowed length for expense descriptions.
const MaxDescriptionLength = 200

// MaxCategoryNameLength is the maximum allowed length for category names.
const MaxCategoryNameLength = 50

// MaxMessageLength bounds the user message embedded in a prompt.
const MaxMessageLength = 500

// extractJSON extracts a JSON object from text that may contain preamble
// or markdown fences. Gemini sometimes returns "Here is the JSON:\n{...}"
// even when ResponseMIMEType is set to application/json.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	// Find the first { and last } to extract JSON object.
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}

	end := strings.LastIndex(text, "}")
	if end == -1 || end <= start {
		return ""
	}

	return text[start : end+1]
}

// SanitizeForPrompt sanitizes user input to prevent prompt injection attacks.
// It removes or escapes characters that could break prompt structure,
// and truncates to maxLength characters.
func SanitizeForPrompt(input string, maxLength int) string {
	// Remove or escape quotes that could break prompt structure.
	input = strings.ReplaceAll(input, `"`, `'`)
	input = strings.ReplaceAll(input, "`", "'")

	// Remove null bytes and other control characters.
	input = strings.ReplaceAll(input, "\x00", "")

	// Splits on any whitespace and rejoins with single spaces, which also
	// removes newline injection.
	input = strings.Join(strings.Fields(input), " ")

	if utf8.RuneCountInString(input) > maxLength {
		input = strings.TrimSpace(string([]rune(input)[:maxLength]))
	}

	return input
}

// SanitizeCategoryName sanitizes a category name for safe embedding in prompts.
func SanitizeCategoryName(name string) string {
	return SanitizeForPrompt(name, MaxCategoryNameLength)
}

func sanitizeDescription(description string) string {
	return SanitizeForPrompt(description, MaxDescriptionLength)
}

func sanitizeMessage(message string) string {
	return SanitizeForPrompt(message, MaxMessageLength)
}
