package middleware

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	domain "github.com/clientproof/backend/internal/domain/analysis"
)

// Input validation and sanitization utilities

// MinConversationChars is the shortest transcript worth analyzing.
const MinConversationChars = 20

// MaxConversationChars bounds pathological submissions before they reach the
// completion service.
const MaxConversationChars = 50000

// ValidateConversation enforces the transcript length bounds on the trimmed text.
func ValidateConversation(conversation string) error {
	trimmed := strings.TrimSpace(conversation)
	if len(trimmed) < MinConversationChars {
		return fmt.Errorf("%w: please provide a conversation of at least %d characters",
			domain.ErrInvalidInput, MinConversationChars)
	}
	if len(trimmed) > MaxConversationChars {
		return fmt.Errorf("%w: conversation exceeds %d characters",
			domain.ErrInvalidInput, MaxConversationChars)
	}
	return nil
}

var analysisIDPattern = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`)

// ValidateAnalysisID checks the opaque record id format (UUID v4, lowercase).
func ValidateAnalysisID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: analysis id is required", domain.ErrInvalidInput)
	}
	if !analysisIDPattern.MatchString(id) {
		return fmt.Errorf("%w: invalid analysis id format", domain.ErrInvalidInput)
	}
	return nil
}

// ValidateOrigin accepts only absolute http(s) origins for checkout redirects.
func ValidateOrigin(origin string) error {
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("%w: invalid origin", domain.ErrInvalidInput)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: invalid origin scheme %q", domain.ErrInvalidInput, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: origin host missing", domain.ErrInvalidInput)
	}
	return nil
}

// SanitizeString removes null bytes and control characters
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")

	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
