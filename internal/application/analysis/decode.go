package analysis

import (
	"encoding/json"
	"strings"

	domai "github.com/clientproof/backend/internal/domain/ai"
)

// decodeObject parses a model reply into v. It tries the trimmed text as-is
// first, then the greedy first-{ to last-} substring, which tolerates the
// model wrapping its JSON in prose or code fences.
func decodeObject(raw string, v any) error {
	raw = strings.TrimSpace(raw)
	if json.Unmarshal([]byte(raw), v) == nil {
		return nil
	}
	if sub, ok := firstObject(raw); ok {
		if json.Unmarshal([]byte(sub), v) == nil {
			return nil
		}
	}
	return domai.ErrMalformed
}

func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
