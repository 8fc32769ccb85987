package agent

import (
	"regexp"
	"strings"
)

// Best-effort extraction of profile facts the customer states in passing.
// Extracted fields become a context patch, never a full overwrite.
var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)meu nome é\s+([\p{L}]+(?:\s+[\p{L}]+)?)`),
		regexp.MustCompile(`(?i)me chamo\s+([\p{L}]+(?:\s+[\p{L}]+)?)`),
		regexp.MustCompile(`(?i)my name is\s+([\p{L}]+(?:\s+[\p{L}]+)?)`),
	}

	interestPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:interessad[oa] em|gostaria de|quero saber sobre|preciso de)\s+(.{3,60}?)(?:[.,!?]|$)`),
		regexp.MustCompile(`(?i)(?:interested in|looking for)\s+(.{3,60}?)(?:[.,!?]|$)`),
	}
)

// ExtractContext pulls a stated name and an expressed service interest from
// the user message. Returns an empty map when nothing matches.
func ExtractContext(message string) map[string]interface{} {
	patch := map[string]interface{}{}

	for _, p := range namePatterns {
		if m := p.FindStringSubmatch(message); m != nil {
			patch["customer_name"] = strings.TrimSpace(m[1])
			break
		}
	}

	for _, p := range interestPatterns {
		if m := p.FindStringSubmatch(message); m != nil {
			patch["service_interest"] = strings.TrimSpace(m[1])
			break
		}
	}

	return patch
}
