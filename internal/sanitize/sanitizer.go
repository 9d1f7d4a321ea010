// Package sanitize strips vendor branding from lookup payloads before they
// reach the user. Removal is ordered literal-substring deletion over the
// serialized form, followed by a structural re-parse; inputs containing no
// configured substrings round-trip unchanged.
//
// Only the user-facing reply is sanitized: the raw payload persisted to the
// lookup log and fanned out to audit channels never passes through here.
package sanitize

import (
	"encoding/json"
	"strings"
)

// Sanitizer applies a fixed global removal list plus an optional extra
// profile. It is immutable after construction and safe for concurrent use.
type Sanitizer struct {
	global []string
	extra  []string
}

// New builds a Sanitizer from the global removal list and the extra profile
// applied only when requested per command. The slices are copied; callers
// cannot mutate the Sanitizer afterwards.
func New(global, extra []string) *Sanitizer {
	return &Sanitizer{
		global: append([]string(nil), global...),
		extra:  append([]string(nil), extra...),
	}
}

// Clean serializes the payload, deletes every configured substring, and
// re-parses the result. When the scrubbed text no longer parses as JSON it
// is wrapped as {"response": <text>}.
func (s *Sanitizer) Clean(payload any, extraProfile bool) any {
	var text string
	switch v := payload.(type) {
	case string:
		text = v
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			// Unserializable payloads never come from upstream JSON; keep as-is.
			return payload
		}
		text = string(b)
	}

	for _, r := range s.global {
		text = strings.ReplaceAll(text, r, "")
	}
	if extraProfile {
		for _, r := range s.extra {
			text = strings.ReplaceAll(text, r, "")
		}
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return map[string]any{"response": text}
	}
	return v
}

// DefaultGlobalRemoves is the production branding removal list applied to
// every command.
func DefaultGlobalRemoves() []string {
	return []string{
		"@patelkrish_99", "patelkrish_99", "t.me/anshapi", "anshapi",
		"@Kon_Hu_Mai", "Dm to buy access", "dm to buy access", "Kon_Hu_Mai",
	}
}

// DefaultExtraRemoves is the additional profile applied to commands flagged
// with ExtraClean.
func DefaultExtraRemoves() []string {
	return []string{
		"dm to buy", "owner", "@kon_hu_mai",
		"Ruk ja bhencho itne m kya unlimited request lega?? Paid lena h to bolo 100-400₹ @Simpleguy444",
	}
}
