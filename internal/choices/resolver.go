// Package choices matches a free-text user value against the options a page
// actually offers. The strategy is strictly tiered: exact match, substring
// match, synonym-table lookup, then word-boundary fuzzy match. The first
// tier producing a hit wins, so an exact match can never lose to a looser
// one. A nil result means "no acceptable option" and callers skip the field.
package choices

import (
	"strings"

	"github.com/formscout/formscout/api/schemas"
)

// BestMatch resolves userValue against options, returning the matched option
// or nil.
func BestMatch(userValue string, options []schemas.SelectOption) *schemas.SelectOption {
	value := strings.TrimSpace(userValue)
	if value == "" || len(options) == 0 {
		return nil
	}

	type tier func(string, []schemas.SelectOption) *schemas.SelectOption
	for _, match := range []tier{exactMatch, substringMatch, synonymMatch, fuzzyWordMatch} {
		if opt := match(value, options); opt != nil {
			return opt
		}
	}
	return nil
}

// BestMatchAny tries each candidate value in order (typically the segments
// of a comma-separated tags string) until one resolves.
func BestMatchAny(userValues []string, options []schemas.SelectOption) *schemas.SelectOption {
	for _, v := range userValues {
		if opt := BestMatch(v, options); opt != nil {
			return opt
		}
	}
	return nil
}

// SplitValues splits a multi-value user string on commas (both ASCII and
// full-width) and trims the segments.
func SplitValues(raw string) []string {
	var out []string
	for _, seg := range strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '，' || r == ';' || r == '；'
	}) {
		if s := strings.TrimSpace(seg); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// exactMatch compares against option value and text, case-sensitively first
// so that a casing-faithful option wins when both forms exist.
func exactMatch(value string, options []schemas.SelectOption) *schemas.SelectOption {
	for i := range options {
		if options[i].Value == value || strings.TrimSpace(options[i].Text) == value {
			return &options[i]
		}
	}
	for i := range options {
		if strings.EqualFold(options[i].Value, value) || strings.EqualFold(strings.TrimSpace(options[i].Text), value) {
			return &options[i]
		}
	}
	return nil
}

// substringMatch hits when either string contains the other, either against
// the option text or its value.
func substringMatch(value string, options []schemas.SelectOption) *schemas.SelectOption {
	lower := strings.ToLower(value)
	for i := range options {
		text := strings.ToLower(strings.TrimSpace(options[i].Text))
		val := strings.ToLower(options[i].Value)
		if text != "" && (strings.Contains(text, lower) || strings.Contains(lower, text)) {
			return &options[i]
		}
		if val != "" && (strings.Contains(val, lower) || strings.Contains(lower, val)) {
			return &options[i]
		}
	}
	return nil
}

// synonymMatch consults the synonym table in both directions: the user value
// may be the foreign term, or the option may be.
func synonymMatch(value string, options []schemas.SelectOption) *schemas.SelectOption {
	if syns := synonymsOf(value); syns != nil {
		for _, syn := range syns {
			for i := range options {
				if containsNormalized(options[i].Text, syn) || containsNormalized(options[i].Value, syn) {
					return &options[i]
				}
			}
		}
	}

	normValue := normalize(value)
	for i := range options {
		for _, source := range []string{options[i].Text, options[i].Value} {
			for _, syn := range synonymsOf(source) {
				if normalize(syn) == normValue {
					return &options[i]
				}
			}
		}
	}
	return nil
}

func containsNormalized(haystack, needle string) bool {
	h, n := normalize(haystack), normalize(needle)
	return h != "" && n != "" && (h == n || strings.Contains(h, n))
}

// fuzzyWordMatch splits both sides on whitespace/hyphen/underscore and hits
// when any token pair is equal or one token contains the other. Tokens
// shorter than three runes are ignored; they match everything.
func fuzzyWordMatch(value string, options []schemas.SelectOption) *schemas.SelectOption {
	valueTokens := tokens(value)
	if len(valueTokens) == 0 {
		return nil
	}
	for i := range options {
		optTokens := append(tokens(options[i].Text), tokens(options[i].Value)...)
		for _, vt := range valueTokens {
			for _, ot := range optTokens {
				if vt == ot || strings.Contains(ot, vt) || strings.Contains(vt, ot) {
					return &options[i]
				}
			}
		}
	}
	return nil
}

func tokens(s string) []string {
	raw := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '-' || r == '_' || r == '/'
	})
	out := raw[:0]
	for _, t := range raw {
		if len([]rune(t)) >= 3 {
			out = append(out, t)
		}
	}
	return out
}
