package schemas

import (
	"encoding/json"
	"time"
)

// MatchMethod records which recognizer produced a mapping.
type MatchMethod string

const (
	MethodKeyword MatchMethod = "keyword"
	MethodAI      MatchMethod = "ai"
	MethodCache   MatchMethod = "cache"
)

// FieldMapping associates one page control with one standard field.
// Confidence is advisory, used only for display and ranking; the fill
// executor never gates on it.
type FieldMapping struct {
	Locator       Locator       `json:"locator"`
	StandardField StandardField `json:"standardField"`
	Confidence    float64       `json:"confidence"`
	Method        MatchMethod   `json:"method"`
}

// CachedMappingEntry is the persisted form of a page's recognition result,
// keyed by page identity (hostname + pathname).
//
// Historical cache entries were written as a bare mapping array; the envelope
// form with a timestamp came later. Reads accept both, writes always produce
// the envelope.
type CachedMappingEntry struct {
	Mappings []FieldMapping `json:"mappings"`
	CachedAt time.Time      `json:"cachedAt"`
}

// UnmarshalJSON accepts either the envelope object or a legacy bare array.
func (e *CachedMappingEntry) UnmarshalJSON(data []byte) error {
	var bare []FieldMapping
	if err := json.Unmarshal(data, &bare); err == nil {
		e.Mappings = bare
		e.CachedAt = time.Time{}
		return nil
	}

	type envelope CachedMappingEntry
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*e = CachedMappingEntry(env)
	return nil
}
