// Package matcher scores field descriptors against the standard-field
// signature catalog. Matching is a pure function of its input: identical
// descriptor lists always produce identical mappings and scores.
package matcher

import (
	"go.uber.org/zap"

	"github.com/formscout/formscout/api/schemas"
)

// Matcher assigns standard fields to descriptors by keyword/regex scoring.
type Matcher struct {
	minScore float64
	ceiling  float64
	logger   *zap.Logger
}

// New creates a Matcher. Non-positive tunables fall back to the defaults.
func New(minScore, ceiling float64, logger *zap.Logger) *Matcher {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	if ceiling <= 0 {
		ceiling = DefaultScoreCeiling
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{minScore: minScore, ceiling: ceiling, logger: logger.Named("matcher")}
}

// attrHit is one scored attribute of a descriptor.
type attrHit struct {
	text   string
	weight float64
}

func attributes(f schemas.FieldDescriptor) []attrHit {
	return []attrHit{
		{f.Name, weightNameID},
		{f.DomID, weightNameID},
		{f.Label, weightLabel},
		{f.Placeholder, weightPlaceholder},
		{f.AriaLabel, weightAria},
	}
}

// Match scores every field against every signature and returns one mapping
// per field that clears the floor. A field claims at most one standard
// field; a standard field may be claimed by several fields (the executor
// fills them all). Ties resolve to the first signature in enumeration order.
func (m *Matcher) Match(fields []schemas.FieldDescriptor) []schemas.FieldMapping {
	var mappings []schemas.FieldMapping
	for _, field := range fields {
		best, score := m.bestSignature(field)
		best, score = applyIntroductionRouting(field, best, score, m.minScore)
		if best == "" || score < m.minScore {
			continue
		}

		confidence := score / m.ceiling
		if confidence > 1 {
			confidence = 1
		}
		m.logger.Debug("field matched",
			zap.String("locator", field.Locator.String()),
			zap.String("standardField", string(best)),
			zap.Float64("score", score),
		)
		mappings = append(mappings, schemas.FieldMapping{
			Locator:       field.Locator,
			StandardField: best,
			Confidence:    confidence,
			Method:        schemas.MethodKeyword,
		})
	}
	return mappings
}

func (m *Matcher) bestSignature(field schemas.FieldDescriptor) (schemas.StandardField, float64) {
	var (
		best      schemas.StandardField
		bestScore float64
	)
	for _, sig := range catalog {
		score := scoreSignature(sig, field)
		if score > bestScore {
			best, bestScore = sig.field, score
		}
	}
	return best, bestScore
}

func scoreSignature(sig signature, field schemas.FieldDescriptor) float64 {
	attrs := attributes(field)

	// Hard exclusion first: one exclude hit anywhere disqualifies the
	// signature no matter how strong its positive score would be.
	for _, ex := range sig.excludes {
		for _, a := range attrs {
			if a.text != "" && ex.MatchString(a.text) {
				return 0
			}
		}
	}
	if disqualifiedSpecialCase(sig, field) {
		return 0
	}

	var score float64
	hits := 0
	for _, p := range sig.patterns {
		hitThis := false
		for _, a := range attrs {
			if a.text != "" && p.re.MatchString(a.text) {
				score += p.weight * a.weight
				hitThis = true
			}
		}
		if hitThis {
			hits++
		}
	}

	if score == 0 {
		return 0
	}

	// Two independent signal fragments co-occurring is a much stronger
	// indication than either alone.
	if hits >= 2 {
		score += coOccurrenceBonus
	}

	for _, shape := range sig.shapes {
		if field.ControlKind == shape {
			score += shapeBonus
			break
		}
	}

	// A hint string that already shows a protocol prefix is close to proof
	// for the URL field.
	if sig.field == schemas.FieldSiteURL &&
		(protocolRe.MatchString(field.Placeholder) || protocolRe.MatchString(field.Label)) {
		score += protocolHintBoost
	}

	return score
}

// disqualifiedSpecialCase applies the non-regex carve-outs.
func disqualifiedSpecialCase(sig signature, field schemas.FieldDescriptor) bool {
	// An id/name that says "image" without saying "logo" is an image slot,
	// never the logo slot.
	if sig.field == schemas.FieldLogo {
		ident := field.Name + " " + field.DomID
		if imageRe.MatchString(ident) && !logoRe.MatchString(ident) {
			return true
		}
	}
	return false
}

// applyIntroductionRouting implements the "introduction" label rule: such a
// field is a long description when it is a textarea, a short description
// otherwise, regardless of what generic description scoring decided.
func applyIntroductionRouting(field schemas.FieldDescriptor, best schemas.StandardField, score, minScore float64) (schemas.StandardField, float64) {
	if !introRe.MatchString(field.Label) {
		return best, score
	}
	routed := schemas.FieldShortDescription
	if field.IsTextarea {
		routed = schemas.FieldLongDescription
	}

	switch best {
	case schemas.FieldShortDescription, schemas.FieldLongDescription:
		// The routing itself is the signal; make sure it survives the floor.
		if score < minScore {
			score = minScore
		}
		return routed, score
	case "":
		return routed, minScore
	default:
		// A stronger non-description signal keeps its claim.
		return best, score
	}
}
