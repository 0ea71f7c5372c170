package schemas

import (
	"fmt"
	"strings"
)

// ControlKind is the normalized shape of a detected form control.
type ControlKind string

const (
	ControlText            ControlKind = "text"
	ControlEmail           ControlKind = "email"
	ControlURL             ControlKind = "url"
	ControlTextarea        ControlKind = "textarea"
	ControlSelect          ControlKind = "select"
	ControlCustomSelect    ControlKind = "custom-select"
	ControlContentEditable ControlKind = "contenteditable"
	ControlFile            ControlKind = "file"
)

// SelectOption is one choice offered by a native select or harvested from a
// custom dropdown panel.
type SelectOption struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// FieldDescriptor captures everything the recognition core knows about one
// control. Descriptors are rebuilt on every extraction pass and never
// persisted; only the resulting mappings are.
type FieldDescriptor struct {
	Locator     Locator        `json:"locator"`
	ControlKind ControlKind    `json:"controlKind"`
	Name        string         `json:"name,omitempty"`
	DomID       string         `json:"domId,omitempty"`
	Placeholder string         `json:"placeholder,omitempty"`
	Label       string         `json:"label,omitempty"`
	// CurrentValue is the control's value at extraction time. Pre-seeded
	// content such as a fixed "https://" prefix changes how a fill writes
	// the field.
	CurrentValue string `json:"currentValue,omitempty"`
	AriaLabel   string         `json:"ariaLabel,omitempty"`
	Required    bool           `json:"required,omitempty"`
	Options     []SelectOption `json:"options,omitempty"`
	IsTextarea  bool           `json:"isTextarea,omitempty"`
}

// ExtractResult is the outcome of one extraction pass over a document.
type ExtractResult struct {
	HasForm bool              `json:"hasForm"`
	Fields  []FieldDescriptor `json:"fields"`
}

// StandardField is the closed set of submission-field semantics the engine
// knows how to fill.
type StandardField string

const (
	FieldSiteName         StandardField = "siteName"
	FieldEmail            StandardField = "email"
	FieldSiteURL          StandardField = "siteUrl"
	FieldCategory         StandardField = "category"
	FieldTags             StandardField = "tags"
	FieldTagline          StandardField = "tagline"
	FieldShortDescription StandardField = "shortDescription"
	FieldLongDescription  StandardField = "longDescription"
	FieldLogo             StandardField = "logo"
	FieldScreenshot       StandardField = "screenshot"
)

// allStandardFields fixes the enumeration order used for matcher tie-breaks
// and classifier prompt construction.
var allStandardFields = []StandardField{
	FieldSiteName,
	FieldEmail,
	FieldSiteURL,
	FieldCategory,
	FieldTags,
	FieldTagline,
	FieldShortDescription,
	FieldLongDescription,
	FieldLogo,
	FieldScreenshot,
}

// AllStandardFields returns the enumeration in its canonical order.
func AllStandardFields() []StandardField {
	out := make([]StandardField, len(allStandardFields))
	copy(out, allStandardFields)
	return out
}

// ParseStandardField validates a raw string against the closed enumeration.
// It tolerates case differences but nothing else.
func ParseStandardField(raw string) (StandardField, error) {
	trimmed := strings.TrimSpace(raw)
	for _, f := range allStandardFields {
		if strings.EqualFold(trimmed, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown standard field %q", raw)
}
