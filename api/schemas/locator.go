package schemas

import "fmt"

// LocatorKind discriminates the strategies for re-finding a control in a
// live document.
type LocatorKind string

const (
	LocatorByID              LocatorKind = "byId"
	LocatorByName            LocatorKind = "byName"
	LocatorByDataAttr        LocatorKind = "byDataAttr"
	LocatorByStructuralIndex LocatorKind = "byStructuralIndex"
	LocatorByXPath           LocatorKind = "byXPath"
)

// Locator is a serializable recipe for resolving a specific form control.
// Exactly one strategy is active, selected by Kind; the remaining fields are
// meaningful only for their own kind and stay zero otherwise.
//
// Resolution against an unchanged document is idempotent. After the page
// mutates, a locator may legitimately stop resolving; callers treat that as
// "skip field", never as a fatal condition.
type Locator struct {
	Kind LocatorKind `json:"kind"`

	// byId
	ID string `json:"id,omitempty"`

	// byName. FormIndex is the zero-based index of the owning <form>;
	// -1 means the control was found outside any form.
	Name      string `json:"name,omitempty"`
	FormIndex int    `json:"formIndex,omitempty"`

	// byDataAttr
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`

	// byStructuralIndex
	ContainerTag   string `json:"containerTag,omitempty"`
	ContainerIndex int    `json:"containerIndex,omitempty"`
	FieldIndex     int    `json:"fieldIndex,omitempty"`

	// byXPath
	Path string `json:"path,omitempty"`
}

// IsZero reports whether the locator carries no strategy at all.
func (l Locator) IsZero() bool { return l.Kind == "" }

// String renders a compact, log-friendly description of the locator.
func (l Locator) String() string {
	switch l.Kind {
	case LocatorByID:
		return fmt.Sprintf("byId(%s)", l.ID)
	case LocatorByName:
		return fmt.Sprintf("byName(%s@form%d)", l.Name, l.FormIndex)
	case LocatorByDataAttr:
		return fmt.Sprintf("byDataAttr(%s=%s)", l.Key, l.Value)
	case LocatorByStructuralIndex:
		return fmt.Sprintf("byStructuralIndex(%s[%d]/%d)", l.ContainerTag, l.ContainerIndex, l.FieldIndex)
	case LocatorByXPath:
		return fmt.Sprintf("byXPath(%s)", l.Path)
	default:
		return "locator(unset)"
	}
}
