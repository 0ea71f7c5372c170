// Package locator builds and resolves serializable control locators against
// parsed HTML snapshots. Resolution is deterministic per strategy and treats
// "not found" as a normal outcome: pages mutate between extraction and fill,
// and a vanished element is the caller's cue to skip the field.
package locator

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/formscout/formscout/api/schemas"
)

// fieldXPath matches the control tags the extractor considers fillable.
const fieldXPath = ".//input | .//textarea | .//select"

// Resolve locates the element a locator describes, or nil when the document
// no longer contains it. It never returns an error; absence is not one.
func Resolve(doc *html.Node, loc schemas.Locator) *html.Node {
	if doc == nil {
		return nil
	}

	switch loc.Kind {
	case schemas.LocatorByID:
		if loc.ID == "" {
			return nil
		}
		return htmlquery.FindOne(doc, fmt.Sprintf("//*[@id=%s]", xpathLiteral(loc.ID)))

	case schemas.LocatorByName:
		return resolveByName(doc, loc)

	case schemas.LocatorByDataAttr:
		key := sanitizeAttrName(loc.Key)
		if key == "" {
			return nil
		}
		return htmlquery.FindOne(doc, fmt.Sprintf("//*[@%s=%s]", key, xpathLiteral(loc.Value)))

	case schemas.LocatorByStructuralIndex:
		return resolveByStructuralIndex(doc, loc)

	case schemas.LocatorByXPath:
		if loc.Path == "" {
			return nil
		}
		node, err := htmlquery.Query(doc, loc.Path)
		if err != nil {
			return nil
		}
		return node

	default:
		return nil
	}
}

func resolveByName(doc *html.Node, loc schemas.Locator) *html.Node {
	if loc.Name == "" {
		return nil
	}
	selector := fmt.Sprintf(".//*[@name=%s]", xpathLiteral(loc.Name))

	// Scope to the Nth form first; a page that reordered unrelated content
	// still resolves correctly that way.
	if loc.FormIndex >= 0 {
		forms := htmlquery.Find(doc, "//form")
		if loc.FormIndex < len(forms) {
			if node := htmlquery.FindOne(forms[loc.FormIndex], selector); node != nil {
				return node
			}
		}
	}

	// Document-wide fallback.
	return htmlquery.FindOne(doc, fmt.Sprintf("//*[@name=%s]", xpathLiteral(loc.Name)))
}

func resolveByStructuralIndex(doc *html.Node, loc schemas.Locator) *html.Node {
	tag := sanitizeAttrName(loc.ContainerTag)
	if tag == "" || loc.ContainerIndex < 0 || loc.FieldIndex < 0 {
		return nil
	}
	containers := htmlquery.Find(doc, "//"+tag)
	if loc.ContainerIndex >= len(containers) {
		return nil
	}
	fields := htmlquery.Find(containers[loc.ContainerIndex], fieldXPath)
	if loc.FieldIndex >= len(fields) {
		return nil
	}
	return fields[loc.FieldIndex]
}

// FromNode derives the strongest locator available for a control, in
// decreasing order of stability: id, name within its form, a data-* attribute,
// the control's index within its form, and finally a generated XPath.
//
// formIndex is the zero-based index of the owning form, or -1 when the
// control sits outside any form. fieldIndex is the control's position among
// the form's (or document's) fillable controls.
func FromNode(node *html.Node, formIndex, fieldIndex int) schemas.Locator {
	if node == nil {
		return schemas.Locator{}
	}

	if id := htmlquery.SelectAttr(node, "id"); id != "" {
		return schemas.Locator{Kind: schemas.LocatorByID, ID: id}
	}

	if name := htmlquery.SelectAttr(node, "name"); name != "" {
		return schemas.Locator{Kind: schemas.LocatorByName, Name: name, FormIndex: formIndex}
	}

	// Attribute order is document order, so the first data-* hit is stable
	// across re-extractions of the same page.
	for _, attr := range node.Attr {
		if strings.HasPrefix(attr.Key, "data-") && attr.Val != "" {
			return schemas.Locator{Kind: schemas.LocatorByDataAttr, Key: attr.Key, Value: attr.Val}
		}
	}

	if formIndex >= 0 && fieldIndex >= 0 {
		return schemas.Locator{
			Kind:           schemas.LocatorByStructuralIndex,
			ContainerTag:   "form",
			ContainerIndex: formIndex,
			FieldIndex:     fieldIndex,
		}
	}

	return schemas.Locator{Kind: schemas.LocatorByXPath, Path: GenerateUniqueXPath(node)}
}

// xpathLiteral quotes an arbitrary string for embedding in an XPath
// expression. Values containing both quote styles fall back to concat().
func xpathLiteral(s string) string {
	switch {
	case !strings.Contains(s, "'"):
		return "'" + s + "'"
	case !strings.Contains(s, `"`):
		return `"` + s + `"`
	default:
		parts := strings.Split(s, "'")
		quoted := make([]string, 0, len(parts)*2)
		for i, p := range parts {
			if i > 0 {
				quoted = append(quoted, `"'"`)
			}
			quoted = append(quoted, "'"+p+"'")
		}
		return "concat(" + strings.Join(quoted, ", ") + ")"
	}
}

// sanitizeAttrName keeps only characters legal in HTML attribute/tag names,
// guarding the XPath expressions built around them.
func sanitizeAttrName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}
