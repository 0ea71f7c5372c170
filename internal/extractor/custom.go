package extractor

import (
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/formscout/formscout/api/schemas"
	"github.com/formscout/formscout/internal/locator"
)

// Label text patterns for the two concepts that commonly hide behind custom
// widgets instead of native selects.
var (
	categoryLabelRe = regexp.MustCompile(`(?i)categor|分类|类别`)
	tagsLabelRe     = regexp.MustCompile(`(?i)\btags?\b|标签`)
)

// extractRichTextRegions finds contenteditable regions (ProseMirror-style
// editors) and describes them so the matcher can treat them like any other
// control. Association runs label-first: a label pointing at the region via
// `for`, or a region inside the label's container.
func (e *Extractor) extractRichTextRegions(doc *html.Node) []schemas.FieldDescriptor {
	var out []schemas.FieldDescriptor
	for _, node := range htmlquery.Find(doc, `//*[@contenteditable='true' or @contenteditable='']`) {
		// Code-editor internals (CodeMirror renders a contenteditable content
		// host) are handled by the code-editor fill path, not as rich text.
		if hasAncestorClass(node, "CodeMirror") || hasAncestorClass(node, "cm-editor") {
			continue
		}
		d := schemas.FieldDescriptor{
			Locator:     locator.FromNode(node, -1, -1),
			ControlKind: schemas.ControlContentEditable,
			DomID:       htmlquery.SelectAttr(node, "id"),
			AriaLabel:   htmlquery.SelectAttr(node, "aria-label"),
			Placeholder: htmlquery.SelectAttr(node, "data-placeholder"),
			Label:       resolveLabel(doc, node),
		}
		out = append(out, d)
	}
	return out
}

// extractCustomDropdowns scans for category/tags dropdown triggers that are
// not native selects. A concept already covered by a native select is
// skipped, otherwise the same concept would end up with two mapping targets.
func (e *Extractor) extractCustomDropdowns(doc *html.Node, existing []schemas.FieldDescriptor) []schemas.FieldDescriptor {
	var out []schemas.FieldDescriptor
	for _, concept := range []struct {
		re    *regexp.Regexp
		which string
	}{
		{categoryLabelRe, "category"},
		{tagsLabelRe, "tags"},
	} {
		if nativeSelectCovers(existing, concept.re) {
			continue
		}
		label, trigger := findDropdownTrigger(doc, concept.re)
		if trigger == nil {
			continue
		}
		e.logger.Debug("custom dropdown trigger detected",
			zap.String("concept", concept.which),
			zap.String("label", label),
		)
		out = append(out, schemas.FieldDescriptor{
			Locator:     locator.FromNode(trigger, -1, -1),
			ControlKind: schemas.ControlCustomSelect,
			DomID:       htmlquery.SelectAttr(trigger, "id"),
			AriaLabel:   htmlquery.SelectAttr(trigger, "aria-label"),
			Label:       label,
		})
	}
	return out
}

// nativeSelectCovers reports whether any already-extracted native select
// looks like it serves the given concept.
func nativeSelectCovers(fields []schemas.FieldDescriptor, re *regexp.Regexp) bool {
	for _, f := range fields {
		if f.ControlKind != schemas.ControlSelect {
			continue
		}
		if re.MatchString(f.Name) || re.MatchString(f.DomID) || re.MatchString(f.Label) {
			return true
		}
	}
	return false
}

// findDropdownTrigger locates a label matching the concept pattern, then the
// clickable trigger it belongs to: the `for` target, or the first
// combobox-shaped element in the label's container.
func findDropdownTrigger(doc *html.Node, re *regexp.Regexp) (string, *html.Node) {
	for _, label := range htmlquery.Find(doc, "//label") {
		text := strings.TrimSpace(htmlquery.InnerText(label))
		if text == "" || !re.MatchString(text) {
			continue
		}

		if id := htmlquery.SelectAttr(label, "for"); id != "" {
			if target := htmlquery.FindOne(doc, "//*[@id="+xpathLit(id)+"]"); target != nil {
				if target.Data != "input" && target.Data != "textarea" && target.Data != "select" {
					return text, target
				}
				continue
			}
		}

		container := label.Parent
		for depth := 0; depth < 2 && container != nil; depth++ {
			if trigger := triggerWithin(container); trigger != nil {
				return text, trigger
			}
			container = container.Parent
		}
	}
	return "", nil
}

// triggerWithin finds the first element inside the container that behaves
// like a dropdown trigger.
func triggerWithin(container *html.Node) *html.Node {
	if node := htmlquery.FindOne(container, `.//*[@role='combobox' or @aria-haspopup='listbox' or @aria-haspopup='true']`); node != nil {
		return node
	}
	for _, node := range htmlquery.Find(container, ".//button | .//div") {
		if hasClassFragment(node, "select", "dropdown", "combobox", "multiselect") {
			return node
		}
	}
	return nil
}
