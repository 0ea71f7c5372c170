// Package extractor walks a parsed page and produces neutral field
// descriptors for every candidate control, together with a locator that can
// find the control again later. Extraction is a pure read: it never mutates
// the document and never fails, it just returns fewer fields.
package extractor

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/formscout/formscout/api/schemas"
	"github.com/formscout/formscout/internal/locator"
)

const fieldXPath = ".//input | .//textarea | .//select"

// Extractor produces field descriptors from HTML snapshots.
type Extractor struct {
	logger *zap.Logger
}

// New creates an Extractor. A nil logger degrades to a no-op logger.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger.Named("extractor")}
}

// Extract enumerates the document's forms and builds a descriptor per
// retained control. Pages that assemble their "form" without a <form> tag
// are handled by a whole-document fallback pass.
func (e *Extractor) Extract(doc *html.Node) schemas.ExtractResult {
	if doc == nil {
		return schemas.ExtractResult{}
	}

	var fields []schemas.FieldDescriptor
	forms := htmlquery.Find(doc, "//form")
	for formIndex, form := range forms {
		fields = append(fields, e.extractControls(doc, form, formIndex)...)
	}

	// No fillable control under any <form>: retry over the entire document.
	if len(fields) == 0 {
		fields = e.extractControls(doc, doc, -1)
	}

	fields = append(fields, e.extractRichTextRegions(doc)...)
	fields = append(fields, e.extractCustomDropdowns(doc, fields)...)

	e.logger.Debug("extraction pass complete",
		zap.Int("forms", len(forms)),
		zap.Int("fields", len(fields)),
	)

	return schemas.ExtractResult{
		HasForm: len(fields) > 0,
		Fields:  fields,
	}
}

// extractControls walks the native input/textarea/select controls under root.
// fieldIndex counts every control found by fieldXPath, retained or not, so
// structural locators line up with resolution-time enumeration.
func (e *Extractor) extractControls(doc, root *html.Node, formIndex int) []schemas.FieldDescriptor {
	var out []schemas.FieldDescriptor
	for fieldIndex, node := range htmlquery.Find(root, fieldXPath) {
		if !retainControl(node) {
			continue
		}
		out = append(out, e.describe(doc, node, formIndex, fieldIndex))
	}
	return out
}

// retainControl filters out control kinds that never carry user-fillable
// standard data, plus known decoys such as the shadow textarea a markdown
// editor uses for key capture.
func retainControl(node *html.Node) bool {
	if node.Data == "input" {
		switch strings.ToLower(htmlquery.SelectAttr(node, "type")) {
		case "hidden", "submit", "button", "reset", "image":
			return false
		}
	}
	if node.Data == "textarea" && hasAncestorClass(node, "CodeMirror") {
		return false
	}
	return true
}

func (e *Extractor) describe(doc, node *html.Node, formIndex, fieldIndex int) schemas.FieldDescriptor {
	d := schemas.FieldDescriptor{
		Locator:     locator.FromNode(node, formIndex, fieldIndex),
		ControlKind: controlKind(node),
		Name:        htmlquery.SelectAttr(node, "name"),
		DomID:       htmlquery.SelectAttr(node, "id"),
		Placeholder: htmlquery.SelectAttr(node, "placeholder"),
		AriaLabel:   htmlquery.SelectAttr(node, "aria-label"),
		Required:    hasAttr(node, "required"),
		IsTextarea:  node.Data == "textarea",
	}
	d.Label = resolveLabel(doc, node)
	if node.Data == "textarea" {
		d.CurrentValue = strings.TrimSpace(htmlquery.InnerText(node))
	} else {
		d.CurrentValue = htmlquery.SelectAttr(node, "value")
	}
	if node.Data == "select" {
		d.Options = selectOptions(node)
	}
	return d
}

// controlKind normalizes a native control to the closed ControlKind set.
// Exotic input types (tel, number, date, ...) degrade to text; that is good
// enough for signature matching, which leans on names and labels anyway.
func controlKind(node *html.Node) schemas.ControlKind {
	switch node.Data {
	case "textarea":
		return schemas.ControlTextarea
	case "select":
		return schemas.ControlSelect
	}
	switch strings.ToLower(htmlquery.SelectAttr(node, "type")) {
	case "email":
		return schemas.ControlEmail
	case "url":
		return schemas.ControlURL
	case "file":
		return schemas.ControlFile
	default:
		return schemas.ControlText
	}
}

// selectOptions collects the enabled options of a native select, honoring a
// disabled enclosing optgroup. A missing value attribute means the option
// text doubles as its value.
func selectOptions(selectNode *html.Node) []schemas.SelectOption {
	var options []schemas.SelectOption
	for _, node := range htmlquery.Find(selectNode, ".//option") {
		if hasAttr(node, "disabled") {
			continue
		}
		if p := node.Parent; p != nil && p.Type == html.ElementNode &&
			strings.EqualFold(p.Data, "optgroup") && hasAttr(p, "disabled") {
			continue
		}

		text := strings.TrimSpace(htmlquery.InnerText(node))
		value := htmlquery.SelectAttr(node, "value")
		if value == "" {
			value = text
		}
		options = append(options, schemas.SelectOption{Value: value, Text: text})
	}
	return options
}

func hasAttr(node *html.Node, key string) bool {
	for _, attr := range node.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

func hasAncestorClass(node *html.Node, fragment string) bool {
	for n := node.Parent; n != nil; n = n.Parent {
		if n.Type == html.ElementNode &&
			strings.Contains(htmlquery.SelectAttr(n, "class"), fragment) {
			return true
		}
	}
	return false
}

func hasClassFragment(node *html.Node, fragments ...string) bool {
	class := strings.ToLower(htmlquery.SelectAttr(node, "class"))
	for _, f := range fragments {
		if strings.Contains(class, f) {
			return true
		}
	}
	return false
}
