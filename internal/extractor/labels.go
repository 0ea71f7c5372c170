package extractor

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Sibling text longer than this is page copy, not a label.
const maxSiblingLabelLen = 64

// resolveLabel walks the label-association ladder and returns the first
// non-empty hit:
//
//	explicit <label for> → enclosing <label> → preceding sibling text →
//	following short sibling text → label inside the common container →
//	aria-label → placeholder
func resolveLabel(doc, node *html.Node) string {
	if text := explicitLabel(doc, node); text != "" {
		return text
	}
	if text := enclosingLabel(node); text != "" {
		return text
	}
	if text := siblingText(node.PrevSibling, prevSibling); text != "" {
		return text
	}
	if text := siblingText(node.NextSibling, nextSibling); text != "" {
		return text
	}
	if text := containerLabel(node); text != "" {
		return text
	}
	if text := strings.TrimSpace(htmlquery.SelectAttr(node, "aria-label")); text != "" {
		return text
	}
	return strings.TrimSpace(htmlquery.SelectAttr(node, "placeholder"))
}

func explicitLabel(doc, node *html.Node) string {
	id := htmlquery.SelectAttr(node, "id")
	if id == "" {
		return ""
	}
	label := htmlquery.FindOne(doc, fmt.Sprintf("//label[@for=%s]", xpathLit(id)))
	if label == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.InnerText(label))
}

func enclosingLabel(node *html.Node) string {
	for n := node.Parent; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.Data == "label" {
			return strings.TrimSpace(htmlquery.InnerText(n))
		}
	}
	return ""
}

func prevSibling(n *html.Node) *html.Node { return n.PrevSibling }
func nextSibling(n *html.Node) *html.Node { return n.NextSibling }

// siblingText scans adjacent siblings in one direction for a short piece of
// label-like text, skipping whitespace-only text nodes. It stops at the first
// element so a neighbouring control is never mistaken for a label.
func siblingText(start *html.Node, next func(*html.Node) *html.Node) string {
	for n := start; n != nil; n = next(n) {
		switch n.Type {
		case html.TextNode:
			if text := strings.TrimSpace(n.Data); text != "" {
				if len(text) > maxSiblingLabelLen {
					return ""
				}
				return text
			}
		case html.ElementNode:
			if n.Data == "label" || n.Data == "span" {
				text := strings.TrimSpace(htmlquery.InnerText(n))
				if text == "" || len(text) > maxSiblingLabelLen {
					return ""
				}
				return text
			}
			return ""
		}
	}
	return ""
}

// containerLabel looks for a <label> inside the control's immediate
// container, then its parent. Typical for `<div class=form-group><label>...`
// markup where the label is a cousin rather than a sibling. Containers
// holding more than one control are ambiguous and yield nothing.
func containerLabel(node *html.Node) string {
	container := node.Parent
	for depth := 0; depth < 2 && container != nil; depth++ {
		if len(htmlquery.Find(container, ".//input | .//textarea | .//select")) <= 1 {
			if label := htmlquery.FindOne(container, ".//label"); label != nil {
				return strings.TrimSpace(htmlquery.InnerText(label))
			}
		}
		container = container.Parent
	}
	return ""
}

// xpathLit quotes a string for an XPath expression; ids rarely carry quotes
// but a malformed page must not break query parsing.
func xpathLit(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	return `"` + strings.ReplaceAll(s, `"`, "") + `"`
}
