package browser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/formscout/formscout/api/schemas"
	"github.com/formscout/formscout/internal/locator"
)

// Status strings returned by the injected scripts. Every mutation script
// evaluates to exactly one of these so the Go side never has to parse
// free-form JS output.
const (
	statusOK       = "ok"
	statusNotFound = "not_found"
	statusNoEditor = "no_editor"
	statusNoOption = "no_option"
)

// jsonEncode marshals a value for safe injection into a script literal.
func jsonEncode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// finderXPaths returns the XPath candidates a script should try, in order.
// Name locators scoped to a form get a document-wide fallback so a control
// that was re-parented out of its form between recognition and fill is still
// reachable.
func finderXPaths(loc schemas.Locator) ([]string, error) {
	primary, err := locator.ToXPath(loc)
	if err != nil {
		return nil, err
	}
	if loc.Kind == schemas.LocatorByName && loc.FormIndex >= 0 {
		fallback, err := locator.ToXPath(schemas.Locator{
			Kind:      schemas.LocatorByName,
			Name:      loc.Name,
			FormIndex: -1,
		})
		if err != nil {
			return nil, err
		}
		return []string{primary, fallback}, nil
	}
	return []string{primary}, nil
}

// findPrelude is shared by every element script. It resolves the first XPath
// candidate that matches a live node.
const findPrelude = `
	const __find = (paths) => {
		for (const p of paths) {
			const r = document.evaluate(p, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
			if (r) return r;
		}
		return null;
	};`

// elementScript wraps a body in an IIFE that resolves the locator into `el`
// before the body runs. The body must return a status string.
func elementScript(loc schemas.Locator, body string) (string, error) {
	paths, err := finderXPaths(loc)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString("(() => {")
	sb.WriteString(findPrelude)
	fmt.Fprintf(&sb, "\n\tconst el = __find(%s);\n", jsonEncode(paths))
	fmt.Fprintf(&sb, "\tif (!el) return %q;\n", statusNotFound)
	sb.WriteString(body)
	sb.WriteString("\n})()")
	return sb.String(), nil
}

// setNativeValueScript assigns through the prototype value setter so that
// framework-managed inputs (React and friends track the setter) observe the
// change, then fires the events a human edit would.
func setNativeValueScript(loc schemas.Locator, value string) (string, error) {
	body := fmt.Sprintf(`	el.focus();
	const v = %s;
	const proto = el instanceof HTMLTextAreaElement
		? HTMLTextAreaElement.prototype
		: (el instanceof HTMLSelectElement ? HTMLSelectElement.prototype : HTMLInputElement.prototype);
	const desc = Object.getOwnPropertyDescriptor(proto, "value");
	if (desc && desc.set) {
		desc.set.call(el, v);
	} else {
		el.value = v;
	}
	el.dispatchEvent(new Event("input", { bubbles: true }));
	el.dispatchEvent(new Event("change", { bubbles: true }));
	el.blur();
	return %q;`, jsonEncode(value), statusOK)
	return elementScript(loc, body)
}

// setRichTextScript replaces a contenteditable region's content and fires the
// events an insertion would so editor frameworks sync their model. The input
// event carries the inserted text as its data payload.
func setRichTextScript(loc schemas.Locator, value string) (string, error) {
	body := fmt.Sprintf(`	el.focus();
	const v = %s;
	el.innerText = v;
	el.dispatchEvent(new InputEvent("input", { bubbles: true, inputType: "insertText", data: v }));
	el.dispatchEvent(new Event("change", { bubbles: true }));
	el.blur();
	return %q;`, jsonEncode(value), statusOK)
	return elementScript(loc, body)
}

// setEditorValueScript probes for a CodeMirror instance attached at or near
// the element. CodeMirror 5 hangs the instance off the wrapper div next to
// the hidden textarea it replaces; when markup moved the wrapper elsewhere,
// every wrapper on the page is matched back to its source textarea.
func setEditorValueScript(loc schemas.Locator, value string) (string, error) {
	body := fmt.Sprintf(`	const v = %s;
	let cm = el.CodeMirror;
	if (!cm && el.nextElementSibling) cm = el.nextElementSibling.CodeMirror;
	if (!cm) {
		const wrap = el.closest(".CodeMirror");
		if (wrap) cm = wrap.CodeMirror;
	}
	if (!cm) {
		for (const wrap of document.querySelectorAll(".CodeMirror")) {
			const inst = wrap.CodeMirror;
			if (inst && inst.getTextArea && inst.getTextArea() === el) { cm = inst; break; }
		}
	}
	if (!cm || typeof cm.setValue !== "function") return %q;
	cm.setValue(v);
	if (typeof cm.save === "function") cm.save();
	return %q;`, jsonEncode(value), statusNoEditor, statusOK)
	return elementScript(loc, body)
}

// selectOptionScript sets a native select by option value and verifies the
// assignment stuck before firing change events.
func selectOptionScript(loc schemas.Locator, value string) (string, error) {
	body := fmt.Sprintf(`	const v = %s;
	el.value = v;
	if (el.value !== v) return %q;
	el.dispatchEvent(new Event("input", { bubbles: true }));
	el.dispatchEvent(new Event("change", { bubbles: true }));
	return %q;`, jsonEncode(value), statusNoOption, statusOK)
	return elementScript(loc, body)
}

// dispatchChangeScript fires a bubbling change event on the element.
func dispatchChangeScript(loc schemas.Locator) (string, error) {
	body := fmt.Sprintf(`	el.dispatchEvent(new Event("change", { bubbles: true }));
	return %q;`, statusOK)
	return elementScript(loc, body)
}

// clickScript scrolls the element into view and dispatches the pointer and
// mouse event burst a real click produces, aimed at the element's center.
func clickScript(loc schemas.Locator) (string, error) {
	body := fmt.Sprintf(`	el.scrollIntoView({ block: "center", inline: "center" });
	const r = el.getBoundingClientRect();
	const opts = {
		bubbles: true,
		cancelable: true,
		view: window,
		clientX: r.left + r.width / 2,
		clientY: r.top + r.height / 2,
	};
	for (const type of ["pointerdown", "mousedown", "pointerup", "mouseup", "click"]) {
		el.dispatchEvent(new MouseEvent(type, opts));
	}
	return %q;`, statusOK)
	return elementScript(loc, body)
}
