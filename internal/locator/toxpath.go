package locator

import (
	"fmt"

	"github.com/formscout/formscout/api/schemas"
)

// ToXPath renders a locator as a standalone XPath expression for callers
// that address elements by selector instead of walking a parsed snapshot.
// The expression mirrors Resolve's primary strategy. XPath has no "try A
// then B", so byName's document-wide fallback is not encoded here; callers
// wanting it build a second expression with FormIndex -1.
func ToXPath(loc schemas.Locator) (string, error) {
	switch loc.Kind {
	case schemas.LocatorByID:
		if loc.ID == "" {
			return "", fmt.Errorf("locator: byId without an id")
		}
		return fmt.Sprintf("//*[@id=%s]", xpathLiteral(loc.ID)), nil

	case schemas.LocatorByName:
		if loc.Name == "" {
			return "", fmt.Errorf("locator: byName without a name")
		}
		if loc.FormIndex >= 0 {
			return fmt.Sprintf("(//form)[%d]//*[@name=%s]", loc.FormIndex+1, xpathLiteral(loc.Name)), nil
		}
		return fmt.Sprintf("//*[@name=%s]", xpathLiteral(loc.Name)), nil

	case schemas.LocatorByDataAttr:
		key := sanitizeAttrName(loc.Key)
		if key == "" {
			return "", fmt.Errorf("locator: byDataAttr without a key")
		}
		return fmt.Sprintf("//*[@%s=%s]", key, xpathLiteral(loc.Value)), nil

	case schemas.LocatorByStructuralIndex:
		tag := sanitizeAttrName(loc.ContainerTag)
		if tag == "" || loc.ContainerIndex < 0 || loc.FieldIndex < 0 {
			return "", fmt.Errorf("locator: malformed byStructuralIndex")
		}
		return fmt.Sprintf("(//%s)[%d]/descendant::*[self::input or self::textarea or self::select][%d]",
			tag, loc.ContainerIndex+1, loc.FieldIndex+1), nil

	case schemas.LocatorByXPath:
		if loc.Path == "" {
			return "", fmt.Errorf("locator: byXPath without a path")
		}
		return loc.Path, nil

	default:
		return "", fmt.Errorf("locator: unsupported kind %q", loc.Kind)
	}
}
