package matcher

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formscout/formscout/api/schemas"
)

func newMatcher() *Matcher { return New(0, 0, nil) }

func field(name string, kind schemas.ControlKind) schemas.FieldDescriptor {
	return schemas.FieldDescriptor{
		Locator:     schemas.Locator{Kind: schemas.LocatorByName, Name: name},
		ControlKind: kind,
		Name:        name,
		IsTextarea:  kind == schemas.ControlTextarea,
	}
}

func mappingFor(mappings []schemas.FieldMapping, name string) (schemas.FieldMapping, bool) {
	for _, m := range mappings {
		if m.Locator.Name == name {
			return m, true
		}
	}
	return schemas.FieldMapping{}, false
}

func TestMatchBasicFields(t *testing.T) {
	fields := []schemas.FieldDescriptor{
		field("site_name", schemas.ControlText),
		field("email", schemas.ControlText),
		field("site_url", schemas.ControlText),
		field("category", schemas.ControlSelect),
		field("tags", schemas.ControlText),
		field("tagline", schemas.ControlText),
		field("short_description", schemas.ControlText),
		field("description", schemas.ControlTextarea),
	}

	mappings := newMatcher().Match(fields)

	expect := map[string]schemas.StandardField{
		"site_name":         schemas.FieldSiteName,
		"email":             schemas.FieldEmail,
		"site_url":          schemas.FieldSiteURL,
		"category":          schemas.FieldCategory,
		"tags":              schemas.FieldTags,
		"tagline":           schemas.FieldTagline,
		"short_description": schemas.FieldShortDescription,
		"description":       schemas.FieldLongDescription,
	}
	for name, want := range expect {
		m, ok := mappingFor(mappings, name)
		require.True(t, ok, "field %q unmapped", name)
		assert.Equal(t, want, m.StandardField, "field %q", name)
		assert.Equal(t, schemas.MethodKeyword, m.Method)
		assert.GreaterOrEqual(t, m.Confidence, 0.0)
		assert.LessOrEqual(t, m.Confidence, 1.0)
	}
}

// Matching is a pure function: same input, same output, every time.
func TestMatchIsDeterministic(t *testing.T) {
	fields := []schemas.FieldDescriptor{
		field("email", schemas.ControlEmail),
		field("website", schemas.ControlURL),
		field("category", schemas.ControlSelect),
		{
			Locator:     schemas.Locator{Kind: schemas.LocatorByID, ID: "x"},
			ControlKind: schemas.ControlText,
			Label:       "Introduction",
		},
	}

	first := newMatcher().Match(fields)
	for i := 0; i < 10; i++ {
		again := newMatcher().Match(fields)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("matcher output drifted (-first +again):\n%s", diff)
		}
	}
}

// Exclude patterns beat any positive score: logo_url must never land in the
// siteUrl bucket.
func TestMatchExcludePrecedence(t *testing.T) {
	mappings := newMatcher().Match([]schemas.FieldDescriptor{
		field("logo_url", schemas.ControlText),
	})

	if m, ok := mappingFor(mappings, "logo_url"); ok {
		assert.NotEqual(t, schemas.FieldSiteURL, m.StandardField)
	}
}

func TestMatchSocialURLsNotClaimed(t *testing.T) {
	mappings := newMatcher().Match([]schemas.FieldDescriptor{
		field("github_url", schemas.ControlURL),
		field("twitter_link", schemas.ControlText),
	})
	for _, m := range mappings {
		assert.NotEqual(t, schemas.FieldSiteURL, m.StandardField)
	}
}

func TestMatchIntroductionRouting(t *testing.T) {
	asTextarea := schemas.FieldDescriptor{
		Locator:     schemas.Locator{Kind: schemas.LocatorByID, ID: "intro"},
		ControlKind: schemas.ControlTextarea,
		Label:       "Introduction",
		IsTextarea:  true,
	}
	asInput := schemas.FieldDescriptor{
		Locator:     schemas.Locator{Kind: schemas.LocatorByID, ID: "intro"},
		ControlKind: schemas.ControlText,
		Label:       "Introduction",
	}

	m := newMatcher()

	long := m.Match([]schemas.FieldDescriptor{asTextarea})
	require.Len(t, long, 1)
	assert.Equal(t, schemas.FieldLongDescription, long[0].StandardField)

	short := m.Match([]schemas.FieldDescriptor{asInput})
	require.Len(t, short, 1)
	assert.Equal(t, schemas.FieldShortDescription, short[0].StandardField)
}

// "App Image" / "Product Image" phrasing belongs to screenshot, never logo.
func TestMatchAppImageNeverLogo(t *testing.T) {
	f := schemas.FieldDescriptor{
		Locator:     schemas.Locator{Kind: schemas.LocatorByID, ID: "upload"},
		ControlKind: schemas.ControlFile,
		Label:       "App Image",
	}
	mappings := newMatcher().Match([]schemas.FieldDescriptor{f})
	require.Len(t, mappings, 1)
	assert.Equal(t, schemas.FieldScreenshot, mappings[0].StandardField)
}

// An id/name saying "image" without "logo" is out of logo candidacy.
func TestMatchImageWithoutLogoExcluded(t *testing.T) {
	f := schemas.FieldDescriptor{
		Locator:     schemas.Locator{Kind: schemas.LocatorByName, Name: "image_upload"},
		ControlKind: schemas.ControlFile,
		Name:        "image_upload",
	}
	mappings := newMatcher().Match([]schemas.FieldDescriptor{f})
	if len(mappings) > 0 {
		assert.NotEqual(t, schemas.FieldLogo, mappings[0].StandardField)
	}

	// While a genuine logo upload still maps to logo.
	logo := field("logo", schemas.ControlFile)
	mappings = newMatcher().Match([]schemas.FieldDescriptor{logo})
	require.Len(t, mappings, 1)
	assert.Equal(t, schemas.FieldLogo, mappings[0].StandardField)
}

func TestMatchProtocolHintBoostsSiteURL(t *testing.T) {
	with := schemas.FieldDescriptor{
		Locator:     schemas.Locator{Kind: schemas.LocatorByName, Name: "website"},
		ControlKind: schemas.ControlText,
		Name:        "website",
		Placeholder: "https://example.com",
	}
	without := schemas.FieldDescriptor{
		Locator:     schemas.Locator{Kind: schemas.LocatorByName, Name: "website"},
		ControlKind: schemas.ControlText,
		Name:        "website",
	}

	m := newMatcher()
	boosted := m.Match([]schemas.FieldDescriptor{with})
	plain := m.Match([]schemas.FieldDescriptor{without})
	require.Len(t, boosted, 1)
	require.Len(t, plain, 1)
	assert.Equal(t, schemas.FieldSiteURL, boosted[0].StandardField)
	assert.Greater(t, boosted[0].Confidence, plain[0].Confidence)
}

// Weak free-text signals alone stay below the floor.
func TestMatchFloorRejectsWeakSignals(t *testing.T) {
	f := schemas.FieldDescriptor{
		Locator:     schemas.Locator{Kind: schemas.LocatorByName, Name: "q"},
		ControlKind: schemas.ControlText,
		Name:        "q",
		Placeholder: "link",
	}
	mappings := newMatcher().Match([]schemas.FieldDescriptor{f})
	assert.Empty(t, mappings)
}

func TestMatchUsernameNotSiteName(t *testing.T) {
	mappings := newMatcher().Match([]schemas.FieldDescriptor{
		field("username", schemas.ControlText),
		field("first_name", schemas.ControlText),
	})
	for _, m := range mappings {
		assert.NotEqual(t, schemas.FieldSiteName, m.StandardField)
	}
}

func TestMatchContentEditableShortDescription(t *testing.T) {
	f := schemas.FieldDescriptor{
		Locator:     schemas.Locator{Kind: schemas.LocatorByID, ID: "short-desc"},
		ControlKind: schemas.ControlContentEditable,
		Label:       "Short Description",
	}
	mappings := newMatcher().Match([]schemas.FieldDescriptor{f})
	require.Len(t, mappings, 1)
	assert.Equal(t, schemas.FieldShortDescription, mappings[0].StandardField)
}

// One standard field may be claimed by several fields; each field claims at
// most one standard field.
func TestMatchMultipleClaims(t *testing.T) {
	fields := []schemas.FieldDescriptor{
		field("email", schemas.ControlEmail),
		{
			Locator:     schemas.Locator{Kind: schemas.LocatorByName, Name: "contact_email"},
			ControlKind: schemas.ControlText,
			Name:        "contact_email",
		},
	}
	mappings := newMatcher().Match(fields)
	require.Len(t, mappings, 2)
	for _, m := range mappings {
		assert.Equal(t, schemas.FieldEmail, m.StandardField)
	}
}
