package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formscout/formscout/api/schemas"
	"github.com/formscout/formscout/internal/config"
)

// fakeClient scripts one Generate response per test.
type fakeClient struct {
	response string
	err      error
	gotReq   schemas.GenerationRequest
	delay    time.Duration
}

func (f *fakeClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	f.gotReq = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.response, f.err
}

func sampleFields() []schemas.FieldDescriptor {
	return []schemas.FieldDescriptor{
		{
			Locator:     schemas.Locator{Kind: schemas.LocatorByID, ID: "f0"},
			ControlKind: schemas.ControlText,
			Name:        "product",
			Label:       "Product Name",
		},
		{
			Locator:     schemas.Locator{Kind: schemas.LocatorByID, ID: "f1"},
			ControlKind: schemas.ControlTextarea,
			Name:        "about",
			Label:       "About your product",
		},
		{
			Locator:     schemas.Locator{Kind: schemas.LocatorByID, ID: "f2"},
			ControlKind: schemas.ControlText,
			Name:        "coupon",
		},
	}
}

func newClassifier(t *testing.T, client *fakeClient) *Classifier {
	t.Helper()
	c, err := New(client, config.ClassifierConfig{RequestTimeout: 2 * time.Second}, nil)
	require.NoError(t, err)
	return c
}

func TestClassifyParsesCleanResponse(t *testing.T) {
	client := &fakeClient{response: `[
		{"fieldIndex": 0, "standardField": "siteName", "confidence": 0.95},
		{"fieldIndex": 1, "standardField": "longDescription", "confidence": 0.85},
		{"fieldIndex": 2, "standardField": "unknown", "confidence": 0.2}
	]`}
	c := newClassifier(t, client)

	mappings, err := c.Classify(context.Background(), sampleFields(), "<form></form>")
	require.NoError(t, err)
	require.Len(t, mappings, 2)

	assert.Equal(t, schemas.FieldSiteName, mappings[0].StandardField)
	assert.Equal(t, "f0", mappings[0].Locator.ID)
	assert.Equal(t, 0.95, mappings[0].Confidence)
	assert.Equal(t, schemas.MethodAI, mappings[0].Method)
	assert.Equal(t, schemas.FieldLongDescription, mappings[1].StandardField)
}

func TestClassifyExtractsArrayFromProse(t *testing.T) {
	client := &fakeClient{response: "Sure! Here is the classification:\n```json\n" +
		`[{"fieldIndex": 0, "standardField": "siteName", "confidence": 0.9}]` +
		"\n```\nLet me know if you need anything else."}
	c := newClassifier(t, client)

	mappings, err := c.Classify(context.Background(), sampleFields(), "")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, schemas.FieldSiteName, mappings[0].StandardField)
}

func TestClassifyRepairsNearJSON(t *testing.T) {
	// Trailing comma and single quotes, the usual model sloppiness.
	client := &fakeClient{response: `[{'fieldIndex': 0, 'standardField': 'email', 'confidence': 0.9},]`}
	c := newClassifier(t, client)

	mappings, err := c.Classify(context.Background(), sampleFields(), "")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, schemas.FieldEmail, mappings[0].StandardField)
}

func TestClassifyDropsInvalidVerdicts(t *testing.T) {
	client := &fakeClient{response: `[
		{"fieldIndex": 0, "standardField": "companyName", "confidence": 0.9},
		{"fieldIndex": 7, "standardField": "email", "confidence": 0.9},
		{"fieldIndex": -1, "standardField": "email", "confidence": 0.9}
	]`}
	c := newClassifier(t, client)

	_, err := c.Classify(context.Background(), sampleFields(), "")
	require.ErrorIs(t, err, ErrNoAssignments)
}

func TestClassifyFirstVerdictWinsPerField(t *testing.T) {
	client := &fakeClient{response: `[
		{"fieldIndex": 0, "standardField": "siteName", "confidence": 0.9},
		{"fieldIndex": 0, "standardField": "tagline", "confidence": 0.9}
	]`}
	c := newClassifier(t, client)

	mappings, err := c.Classify(context.Background(), sampleFields(), "")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, schemas.FieldSiteName, mappings[0].StandardField)
}

func TestClassifyOutOfRangeConfidenceDefaults(t *testing.T) {
	client := &fakeClient{response: `[{"fieldIndex": 0, "standardField": "siteName", "confidence": 12}]`}
	c := newClassifier(t, client)

	mappings, err := c.Classify(context.Background(), sampleFields(), "")
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, defaultConfidence, mappings[0].Confidence)
}

func TestClassifyGenerationFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("boom")}
	c := newClassifier(t, client)

	_, err := c.Classify(context.Background(), sampleFields(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation failed")
}

func TestClassifyMalformedResponse(t *testing.T) {
	client := &fakeClient{response: "I cannot classify these fields."}
	c := newClassifier(t, client)

	_, err := c.Classify(context.Background(), sampleFields(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no JSON array")
}

func TestClassifyHonorsTimeout(t *testing.T) {
	client := &fakeClient{
		response: `[{"fieldIndex": 0, "standardField": "siteName", "confidence": 0.9}]`,
		delay:    5 * time.Second,
	}
	c, err := New(client, config.ClassifierConfig{RequestTimeout: 50 * time.Millisecond}, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Classify(context.Background(), sampleFields(), "")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClassifyEmptyFieldList(t *testing.T) {
	c := newClassifier(t, &fakeClient{})
	_, err := c.Classify(context.Background(), nil, "")
	require.ErrorIs(t, err, ErrNoAssignments)
}

func TestBuildUserPromptContents(t *testing.T) {
	client := &fakeClient{response: `[{"fieldIndex": 0, "standardField": "siteName", "confidence": 0.9}]`}
	c := newClassifier(t, client)

	_, err := c.Classify(context.Background(), sampleFields(), "<form id='submit'></form>")
	require.NoError(t, err)

	prompt := client.gotReq.UserPrompt
	assert.Contains(t, prompt, "- siteName")
	assert.Contains(t, prompt, "- screenshot")
	assert.Contains(t, prompt, `0. kind=text name="product"`)
	assert.Contains(t, prompt, "Page excerpt:")
	assert.True(t, client.gotReq.Options.ForceJSONFormat)
}

func TestBoundExcerptRuneBoundary(t *testing.T) {
	s := strings.Repeat("分", 10)
	out := boundExcerpt(s, 8)
	assert.True(t, len(out) <= 8)
	for _, r := range out {
		assert.Equal(t, '分', r)
	}
}

func TestExtractJSONArrayIgnoresBracketsInStrings(t *testing.T) {
	raw := `noise [{"a": "x[y]z"}] trailer`
	assert.Equal(t, `[{"a": "x[y]z"}]`, extractJSONArray(raw))
}
