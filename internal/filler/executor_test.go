package filler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/formscout/formscout/api/schemas"
	"github.com/formscout/formscout/internal/config"
	"github.com/formscout/formscout/internal/valuestore"
)

// mockPage records every primitive call in order and serves canned
// snapshots.
type mockPage struct {
	calls       []string
	snapshotDoc string
	editorFound bool
	failures    map[string]error
	files       map[string][]valuestore.FilePayload
}

func newMockPage() *mockPage {
	return &mockPage{
		snapshotDoc: "<html><body></body></html>",
		failures:    map[string]error{},
		files:       map[string][]valuestore.FilePayload{},
	}
}

func (m *mockPage) record(call string) error {
	m.calls = append(m.calls, call)
	for prefix, err := range m.failures {
		if strings.HasPrefix(call, prefix) {
			return err
		}
	}
	return nil
}

func (m *mockPage) Snapshot(ctx context.Context) (*html.Node, error) {
	if err := m.record("snapshot"); err != nil {
		return nil, err
	}
	return html.Parse(strings.NewReader(m.snapshotDoc))
}

func (m *mockPage) SetNativeValue(ctx context.Context, loc schemas.Locator, value string) error {
	return m.record(fmt.Sprintf("native:%s=%s", loc, value))
}

func (m *mockPage) SetRichText(ctx context.Context, loc schemas.Locator, value string) error {
	return m.record(fmt.Sprintf("richtext:%s=%s", loc, value))
}

func (m *mockPage) SetEditorValue(ctx context.Context, loc schemas.Locator, value string) (bool, error) {
	err := m.record(fmt.Sprintf("editor:%s=%s", loc, value))
	return m.editorFound, err
}

func (m *mockPage) SelectOption(ctx context.Context, loc schemas.Locator, value string) error {
	return m.record(fmt.Sprintf("select:%s=%s", loc, value))
}

func (m *mockPage) Click(ctx context.Context, loc schemas.Locator) error {
	return m.record(fmt.Sprintf("click:%s", loc))
}

func (m *mockPage) DispatchChange(ctx context.Context, loc schemas.Locator) error {
	return m.record("change:" + loc.String())
}

func (m *mockPage) PressEscape(ctx context.Context) error {
	return m.record("escape")
}

func (m *mockPage) SetFiles(ctx context.Context, loc schemas.Locator, files []valuestore.FilePayload) error {
	m.files[loc.String()] = files
	return m.record(fmt.Sprintf("files:%s", loc))
}

func (m *mockPage) Sleep(ctx context.Context, d time.Duration) error {
	// Delays are irrelevant to sequencing assertions, just honor cancellation.
	return ctx.Err()
}

// callsMatching filters the call log by prefix.
func (m *mockPage) callsMatching(prefix string) []string {
	var out []string
	for _, c := range m.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func newTestExecutor(t *testing.T, page PagePrimitives) *Executor {
	t.Helper()
	e, err := New(page, config.FillConfig{FieldsPerSecond: 1000}, nil)
	require.NoError(t, err)
	return e
}

func textTask(id string, std schemas.StandardField, kind schemas.ControlKind) Task {
	loc := schemas.Locator{Kind: schemas.LocatorByID, ID: id}
	return Task{
		Mapping: schemas.FieldMapping{Locator: loc, StandardField: std, Method: schemas.MethodKeyword},
		Field:   schemas.FieldDescriptor{Locator: loc, ControlKind: kind, DomID: id},
	}
}

func testRecord() *schemas.SiteValueRecord {
	return &schemas.SiteValueRecord{
		ID: "acme",
		Values: map[schemas.StandardField]string{
			schemas.FieldSiteName: "Acme",
			schemas.FieldEmail:    "team@acme.dev",
			schemas.FieldSiteURL:  "https://acme.dev",
			schemas.FieldCategory: "人工智能",
			schemas.FieldTags:     "productivity, 设计",
		},
		Images: map[schemas.StandardField]string{
			schemas.FieldLogo: "data:image/png;base64,cG5n",
		},
	}
}

func TestRunFillsPlainInputs(t *testing.T) {
	page := newMockPage()
	e := newTestExecutor(t, page)

	tasks := []Task{
		textTask("site_name", schemas.FieldSiteName, schemas.ControlText),
		textTask("email", schemas.FieldEmail, schemas.ControlEmail),
		textTask("site_url", schemas.FieldSiteURL, schemas.ControlURL),
	}

	result, err := e.Run(context.Background(), tasks, testRecord())
	require.NoError(t, err)

	assert.Equal(t, 3, result.FilledCount)
	assert.Equal(t, 3, result.TotalFields)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.OperationID)

	native := page.callsMatching("native:")
	require.Len(t, native, 3)
	assert.Equal(t, "native:byId(site_name)=Acme", native[0])
	assert.Equal(t, "native:byId(email)=team@acme.dev", native[1])
	// type=url keeps the scheme.
	assert.Equal(t, "native:byId(site_url)=https://acme.dev", native[2])
}

func TestRunStripsSchemeForBareDomainPlaceholder(t *testing.T) {
	page := newMockPage()
	e := newTestExecutor(t, page)

	task := textTask("website", schemas.FieldSiteURL, schemas.ControlText)
	task.Field.Placeholder = "yoursite.com"

	result, err := e.Run(context.Background(), []Task{task}, testRecord())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilledCount)
	assert.Contains(t, page.calls, "native:byId(website)=acme.dev")
}

func TestAdjustURLValueProtocolPrefix(t *testing.T) {
	tests := []struct {
		name  string
		field schemas.FieldDescriptor
		std   schemas.StandardField
		want  string
	}{
		{
			name:  "label is a fixed https prefix",
			field: schemas.FieldDescriptor{ControlKind: schemas.ControlText, Label: "https://"},
			std:   schemas.FieldSiteURL,
			want:  "ex.com/x",
		},
		{
			name:  "pre-seeded http prefix in the control",
			field: schemas.FieldDescriptor{ControlKind: schemas.ControlText, CurrentValue: "http://"},
			std:   schemas.FieldSiteURL,
			want:  "ex.com/x",
		},
		{
			name:  "ordinary label keeps the scheme",
			field: schemas.FieldDescriptor{ControlKind: schemas.ControlText, Label: "Website"},
			std:   schemas.FieldSiteURL,
			want:  "https://ex.com/x",
		},
		{
			name:  "no signals at all keeps the scheme",
			field: schemas.FieldDescriptor{ControlKind: schemas.ControlText},
			std:   schemas.FieldSiteURL,
			want:  "https://ex.com/x",
		},
		{
			name:  "type=url never strips",
			field: schemas.FieldDescriptor{ControlKind: schemas.ControlURL, Label: "https://"},
			std:   schemas.FieldSiteURL,
			want:  "https://ex.com/x",
		},
		{
			name:  "other fields are untouched",
			field: schemas.FieldDescriptor{ControlKind: schemas.ControlText, Label: "https://"},
			std:   schemas.FieldSiteName,
			want:  "https://ex.com/x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := adjustURLValue(tt.field, tt.std, "https://ex.com/x")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunSchemeStrippingDoesNotCarryOver(t *testing.T) {
	page := newMockPage()
	e := newTestExecutor(t, page)

	stripped := textTask("website", schemas.FieldSiteURL, schemas.ControlText)
	stripped.Field.Placeholder = "yoursite.com"
	plain := textTask("backup_url", schemas.FieldSiteURL, schemas.ControlText)
	plain.Field.Placeholder = "https://yoursite.com"

	_, err := e.Run(context.Background(), []Task{stripped, plain}, testRecord())
	require.NoError(t, err)
	assert.Contains(t, page.calls, "native:byId(website)=acme.dev")
	assert.Contains(t, page.calls, "native:byId(backup_url)=https://acme.dev")
}

func TestRunSkipsFieldsWithoutValues(t *testing.T) {
	page := newMockPage()
	e := newTestExecutor(t, page)

	tasks := []Task{
		textTask("site_name", schemas.FieldSiteName, schemas.ControlText),
		textTask("tagline", schemas.FieldTagline, schemas.ControlText), // not in record
	}

	result, err := e.Run(context.Background(), tasks, testRecord())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilledCount)
	assert.Equal(t, 2, result.TotalFields)
	assert.Empty(t, result.Errors, "a missing value is a skip, not a failure")
}

func TestRunRecordsPerFieldErrorsAndContinues(t *testing.T) {
	page := newMockPage()
	page.failures["native:byId(site_name)"] = errors.New("element detached")
	e := newTestExecutor(t, page)

	tasks := []Task{
		textTask("site_name", schemas.FieldSiteName, schemas.ControlText),
		textTask("email", schemas.FieldEmail, schemas.ControlEmail),
	}

	result, err := e.Run(context.Background(), tasks, testRecord())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilledCount)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schemas.FieldSiteName, result.Errors[0].Field)
	assert.Contains(t, result.Errors[0].Reason, "element detached")
	assert.Contains(t, page.calls, "native:byId(email)=team@acme.dev")
}

func TestRunDefersTagsAfterCategory(t *testing.T) {
	page := newMockPage()
	page.snapshotDoc = `<html><body><ul role="listbox">
		<li role="option">Select All</li>
		<li role="option">AI Tools</li>
		<li role="option">Productivity</li>
		<li role="option">Design</li>
	</ul></body></html>`
	e := newTestExecutor(t, page)

	tags := textTask("tags_box", schemas.FieldTags, schemas.ControlCustomSelect)
	category := textTask("category_box", schemas.FieldCategory, schemas.ControlCustomSelect)

	// Tags appear before category in the plan but must run after it.
	result, err := e.Run(context.Background(), []Task{tags, category}, testRecord())
	require.NoError(t, err)
	assert.Equal(t, 2, result.FilledCount)

	clicks := page.callsMatching("click:")
	require.NotEmpty(t, clicks)
	catIdx, tagIdx := -1, -1
	for i, c := range clicks {
		if c == "click:byId(category_box)" {
			catIdx = i
		}
		if c == "click:byId(tags_box)" {
			tagIdx = i
		}
	}
	require.GreaterOrEqual(t, catIdx, 0)
	require.GreaterOrEqual(t, tagIdx, 0)
	assert.Less(t, catIdx, tagIdx, "category trigger must be clicked before tags trigger")
}

func TestCustomSelectResolvesSynonyms(t *testing.T) {
	page := newMockPage()
	page.snapshotDoc = `<html><body><ul role="listbox">
		<li role="option" id="opt-ai">AI Tools</li>
		<li role="option" id="opt-design">Design</li>
	</ul></body></html>`
	e := newTestExecutor(t, page)

	category := textTask("category_box", schemas.FieldCategory, schemas.ControlCustomSelect)

	result, err := e.Run(context.Background(), []Task{category}, testRecord())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilledCount)

	// The stored value is Chinese; the English panel entry must be clicked.
	assert.Contains(t, page.calls, "click:byXPath(//*[@id='opt-ai'])")

	// The trigger gets a change event once the pick landed.
	optIdx, changeIdx := -1, -1
	for i, c := range page.calls {
		switch c {
		case "click:byXPath(//*[@id='opt-ai'])":
			optIdx = i
		case "change:byId(category_box)":
			changeIdx = i
		}
	}
	require.GreaterOrEqual(t, changeIdx, 0)
	assert.Greater(t, changeIdx, optIdx)

	// The interaction brackets with escape presses.
	assert.GreaterOrEqual(t, len(page.callsMatching("escape")), 2)
}

func TestCustomSelectMultiValueTags(t *testing.T) {
	page := newMockPage()
	page.snapshotDoc = `<html><body><ul role="listbox">
		<li role="option" id="opt-prod">Productivity</li>
		<li role="option" id="opt-design">Design</li>
		<li role="option" id="opt-other">Other</li>
	</ul></body></html>`
	e := newTestExecutor(t, page)

	tags := textTask("tags_box", schemas.FieldTags, schemas.ControlCustomSelect)

	result, err := e.Run(context.Background(), []Task{tags}, testRecord())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilledCount)

	// "productivity, 设计" picks both entries.
	assert.Contains(t, page.calls, "click:byXPath(//*[@id='opt-prod'])")
	assert.Contains(t, page.calls, "click:byXPath(//*[@id='opt-design'])")
}

func TestHarvestChecklistRows(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(`<html><body><div class="panel">
		<label id="row-all"><input type="checkbox">Select All</label>
		<label id="row-ai"><input type="checkbox">AI Tools</label>
		<label id="row-design"><input type="checkbox">Design</label>
	</div></body></html>`))
	require.NoError(t, err)

	opts := harvestPanelOptions(doc)
	require.Len(t, opts, 2)
	assert.Equal(t, "AI Tools", opts[0].Text)
	assert.Equal(t, "Design", opts[1].Text)
	// The row wrapping the checkbox is the click target.
	assert.Equal(t, "//*[@id='row-ai']", opts[0].Locator.Path)
}

func TestCustomSelectChecklistPanel(t *testing.T) {
	page := newMockPage()
	page.snapshotDoc = `<html><body><div class="panel">
		<label id="row-all"><input type="checkbox">Select All</label>
		<label id="row-ai"><input type="checkbox">AI Tools</label>
		<label id="row-design"><input type="checkbox">Design</label>
	</div></body></html>`
	e := newTestExecutor(t, page)

	category := textTask("category_box", schemas.FieldCategory, schemas.ControlCustomSelect)

	result, err := e.Run(context.Background(), []Task{category}, testRecord())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilledCount)
	assert.Contains(t, page.calls, "click:byXPath(//*[@id='row-ai'])")
}

func TestCustomSelectNoMatchIsError(t *testing.T) {
	page := newMockPage()
	page.snapshotDoc = `<html><body><ul role="listbox">
		<li role="option">Quantum Farming</li>
	</ul></body></html>`
	e := newTestExecutor(t, page)

	category := textTask("category_box", schemas.FieldCategory, schemas.ControlCustomSelect)

	result, err := e.Run(context.Background(), []Task{category}, testRecord())
	require.NoError(t, err)
	assert.Equal(t, 0, result.FilledCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Reason, "no dropdown option matches")
	assert.Empty(t, page.callsMatching("change:"), "no pick means nothing to commit")
}

func TestNativeSelect(t *testing.T) {
	page := newMockPage()
	e := newTestExecutor(t, page)

	task := textTask("category", schemas.FieldCategory, schemas.ControlSelect)
	task.Field.Options = []schemas.SelectOption{
		{Value: "1", Text: "AI Tools"},
		{Value: "2", Text: "Design"},
	}

	result, err := e.Run(context.Background(), []Task{task}, testRecord())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilledCount)
	assert.Contains(t, page.calls, "select:byId(category)=1")
}

func TestTextareaPrefersEditorInstance(t *testing.T) {
	record := testRecord()
	record.Values[schemas.FieldLongDescription] = "A long story."

	t.Run("editor found", func(t *testing.T) {
		page := newMockPage()
		page.editorFound = true
		e := newTestExecutor(t, page)

		task := textTask("description", schemas.FieldLongDescription, schemas.ControlTextarea)
		_, err := e.Run(context.Background(), []Task{task}, record)
		require.NoError(t, err)

		assert.NotEmpty(t, page.callsMatching("editor:"))
		assert.Empty(t, page.callsMatching("native:"), "native path must not run when an editor instance took the value")
	})

	t.Run("editor absent falls back", func(t *testing.T) {
		page := newMockPage()
		e := newTestExecutor(t, page)

		task := textTask("description", schemas.FieldLongDescription, schemas.ControlTextarea)
		_, err := e.Run(context.Background(), []Task{task}, record)
		require.NoError(t, err)

		assert.Contains(t, page.calls, "native:byId(description)=A long story.")
	})
}

func TestRichText(t *testing.T) {
	page := newMockPage()
	e := newTestExecutor(t, page)
	record := testRecord()
	record.Values[schemas.FieldShortDescription] = "Short and sweet."

	task := textTask("intro", schemas.FieldShortDescription, schemas.ControlContentEditable)
	_, err := e.Run(context.Background(), []Task{task}, record)
	require.NoError(t, err)
	assert.Contains(t, page.calls, "richtext:byId(intro)=Short and sweet.")
}

func TestFileUpload(t *testing.T) {
	page := newMockPage()
	e := newTestExecutor(t, page)

	task := textTask("logo_input", schemas.FieldLogo, schemas.ControlFile)
	result, err := e.Run(context.Background(), []Task{task}, testRecord())
	require.NoError(t, err)
	assert.Equal(t, 1, result.FilledCount)

	files := page.files["byId(logo_input)"]
	require.Len(t, files, 1)
	assert.Equal(t, "image/png", files[0].MIME)
	assert.Equal(t, []byte("png"), files[0].Data)
}

func TestFileUploadWithoutImageIsSkip(t *testing.T) {
	page := newMockPage()
	e := newTestExecutor(t, page)

	task := textTask("screenshot_input", schemas.FieldScreenshot, schemas.ControlFile)
	result, err := e.Run(context.Background(), []Task{task}, testRecord())
	require.NoError(t, err)
	assert.Equal(t, 0, result.FilledCount)
	assert.Empty(t, result.Errors)
	assert.Empty(t, page.callsMatching("files:"))
}

func TestRunDetectsCaptcha(t *testing.T) {
	page := newMockPage()
	page.snapshotDoc = `<html><body>
		<form><input name="email"></form>
		<iframe src="https://www.google.com/recaptcha/api2/anchor?k=x"></iframe>
	</body></html>`
	e := newTestExecutor(t, page)

	result, err := e.Run(context.Background(), []Task{textTask("email", schemas.FieldEmail, schemas.ControlEmail)}, testRecord())
	require.NoError(t, err)
	assert.True(t, result.HasCaptcha)
}

func TestRunHonorsCancellation(t *testing.T) {
	page := newMockPage()
	e := newTestExecutor(t, page)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, []Task{textTask("email", schemas.FieldEmail, schemas.ControlEmail)}, testRecord())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFillOne(t *testing.T) {
	page := newMockPage()
	e := newTestExecutor(t, page)

	err := e.FillOne(context.Background(), textTask("email", schemas.FieldEmail, schemas.ControlEmail), testRecord())
	require.NoError(t, err)
	assert.Contains(t, page.calls, "native:byId(email)=team@acme.dev")
}

func TestDetectCaptchaVariants(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want bool
	}{
		{"hcaptcha iframe", `<iframe src="https://newassets.hcaptcha.com/captcha/v1"></iframe>`, true},
		{"turnstile iframe", `<iframe src="https://challenges.cloudflare.com/cdn-cgi/challenge"></iframe>`, true},
		{"recaptcha container", `<div class="g-recaptcha" data-sitekey="x"></div>`, true},
		{"turnstile container", `<div class="cf-turnstile"></div>`, true},
		{"loader script only", `<script src="https://www.google.com/recaptcha/api.js"></script>`, true},
		{"plain form", `<form><input name="email"></form>`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := html.Parse(strings.NewReader("<html><body>" + tt.doc + "</body></html>"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, DetectCaptcha(doc))
		})
	}
}
