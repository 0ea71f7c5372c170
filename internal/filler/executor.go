package filler

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/PuerkitoBio/goquery"

	"github.com/formscout/formscout/api/schemas"
	"github.com/formscout/formscout/internal/choices"
	"github.com/formscout/formscout/internal/config"
	"github.com/formscout/formscout/internal/locator"
	"github.com/formscout/formscout/internal/valuestore"
)

// Task pairs a recognized mapping with the descriptor it was recognized
// from. The descriptor carries the control shape and any harvested options.
type Task struct {
	Mapping schemas.FieldMapping
	Field   schemas.FieldDescriptor
}

// errNoValue marks a field the profile has nothing for. It is a skip, not a
// failure.
var errNoValue = errors.New("no stored value")

const (
	defaultSettleDelay       = 120 * time.Millisecond
	defaultDropdownOpenWait  = 250 * time.Millisecond
	defaultDropdownCloseWait = 150 * time.Millisecond
	defaultFieldsPerSecond   = 4.0
)

// Executor walks a fill plan one field at a time. Fields never run
// concurrently; each synthetic event burst must settle before the next
// begins so page scripts observe the same sequence a human produces.
type Executor struct {
	page      PagePrimitives
	limiter   *rate.Limiter
	settle    time.Duration
	openWait  time.Duration
	closeWait time.Duration
	logger    *zap.Logger
}

// New builds an Executor over a page. Zero config values fall back to
// defaults.
func New(page PagePrimitives, cfg config.FillConfig, logger *zap.Logger) (*Executor, error) {
	if page == nil {
		return nil, fmt.Errorf("filler: page primitives are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	perSecond := cfg.FieldsPerSecond
	if perSecond <= 0 {
		perSecond = defaultFieldsPerSecond
	}
	settle := cfg.SettleDelay
	if settle <= 0 {
		settle = defaultSettleDelay
	}
	openWait := cfg.DropdownOpenWait
	if openWait <= 0 {
		openWait = defaultDropdownOpenWait
	}
	closeWait := cfg.DropdownCloseWait
	if closeWait <= 0 {
		closeWait = defaultDropdownCloseWait
	}
	return &Executor{
		page:      page,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), 1),
		settle:    settle,
		openWait:  openWait,
		closeWait: closeWait,
		logger:    logger.Named("filler"),
	}, nil
}

// Run executes the whole plan. Per-field failures are recorded and never
// abort the pass; only context cancellation stops it early.
func (e *Executor) Run(ctx context.Context, tasks []Task, record *schemas.SiteValueRecord) (schemas.FillResult, error) {
	result := schemas.FillResult{
		OperationID: uuid.NewString(),
		TotalFields: len(tasks),
	}

	for _, task := range orderTasks(tasks) {
		if err := e.limiter.Wait(ctx); err != nil {
			return result, err
		}

		err := e.fillOne(ctx, task, record)
		switch {
		case err == nil:
			result.FilledCount++
		case errors.Is(err, errNoValue):
			e.logger.Debug("skipping field without stored value",
				zap.String("field", string(task.Mapping.StandardField)))
		case ctx.Err() != nil:
			return result, ctx.Err()
		default:
			e.logger.Warn("field fill failed",
				zap.String("field", string(task.Mapping.StandardField)),
				zap.Stringer("locator", task.Mapping.Locator),
				zap.Error(err))
			result.Errors = append(result.Errors, schemas.FieldError{
				Field:  task.Mapping.StandardField,
				Reason: err.Error(),
			})
		}

		if err := e.page.Sleep(ctx, e.settle); err != nil {
			return result, err
		}
	}

	if doc, err := e.page.Snapshot(ctx); err == nil {
		result.HasCaptcha = DetectCaptcha(doc)
	} else {
		e.logger.Warn("captcha scan skipped, snapshot failed", zap.Error(err))
	}

	return result, nil
}

// FillOne executes a single task outside a full pass.
func (e *Executor) FillOne(ctx context.Context, task Task, record *schemas.SiteValueRecord) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := e.fillOne(ctx, task, record); err != nil {
		return err
	}
	return e.page.Sleep(ctx, e.settle)
}

// orderTasks keeps plan order except that tag fields run after everything
// else. Tag widgets frequently repopulate when the category changes, so a
// tag picked first can be wiped by the category pick.
func orderTasks(tasks []Task) []Task {
	ordered := make([]Task, 0, len(tasks))
	var deferred []Task
	for _, t := range tasks {
		if t.Mapping.StandardField == schemas.FieldTags {
			deferred = append(deferred, t)
			continue
		}
		ordered = append(ordered, t)
	}
	return append(ordered, deferred...)
}

func (e *Executor) fillOne(ctx context.Context, task Task, record *schemas.SiteValueRecord) error {
	std := task.Mapping.StandardField
	class := classifyControl(task.Field)

	if class == classFileUpload {
		dataURL, ok := record.Image(std)
		if !ok {
			return errNoValue
		}
		return e.fillFile(ctx, task, dataURL)
	}

	value, ok := record.Value(std)
	if !ok {
		return errNoValue
	}

	switch class {
	case classNativeSelect:
		return e.fillNativeSelect(ctx, task, value)
	case classCustomSelect:
		return e.fillCustomSelect(ctx, task, value)
	case classRichText:
		return e.page.SetRichText(ctx, task.Mapping.Locator, value)
	case classTextarea:
		return e.fillTextarea(ctx, task, value)
	default:
		return e.page.SetNativeValue(ctx, task.Mapping.Locator, adjustURLValue(task.Field, std, value))
	}
}

func (e *Executor) fillFile(ctx context.Context, task Task, dataURL string) error {
	payload, err := valuestore.DecodeDataURL(dataURL)
	if err != nil {
		return fmt.Errorf("decode stored image: %w", err)
	}
	return e.page.SetFiles(ctx, task.Mapping.Locator, []valuestore.FilePayload{*payload})
}

// fillTextarea tries a code editor instance first; plenty of long
// description fields are CodeMirror hosts whose real textarea is hidden.
func (e *Executor) fillTextarea(ctx context.Context, task Task, value string) error {
	found, err := e.page.SetEditorValue(ctx, task.Mapping.Locator, value)
	if err != nil {
		return err
	}
	if found {
		return nil
	}
	return e.page.SetNativeValue(ctx, task.Mapping.Locator, value)
}

func (e *Executor) fillNativeSelect(ctx context.Context, task Task, value string) error {
	opt := choices.BestMatchAny(valuesFor(task.Mapping.StandardField, value), task.Field.Options)
	if opt == nil {
		return fmt.Errorf("no option matches %q", value)
	}
	return e.page.SelectOption(ctx, task.Mapping.Locator, opt.Value)
}

// fillCustomSelect drives a scripted dropdown: close anything open, click
// the trigger, harvest the panel from a fresh snapshot, click the best
// matching options, then close the panel again.
func (e *Executor) fillCustomSelect(ctx context.Context, task Task, value string) error {
	if err := e.page.PressEscape(ctx); err != nil {
		return err
	}
	if err := e.page.Click(ctx, task.Mapping.Locator); err != nil {
		return fmt.Errorf("open dropdown: %w", err)
	}
	if err := e.page.Sleep(ctx, e.openWait); err != nil {
		return err
	}

	doc, err := e.page.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot open dropdown: %w", err)
	}
	options := harvestPanelOptions(doc)
	if len(options) == 0 {
		_ = e.page.PressEscape(ctx)
		return fmt.Errorf("dropdown opened but no options found")
	}

	texts := make([]schemas.SelectOption, len(options))
	for i, o := range options {
		texts[i] = schemas.SelectOption{Value: o.Text, Text: o.Text}
	}

	var picked int
	var failures []string
	for _, want := range valuesFor(task.Mapping.StandardField, value) {
		match := choices.BestMatch(want, texts)
		if match == nil {
			failures = append(failures, want)
			continue
		}
		idx := indexOfOption(texts, match)
		if err := e.page.Click(ctx, options[idx].Locator); err != nil {
			return fmt.Errorf("click option %q: %w", match.Text, err)
		}
		picked++
		if err := e.page.Sleep(ctx, e.settle); err != nil {
			return err
		}
	}

	// Composite widgets listen for change on the trigger, not on the
	// panel entries.
	if picked > 0 {
		if err := e.page.DispatchChange(ctx, task.Mapping.Locator); err != nil {
			return fmt.Errorf("commit dropdown selection: %w", err)
		}
	}

	if err := e.page.Sleep(ctx, e.closeWait); err != nil {
		return err
	}
	if err := e.page.PressEscape(ctx); err != nil {
		return err
	}

	if picked == 0 {
		return fmt.Errorf("no dropdown option matches %q", value)
	}
	if len(failures) > 0 {
		e.logger.Debug("some dropdown values had no match", zap.Strings("unmatched", failures))
	}
	return nil
}

// valuesFor expands a stored value into the per-option picks for a field.
// Only tags carry multiple comma-separated values.
func valuesFor(std schemas.StandardField, value string) []string {
	if std == schemas.FieldTags {
		if parts := choices.SplitValues(value); len(parts) > 0 {
			return parts
		}
	}
	return []string{value}
}

func indexOfOption(opts []schemas.SelectOption, match *schemas.SelectOption) int {
	for i := range opts {
		if &opts[i] == match {
			return i
		}
	}
	return 0
}

// panelOption is one clickable entry harvested from an open dropdown panel.
type panelOption struct {
	Text    string
	Locator schemas.Locator
}

// selectAllRe filters the bulk-toggle entries multi-select checklists put at
// the top of their panels.
var selectAllRe = regexp.MustCompile(`(?i)^(select all|deselect all|all|全选|取消全选)$`)

// panelOptionSelector matches the common markups dropdown libraries render
// their entries with.
const panelOptionSelector = `[role='option'], [role='listbox'] li, [class*='dropdown'] li, [class*='select'] li, [class*='menu'] li, [class*='option']:not(option)`

// harvestPanelOptions collects the visible entries of an open dropdown
// panel, keyed by fresh XPath locators so they can be clicked afterwards.
func harvestPanelOptions(doc *html.Node) []panelOption {
	if doc == nil {
		return nil
	}
	q := goquery.NewDocumentFromNode(doc)

	seen := make(map[*html.Node]bool)
	var out []panelOption
	q.Find(panelOptionSelector).Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		if seen[node] {
			return
		}
		seen[node] = true

		// Skip wrappers around other harvested entries.
		if s.Find(panelOptionSelector).Length() > 0 {
			return
		}

		text := strings.TrimSpace(s.Text())
		if text == "" || selectAllRe.MatchString(text) {
			return
		}
		out = append(out, panelOption{
			Text:    text,
			Locator: schemas.Locator{Kind: schemas.LocatorByXPath, Path: locator.GenerateUniqueXPath(node)},
		})
	})

	// Checklist panels render plain checkbox rows with none of the dropdown
	// markups above. Harvest the row around each checkbox, so the click
	// lands on the label rather than a hidden input.
	q.Find("input[type='checkbox']").Each(func(_ int, s *goquery.Selection) {
		row := s.Closest("label")
		if row.Length() == 0 {
			row = s.Parent()
		}
		if row.Length() == 0 {
			return
		}
		node := row.Get(0)
		if seen[node] {
			return
		}
		seen[node] = true

		text := strings.TrimSpace(row.Text())
		if text == "" || selectAllRe.MatchString(text) {
			return
		}
		out = append(out, panelOption{
			Text:    text,
			Locator: schemas.Locator{Kind: schemas.LocatorByXPath, Path: locator.GenerateUniqueXPath(node)},
		})
	})
	return out
}

// bareDomainRe recognizes placeholders that show the expected value without
// a scheme, e.g. "yoursite.com".
var bareDomainRe = regexp.MustCompile(`^(www\.)?[a-z0-9-]+(\.[a-z0-9-]+)+`)

// adjustURLValue strips the scheme from a stored site URL when the control
// visibly wants a bare domain: either it already carries a fixed protocol
// prefix (its label or pre-seeded value reads exactly "https://"/"http://"),
// or its placeholder shows a bare domain. The decision uses only this
// field's own signals; nothing carries over from previously filled fields.
func adjustURLValue(field schemas.FieldDescriptor, std schemas.StandardField, value string) string {
	if std != schemas.FieldSiteURL {
		return value
	}
	// A type=url input validates the scheme, never strip there.
	if field.ControlKind == schemas.ControlURL {
		return value
	}
	if !hasFixedProtocolPrefix(field) && !hasBareDomainPlaceholder(field) {
		return value
	}
	value = strings.TrimPrefix(value, "https://")
	value = strings.TrimPrefix(value, "http://")
	return value
}

// hasFixedProtocolPrefix reports whether the control visibly shows a scheme
// already, as a label immediately before the input or as pre-seeded content.
func hasFixedProtocolPrefix(field schemas.FieldDescriptor) bool {
	for _, s := range []string{field.Label, field.CurrentValue} {
		switch strings.TrimSpace(s) {
		case "https://", "http://":
			return true
		}
	}
	return false
}

func hasBareDomainPlaceholder(field schemas.FieldDescriptor) bool {
	ph := strings.ToLower(strings.TrimSpace(field.Placeholder))
	return ph != "" && !strings.Contains(ph, "://") && bareDomainRe.MatchString(ph)
}
