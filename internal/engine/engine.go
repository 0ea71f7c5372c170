// Package engine orchestrates one page context: extract the page's fields,
// recognize which standard submission fields they correspond to, and fill
// them from a stored profile.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/formscout/formscout/api/schemas"
	"github.com/formscout/formscout/internal/config"
	"github.com/formscout/formscout/internal/extractor"
	"github.com/formscout/formscout/internal/filler"
	"github.com/formscout/formscout/internal/mappingcache"
	"github.com/formscout/formscout/internal/matcher"
	"github.com/formscout/formscout/internal/valuestore"
)

// ErrBusy reports that another recognize or fill operation is still running
// on this page context.
var ErrBusy = errors.New("engine: an operation is already in progress")

// ErrFieldNotMapped reports a FillOne request for a standard field the last
// recognition pass did not find on the page.
var ErrFieldNotMapped = errors.New("engine: standard field not mapped on this page")

// Page is the browser surface the engine drives. The production
// implementation is a Chrome tab; tests script it.
type Page interface {
	filler.PagePrimitives
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
}

// FieldClassifier is the optional external recognizer. Any failure from it
// is recovered by falling back to the keyword matcher.
type FieldClassifier interface {
	Classify(ctx context.Context, fields []schemas.FieldDescriptor, htmlExcerpt string) ([]schemas.FieldMapping, error)
}

// pageState is the engine's per-page recognition memory. It is reset on
// every navigation and rebuilt by Recognize.
type pageState struct {
	url      string
	mappings []schemas.FieldMapping
	fields   []schemas.FieldDescriptor
}

// Engine ties the extraction, matching, caching, and fill stages together
// for a single page context. One logical operation runs at a time; overlapping
// calls are rejected, not queued.
type Engine struct {
	page       Page
	extractor  *extractor.Extractor
	matcher    *matcher.Matcher
	classifier FieldClassifier
	cache      *mappingcache.Cache
	values     valuestore.Provider
	fillCfg    config.FillConfig
	logger     *zap.Logger

	busy atomic.Bool

	mu    sync.Mutex
	state pageState
}

// Options carries the engine's collaborators. Classifier may be nil, in
// which case recognition always uses the keyword matcher.
type Options struct {
	Page       Page
	Matcher    *matcher.Matcher
	Classifier FieldClassifier
	Cache      *mappingcache.Cache
	Values     valuestore.Provider
	FillConfig config.FillConfig
	Logger     *zap.Logger
}

// New assembles an engine for one page context.
func New(opts Options) (*Engine, error) {
	if opts.Page == nil {
		return nil, errors.New("engine: page is required")
	}
	if opts.Matcher == nil {
		return nil, errors.New("engine: matcher is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("engine: mapping cache is required")
	}
	if opts.Values == nil {
		return nil, errors.New("engine: value provider is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		page:       opts.Page,
		extractor:  extractor.New(logger),
		matcher:    opts.Matcher,
		classifier: opts.Classifier,
		cache:      opts.Cache,
		values:     opts.Values,
		fillCfg:    opts.FillConfig,
		logger:     logger.Named("engine"),
	}, nil
}

// Navigate loads a page and resets all recognition state from the previous
// one.
func (e *Engine) Navigate(ctx context.Context, url string) error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer e.busy.Store(false)

	if err := e.page.Navigate(ctx, url); err != nil {
		return err
	}
	e.mu.Lock()
	e.state = pageState{url: url}
	e.mu.Unlock()
	return nil
}

// Detect reports what an extraction pass finds, without matching anything.
func (e *Engine) Detect(ctx context.Context) (schemas.DetectResult, error) {
	doc, err := e.page.Snapshot(ctx)
	if err != nil {
		return schemas.DetectResult{}, err
	}
	extracted := e.extractor.Extract(doc)

	result := schemas.DetectResult{
		HasForm:    extracted.HasForm,
		FieldCount: len(extracted.Fields),
	}
	if len(extracted.Fields) > 0 {
		result.Counts = make(map[schemas.ControlKind]int)
		for _, f := range extracted.Fields {
			result.Counts[f.ControlKind]++
		}
	}
	return result, nil
}

// Recognize maps the current page's fields to standard fields. The cache is
// consulted first; on a miss the classifier runs when requested and
// available, with the keyword matcher as the unconditional fallback. A
// second call while one is in flight gets StatusAlreadyRecognizing.
func (e *Engine) Recognize(ctx context.Context, useClassifier bool) (schemas.RecognizeResult, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return schemas.RecognizeResult{Status: schemas.StatusAlreadyRecognizing}, nil
	}
	defer e.busy.Store(false)

	return e.recognizeLocked(ctx, useClassifier)
}

// recognizeLocked runs a recognition pass. The caller holds the busy flag.
func (e *Engine) recognizeLocked(ctx context.Context, useClassifier bool) (schemas.RecognizeResult, error) {
	pageURL, err := e.page.URL(ctx)
	if err != nil {
		return schemas.RecognizeResult{}, fmt.Errorf("read page url: %w", err)
	}

	doc, err := e.page.Snapshot(ctx)
	if err != nil {
		return schemas.RecognizeResult{}, err
	}
	extracted := e.extractor.Extract(doc)
	if len(extracted.Fields) == 0 {
		e.logger.Info("No fillable fields found.", zap.String("url", pageURL))
		return schemas.RecognizeResult{Status: schemas.StatusNoForm}, nil
	}

	key := mappingcache.PageKey(pageURL)
	if cached := e.cache.Get(ctx, key); len(cached) > 0 {
		for i := range cached {
			cached[i].Method = schemas.MethodCache
		}
		e.setState(pageURL, cached, extracted.Fields)
		e.logger.Info("Recognition served from cache.",
			zap.String("pageKey", key),
			zap.Int("mappings", len(cached)))
		return schemas.RecognizeResult{
			Status:     schemas.StatusSuccess,
			Method:     schemas.MethodCache,
			Mappings:   cached,
			FieldCount: len(extracted.Fields),
		}, nil
	}

	method := schemas.MethodKeyword
	var mappings []schemas.FieldMapping
	if useClassifier && e.classifier != nil {
		mappings, err = e.classifier.Classify(ctx, extracted.Fields, renderExcerpt(doc))
		if err != nil {
			e.logger.Warn("Classifier failed, falling back to keyword matcher.", zap.Error(err))
			mappings = nil
		} else {
			method = schemas.MethodAI
		}
	}
	if len(mappings) == 0 {
		mappings = e.matcher.Match(extracted.Fields)
		method = schemas.MethodKeyword
	}

	if len(mappings) > 0 {
		if err := e.cache.Put(ctx, key, mappings); err != nil {
			e.logger.Warn("Failed to cache mappings.", zap.String("pageKey", key), zap.Error(err))
		}
	}
	e.setState(pageURL, mappings, extracted.Fields)

	e.logger.Info("Recognition complete.",
		zap.String("method", string(method)),
		zap.Int("fields", len(extracted.Fields)),
		zap.Int("mappings", len(mappings)))
	return schemas.RecognizeResult{
		Status:     schemas.StatusSuccess,
		Method:     method,
		Mappings:   mappings,
		FieldCount: len(extracted.Fields),
	}, nil
}

// Fill writes the identified profile's values into the recognized fields.
// The profile is loaded before any page interaction so a missing profile
// surfaces as a hard error. When nothing has been recognized yet a keyword
// recognition pass runs first.
func (e *Engine) Fill(ctx context.Context, recordID string) (schemas.FillResult, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return schemas.FillResult{}, ErrBusy
	}
	defer e.busy.Store(false)

	record, err := e.values.Get(ctx, recordID)
	if err != nil {
		return schemas.FillResult{}, err
	}

	mappings, err := e.ensureMappings(ctx)
	if err != nil {
		return schemas.FillResult{}, err
	}
	if len(mappings) == 0 {
		return schemas.FillResult{}, nil
	}

	tasks, missing, err := e.buildTasks(ctx, mappings)
	if err != nil {
		return schemas.FillResult{}, err
	}

	exec, err := filler.New(e.page, e.fillCfg, e.logger)
	if err != nil {
		return schemas.FillResult{}, err
	}
	result, err := exec.Run(ctx, tasks, record)
	if err != nil {
		return result, err
	}
	result.TotalFields += len(missing)
	result.Errors = append(result.Errors, missing...)
	return result, nil
}

// FillOne fills a single standard field from the profile, leaving the rest
// of the page untouched.
func (e *Engine) FillOne(ctx context.Context, recordID string, std schemas.StandardField) (schemas.FillResult, error) {
	if !e.busy.CompareAndSwap(false, true) {
		return schemas.FillResult{}, ErrBusy
	}
	defer e.busy.Store(false)

	record, err := e.values.Get(ctx, recordID)
	if err != nil {
		return schemas.FillResult{}, err
	}

	mappings, err := e.ensureMappings(ctx)
	if err != nil {
		return schemas.FillResult{}, err
	}

	var picked []schemas.FieldMapping
	for _, m := range mappings {
		if m.StandardField == std {
			picked = append(picked, m)
		}
	}
	if len(picked) == 0 {
		return schemas.FillResult{}, fmt.Errorf("%w: %s", ErrFieldNotMapped, std)
	}

	tasks, missing, err := e.buildTasks(ctx, picked)
	if err != nil {
		return schemas.FillResult{}, err
	}

	exec, err := filler.New(e.page, e.fillCfg, e.logger)
	if err != nil {
		return schemas.FillResult{}, err
	}
	result := schemas.FillResult{TotalFields: len(picked), Errors: missing}
	for _, task := range tasks {
		if err := exec.FillOne(ctx, task, record); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.Errors = append(result.Errors, schemas.FieldError{
				Field:  task.Mapping.StandardField,
				Reason: err.Error(),
			})
			continue
		}
		result.FilledCount++
	}
	return result, nil
}

// ClearCache drops the cached mapping for the current page.
func (e *Engine) ClearCache(ctx context.Context) error {
	pageURL, err := e.page.URL(ctx)
	if err != nil {
		return fmt.Errorf("read page url: %w", err)
	}
	return e.cache.Clear(ctx, mappingcache.PageKey(pageURL))
}

// ClearAllCache drops every cached mapping.
func (e *Engine) ClearAllCache(ctx context.Context) error {
	return e.cache.ClearAll(ctx)
}

// Mappings returns the last recognition pass's result for this page.
func (e *Engine) Mappings() []schemas.FieldMapping {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]schemas.FieldMapping, len(e.state.mappings))
	copy(out, e.state.mappings)
	return out
}

func (e *Engine) setState(url string, mappings []schemas.FieldMapping, fields []schemas.FieldDescriptor) {
	e.mu.Lock()
	e.state = pageState{url: url, mappings: mappings, fields: fields}
	e.mu.Unlock()
}

// ensureMappings returns the current recognition state, running a keyword
// pass first when the page has not been recognized yet.
func (e *Engine) ensureMappings(ctx context.Context) ([]schemas.FieldMapping, error) {
	e.mu.Lock()
	mappings := e.state.mappings
	e.mu.Unlock()
	if len(mappings) > 0 {
		return mappings, nil
	}

	rec, err := e.recognizeLocked(ctx, false)
	if err != nil {
		return nil, err
	}
	if rec.Status != schemas.StatusSuccess {
		return nil, nil
	}
	return rec.Mappings, nil
}

// buildTasks re-extracts the live page and pairs each mapping with its
// current descriptor by locator. Mappings whose control disappeared become
// non-fatal field errors.
func (e *Engine) buildTasks(ctx context.Context, mappings []schemas.FieldMapping) ([]filler.Task, []schemas.FieldError, error) {
	doc, err := e.page.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	extracted := e.extractor.Extract(doc)

	byLocator := make(map[schemas.Locator]schemas.FieldDescriptor, len(extracted.Fields))
	for _, f := range extracted.Fields {
		byLocator[f.Locator] = f
	}

	var tasks []filler.Task
	var missing []schemas.FieldError
	for _, m := range mappings {
		field, ok := byLocator[m.Locator]
		if !ok {
			e.logger.Debug("Mapped control no longer present.",
				zap.String("locator", m.Locator.String()),
				zap.String("field", string(m.StandardField)))
			missing = append(missing, schemas.FieldError{
				Field:  m.StandardField,
				Reason: fmt.Sprintf("control %s no longer present on page", m.Locator),
			})
			continue
		}
		tasks = append(tasks, filler.Task{Mapping: m, Field: field})
	}
	return tasks, missing, nil
}

// renderExcerpt serializes the snapshot for the classifier prompt. The
// classifier bounds the excerpt itself.
func renderExcerpt(doc *html.Node) string {
	var sb strings.Builder
	if err := html.Render(&sb, doc); err != nil {
		return ""
	}
	return sb.String()
}
