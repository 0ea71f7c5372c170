package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/formscout/formscout/api/schemas"
	"github.com/formscout/formscout/internal/config"
	"github.com/formscout/formscout/internal/locator"
	"github.com/formscout/formscout/internal/valuestore"
)

// ErrNotFound reports that a locator no longer resolves to a live element.
// Callers treat it as "skip this field", not as a fatal page error.
var ErrNotFound = errors.New("element not found on page")

const defaultOpTimeout = 20 * time.Second

// Page is one browser tab. It implements filler.PagePrimitives by resolving
// locators to XPath and driving the live document through injected scripts,
// falling back to CDP commands where script access is not enough (key events,
// file inputs).
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger

	// uploadDirs holds temp directories backing file inputs. Chrome reads
	// the attached paths lazily, so they must outlive the SetFiles call.
	uploadDirs []string
}

// Close tears the tab down and removes any staged upload files.
func (p *Page) Close() {
	p.cancel()
	for _, dir := range p.uploadDirs {
		if err := os.RemoveAll(dir); err != nil {
			p.logger.Warn("Failed to remove upload staging dir.", zap.String("dir", dir), zap.Error(err))
		}
	}
	p.uploadDirs = nil
}

// run executes chromedp actions on this tab, bounded by the given timeout
// and by the caller's context.
func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(opCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// evalStatus evaluates a script that resolves to one of the status strings.
func (p *Page) evalStatus(ctx context.Context, script string) (string, error) {
	var status string
	err := p.run(ctx, defaultOpTimeout, chromedp.Evaluate(script, &status,
		func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
			return ep.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
		}))
	if err != nil {
		return "", err
	}
	return status, nil
}

// checkStatus maps a script status to an error for the given locator.
func checkStatus(status string, loc schemas.Locator) error {
	switch status {
	case statusOK:
		return nil
	case statusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, loc)
	case statusNoOption:
		return fmt.Errorf("select %s has no matching option", loc)
	default:
		return fmt.Errorf("unexpected page script status %q for %s", status, loc)
	}
}

// Navigate loads a URL and waits for the document body plus the configured
// post-load settle window, giving client-side frameworks time to render the
// form before a snapshot is taken.
func (p *Page) Navigate(ctx context.Context, url string) error {
	timeout := p.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	err := p.run(ctx, timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if p.cfg.PostLoadWait > 0 {
		if err := p.Sleep(ctx, p.cfg.PostLoadWait); err != nil {
			return err
		}
	}
	p.logger.Debug("Navigation complete.", zap.String("url", url))
	return nil
}

// URL reports the tab's current location.
func (p *Page) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, defaultOpTimeout, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Snapshot parses the page's current outer HTML.
func (p *Page) Snapshot(ctx context.Context) (*html.Node, error) {
	var raw string
	err := p.run(ctx, defaultOpTimeout, chromedp.OuterHTML("html", &raw, chromedp.ByQuery))
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return doc, nil
}

func (p *Page) SetNativeValue(ctx context.Context, loc schemas.Locator, value string) error {
	script, err := setNativeValueScript(loc, value)
	if err != nil {
		return err
	}
	status, err := p.evalStatus(ctx, script)
	if err != nil {
		return err
	}
	return checkStatus(status, loc)
}

func (p *Page) SetRichText(ctx context.Context, loc schemas.Locator, value string) error {
	script, err := setRichTextScript(loc, value)
	if err != nil {
		return err
	}
	status, err := p.evalStatus(ctx, script)
	if err != nil {
		return err
	}
	return checkStatus(status, loc)
}

func (p *Page) SetEditorValue(ctx context.Context, loc schemas.Locator, value string) (bool, error) {
	script, err := setEditorValueScript(loc, value)
	if err != nil {
		return false, err
	}
	status, err := p.evalStatus(ctx, script)
	if err != nil {
		return false, err
	}
	if status == statusNoEditor {
		return false, nil
	}
	return true, checkStatus(status, loc)
}

func (p *Page) SelectOption(ctx context.Context, loc schemas.Locator, value string) error {
	script, err := selectOptionScript(loc, value)
	if err != nil {
		return err
	}
	status, err := p.evalStatus(ctx, script)
	if err != nil {
		return err
	}
	return checkStatus(status, loc)
}

func (p *Page) Click(ctx context.Context, loc schemas.Locator) error {
	script, err := clickScript(loc)
	if err != nil {
		return err
	}
	status, err := p.evalStatus(ctx, script)
	if err != nil {
		return err
	}
	return checkStatus(status, loc)
}

// DispatchChange fires a change event on the element without altering it.
// Composite dropdowns commit their selection off this event on the trigger.
func (p *Page) DispatchChange(ctx context.Context, loc schemas.Locator) error {
	script, err := dispatchChangeScript(loc)
	if err != nil {
		return err
	}
	status, err := p.evalStatus(ctx, script)
	if err != nil {
		return err
	}
	return checkStatus(status, loc)
}

// PressEscape sends a raw Escape key pair over CDP. Synthetic keyboard
// events from scripts are untrusted and many dropdown libraries ignore them.
func (p *Page) PressEscape(ctx context.Context) error {
	return p.run(ctx, defaultOpTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		down := input.DispatchKeyEvent(input.KeyDown).
			WithKey("Escape").
			WithCode("Escape").
			WithWindowsVirtualKeyCode(27)
		if err := down.Do(ctx); err != nil {
			return err
		}
		up := input.DispatchKeyEvent(input.KeyUp).
			WithKey("Escape").
			WithCode("Escape").
			WithWindowsVirtualKeyCode(27)
		return up.Do(ctx)
	}))
}

// SetFiles stages the payloads on disk and attaches them to the file input.
// The staged files stay on disk until the page closes because Chrome reads
// the paths lazily.
func (p *Page) SetFiles(ctx context.Context, loc schemas.Locator, files []valuestore.FilePayload) error {
	if len(files) == 0 {
		return nil
	}
	xp, err := locator.ToXPath(loc)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "formscout-upload-*")
	if err != nil {
		return fmt.Errorf("stage upload files: %w", err)
	}
	p.uploadDirs = append(p.uploadDirs, dir)

	paths := make([]string, 0, len(files))
	for i, f := range files {
		name := filepath.Base(f.Name)
		if name == "" || name == "." || name == string(filepath.Separator) {
			name = fmt.Sprintf("upload-%d", i)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, f.Data, 0o600); err != nil {
			return fmt.Errorf("stage upload file %s: %w", name, err)
		}
		paths = append(paths, path)
	}

	err = p.run(ctx, defaultOpTimeout, chromedp.SetUploadFiles(xp, paths, chromedp.BySearch))
	if err != nil {
		return fmt.Errorf("attach files to %s: %w", loc, err)
	}
	return nil
}

// Sleep pauses without blocking past cancellation of either the caller's
// context or the tab itself.
func (p *Page) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}
