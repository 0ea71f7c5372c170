// Package browser drives a headless Chrome instance over the DevTools
// protocol and exposes per-tab primitives for snapshotting and mutating
// live pages.
package browser

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/formscout/formscout/internal/config"
)

// Browser owns a Chrome process. Tabs are created per operation through
// NewPage and share the one process.
type Browser struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// New launches Chrome with the configured flags. The returned Browser must
// be closed to reap the process.
func New(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Browser, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}
	for _, arg := range cfg.Args {
		name, value, ok := parseFlag(arg)
		if !ok {
			continue
		}
		if value == "" {
			opts = append(opts, chromedp.Flag(name, true))
		} else {
			opts = append(opts, chromedp.Flag(name, value))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)

	var ctxOpts []chromedp.ContextOption
	if cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(logger.Sugar().Debugf))
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	// Start the process eagerly so launch failures surface here instead of
	// on the first page operation.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	logger.Info("Browser launched.", zap.Bool("headless", cfg.Headless))
	return &Browser{
		cfg:           cfg,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// NewPage opens a fresh tab.
func (b *Browser) NewPage() *Page {
	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	return &Page{
		ctx:    tabCtx,
		cancel: tabCancel,
		cfg:    b.cfg,
		logger: b.logger,
	}
}

// Close shuts the browser process down.
func (b *Browser) Close() {
	b.browserCancel()
	b.allocCancel()
	b.logger.Debug("Browser closed.")
}

// parseFlag splits a raw Chrome argument such as "--lang=en-US" into a
// chromedp flag name and optional value.
func parseFlag(arg string) (name, value string, ok bool) {
	arg = strings.TrimSpace(arg)
	arg = strings.TrimLeft(arg, "-")
	if arg == "" {
		return "", "", false
	}
	if i := strings.IndexByte(arg, '='); i >= 0 {
		return arg[:i], arg[i+1:], true
	}
	return arg, "", true
}
