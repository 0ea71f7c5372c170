package cmd

import (
	"context"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/formscout/formscout/internal/browser"
	"github.com/formscout/formscout/internal/classifier"
	"github.com/formscout/formscout/internal/config"
	"github.com/formscout/formscout/internal/engine"
	"github.com/formscout/formscout/internal/llmclient"
	"github.com/formscout/formscout/internal/mappingcache"
	"github.com/formscout/formscout/internal/matcher"
	"github.com/formscout/formscout/internal/observability"
	"github.com/formscout/formscout/internal/valuestore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// runtime bundles the long-lived pieces a page-driving command needs.
type runtime struct {
	browser *browser.Browser
	page    *browser.Page
	engine  *engine.Engine
	values  *valuestore.FileStore
	logger  *zap.Logger
}

// newRuntime assembles the engine and its collaborators, launching the
// browser last so a config problem never leaves a Chrome process behind.
func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	logger := observability.GetLogger()

	store, err := mappingcache.NewFileStore(cfg.Cache().Dir)
	if err != nil {
		return nil, fmt.Errorf("open mapping cache: %w", err)
	}
	cache, err := mappingcache.New(store, cfg.Cache().MaxEntries, logger)
	if err != nil {
		return nil, err
	}

	values, err := valuestore.NewFileStore(cfg.Profiles().Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}

	var cls engine.FieldClassifier
	if cfg.Classifier().Enabled {
		client, err := llmclient.NewClient(cfg.Classifier(), logger)
		if err != nil {
			return nil, fmt.Errorf("build classifier client: %w", err)
		}
		cls, err = classifier.New(client, cfg.Classifier(), logger)
		if err != nil {
			return nil, err
		}
	}

	b, err := browser.New(ctx, cfg.Browser(), logger)
	if err != nil {
		return nil, err
	}
	page := b.NewPage()

	eng, err := engine.New(engine.Options{
		Page:       page,
		Matcher:    matcher.New(cfg.Matcher().MinScore, cfg.Matcher().ScoreCeiling, logger),
		Classifier: cls,
		Cache:      cache,
		Values:     values,
		FillConfig: cfg.Fill(),
		Logger:     logger,
	})
	if err != nil {
		b.Close()
		return nil, err
	}

	return &runtime{browser: b, page: page, engine: eng, values: values, logger: logger}, nil
}

func (r *runtime) Close() {
	r.page.Close()
	r.browser.Close()
}

// printJSON writes a result to stdout for consumption by callers and shells.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}
