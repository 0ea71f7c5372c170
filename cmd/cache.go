package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/formscout/formscout/internal/mappingcache"
	"github.com/formscout/formscout/internal/observability"
)

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached page-to-field mappings",
	}
	cacheCmd.AddCommand(newCacheClearCmd())
	return cacheCmd
}

func newCacheClearCmd() *cobra.Command {
	var all bool

	clearCmd := &cobra.Command{
		Use:   "clear [url]",
		Short: "Drop the cached mapping for a page, or every cached mapping with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			if !all && len(args) == 0 {
				return errors.New("provide a page url or pass --all")
			}

			store, err := mappingcache.NewFileStore(appConfig.Cache().Dir)
			if err != nil {
				return err
			}
			cache, err := mappingcache.New(store, appConfig.Cache().MaxEntries, logger)
			if err != nil {
				return err
			}

			if all {
				if err := cache.ClearAll(ctx); err != nil {
					return err
				}
				logger.Info("Cleared all cached mappings.")
				return nil
			}

			key := mappingcache.PageKey(args[0])
			if err := cache.Clear(ctx, key); err != nil {
				return err
			}
			logger.Info("Cleared cached mapping.", zap.String("pageKey", key))
			return nil
		},
	}

	clearCmd.Flags().BoolVar(&all, "all", false, "clear every cached mapping")
	return clearCmd
}

func init() {
	rootCmd.AddCommand(newCacheCmd())
}
