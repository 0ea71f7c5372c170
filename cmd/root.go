package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/formscout/formscout/internal/config"
	"github.com/formscout/formscout/internal/observability"
)

var (
	cfgFile   string
	appConfig *config.Config
)

// rootCmd is the base command; every subcommand hangs off it.
var rootCmd = &cobra.Command{
	Use:     "formscout",
	Short:   "Formscout recognizes submission-form fields and fills them from stored profiles.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initializeConfig(); err != nil {
			return err
		}

		cfg, err := config.NewConfigFromViper(viper.GetViper())
		if err != nil {
			// Fall back to a minimal logger so the failure is visible.
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "formscout"})
			return fmt.Errorf("failed to load config: %w", err)
		}
		applyGlobalFlags(cmd, cfg)
		appConfig = cfg

		observability.InitializeLogger(cfg.Logger())
		observability.GetLogger().Debug("Starting formscout", zap.String("version", Version))
		return nil
	},
}

// Execute runs the root command with a signal-aware context.
func Execute(ctx context.Context) error {
	defer observability.Sync()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().Bool("headful", false, "run the browser with a visible window")
	rootCmd.PersistentFlags().Bool("debug-browser", false, "log the DevTools protocol traffic")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// applyGlobalFlags lets explicit command-line flags override file and env
// settings.
func applyGlobalFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Root().PersistentFlags()
	if flags.Changed("headful") {
		if headful, err := flags.GetBool("headful"); err == nil && headful {
			cfg.SetBrowserHeadless(false)
		}
	}
	if flags.Changed("debug-browser") {
		if dbg, err := flags.GetBool("debug-browser"); err == nil {
			cfg.SetBrowserDebug(dbg)
		}
	}
}

// initializeConfig reads the config file and environment variables.
func initializeConfig() error {
	v := viper.GetViper()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.formscout")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("FORMSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and env vars carry the day.
	}
	return nil
}
