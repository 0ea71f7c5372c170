package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/formscout/formscout/api/schemas"
)

func newFillCmd() *cobra.Command {
	var (
		profile string
		field   string
		useAI   bool
	)

	fillCmd := &cobra.Command{
		Use:   "fill <url>",
		Short: "Fill a page's recognized fields from a stored profile",
		Long: `Fill navigates to the page, recognizes its form fields, and writes the
selected profile's values into them. With --field only that one standard
field is filled. The command never submits the form; when a CAPTCHA is
detected the result flags it and filling stops there.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if profile == "" {
				profile = appConfig.Profiles().Default
			}

			rt, err := newRuntime(ctx, appConfig)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.engine.Navigate(ctx, args[0]); err != nil {
				return err
			}
			rec, err := rt.engine.Recognize(ctx, useAI)
			if err != nil {
				return err
			}
			if rec.Status != schemas.StatusSuccess {
				return printJSON(rec)
			}

			var result schemas.FillResult
			if field != "" {
				std, err := schemas.ParseStandardField(field)
				if err != nil {
					return err
				}
				result, err = rt.engine.FillOne(ctx, profile, std)
				if err != nil {
					return err
				}
			} else {
				result, err = rt.engine.Fill(ctx, profile)
				if err != nil {
					return err
				}
			}

			if result.HasCaptcha {
				rt.logger.Warn("Human verification detected; complete it and submit manually.")
			}
			return printJSON(result)
		},
	}

	fillCmd.Flags().StringVarP(&profile, "profile", "p", "", "profile id to fill from (defaults to the configured default)")
	fillCmd.Flags().StringVar(&field, "field", "", fmt.Sprintf("fill a single standard field, one of %v", schemas.AllStandardFields()))
	fillCmd.Flags().BoolVar(&useAI, "use-ai", false, "consult the configured AI classifier before the keyword matcher")
	return fillCmd
}

func init() {
	rootCmd.AddCommand(newFillCmd())
}
