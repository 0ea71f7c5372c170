package cmd

import (
	"github.com/spf13/cobra"
)

func newDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <url>",
		Short: "Report whether a page carries a fillable form and what controls it has",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx, appConfig)
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.engine.Navigate(ctx, args[0]); err != nil {
				return err
			}
			result, err := rt.engine.Detect(ctx)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
}

func init() {
	rootCmd.AddCommand(newDetectCmd())
}
