package cmd

import (
	"github.com/spf13/cobra"
)

func newRecognizeCmd() *cobra.Command {
	var useAI bool

	recognizeCmd := &cobra.Command{
		Use:   "recognize <url>",
		Short: "Map a page's form controls to standard submission fields",
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
			result, err := rt.engine.Recognize(ctx, useAI)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	recognizeCmd.Flags().BoolVar(&useAI, "use-ai", false,
		"consult the configured AI classifier before the keyword matcher")
	return recognizeCmd
}

func init() {
	rootCmd.AddCommand(newRecognizeCmd())
}
