package cmd

import (
	"github.com/spf13/cobra"

	"github.com/formscout/formscout/internal/observability"
	"github.com/formscout/formscout/internal/valuestore"
)

func newProfilesCmd() *cobra.Command {
	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manage stored site profiles",
	}
	profilesCmd.AddCommand(newProfilesListCmd())
	return profilesCmd
}

func newProfilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the stored site profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := valuestore.NewFileStore(appConfig.Profiles().Dir, observability.GetLogger())
			if err != nil {
				return err
			}
			records, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			type summary struct {
				ID     string `json:"id"`
				Name   string `json:"name,omitempty"`
				Fields int    `json:"fields"`
				Images int    `json:"images"`
			}
			out := make([]summary, 0, len(records))
			for _, r := range records {
				out = append(out, summary{
					ID:     r.ID,
					Name:   r.Name,
					Fields: len(r.Values),
					Images: len(r.Images),
				})
			}
			return printJSON(out)
		},
	}
}

func init() {
	rootCmd.AddCommand(newProfilesCmd())
}
