package main

import (
	"github.com/spf13/cobra"

	"picstash/internal/api"
	"picstash/internal/config"
)

func newRemoveCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete an asset and its stored images",
		Args:    requireExactlyArgs(1, "asset id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				if err := client.DeleteAsset(cmd.Context(), args[0]); err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(map[string]string{"deleted": args[0]})
				}
				return writePlain("%s\n", args[0])
			})
		},
	}
}
