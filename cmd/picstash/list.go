package main

import (
	"github.com/spf13/cobra"

	"picstash/internal/api"
	"picstash/internal/config"
)

func newListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "list <owner>",
		Short: "List an owner's photos, newest first",
		Args:  requireExactlyArgs(1, "owner is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				assets, err := client.ListAssets(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(assets)
				}
				return writeAssetList(assets)
			})
		},
	}
}
