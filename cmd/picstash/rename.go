package main

import (
	"github.com/spf13/cobra"

	"picstash/internal/api"
	"picstash/internal/config"
)

func newRenameCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Change an asset's display name",
		Args:  requireExactlyArgs(2, "asset id and name are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				asset, err := client.RenameAsset(cmd.Context(), args[0], api.AssetRenameRequest{DisplayName: args[1]})
				if err != nil {
					return err
				}
				return writeAsset(asset, *jsonOutput)
			})
		},
	}
}
