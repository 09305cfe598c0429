package main

import (
	"github.com/spf13/cobra"

	"picstash/internal/api"
	"picstash/internal/config"
)

func newShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one asset record",
		Args:  requireExactlyArgs(1, "asset id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				asset, err := client.GetAsset(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeAsset(asset, *jsonOutput)
			})
		},
	}
}
