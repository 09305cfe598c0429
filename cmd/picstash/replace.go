package main

import (
	"encoding/base64"
	"os"

	"github.com/spf13/cobra"

	"picstash/internal/api"
	"picstash/internal/config"
)

func newReplaceCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "replace <id> <path>",
		Short: "Replace an asset's image, keeping its id",
		Args:  requireExactlyArgs(2, "asset id and path are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}

			req := api.AssetReplaceRequest{
				Image: base64.StdEncoding.EncodeToString(data),
			}
			return withClient(cfg, func(client *api.Client) error {
				asset, err := client.ReplaceAssetImage(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				return writeAsset(asset, *jsonOutput)
			})
		},
	}
}
