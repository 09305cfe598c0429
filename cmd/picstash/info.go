package main

import (
	"github.com/spf13/cobra"

	"picstash/internal/api"
	"picstash/internal/config"
)

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show server and storage info",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cfg, func(client *api.Client) error {
				resp, err := client.GetInfo(cmd.Context())
				if err != nil {
					return err
				}

				if *jsonOutput {
					return writeJSON(resp)
				}
				_ = writePlain("version: %s\n", resp.Version)
				_ = writePlain("db_path: %s\n", resp.DBPath)
				_ = writePlain("data_dir: %s\n", resp.DataDir)
				return nil
			})
		},
	}
}
