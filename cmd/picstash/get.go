package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"picstash/internal/api"
	"picstash/internal/config"
)

func newGetCmd(cfg *config.Config) *cobra.Command {
	var (
		outPath   string
		thumbnail bool
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Download an asset's image or thumbnail",
		Args:  requireExactlyArgs(1, "asset id is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outPath) == "" {
				return fmt.Errorf("--output is required")
			}
			if !force {
				if _, err := os.Stat(outPath); err == nil {
					return fmt.Errorf("output file exists (use --force to overwrite)")
				}
			}

			return withClient(cfg, func(client *api.Client) error {
				f, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
				if err != nil {
					return err
				}
				defer f.Close()

				var mimeType string
				if thumbnail {
					mimeType, err = client.DownloadThumbnail(cmd.Context(), args[0], f)
				} else {
					mimeType, err = client.DownloadImage(cmd.Context(), args[0], f)
				}
				if err != nil {
					return err
				}
				return writePlain("%s (%s)\n", outPath, mimeType)
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "output path")
	cmd.Flags().BoolVar(&thumbnail, "thumbnail", false, "download the thumbnail instead of the full image")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite output path if it exists")
	return cmd
}
