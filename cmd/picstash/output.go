package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"picstash/internal/api"
	"picstash/internal/format"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeAssetList(assets []api.AssetResponse) error {
	for _, asset := range assets {
		if err := writePlain("%s\n", formatAssetLine(asset)); err != nil {
			return err
		}
	}
	return nil
}

func writeAssetDetail(asset api.AssetResponse) error {
	lines := []string{
		fmt.Sprintf("id: %s", asset.ID),
		fmt.Sprintf("owner_id: %s", asset.OwnerID),
		fmt.Sprintf("display_name: %s", asset.DisplayName),
		fmt.Sprintf("mime_type: %s", asset.MIMEType),
		fmt.Sprintf("dimensions: %dx%d", asset.Width, asset.Height),
		fmt.Sprintf("byte_size: %d", asset.ByteSize),
		fmt.Sprintf("has_thumbnail: %t", asset.HasThumbnail),
		fmt.Sprintf("cache_token: %s", asset.CacheToken),
		fmt.Sprintf("created_at: %s", formatTime(asset.CreatedAt)),
		fmt.Sprintf("updated_at: %s", formatTime(asset.UpdatedAt)),
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writeAsset(asset api.AssetResponse, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(asset)
	}
	return writeAssetDetail(asset)
}

func formatAssetLine(asset api.AssetResponse) string {
	return fmt.Sprintf("%s %dx%d %s - %s", asset.ID, asset.Width, asset.Height, asset.MIMEType, asset.DisplayName)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
