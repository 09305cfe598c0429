package main

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"picstash/internal/api"
	"picstash/internal/config"
)

type uploadOptions struct {
	name     string
	dataURI  bool
	manifest string
}

// uploadManifest is the YAML batch format accepted by upload --manifest.
type uploadManifest struct {
	Assets []uploadManifestEntry `yaml:"assets"`
}

type uploadManifestEntry struct {
	Path  string `yaml:"path"`
	Name  string `yaml:"name"`
	Owner string `yaml:"owner"`
}

func newUploadCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	opts := &uploadOptions{}
	cmd := &cobra.Command{
		Use:   "upload <owner> [path]",
		Short: "Upload a photo, or a batch of photos from a manifest",
		Args:  requireAtLeastArgs(1, "owner is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner := args[0]

			if strings.TrimSpace(opts.manifest) != "" {
				if len(args) > 1 {
					return fmt.Errorf("path and --manifest are mutually exclusive")
				}
				return runManifestUpload(cmd, cfg, owner, opts.manifest, *jsonOutput)
			}

			if len(args) < 2 {
				return fmt.Errorf("path is required unless --manifest is given")
			}
			path := args[1]
			name := chooseFirst(opts.name, filepath.Base(path))

			return withClient(cfg, func(client *api.Client) error {
				asset, err := uploadOne(cmd, client, owner, path, name, opts.dataURI)
				if err != nil {
					return err
				}
				return writeAsset(asset, *jsonOutput)
			})
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "display name (defaults to the file name)")
	cmd.Flags().BoolVar(&opts.dataURI, "data-uri", false, "send the image as a JSON data-URI instead of multipart")
	cmd.Flags().StringVar(&opts.manifest, "manifest", "", "YAML manifest of files to upload")
	return cmd
}

func uploadOne(cmd *cobra.Command, client *api.Client, owner, path, name string, asDataURI bool) (api.AssetResponse, error) {
	if asDataURI {
		data, err := os.ReadFile(path)
		if err != nil {
			return api.AssetResponse{}, err
		}
		req := api.AssetCreateRequest{
			DisplayName: name,
			Image:       dataURIFor(path, data),
		}
		return client.CreateAssetJSON(cmd.Context(), owner, req)
	}

	file, err := os.Open(path)
	if err != nil {
		return api.AssetResponse{}, err
	}
	defer file.Close()
	return client.CreateAsset(cmd.Context(), owner, name, file)
}

func runManifestUpload(cmd *cobra.Command, cfg *config.Config, defaultOwner, manifestPath string, jsonOutput bool) error {
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return err
	}

	manifest, err := parseUploadManifest(raw)
	if err != nil {
		return fmt.Errorf("parse manifest %s: %w", manifestPath, err)
	}

	// Relative manifest paths resolve against the manifest's directory.
	baseDir := filepath.Dir(manifestPath)

	return withClient(cfg, func(client *api.Client) error {
		uploaded := make([]api.AssetResponse, 0, len(manifest.Assets))
		for _, entry := range manifest.Assets {
			path := entry.Path
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			owner := chooseFirst(entry.Owner, defaultOwner)
			name := chooseFirst(entry.Name, filepath.Base(entry.Path))

			asset, err := uploadOne(cmd, client, owner, path, name, false)
			if err != nil {
				return fmt.Errorf("upload %s: %w", entry.Path, err)
			}
			uploaded = append(uploaded, asset)
		}

		if jsonOutput {
			return writeJSON(uploaded)
		}
		return writeAssetList(uploaded)
	})
}

func parseUploadManifest(raw []byte) (*uploadManifest, error) {
	var manifest uploadManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, err
	}
	if len(manifest.Assets) == 0 {
		return nil, fmt.Errorf("manifest lists no assets")
	}
	for i, entry := range manifest.Assets {
		if strings.TrimSpace(entry.Path) == "" {
			return nil, fmt.Errorf("manifest entry %d has no path", i)
		}
	}
	return &manifest, nil
}

// dataURIFor builds a base64 data-URI, guessing the media type from the file
// extension. The server sniffs the real type; the hint is advisory.
func dataURIFor(path string, data []byte) string {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
