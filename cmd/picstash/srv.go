package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"picstash/internal/blobstore"
	"picstash/internal/config"
	"picstash/internal/server"
	"picstash/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the picstash API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}
			if cfg.DataDir == "" {
				return fmt.Errorf("data dir is required")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			objects, err := blobstore.NewLocalStore(cfg.DataDir)
			if err != nil {
				return err
			}

			srv := server.New(addr, st, objects, logger, server.Options{
				Version:            version,
				DBPath:             cfg.DBPath,
				DataDir:            cfg.DataDir,
				APIToken:           cfg.APIToken,
				MaxUploadBytes:     cfg.Ingest.MaxUploadBytes,
				MultipartMaxMemory: cfg.Ingest.MultipartMaxMemory,
				MaxDimension:       cfg.Ingest.MaxDimension,
				ThumbnailMaxEdge:   cfg.Ingest.ThumbnailMaxEdge,
				AllowDegenerate:    cfg.Ingest.AllowDegenerate,
			})
			return srv.ListenAndServe()
		},
	}
}
