package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)

	// Owner-scoped collection.
	mux.HandleFunc("POST /v1/owners/{owner}/assets", s.handleCreateAsset)
	mux.HandleFunc("GET /v1/owners/{owner}/assets", s.handleListAssets)

	// Single asset record.
	mux.HandleFunc("GET /v1/assets/{id}", s.handleGetAsset)
	mux.HandleFunc("PATCH /v1/assets/{id}", s.handleRenameAsset)
	mux.HandleFunc("DELETE /v1/assets/{id}", s.handleDeleteAsset)

	// Pixel content.
	mux.HandleFunc("PUT /v1/assets/{id}/image", s.handleReplaceAssetImage)
	mux.HandleFunc("GET /v1/assets/{id}/image", s.handleGetImage)
	mux.HandleFunc("GET /v1/assets/{id}/thumbnail", s.handleGetThumbnail)

	return s.withRequestLogging(s.withAuth(mux))
}
