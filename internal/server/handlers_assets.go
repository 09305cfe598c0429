package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"picstash/internal/api"
	"picstash/internal/models"
	"picstash/internal/pipeline"
)

// uploadFieldName is the multipart form field carrying the image bytes.
const uploadFieldName = "photo"

func toAssetResponse(asset *models.Asset) api.AssetResponse {
	return api.AssetResponse{
		ID:           asset.ID,
		OwnerID:      asset.OwnerID,
		DisplayName:  asset.DisplayName,
		ByteSize:     asset.ByteSize,
		MIMEType:     asset.MIMEType,
		Width:        asset.Width,
		Height:       asset.Height,
		HasThumbnail: asset.ThumbnailPath != "",
		CacheToken:   asset.CacheToken(),
		CreatedAt:    asset.CreatedAt,
		UpdatedAt:    asset.UpdatedAt,
	}
}

func isMultipart(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "multipart/form-data"
}

// readUploadEnvelope extracts the image payload from a request in either
// accepted shape: a multipart form with a "photo" file field, or a JSON body
// whose image string is a data-URI or bare base64. It returns the envelope
// plus the display name the request carried (multipart falls back to the
// uploaded filename).
func (s *Server) readUploadEnvelope(w http.ResponseWriter, r *http.Request) (pipeline.Envelope, string, bool) {
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
		if err := r.ParseMultipartForm(s.multipartMem); err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
			return pipeline.Envelope{}, "", false
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile(uploadFieldName)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest,
				badRequestCode(fmt.Errorf("multipart field %q is required", uploadFieldName), ErrCodeMissingRequired))
			return pipeline.Envelope{}, "", false
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
			return pipeline.Envelope{}, "", false
		}

		name := strings.TrimSpace(r.FormValue("display_name"))
		if name == "" && header != nil {
			name = header.Filename
		}
		return pipeline.RawBytes(data, header.Header.Get("Content-Type")), name, true
	}

	var req api.AssetCreateRequest
	if !s.decodeJSONEnvelopeReq(w, r, &req) {
		return pipeline.Envelope{}, "", false
	}
	return envelopeFromString(req.Image, req.MIMEType), req.DisplayName, true
}

// envelopeFromString classifies a JSON image payload by shape. Anything with
// the data-URI scheme prefix is parsed as one; everything else is treated as
// bare base64 with the advisory media type hint.
func envelopeFromString(image, mimeHint string) pipeline.Envelope {
	if strings.HasPrefix(strings.TrimSpace(image), "data:") {
		return pipeline.DataURI(image)
	}
	return pipeline.BareBase64(image, mimeHint)
}

func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	if !s.acquireIngestSlot(w, r) {
		return
	}
	defer s.releaseIngestSlot()

	owner := r.PathValue("owner")
	env, name, ok := s.readUploadEnvelope(w, r)
	if !ok {
		return
	}

	asset, err := s.service.CreateAsset(r.Context(), owner, name, env)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toAssetResponse(asset))
}

func (s *Server) handleListAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.service.ListAssetsByOwner(r.Context(), r.PathValue("owner"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	out := make([]api.AssetResponse, 0, len(assets))
	for i := range assets {
		out = append(out, toAssetResponse(&assets[i]))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	asset, err := s.service.GetAsset(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAssetResponse(asset))
}

func (s *Server) handleRenameAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.AssetRenameRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	asset, err := s.service.RenameAsset(r.Context(), id, req.DisplayName)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAssetResponse(asset))
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	if err := s.service.DeleteAsset(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReplaceAssetImage(w http.ResponseWriter, r *http.Request) {
	if !s.acquireIngestSlot(w, r) {
		return
	}
	defer s.releaseIngestSlot()

	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}

	var env pipeline.Envelope
	if isMultipart(r) {
		var ready bool
		env, _, ready = s.readUploadEnvelope(w, r)
		if !ready {
			return
		}
	} else {
		var req api.AssetReplaceRequest
		if !s.decodeJSONEnvelopeReq(w, r, &req) {
			return
		}
		env = envelopeFromString(req.Image, req.MIMEType)
	}

	asset, err := s.service.ReplaceAssetImage(r.Context(), id, env)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAssetResponse(asset))
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	data, mimeType, err := s.service.GetCanonicalImage(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeImage(w, r, data, mimeType)
}

func (s *Server) handleGetThumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	data, mimeType, err := s.service.GetThumbnailImage(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeImage(w, r, data, mimeType)
}

// writeImage serves raw image bytes. Responses are marked immutable: every
// replace moves the cache token, so a given URL+token pair always names the
// same bytes.
func (s *Server) writeImage(w http.ResponseWriter, r *http.Request, data []byte, mimeType string) {
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if r.URL.Query().Get("v") != "" {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	} else {
		w.Header().Set("Cache-Control", "no-cache")
	}
	if _, err := w.Write(data); err != nil && !errors.Is(err, http.ErrBodyNotAllowed) {
		s.log().Debug("write image response", "error", err)
	}
}
