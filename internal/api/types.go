package api

import "time"

// ErrorResponse is the JSON error body returned by the API.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// InfoResponse describes the running server.
type InfoResponse struct {
	Version string `json:"version"`
	DBPath  string `json:"db_path"`
	DataDir string `json:"data_dir"`
}

// AssetResponse is the wire form of one asset record. CacheToken changes on
// every successful create/replace; clients append it as a query parameter so
// caches observe new bytes immediately.
type AssetResponse struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	DisplayName  string    `json:"display_name"`
	ByteSize     int64     `json:"byte_size"`
	MIMEType     string    `json:"mime_type"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	HasThumbnail bool      `json:"has_thumbnail"`
	CacheToken   string    `json:"cache_token"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AssetCreateRequest is the JSON upload body. Image is either a full
// data-URI or a bare base64 payload; MIMEType is the advisory hint for the
// bare form.
type AssetCreateRequest struct {
	DisplayName string `json:"display_name"`
	Image       string `json:"image"`
	MIMEType    string `json:"mime_type,omitempty"`
}

// AssetReplaceRequest is the JSON body for in-place pixel replacement.
type AssetReplaceRequest struct {
	Image    string `json:"image"`
	MIMEType string `json:"mime_type,omitempty"`
}

// AssetRenameRequest updates the cosmetic display name only.
type AssetRenameRequest struct {
	DisplayName string `json:"display_name"`
}
