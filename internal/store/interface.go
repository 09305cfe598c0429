package store

import (
	"context"
	"errors"
	"time"

	"picstash/internal/models"
)

// ErrNotFound is returned by mutations targeting an asset id with no record.
var ErrNotFound = errors.New("asset record not found")

// ErrStaleRecord is returned by conditional updates when the record changed
// (or disappeared) since the caller read it.
var ErrStaleRecord = errors.New("asset record changed concurrently")

// AssetImageUpdate carries the metadata recomputed by a successful replace.
// An empty ThumbnailPath clears the column; absence of a thumbnail is a
// valid, recoverable state.
type AssetImageUpdate struct {
	CanonicalPath string
	ThumbnailPath string
	ByteSize      int64
	MIMEType      string
	Width         int
	Height        int
	UpdatedAt     time.Time
}

// AssetStore is the metadata persistence surface for asset records. Record
// lifecycle is coordinated with object-store writes by AssetService; this
// layer only guarantees each mutation is applied atomically.
type AssetStore interface {
	CreateAsset(ctx context.Context, asset *models.Asset) error
	GetAsset(ctx context.Context, id string) (*models.Asset, error)
	AssetExists(ctx context.Context, id string) (bool, error)
	ListAssetsByOwner(ctx context.Context, ownerID string) ([]models.Asset, error)
	UpdateAssetImage(ctx context.Context, id string, upd AssetImageUpdate) error
	UpdateAssetThumbnail(ctx context.Context, id, thumbnailPath string, updatedAt time.Time) error
	RenameAsset(ctx context.Context, id, displayName string, updatedAt time.Time) error
	DeleteAsset(ctx context.Context, id string) error
}

var _ AssetStore = (*Store)(nil)
