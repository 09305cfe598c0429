package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"picstash/internal/models"
)

const assetColumns = "id, owner_id, display_name, canonical_path, thumbnail_path, byte_size, mime_type, width, height, created_at, updated_at"

// CreateAsset inserts one asset record.
func (s *Store) CreateAsset(ctx context.Context, asset *models.Asset) error {
	if asset == nil {
		return fmt.Errorf("asset is required")
	}

	now := time.Now().UTC()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}
	if asset.UpdatedAt.IsZero() {
		asset.UpdatedAt = asset.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO assets (`+assetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.ID,
		asset.OwnerID,
		asset.DisplayName,
		asset.CanonicalPath,
		nullableString(asset.ThumbnailPath),
		asset.ByteSize,
		asset.MIMEType,
		asset.Width,
		asset.Height,
		formatTime(asset.CreatedAt),
		formatTime(asset.UpdatedAt),
	)
	return err
}

// GetAsset returns one asset record, or nil when the id is unknown.
func (s *Store) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = ?`, id)
	return scanAsset(row)
}

// AssetExists checks whether an asset record exists by id.
func (s *Store) AssetExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM assets WHERE id = ? LIMIT 1", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListAssetsByOwner lists an owner's assets newest-first.
func (s *Store) ListAssetsByOwner(ctx context.Context, ownerID string) ([]models.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+assetColumns+` FROM assets WHERE owner_id = ? ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := []models.Asset{}
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		if asset == nil {
			continue
		}
		assets = append(assets, *asset)
	}
	return assets, rows.Err()
}

// UpdateAssetImage swaps the record to the new locators and metadata after
// a replace. The caller has already written the new bytes; old locators are
// deleted by the caller only after this update commits.
func (s *Store) UpdateAssetImage(ctx context.Context, id string, upd AssetImageUpdate) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE assets
		SET canonical_path = ?, thumbnail_path = ?, byte_size = ?, mime_type = ?, width = ?, height = ?, updated_at = ?
		WHERE id = ?`,
		upd.CanonicalPath,
		nullableString(upd.ThumbnailPath),
		upd.ByteSize,
		upd.MIMEType,
		upd.Width,
		upd.Height,
		formatTime(upd.UpdatedAt),
		id,
	)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// UpdateAssetThumbnail repairs only the thumbnail locator, and only while
// the record still carries the updated_at the repair was derived from. A
// replace or delete that landed in between matches zero rows and the repair
// is reported stale instead of clobbering the newer image.
func (s *Store) UpdateAssetThumbnail(ctx context.Context, id, thumbnailPath string, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE assets SET thumbnail_path = ? WHERE id = ? AND updated_at = ?`,
		nullableString(thumbnailPath), id, formatTime(updatedAt))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrStaleRecord, id)
	}
	return nil
}

// RenameAsset updates the cosmetic display name.
func (s *Store) RenameAsset(ctx context.Context, id, displayName string, updatedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE assets SET display_name = ?, updated_at = ? WHERE id = ?`,
		displayName, formatTime(updatedAt), id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// DeleteAsset deletes one asset record.
func (s *Store) DeleteAsset(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM assets WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*models.Asset, error) {
	var (
		asset     models.Asset
		thumbnail sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(
		&asset.ID,
		&asset.OwnerID,
		&asset.DisplayName,
		&asset.CanonicalPath,
		&thumbnail,
		&asset.ByteSize,
		&asset.MIMEType,
		&asset.Width,
		&asset.Height,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	asset.ThumbnailPath = thumbnail.String
	if asset.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if asset.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &asset, nil
}

func nullableString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", raw, err)
	}
	return t.UTC(), nil
}
