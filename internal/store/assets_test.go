package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"picstash/internal/models"
)

func newStoreForTest(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "picstash.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func testAsset(id, owner string) *models.Asset {
	now := time.Now().UTC()
	return &models.Asset{
		ID:            id,
		OwnerID:       owner,
		DisplayName:   "holiday.jpg",
		CanonicalPath: owner + "/originals/" + id + ".jpg",
		ThumbnailPath: owner + "/thumbnails/" + id + ".jpg",
		ByteSize:      1234,
		MIMEType:      "image/jpeg",
		Width:         800,
		Height:        600,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestAssetCRUD(t *testing.T) {
	st := newStoreForTest(t)
	ctx := context.Background()

	asset := testAsset("ph-aaa111", "owner-1")
	if err := st.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected asset")
	}
	if got.OwnerID != "owner-1" || got.CanonicalPath != asset.CanonicalPath || got.ByteSize != 1234 {
		t.Fatalf("unexpected record: %#v", got)
	}
	if got.Width != 800 || got.Height != 600 {
		t.Fatalf("unexpected dimensions: %dx%d", got.Width, got.Height)
	}

	exists, err := st.AssetExists(ctx, asset.ID)
	if err != nil || !exists {
		t.Fatalf("exists = %v, %v; want true", exists, err)
	}

	if err := st.DeleteAsset(ctx, asset.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, err := st.GetAsset(ctx, asset.ID); err != nil || got != nil {
		t.Fatalf("expected nil after delete, got %#v, %v", got, err)
	}
	if err := st.DeleteAsset(ctx, asset.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAssetsByOwnerNewestFirst(t *testing.T) {
	st := newStoreForTest(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"ph-old111", "ph-mid111", "ph-new111"} {
		asset := testAsset(id, "owner-1")
		asset.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		asset.UpdatedAt = asset.CreatedAt
		if err := st.CreateAsset(ctx, asset); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	other := testAsset("ph-other1", "owner-2")
	if err := st.CreateAsset(ctx, other); err != nil {
		t.Fatalf("create other: %v", err)
	}

	assets, err := st.ListAssetsByOwner(ctx, "owner-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(assets) != 3 {
		t.Fatalf("expected 3 assets, got %d", len(assets))
	}
	if assets[0].ID != "ph-new111" || assets[2].ID != "ph-old111" {
		t.Fatalf("unexpected order: %s, %s, %s", assets[0].ID, assets[1].ID, assets[2].ID)
	}

	empty, err := st.ListAssetsByOwner(ctx, "owner-3")
	if err != nil {
		t.Fatalf("list empty owner: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected no assets, got %d", len(empty))
	}
}

func TestUpdateAssetImageSwapsLocators(t *testing.T) {
	st := newStoreForTest(t)
	ctx := context.Background()

	asset := testAsset("ph-swap11", "owner-1")
	if err := st.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("create: %v", err)
	}

	later := asset.UpdatedAt.Add(time.Second)
	upd := AssetImageUpdate{
		CanonicalPath: "owner-1/originals/replacement.jpg",
		ThumbnailPath: "",
		ByteSize:      999,
		MIMEType:      "image/jpeg",
		Width:         400,
		Height:        300,
		UpdatedAt:     later,
	}
	if err := st.UpdateAssetImage(ctx, asset.ID, upd); err != nil {
		t.Fatalf("update image: %v", err)
	}

	got, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CanonicalPath != upd.CanonicalPath {
		t.Fatalf("canonical not swapped: %s", got.CanonicalPath)
	}
	if got.ThumbnailPath != "" {
		t.Fatalf("expected cleared thumbnail, got %q", got.ThumbnailPath)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatalf("updated_at did not advance: created=%v updated=%v", got.CreatedAt, got.UpdatedAt)
	}
	if got.ByteSize != 999 || got.Width != 400 || got.Height != 300 {
		t.Fatalf("metadata not recomputed: %#v", got)
	}

	if err := st.UpdateAssetImage(ctx, "ph-nope11", upd); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAssetThumbnailRepair(t *testing.T) {
	st := newStoreForTest(t)
	ctx := context.Background()

	asset := testAsset("ph-rep111", "owner-1")
	asset.ThumbnailPath = ""
	if err := st.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("create: %v", err)
	}

	repaired := "owner-1/thumbnails/regenerated.jpg"
	if err := st.UpdateAssetThumbnail(ctx, asset.ID, repaired, asset.UpdatedAt); err != nil {
		t.Fatalf("repair: %v", err)
	}

	got, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ThumbnailPath != repaired {
		t.Fatalf("thumbnail not repaired: %q", got.ThumbnailPath)
	}
	if got.CanonicalPath != asset.CanonicalPath {
		t.Fatalf("canonical must be untouched by repair: %q", got.CanonicalPath)
	}
	if !got.UpdatedAt.Equal(asset.UpdatedAt) {
		t.Fatalf("repair must not move updated_at: %v", got.UpdatedAt)
	}
}

func TestUpdateAssetThumbnailStaleRecord(t *testing.T) {
	st := newStoreForTest(t)
	ctx := context.Background()

	asset := testAsset("ph-sta111", "owner-1")
	if err := st.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("create: %v", err)
	}

	// updated_at moved since the caller read the record.
	err := st.UpdateAssetThumbnail(ctx, asset.ID, "owner-1/thumbnails/late.jpg", asset.UpdatedAt.Add(time.Second))
	if !errors.Is(err, ErrStaleRecord) {
		t.Fatalf("expected ErrStaleRecord, got %v", err)
	}
	got, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ThumbnailPath != asset.ThumbnailPath {
		t.Fatalf("stale repair must not apply: %q", got.ThumbnailPath)
	}

	// An unknown id is indistinguishable from a record deleted in between.
	err = st.UpdateAssetThumbnail(ctx, "ph-nope11", "owner-1/thumbnails/x.jpg", asset.UpdatedAt)
	if !errors.Is(err, ErrStaleRecord) {
		t.Fatalf("expected ErrStaleRecord for missing record, got %v", err)
	}
}

func TestRenameAsset(t *testing.T) {
	st := newStoreForTest(t)
	ctx := context.Background()

	asset := testAsset("ph-ren111", "owner-1")
	if err := st.CreateAsset(ctx, asset); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := st.RenameAsset(ctx, asset.ID, "renamed.jpg", asset.UpdatedAt.Add(time.Second)); err != nil {
		t.Fatalf("rename: %v", err)
	}
	got, err := st.GetAsset(ctx, asset.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DisplayName != "renamed.jpg" {
		t.Fatalf("rename not applied: %q", got.DisplayName)
	}
	if got.CanonicalPath != asset.CanonicalPath {
		t.Fatal("rename must not touch storage locators")
	}
}
