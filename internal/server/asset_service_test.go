package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"log/slog"
	"path/filepath"
	"testing"

	"picstash/internal/blobstore"
	"picstash/internal/models"
	"picstash/internal/pipeline"
	"picstash/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

func newServiceForTest(t *testing.T) (*AssetService, *store.Store, *blobstore.LocalStore) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "picstash.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	objects, err := blobstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("open blobstore: %v", err)
	}
	return NewAssetService(st, objects, testLogger()), st, objects
}

func jpegBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 11), B: 0x40, A: 0xFF})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func pngWithAlpha(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: 0x20, G: 0x80, B: 0xFF, A: uint8(x % 200)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func mustCreate(t *testing.T, svc *AssetService, owner, name string, data []byte) *models.Asset {
	t.Helper()
	asset, err := svc.CreateAsset(context.Background(), owner, name, pipeline.RawBytes(data, ""))
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	return asset
}

func errCodeOf(t *testing.T, err error) int {
	t.Helper()
	var apiErr apiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected apiError, got %T: %v", err, err)
	}
	return apiErr.errCode
}

func TestCreateAssetStoresCanonicalAndThumbnail(t *testing.T) {
	svc, _, objects := newServiceForTest(t)
	ctx := context.Background()

	asset := mustCreate(t, svc, "alice", "beach.png", jpegBytes(t, 640, 480))

	if asset.MIMEType != "image/jpeg" {
		t.Fatalf("mime = %q, want image/jpeg", asset.MIMEType)
	}
	if asset.Width != 640 || asset.Height != 480 {
		t.Fatalf("dimensions = %dx%d, want 640x480", asset.Width, asset.Height)
	}
	if asset.ThumbnailPath == "" {
		t.Fatal("expected a thumbnail locator")
	}

	canonical, err := objects.Read(ctx, asset.CanonicalPath)
	if err != nil {
		t.Fatalf("read canonical: %v", err)
	}
	if !pipeline.IsCanonicalHeader(canonical) {
		t.Fatal("canonical bytes are not jpeg")
	}
	if int64(len(canonical)) != asset.ByteSize {
		t.Fatalf("byte_size = %d, stored %d", asset.ByteSize, len(canonical))
	}

	thumb, err := objects.Read(ctx, asset.ThumbnailPath)
	if err != nil {
		t.Fatalf("read thumbnail: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("decode thumbnail config: %v", err)
	}
	if cfg.Width > 300 || cfg.Height > 300 {
		t.Fatalf("thumbnail %dx%d exceeds 300px", cfg.Width, cfg.Height)
	}
}

func TestCreateAssetFlattensAlphaToJPEG(t *testing.T) {
	svc, _, objects := newServiceForTest(t)

	asset := mustCreate(t, svc, "alice", "logo.png", pngWithAlpha(t, 400, 300))
	if asset.MIMEType != "image/jpeg" {
		t.Fatalf("mime = %q, want image/jpeg", asset.MIMEType)
	}
	data, err := objects.Read(context.Background(), asset.CanonicalPath)
	if err != nil {
		t.Fatalf("read canonical: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || format != "jpeg" {
		t.Fatalf("canonical decode: format=%q err=%v", format, err)
	}
	if cfg.Width != 400 || cfg.Height != 300 {
		t.Fatalf("canonical %dx%d, want 400x300", cfg.Width, cfg.Height)
	}
}

func TestCreateAssetRejectsBadInput(t *testing.T) {
	svc, _, _ := newServiceForTest(t)
	ctx := context.Background()

	junk := bytes.Repeat([]byte{0xAB, 0x5F, 0x33, 0xC9}, 40)

	cases := []struct {
		name     string
		env      pipeline.Envelope
		wantCode int
	}{
		{"empty input", pipeline.RawBytes(nil, ""), ErrCodeEmptyInput},
		{"too small", pipeline.RawBytes([]byte{0xFF, 0xD8, 0xFF, 0xE0}, ""), ErrCodeNotImage},
		{"not an image", pipeline.RawBytes(junk, ""), ErrCodeBadSignature},
		{"bad base64", pipeline.BareBase64("@@not-base64@@", "image/png"), ErrCodeBadEncoding},
		{"truncated jpeg", pipeline.RawBytes(jpegBytes(t, 200, 200)[:150], ""), ErrCodeCorruptImage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateAsset(ctx, "alice", "x.jpg", tc.env)
			if err == nil {
				t.Fatal("expected error")
			}
			if code := errCodeOf(t, err); code != tc.wantCode {
				t.Fatalf("error code = %d, want %d", code, tc.wantCode)
			}
		})
	}
}

func TestCreateAssetDimensionBounds(t *testing.T) {
	svc, _, _ := newServiceForTest(t)
	ctx := context.Background()

	_, err := svc.CreateAsset(ctx, "alice", "dot.jpg", pipeline.RawBytes(jpegBytes(t, 1, 1), ""))
	if err == nil {
		t.Fatal("expected degenerate image to be rejected")
	}
	if code := errCodeOf(t, err); code != ErrCodeDimensionBounds {
		t.Fatalf("error code = %d, want %d", code, ErrCodeDimensionBounds)
	}

	svc.ConfigureBounds(0, 0, true)
	if _, err := svc.CreateAsset(ctx, "alice", "dot.jpg", pipeline.RawBytes(jpegBytes(t, 1, 1), "")); err != nil {
		t.Fatalf("degenerate mode should accept 1x1: %v", err)
	}
}

func TestCreateAssetAcceptsDataURI(t *testing.T) {
	svc, _, _ := newServiceForTest(t)

	raw := jpegBytes(t, 320, 240)
	uri := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw)
	asset, err := svc.CreateAsset(context.Background(), "alice", "inline.jpg", pipeline.DataURI(uri))
	if err != nil {
		t.Fatalf("create from data uri: %v", err)
	}
	if asset.Width != 320 || asset.Height != 240 {
		t.Fatalf("dimensions = %dx%d, want 320x240", asset.Width, asset.Height)
	}
}

func TestCreateAssetCleansUpOnRecordFailure(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "picstash.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	objects, err := blobstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("open blobstore: %v", err)
	}

	records := &failingRecords{AssetStore: st, failCreate: true}
	tracking := &trackingObjects{Store: objects}
	svc := NewAssetService(records, tracking, testLogger())

	_, err = svc.CreateAsset(context.Background(), "alice", "x.jpg", pipeline.RawBytes(jpegBytes(t, 100, 100), ""))
	if err == nil {
		t.Fatal("expected create to fail")
	}

	for _, loc := range tracking.written {
		exists, err := objects.Exists(context.Background(), loc)
		if err != nil {
			t.Fatalf("exists %s: %v", loc, err)
		}
		if exists {
			t.Fatalf("object %s left dangling after failed create", loc)
		}
	}
}

func TestReplaceAssetImageSwapsAndCleansOld(t *testing.T) {
	svc, _, objects := newServiceForTest(t)
	ctx := context.Background()

	asset := mustCreate(t, svc, "alice", "pic.jpg", jpegBytes(t, 600, 400))
	oldCanonical, oldThumb, oldToken := asset.CanonicalPath, asset.ThumbnailPath, asset.CacheToken()

	updated, err := svc.ReplaceAssetImage(ctx, asset.ID, pipeline.RawBytes(jpegBytes(t, 300, 500), ""))
	if err != nil {
		t.Fatalf("replace: %v", err)
	}

	if updated.Width != 300 || updated.Height != 500 {
		t.Fatalf("dimensions = %dx%d, want 300x500", updated.Width, updated.Height)
	}
	if updated.CanonicalPath == oldCanonical {
		t.Fatal("replace must allocate a fresh canonical locator")
	}
	if updated.CacheToken() == oldToken {
		t.Fatal("cache token must change on replace")
	}
	if updated.CreatedAt != asset.CreatedAt {
		t.Fatal("replace must preserve created_at")
	}

	if exists, _ := objects.Exists(ctx, oldCanonical); exists {
		t.Fatal("old canonical object still present after replace")
	}
	if exists, _ := objects.Exists(ctx, oldThumb); exists {
		t.Fatal("old thumbnail object still present after replace")
	}
	if _, err := objects.Read(ctx, updated.CanonicalPath); err != nil {
		t.Fatalf("new canonical unreadable: %v", err)
	}
}

func TestReplaceAssetImageFailedPipelineLeavesAssetUntouched(t *testing.T) {
	svc, st, objects := newServiceForTest(t)
	ctx := context.Background()

	asset := mustCreate(t, svc, "alice", "pic.jpg", jpegBytes(t, 600, 400))

	_, err := svc.ReplaceAssetImage(ctx, asset.ID, pipeline.RawBytes([]byte("definitely not an image, just prose padded well past one hundred bytes of nothing useful whatsoever............"), ""))
	if err == nil {
		t.Fatal("expected replace to fail")
	}

	current, err := st.GetAsset(ctx, asset.ID)
	if err != nil || current == nil {
		t.Fatalf("reload: %v", err)
	}
	if current.CanonicalPath != asset.CanonicalPath || current.UpdatedAt != asset.UpdatedAt {
		t.Fatal("failed replace must not mutate the record")
	}
	if _, err := objects.Read(ctx, current.CanonicalPath); err != nil {
		t.Fatalf("original bytes unreadable after failed replace: %v", err)
	}
}

func TestReplaceAssetImageRecordFailureKeepsOldObjects(t *testing.T) {
	svc, st, objects := newServiceForTest(t)
	ctx := context.Background()

	asset := mustCreate(t, svc, "alice", "pic.jpg", jpegBytes(t, 600, 400))

	records := &failingRecords{AssetStore: st, failUpdateImage: true}
	tracking := &trackingObjects{Store: objects}
	failing := NewAssetService(records, tracking, testLogger())

	_, err := failing.ReplaceAssetImage(ctx, asset.ID, pipeline.RawBytes(jpegBytes(t, 200, 200), ""))
	if err == nil {
		t.Fatal("expected replace to fail")
	}

	if _, err := objects.Read(ctx, asset.CanonicalPath); err != nil {
		t.Fatalf("old canonical must survive a failed record swap: %v", err)
	}
	for _, loc := range tracking.written {
		if exists, _ := objects.Exists(ctx, loc); exists {
			t.Fatalf("new object %s left dangling after failed record swap", loc)
		}
	}
}

func TestReplaceAssetImageThumbnailFailureKeepsPrevious(t *testing.T) {
	svc, _, objects := newServiceForTest(t)
	ctx := context.Background()

	asset := mustCreate(t, svc, "alice", "pic.jpg", jpegBytes(t, 600, 400))
	oldThumb := asset.ThumbnailPath

	svc.deriveThumb = func([]byte, int) ([]byte, error) {
		return nil, fmt.Errorf("resampler exploded")
	}
	updated, err := svc.ReplaceAssetImage(ctx, asset.ID, pipeline.RawBytes(jpegBytes(t, 200, 200), ""))
	if err != nil {
		t.Fatalf("replace must succeed without a thumbnail: %v", err)
	}
	if updated.ThumbnailPath != oldThumb {
		t.Fatalf("thumbnail path = %q, want previous %q kept", updated.ThumbnailPath, oldThumb)
	}
	if exists, _ := objects.Exists(ctx, oldThumb); !exists {
		t.Fatal("previous thumbnail bytes must be kept when derivation fails")
	}
}

func TestCreateAssetWithoutThumbnailSucceeds(t *testing.T) {
	svc, _, _ := newServiceForTest(t)

	svc.deriveThumb = func([]byte, int) ([]byte, error) {
		return nil, fmt.Errorf("resampler exploded")
	}
	asset := mustCreate(t, svc, "alice", "pic.jpg", jpegBytes(t, 600, 400))
	if asset.ThumbnailPath != "" {
		t.Fatalf("thumbnail path = %q, want empty", asset.ThumbnailPath)
	}
}

func TestReplaceConflictsWhileMutationInFlight(t *testing.T) {
	svc, _, _ := newServiceForTest(t)
	ctx := context.Background()

	asset := mustCreate(t, svc, "alice", "pic.jpg", jpegBytes(t, 600, 400))

	if !svc.tryLock(asset.ID) {
		t.Fatal("lock should be free")
	}
	defer svc.unlock(asset.ID)

	_, err := svc.ReplaceAssetImage(ctx, asset.ID, pipeline.RawBytes(jpegBytes(t, 200, 200), ""))
	if err == nil {
		t.Fatal("expected conflict")
	}
	if code := errCodeOf(t, err); code != ErrCodeConflict {
		t.Fatalf("error code = %d, want %d", code, ErrCodeConflict)
	}
	if err := svc.DeleteAsset(ctx, asset.ID); err == nil {
		t.Fatal("delete should also conflict while the asset is locked")
	}
}

func TestDeleteAssetRemovesRecordAndObjects(t *testing.T) {
	svc, st, objects := newServiceForTest(t)
	ctx := context.Background()

	asset := mustCreate(t, svc, "alice", "pic.jpg", jpegBytes(t, 600, 400))
	if err := svc.DeleteAsset(ctx, asset.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if got, err := st.GetAsset(ctx, asset.ID); err != nil || got != nil {
		t.Fatalf("record still present: %#v, %v", got, err)
	}
	if exists, _ := objects.Exists(ctx, asset.CanonicalPath); exists {
		t.Fatal("canonical object still present")
	}
	if exists, _ := objects.Exists(ctx, asset.ThumbnailPath); exists {
		t.Fatal("thumbnail object still present")
	}

	err := svc.DeleteAsset(ctx, asset.ID)
	if err == nil {
		t.Fatal("second delete should report not found")
	}
	if code := errCodeOf(t, err); code != ErrCodeAssetNotFound {
		t.Fatalf("error code = %d, want %d", code, ErrCodeAssetNotFound)
	}
}

func TestGetThumbnailRegeneratesWhenMissing(t *testing.T) {
	svc, st, objects := newServiceForTest(t)
	ctx := context.Background()

	asset := mustCreate(t, svc, "alice", "pic.jpg", jpegBytes(t, 600, 400))
	if err := objects.Delete(ctx, asset.ThumbnailPath); err != nil {
		t.Fatalf("delete thumbnail object: %v", err)
	}

	data, mimeType, err := svc.GetThumbnailImage(ctx, asset.ID)
	if err != nil {
		t.Fatalf("thumbnail read must not fail for a live asset: %v", err)
	}
	if mimeType != "image/jpeg" || !pipeline.IsCanonicalHeader(data) {
		t.Fatalf("regenerated thumbnail is not jpeg (mime %q)", mimeType)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode regenerated thumbnail: %v", err)
	}
	if cfg.Width > 300 || cfg.Height > 300 {
		t.Fatalf("regenerated thumbnail %dx%d exceeds 300px", cfg.Width, cfg.Height)
	}

	repaired, err := st.GetAsset(ctx, asset.ID)
	if err != nil || repaired == nil {
		t.Fatalf("reload: %v", err)
	}
	if repaired.ThumbnailPath == "" || repaired.ThumbnailPath == asset.ThumbnailPath {
		t.Fatalf("record not repaired: %q", repaired.ThumbnailPath)
	}
	if exists, _ := objects.Exists(ctx, repaired.ThumbnailPath); !exists {
		t.Fatal("repaired locator has no bytes")
	}
	if repaired.CacheToken() != asset.CacheToken() {
		t.Fatal("thumbnail repair must not move the cache token")
	}
}

func TestThumbnailRepairYieldsToInterleavedReplace(t *testing.T) {
	svc, st, objects := newServiceForTest(t)
	ctx := context.Background()

	asset := mustCreate(t, svc, "alice", "pic.jpg", jpegBytes(t, 600, 400))
	if err := objects.Delete(ctx, asset.ThumbnailPath); err != nil {
		t.Fatalf("delete thumbnail object: %v", err)
	}

	// A replace commits between the reader loading the record and the repair
	// write. The repair is derived from the superseded canonical and must be
	// dropped, not written over the replace.
	var postReplace *models.Asset
	var replacing bool
	svc.deriveThumb = func(data []byte, maxEdge int) ([]byte, error) {
		if postReplace == nil && !replacing {
			replacing = true
			replaced, err := svc.ReplaceAssetImage(ctx, asset.ID, pipeline.RawBytes(jpegBytes(t, 200, 300), ""))
			if err != nil {
				t.Fatalf("interleaved replace: %v", err)
			}
			postReplace = replaced
		}
		return pipeline.DeriveThumbnail(data, maxEdge)
	}

	if _, _, err := svc.GetThumbnailImage(ctx, asset.ID); err != nil {
		t.Fatalf("thumbnail read must not fail for a live asset: %v", err)
	}

	current, err := st.GetAsset(ctx, asset.ID)
	if err != nil || current == nil {
		t.Fatalf("reload: %v", err)
	}
	if current.CanonicalPath != postReplace.CanonicalPath || current.Width != 200 || current.Height != 300 {
		t.Fatalf("replace result clobbered: %#v", current)
	}
	if current.ThumbnailPath != postReplace.ThumbnailPath {
		t.Fatalf("thumbnail path = %q, want the replace's %q", current.ThumbnailPath, postReplace.ThumbnailPath)
	}
	if exists, _ := objects.Exists(ctx, current.ThumbnailPath); !exists {
		t.Fatal("replace thumbnail bytes must survive the lost repair")
	}
	if current.CacheToken() != postReplace.CacheToken() || current.CacheToken() == asset.CacheToken() {
		t.Fatalf("cache token regressed: %q", current.CacheToken())
	}
}

func TestGetThumbnailFallsBackToCanonicalThenPlaceholder(t *testing.T) {
	svc, _, objects := newServiceForTest(t)
	ctx := context.Background()

	asset := mustCreate(t, svc, "alice", "pic.jpg", jpegBytes(t, 600, 400))
	if err := objects.Delete(ctx, asset.ThumbnailPath); err != nil {
		t.Fatalf("delete thumbnail: %v", err)
	}

	svc.deriveThumb = func([]byte, int) ([]byte, error) {
		return nil, fmt.Errorf("resampler exploded")
	}
	data, _, err := svc.GetThumbnailImage(ctx, asset.ID)
	if err != nil {
		t.Fatalf("thumbnail read: %v", err)
	}
	canonical, err := objects.Read(ctx, asset.CanonicalPath)
	if err != nil {
		t.Fatalf("read canonical: %v", err)
	}
	if !bytes.Equal(data, canonical) {
		t.Fatal("expected canonical fallback when regeneration fails")
	}

	if err := objects.Delete(ctx, asset.CanonicalPath); err != nil {
		t.Fatalf("delete canonical: %v", err)
	}
	data, mimeType, err := svc.GetThumbnailImage(ctx, asset.ID)
	if err != nil {
		t.Fatalf("thumbnail read: %v", err)
	}
	if mimeType != "image/jpeg" || !bytes.Equal(data, pipeline.Placeholder()) {
		t.Fatal("expected placeholder when even canonical bytes are gone")
	}

	_, _, err = svc.GetThumbnailImage(ctx, "ph-nosuch")
	if err == nil {
		t.Fatal("unknown id must stay a hard not-found")
	}
	if code := errCodeOf(t, err); code != ErrCodeAssetNotFound {
		t.Fatalf("error code = %d, want %d", code, ErrCodeAssetNotFound)
	}
}

func TestRenameAsset(t *testing.T) {
	svc, _, _ := newServiceForTest(t)
	ctx := context.Background()

	asset := mustCreate(t, svc, "alice", "old-name.jpg", jpegBytes(t, 600, 400))
	renamed, err := svc.RenameAsset(ctx, asset.ID, "  new-name.jpg  ")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.DisplayName != "new-name.jpg" {
		t.Fatalf("display name = %q", renamed.DisplayName)
	}
	if !renamed.UpdatedAt.After(asset.UpdatedAt) {
		t.Fatal("rename must advance updated_at")
	}

	if _, err := svc.RenameAsset(ctx, asset.ID, ""); err == nil {
		t.Fatal("empty display name must be rejected")
	}
}

// failingRecords wraps a real store and fails selected mutations.
type failingRecords struct {
	store.AssetStore
	failCreate      bool
	failUpdateImage bool
}

func (f *failingRecords) CreateAsset(ctx context.Context, asset *models.Asset) error {
	if f.failCreate {
		return fmt.Errorf("disk is on fire")
	}
	return f.AssetStore.CreateAsset(ctx, asset)
}

func (f *failingRecords) UpdateAssetImage(ctx context.Context, id string, upd store.AssetImageUpdate) error {
	if f.failUpdateImage {
		return fmt.Errorf("disk is on fire")
	}
	return f.AssetStore.UpdateAssetImage(ctx, id, upd)
}

// trackingObjects records every locator written through it.
type trackingObjects struct {
	blobstore.Store
	written []string
}

func (tr *trackingObjects) Write(ctx context.Context, ownerID string, kind blobstore.ObjectKind, data []byte) (string, error) {
	loc, err := tr.Store.Write(ctx, ownerID, kind, data)
	if err == nil {
		tr.written = append(tr.written, loc)
	}
	return loc, err
}
