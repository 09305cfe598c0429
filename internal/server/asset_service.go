package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"picstash/internal/blobstore"
	"picstash/internal/models"
	"picstash/internal/pipeline"
	"picstash/internal/store"
)

// AssetService coordinates the ingestion pipeline, the record store, and the
// object store. Mutation ordering is fixed: new object bytes land first, the
// record swap commits second, and old bytes are removed last, so a live
// record never points at bytes that were not fully written.
type AssetService struct {
	records store.AssetStore
	objects blobstore.Store
	logger  *slog.Logger

	validateOpts pipeline.ValidateOptions
	thumbEdge    int

	// deriveThumb is swappable so tests can force derivation failures.
	deriveThumb func(canonical []byte, maxEdge int) ([]byte, error)

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewAssetService builds a service over the given record and object stores.
func NewAssetService(records store.AssetStore, objects blobstore.Store, logger *slog.Logger) *AssetService {
	return &AssetService{
		records:      records,
		objects:      objects,
		logger:       logger,
		validateOpts: pipeline.DefaultValidateOptions(),
		thumbEdge:    pipeline.DefaultThumbnailMaxEdge,
		deriveThumb:  pipeline.DeriveThumbnail,
		inflight:     make(map[string]struct{}),
	}
}

// ConfigureBounds overrides the validation and thumbnail limits. Zero values
// keep the defaults.
func (s *AssetService) ConfigureBounds(maxDimension, thumbnailMaxEdge int, allowDegenerate bool) {
	if maxDimension > 0 {
		s.validateOpts.MaxDimension = maxDimension
	}
	if thumbnailMaxEdge > 0 {
		s.thumbEdge = thumbnailMaxEdge
	}
	s.validateOpts.AllowDegenerate = allowDegenerate
}

func (s *AssetService) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// tryLock reserves id for a mutation. Concurrent mutations on the same asset
// are rejected rather than queued; the caller maps the false return to a
// retryable conflict.
func (s *AssetService) tryLock(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.inflight[id]; held {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *AssetService) unlock(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

// runPipeline decodes the envelope, validates the payload, and produces the
// canonical encoding. It has no side effects: callers only touch storage
// after it succeeds.
func (s *AssetService) runPipeline(env pipeline.Envelope) ([]byte, int, int, error) {
	data, declared, err := env.Decode()
	if err != nil {
		return nil, 0, 0, mapPipelineError(err)
	}

	meta, err := pipeline.Validate(data, s.validateOpts)
	if err != nil {
		return nil, 0, 0, mapPipelineError(err)
	}
	if declared != "" && declared != meta.MIMEType {
		s.log().Warn("declared media type disagrees with sniffed content",
			"declared", declared, "sniffed", meta.MIMEType)
	}

	canonical, width, height, err := pipeline.Normalize(data)
	if err != nil {
		return nil, 0, 0, mapPipelineError(err)
	}
	return canonical, width, height, nil
}

func mapPipelineError(err error) error {
	switch pipeline.KindOf(err) {
	case pipeline.KindEmptyInput:
		return badRequestCode(err, ErrCodeEmptyInput)
	case pipeline.KindBadEncoding:
		return badRequestCode(err, ErrCodeBadEncoding)
	case pipeline.KindTooSmall:
		return badRequestCode(err, ErrCodeNotImage)
	case pipeline.KindBadSignature:
		return badRequestCode(err, ErrCodeBadSignature)
	case pipeline.KindCorrupt:
		return badRequestCode(err, ErrCodeCorruptImage)
	case pipeline.KindBounds:
		return badRequestCode(err, ErrCodeDimensionBounds)
	case pipeline.KindNormalize:
		return makeAPIError(500, "internal", ErrCodeNormalizeFailed, err)
	default:
		return internalError(err)
	}
}

// storeThumbnail derives and stores a thumbnail for canonical bytes. It is
// best-effort: any failure is logged and reported as an empty locator, never
// as an error, because a missing thumbnail is a recoverable state.
func (s *AssetService) storeThumbnail(ctx context.Context, ownerID string, canonical []byte) string {
	thumb, err := s.deriveThumb(canonical, s.thumbEdge)
	if err != nil {
		s.log().Warn("thumbnail derivation failed, continuing without one", "owner_id", ownerID, "error", err)
		return ""
	}
	loc, err := s.objects.Write(ctx, ownerID, blobstore.ObjectThumbnail, thumb)
	if err != nil {
		s.log().Warn("thumbnail write failed, continuing without one", "owner_id", ownerID, "error", err)
		return ""
	}
	return loc
}

func (s *AssetService) discard(ctx context.Context, locator string) {
	if locator == "" {
		return
	}
	if err := s.objects.Delete(ctx, locator); err != nil {
		s.log().Warn("orphaned object cleanup failed", "locator", locator, "error", err)
	}
}

// CreateAsset runs the full ingestion pipeline for a new image and persists
// the resulting record. On any record failure the freshly written objects
// are removed so nothing dangles.
func (s *AssetService) CreateAsset(ctx context.Context, ownerID, displayName string, env pipeline.Envelope) (*models.Asset, error) {
	owner, err := models.ValidateOwnerID(ownerID)
	if err != nil {
		return nil, badRequest(err)
	}
	if strings.TrimSpace(displayName) == "" {
		return nil, badRequestCode(errors.New("display_name is required"), ErrCodeMissingRequired)
	}
	name, err := models.NormalizeDisplayName(displayName)
	if err != nil {
		return nil, badRequest(err)
	}

	canonical, width, height, err := s.runPipeline(env)
	if err != nil {
		return nil, err
	}

	id, err := store.GenerateAssetID(func(candidate string) (bool, error) {
		return s.records.AssetExists(ctx, candidate)
	})
	if err != nil {
		return nil, storeFailure(err)
	}

	canonicalLoc, err := s.objects.Write(ctx, owner, blobstore.ObjectCanonical, canonical)
	if err != nil {
		return nil, storeFailure(fmt.Errorf("write canonical object: %w", err))
	}
	thumbLoc := s.storeThumbnail(ctx, owner, canonical)

	now := time.Now().UTC()
	asset := &models.Asset{
		ID:            id,
		OwnerID:       owner,
		DisplayName:   name,
		CanonicalPath: canonicalLoc,
		ThumbnailPath: thumbLoc,
		ByteSize:      int64(len(canonical)),
		MIMEType:      pipeline.CanonicalMIMEType,
		Width:         width,
		Height:        height,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.records.CreateAsset(ctx, asset); err != nil {
		s.discard(ctx, canonicalLoc)
		s.discard(ctx, thumbLoc)
		return nil, storeFailure(fmt.Errorf("create asset record: %w", err))
	}

	s.log().Info("asset created", "id", asset.ID, "owner_id", owner,
		"bytes", asset.ByteSize, "width", width, "height", height, "has_thumbnail", thumbLoc != "")
	return asset, nil
}

// ReplaceAssetImage swaps the stored image for an existing asset. New bytes
// are written first, the record is updated second, and only then are the old
// objects removed; a failure at any step leaves the previous image fully
// readable. Concurrent replaces of the same asset conflict instead of
// interleaving.
func (s *AssetService) ReplaceAssetImage(ctx context.Context, id string, env pipeline.Envelope) (*models.Asset, error) {
	if !s.tryLock(id) {
		return nil, conflict(fmt.Errorf("another replace for asset %s is in flight, retry shortly", id))
	}
	defer s.unlock(id)

	prev, err := s.records.GetAsset(ctx, id)
	if err != nil {
		return nil, storeFailure(fmt.Errorf("load asset %s: %w", id, err))
	}
	if prev == nil {
		return nil, notFound(fmt.Errorf("asset %s not found", id))
	}

	canonical, width, height, err := s.runPipeline(env)
	if err != nil {
		return nil, err
	}

	newCanonical, err := s.objects.Write(ctx, prev.OwnerID, blobstore.ObjectCanonical, canonical)
	if err != nil {
		return nil, storeFailure(fmt.Errorf("write canonical object: %w", err))
	}
	newThumb := s.storeThumbnail(ctx, prev.OwnerID, canonical)

	// When thumbnail derivation fails the previous thumbnail stays wired:
	// it renders the old image, but a stale thumbnail beats a broken one
	// and the read path regenerates on demand.
	thumbPath := newThumb
	if thumbPath == "" {
		thumbPath = prev.ThumbnailPath
	}

	// The cache token is UpdatedAt at millisecond granularity; force it
	// strictly forward even when the clock has not visibly moved.
	now := time.Now().UTC()
	if now.UnixMilli() <= prev.UpdatedAt.UnixMilli() {
		now = prev.UpdatedAt.Add(time.Millisecond)
	}
	upd := store.AssetImageUpdate{
		CanonicalPath: newCanonical,
		ThumbnailPath: thumbPath,
		ByteSize:      int64(len(canonical)),
		MIMEType:      pipeline.CanonicalMIMEType,
		Width:         width,
		Height:        height,
		UpdatedAt:     now,
	}
	if err := s.records.UpdateAssetImage(ctx, id, upd); err != nil {
		s.discard(ctx, newCanonical)
		s.discard(ctx, newThumb)
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(fmt.Errorf("asset %s not found", id))
		}
		return nil, storeFailure(fmt.Errorf("update asset record: %w", err))
	}

	// Record swap committed: the old objects are unreachable now.
	if prev.CanonicalPath != newCanonical {
		s.discard(ctx, prev.CanonicalPath)
	}
	if newThumb != "" && prev.ThumbnailPath != "" && prev.ThumbnailPath != newThumb {
		s.discard(ctx, prev.ThumbnailPath)
	}

	updated, err := s.records.GetAsset(ctx, id)
	if err != nil || updated == nil {
		return nil, storeFailure(fmt.Errorf("reload asset %s after replace: %w", id, err))
	}
	s.log().Info("asset image replaced", "id", id, "owner_id", updated.OwnerID,
		"bytes", updated.ByteSize, "width", width, "height", height, "has_thumbnail", updated.ThumbnailPath != "")
	return updated, nil
}

// GetAsset returns the metadata record for id.
func (s *AssetService) GetAsset(ctx context.Context, id string) (*models.Asset, error) {
	asset, err := s.records.GetAsset(ctx, id)
	if err != nil {
		return nil, storeFailure(fmt.Errorf("load asset %s: %w", id, err))
	}
	if asset == nil {
		return nil, notFound(fmt.Errorf("asset %s not found", id))
	}
	return asset, nil
}

// ListAssetsByOwner returns an owner's assets newest-first.
func (s *AssetService) ListAssetsByOwner(ctx context.Context, ownerID string) ([]models.Asset, error) {
	owner, err := models.ValidateOwnerID(ownerID)
	if err != nil {
		return nil, badRequest(err)
	}
	assets, err := s.records.ListAssetsByOwner(ctx, owner)
	if err != nil {
		return nil, storeFailure(fmt.Errorf("list assets for %s: %w", owner, err))
	}
	return assets, nil
}

// RenameAsset updates the display name of an existing asset.
func (s *AssetService) RenameAsset(ctx context.Context, id, displayName string) (*models.Asset, error) {
	if strings.TrimSpace(displayName) == "" {
		return nil, badRequestCode(errors.New("display_name is required"), ErrCodeMissingRequired)
	}
	name, err := models.NormalizeDisplayName(displayName)
	if err != nil {
		return nil, badRequest(err)
	}

	prev, err := s.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if now.UnixMilli() <= prev.UpdatedAt.UnixMilli() {
		now = prev.UpdatedAt.Add(time.Millisecond)
	}
	if err := s.records.RenameAsset(ctx, id, name, now); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(fmt.Errorf("asset %s not found", id))
		}
		return nil, storeFailure(fmt.Errorf("rename asset %s: %w", id, err))
	}

	prev.DisplayName = name
	prev.UpdatedAt = now
	return prev, nil
}

// DeleteAsset removes the record and then the stored objects. The record
// goes first so a crash mid-delete leaves at worst orphaned bytes, never a
// record pointing into the void. Re-deleting an already-deleted asset is
// reported as not found.
func (s *AssetService) DeleteAsset(ctx context.Context, id string) error {
	if !s.tryLock(id) {
		return conflict(fmt.Errorf("another mutation for asset %s is in flight, retry shortly", id))
	}
	defer s.unlock(id)

	asset, err := s.records.GetAsset(ctx, id)
	if err != nil {
		return storeFailure(fmt.Errorf("load asset %s: %w", id, err))
	}
	if asset == nil {
		return notFound(fmt.Errorf("asset %s not found", id))
	}

	if err := s.records.DeleteAsset(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(fmt.Errorf("asset %s not found", id))
		}
		return storeFailure(fmt.Errorf("delete asset record %s: %w", id, err))
	}

	s.discard(ctx, asset.CanonicalPath)
	s.discard(ctx, asset.ThumbnailPath)
	s.log().Info("asset deleted", "id", id, "owner_id", asset.OwnerID)
	return nil
}

// GetCanonicalImage returns the canonical image bytes and their media type.
func (s *AssetService) GetCanonicalImage(ctx context.Context, id string) ([]byte, string, error) {
	asset, err := s.GetAsset(ctx, id)
	if err != nil {
		return nil, "", err
	}
	data, err := s.objects.Read(ctx, asset.CanonicalPath)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, "", notFound(fmt.Errorf("image bytes for asset %s are missing", id))
		}
		return nil, "", storeFailure(fmt.Errorf("read canonical object: %w", err))
	}
	return data, asset.MIMEType, nil
}

// GetThumbnailImage returns thumbnail bytes for id. For an existing asset it
// never fails: a missing or corrupt stored thumbnail triggers one
// regeneration attempt from the canonical image, a failed regeneration falls
// back to the canonical bytes, and only when even those are unreadable does
// the static placeholder go out.
func (s *AssetService) GetThumbnailImage(ctx context.Context, id string) ([]byte, string, error) {
	asset, err := s.GetAsset(ctx, id)
	if err != nil {
		return nil, "", err
	}

	if asset.ThumbnailPath != "" {
		data, readErr := s.objects.Read(ctx, asset.ThumbnailPath)
		if readErr == nil && pipeline.IsCanonicalHeader(data) {
			return data, pipeline.CanonicalMIMEType, nil
		}
		if readErr != nil && !errors.Is(readErr, blobstore.ErrNotFound) {
			s.log().Warn("stored thumbnail unreadable, regenerating", "id", id, "error", readErr)
		} else {
			s.log().Warn("stored thumbnail missing or corrupt, regenerating", "id", id)
		}
	}

	canonical, err := s.objects.Read(ctx, asset.CanonicalPath)
	if err != nil {
		s.log().Error("canonical image unreadable, serving placeholder", "id", id, "error", err)
		return pipeline.Placeholder(), pipeline.CanonicalMIMEType, nil
	}

	thumb, err := s.deriveThumb(canonical, s.thumbEdge)
	if err != nil {
		s.log().Warn("thumbnail regeneration failed, serving canonical image", "id", id, "error", err)
		return canonical, asset.MIMEType, nil
	}
	s.repairThumbnail(ctx, asset, thumb)
	return thumb, pipeline.CanonicalMIMEType, nil
}

// repairThumbnail persists a regenerated thumbnail and points the record at
// it. The record update is conditional on the updated_at the regeneration
// started from: if a replace or delete committed in between, the repair was
// derived from superseded bytes and is dropped rather than written over the
// newer image. Failures are logged only; the caller already has bytes to
// serve.
func (s *AssetService) repairThumbnail(ctx context.Context, asset *models.Asset, thumb []byte) {
	loc, err := s.objects.Write(ctx, asset.OwnerID, blobstore.ObjectThumbnail, thumb)
	if err != nil {
		s.log().Warn("regenerated thumbnail write failed", "id", asset.ID, "error", err)
		return
	}
	if err := s.records.UpdateAssetThumbnail(ctx, asset.ID, loc, asset.UpdatedAt); err != nil {
		if errors.Is(err, store.ErrStaleRecord) {
			s.log().Info("asset changed during thumbnail repair, dropping regenerated copy", "id", asset.ID)
		} else {
			s.log().Warn("thumbnail record repair failed", "id", asset.ID, "error", err)
		}
		s.discard(ctx, loc)
		return
	}
	if asset.ThumbnailPath != "" && asset.ThumbnailPath != loc {
		s.discard(ctx, asset.ThumbnailPath)
	}
	s.log().Info("thumbnail regenerated", "id", asset.ID)
}
