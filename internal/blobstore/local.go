package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const canonicalExtension = ".jpg"

// LocalStore stores asset bytes in a local tree scoped by owner. Writes go
// to a temp file first and are published with an atomic rename, so a
// partially-written object is never visible at a locator.
type LocalStore struct {
	root string
}

// NewLocalStore creates a local object store rooted at root.
func NewLocalStore(root string) (*LocalStore, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: abs}, nil
}

// Write persists data under a fresh locator scoped by owner and kind.
func (s *LocalStore) Write(ctx context.Context, ownerID string, kind ObjectKind, data []byte) (string, error) {
	if s == nil {
		return "", fmt.Errorf("object store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateOwnerSegment(ownerID); err != nil {
		return "", err
	}
	dir, err := kindDir(kind)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to store empty object")
	}

	locator := path.Join(ownerID, dir, uuid.NewString()+canonicalExtension)
	dst := filepath.Join(s.root, filepath.FromSlash(locator))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, "tmp"), "put-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}

	return locator, nil
}

// Read returns the complete bytes stored at locator.
func (s *LocalStore) Read(ctx context.Context, locator string) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("object store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.pathFromLocator(locator)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Exists reports whether an object is stored at locator.
func (s *LocalStore) Exists(ctx context.Context, locator string) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("object store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := s.pathFromLocator(locator)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes an object. Missing locators are ignored so cleanup stays
// idempotent.
func (s *LocalStore) Delete(ctx context.Context, locator string) error {
	if s == nil {
		return fmt.Errorf("object store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.pathFromLocator(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func kindDir(kind ObjectKind) (string, error) {
	switch kind {
	case ObjectCanonical:
		return "originals", nil
	case ObjectThumbnail:
		return "thumbnails", nil
	default:
		return "", fmt.Errorf("unknown object kind %d", kind)
	}
}

func validateOwnerSegment(ownerID string) error {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return fmt.Errorf("owner id is required")
	}
	if strings.ContainsAny(ownerID, "/\\") || strings.HasPrefix(ownerID, ".") {
		return fmt.Errorf("invalid owner id")
	}
	return nil
}

func (s *LocalStore) pathFromLocator(locator string) (string, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return "", fmt.Errorf("locator is required")
	}
	if strings.HasPrefix(locator, "/") {
		return "", fmt.Errorf("locator must be relative")
	}
	clean := filepath.Clean(filepath.FromSlash(locator))
	if clean == "." || strings.HasPrefix(clean, "..") || strings.Contains(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid locator")
	}
	return filepath.Join(s.root, clean), nil
}
