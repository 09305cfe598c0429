package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read when no object exists at a locator.
var ErrNotFound = errors.New("object not found")

// ObjectKind distinguishes the two stored representations of an asset.
type ObjectKind int

const (
	ObjectCanonical ObjectKind = iota + 1
	ObjectThumbnail
)

// Store is the byte-storage abstraction used by AssetService. Every Write
// allocates a fresh locator, so a replace never overwrites live bytes in
// place: readers observe either the complete old object or the complete new
// one. Delete of a missing locator is a no-op.
type Store interface {
	Write(ctx context.Context, ownerID string, kind ObjectKind, data []byte) (string, error)
	Read(ctx context.Context, locator string) ([]byte, error)
	Exists(ctx context.Context, locator string) (bool, error)
	Delete(ctx context.Context, locator string) error
}
