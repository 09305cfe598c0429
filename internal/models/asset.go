package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const maxDisplayNameLength = 255

// Asset is one user-owned photo: a normalized canonical image plus an
// optional derived thumbnail. Identity (ID) is immutable across replaces;
// storage locators are not.
type Asset struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	DisplayName   string    `json:"display_name"`
	CanonicalPath string    `json:"canonical_path"`
	ThumbnailPath string    `json:"thumbnail_path,omitempty"`
	ByteSize      int64     `json:"byte_size"`
	MIMEType      string    `json:"mime_type"`
	Width         int       `json:"width"`
	Height        int       `json:"height"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CacheToken returns the cache-busting token collaborators append to read
// URLs after a create or replace. Distinct for every successful write of
// one asset because UpdatedAt strictly increases across replaces.
func (a Asset) CacheToken() string {
	return strconv.FormatInt(a.UpdatedAt.UnixMilli(), 10)
}

// NormalizeDisplayName trims and bounds a user-supplied filename. The name
// is cosmetic only and never used for storage addressing.
func NormalizeDisplayName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("display name is required")
	}
	if len(name) > maxDisplayNameLength {
		return "", fmt.Errorf("display name too long (max %d)", maxDisplayNameLength)
	}
	if strings.ContainsAny(name, "\x00\n\r") {
		return "", fmt.Errorf("display name contains control characters")
	}
	return name, nil
}

// ValidateOwnerID checks the externally-authenticated owner identifier.
// The service trusts the value; this only rejects ids that cannot be used
// as a storage namespace.
func ValidateOwnerID(raw string) (string, error) {
	owner := strings.TrimSpace(raw)
	if owner == "" {
		return "", fmt.Errorf("owner id is required")
	}
	if len(owner) > 64 {
		return "", fmt.Errorf("owner id too long")
	}
	for _, r := range owner {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return "", fmt.Errorf("invalid owner id")
		}
	}
	if strings.HasPrefix(owner, ".") {
		return "", fmt.Errorf("invalid owner id")
	}
	return owner, nil
}
