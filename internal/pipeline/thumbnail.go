package pipeline

import (
	"bytes"
	"fmt"
	"image/color"
	"sync"

	"github.com/disintegration/imaging"
)

const (
	// DefaultThumbnailMaxEdge bounds the longer thumbnail edge.
	DefaultThumbnailMaxEdge = 300

	thumbnailQuality   = 85
	placeholderQuality = 75
)

// DeriveThumbnail produces an aspect-preserving thumbnail of a canonical
// image, bounded to maxEdge on the longer side. Images already within the
// bound are re-encoded without upscaling.
func DeriveThumbnail(canonical []byte, maxEdge int) ([]byte, error) {
	if maxEdge <= 0 {
		maxEdge = DefaultThumbnailMaxEdge
	}
	img, err := imaging.Decode(bytes.NewReader(canonical))
	if err != nil {
		return nil, &Error{Kind: KindThumbnail, err: fmt.Errorf("decode canonical: %w", err)}
	}

	// Fit never upscales: an image inside the box passes through unscaled.
	thumb := imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return nil, &Error{Kind: KindThumbnail, err: fmt.Errorf("encode thumbnail: %w", err)}
	}
	return buf.Bytes(), nil
}

// IsCanonicalHeader reports whether data starts with a JPEG signature.
// Used as a cheap corruption check before serving stored thumbnails.
func IsCanonicalHeader(data []byte) bool {
	return len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF
}

var (
	placeholderOnce  sync.Once
	placeholderBytes []byte
)

// Placeholder returns a fixed neutral-gray thumbnail served when thumbnail
// regeneration fails. Reads must degrade visually, never error.
func Placeholder() []byte {
	placeholderOnce.Do(func() {
		img := imaging.New(DefaultThumbnailMaxEdge, DefaultThumbnailMaxEdge, color.NRGBA{R: 0xE0, G: 0xE0, B: 0xE0, A: 0xFF})
		var buf bytes.Buffer
		// Encoding a solid in-memory image into a bytes.Buffer cannot fail.
		_ = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(placeholderQuality))
		placeholderBytes = buf.Bytes()
	})
	return placeholderBytes
}
