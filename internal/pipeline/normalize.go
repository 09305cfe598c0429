package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	// CanonicalMIMEType is the single on-disk encoding for stored assets.
	CanonicalMIMEType = "image/jpeg"

	canonicalQuality = 90
)

// Normalize re-encodes a validated image into the canonical JPEG encoding
// and returns the canonical bytes with their final dimensions (EXIF
// auto-orientation can swap width and height relative to the raw input).
// Transparency is flattened onto a white background first (JPEG has no
// alpha channel). Re-encoding happens even when the input already claims to
// be a JPEG so the stored bytes are always a clean re-serialization, never
// an unverified pass-through.
func Normalize(data []byte) ([]byte, int, int, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, 0, &Error{Kind: KindNormalize, err: fmt.Errorf("decode for re-encode: %w", err)}
	}

	flat := flatten(img)
	bounds := flat.Bounds()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(canonicalQuality)); err != nil {
		return nil, 0, 0, &Error{Kind: KindNormalize, err: fmt.Errorf("encode canonical jpeg: %w", err)}
	}
	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}

// flatten composites img over an opaque white background when the source
// can carry alpha.
func flatten(img image.Image) image.Image {
	if img.Bounds().Empty() {
		return img
	}
	if isOpaque(img) {
		return img
	}
	bg := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func isOpaque(img image.Image) bool {
	type opaquer interface{ Opaque() bool }
	if o, ok := img.(opaquer); ok {
		return o.Opaque()
	}
	return false
}
