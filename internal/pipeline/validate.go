package pipeline

import (
	"bytes"
	"fmt"
	"image"

	// Structural decoders for the accepted input formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

const (
	// DefaultMinDimension rejects degenerate 1x1-style assets unless the
	// permit-degenerate mode is enabled.
	DefaultMinDimension = 2
	// DefaultMaxDimension caps either edge to bound memory used by
	// normalization and thumbnailing.
	DefaultMaxDimension = 10000
)

// ImageMeta describes a structurally validated image.
type ImageMeta struct {
	Width    int
	Height   int
	Format   string // decoder name: jpeg, png, gif
	MIMEType string // sniffed, authoritative over any declared hint
}

// ValidateOptions bound accepted image dimensions.
type ValidateOptions struct {
	MinDimension int
	MaxDimension int
	// AllowDegenerate permits 1x1-style test assets below MinDimension.
	AllowDegenerate bool
}

// DefaultValidateOptions returns the production dimension bounds.
func DefaultValidateOptions() ValidateOptions {
	return ValidateOptions{MinDimension: DefaultMinDimension, MaxDimension: DefaultMaxDimension}
}

// Known magic headers for the accepted input formats. JPEG has several
// leading-marker variants (JFIF, Exif, raw baseline tables).
var magicSignatures = []struct {
	prefix []byte
	mime   string
}{
	{[]byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg"}, // JFIF
	{[]byte{0xFF, 0xD8, 0xFF, 0xE1}, "image/jpeg"}, // Exif
	{[]byte{0xFF, 0xD8, 0xFF, 0xDB}, "image/jpeg"}, // baseline quantization tables
	{[]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
	{[]byte("GIF87a"), "image/gif"},
	{[]byte("GIF89a"), "image/gif"},
}

// Validate inspects data for structural integrity: magic header, dimension
// bounds taken from the image header, then a full decode. The declared
// transport hint plays no part; the sniffed type is authoritative.
func Validate(data []byte, opts ValidateOptions) (ImageMeta, error) {
	var zero ImageMeta
	if opts.MinDimension <= 0 {
		opts.MinDimension = DefaultMinDimension
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultMaxDimension
	}

	sniffed, ok := sniffMagic(data)
	if !ok {
		return zero, errorf(KindBadSignature, "no known image signature")
	}

	// Bound dimensions from the header alone, before any pixel buffer is
	// allocated. An oversized image must cost only a config read to reject.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return zero, &Error{Kind: KindCorrupt, err: fmt.Errorf("unreadable %s header: %w", sniffed, err)}
	}
	if cfg.Width > opts.MaxDimension || cfg.Height > opts.MaxDimension {
		return zero, errorf(KindBounds, "image %dx%d exceeds %d px bound", cfg.Width, cfg.Height, opts.MaxDimension)
	}
	if !opts.AllowDegenerate && (cfg.Width < opts.MinDimension || cfg.Height < opts.MinDimension) {
		return zero, errorf(KindBounds, "image %dx%d below %d px minimum", cfg.Width, cfg.Height, opts.MinDimension)
	}
	if cfg.Width < 1 || cfg.Height < 1 {
		return zero, errorf(KindBounds, "degenerate image %dx%d", cfg.Width, cfg.Height)
	}

	// A plausible header is not enough: the body must fully decode.
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return zero, &Error{Kind: KindCorrupt, err: fmt.Errorf("undecodable %s body: %w", sniffed, err)}
	}

	bounds := img.Bounds()
	return ImageMeta{Width: bounds.Dx(), Height: bounds.Dy(), Format: format, MIMEType: mimeForFormat(format)}, nil
}

func sniffMagic(data []byte) (string, bool) {
	for _, sig := range magicSignatures {
		if bytes.HasPrefix(data, sig.prefix) {
			return sig.mime, true
		}
	}
	return "", false
}

func mimeForFormat(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
