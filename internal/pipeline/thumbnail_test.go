package pipeline

import (
	"bytes"
	"image"
	"testing"
)

func thumbConfig(t *testing.T, data []byte) image.Config {
	t.Helper()
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("thumbnail format = %q, want jpeg", format)
	}
	return cfg
}

func TestDeriveThumbnailBoundsLongEdge(t *testing.T) {
	cases := []struct {
		name           string
		width, height  int
		wantW, wantH   int
	}{
		{"landscape", 900, 600, 300, 200},
		{"portrait", 400, 800, 150, 300},
		{"square", 1000, 1000, 300, 300},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			canonical, _, _, err := Normalize(encodeTestImage(t, "jpeg", tc.width, tc.height))
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			thumb, err := DeriveThumbnail(canonical, 300)
			if err != nil {
				t.Fatalf("derive: %v", err)
			}
			cfg := thumbConfig(t, thumb)
			if cfg.Width != tc.wantW || cfg.Height != tc.wantH {
				t.Fatalf("thumbnail = %dx%d, want %dx%d", cfg.Width, cfg.Height, tc.wantW, tc.wantH)
			}
		})
	}
}

func TestDeriveThumbnailNeverUpscales(t *testing.T) {
	canonical, _, _, err := Normalize(encodeTestImage(t, "jpeg", 120, 90))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	thumb, err := DeriveThumbnail(canonical, 300)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	cfg := thumbConfig(t, thumb)
	if cfg.Width != 120 || cfg.Height != 90 {
		t.Fatalf("thumbnail = %dx%d, small input must not be upscaled", cfg.Width, cfg.Height)
	}
}

func TestDeriveThumbnailZeroEdgeUsesDefault(t *testing.T) {
	canonical, _, _, err := Normalize(encodeTestImage(t, "jpeg", 900, 900))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	thumb, err := DeriveThumbnail(canonical, 0)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	cfg := thumbConfig(t, thumb)
	if cfg.Width != DefaultThumbnailMaxEdge || cfg.Height != DefaultThumbnailMaxEdge {
		t.Fatalf("thumbnail = %dx%d, want default edge %d", cfg.Width, cfg.Height, DefaultThumbnailMaxEdge)
	}
}

func TestDeriveThumbnailRejectsGarbage(t *testing.T) {
	_, err := DeriveThumbnail(bytes.Repeat([]byte{0x7E}, 200), 300)
	if KindOf(err) != KindThumbnail {
		t.Fatalf("kind = %v, want %v", KindOf(err), KindThumbnail)
	}
}

func TestIsCanonicalHeader(t *testing.T) {
	canonical, _, _, err := Normalize(encodeTestImage(t, "png", 50, 50))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !IsCanonicalHeader(canonical) {
		t.Fatal("canonical output must carry a jpeg header")
	}
	if IsCanonicalHeader(encodeTestImage(t, "png", 10, 10)) {
		t.Fatal("png bytes must not pass the jpeg header check")
	}
	if IsCanonicalHeader(nil) || IsCanonicalHeader([]byte{0xFF, 0xD8}) {
		t.Fatal("short inputs must not pass")
	}
}

func TestPlaceholderIsStableJPEG(t *testing.T) {
	first := Placeholder()
	if !IsCanonicalHeader(first) {
		t.Fatal("placeholder is not jpeg")
	}
	cfg := thumbConfig(t, first)
	if cfg.Width != DefaultThumbnailMaxEdge || cfg.Height != DefaultThumbnailMaxEdge {
		t.Fatalf("placeholder = %dx%d", cfg.Width, cfg.Height)
	}
	if !bytes.Equal(first, Placeholder()) {
		t.Fatal("placeholder bytes must be stable across calls")
	}
}
