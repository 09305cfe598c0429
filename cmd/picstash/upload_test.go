package main

import (
	"strings"
	"testing"
)

func TestParseUploadManifest(t *testing.T) {
	raw := []byte(`
assets:
  - path: photos/beach.jpg
    name: beach day
  - path: /abs/cat.png
    owner: bob
`)
	manifest, err := parseUploadManifest(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(manifest.Assets) != 2 {
		t.Fatalf("entries = %d", len(manifest.Assets))
	}
	if manifest.Assets[0].Path != "photos/beach.jpg" || manifest.Assets[0].Name != "beach day" {
		t.Fatalf("entry 0 = %+v", manifest.Assets[0])
	}
	if manifest.Assets[1].Owner != "bob" {
		t.Fatalf("entry 1 = %+v", manifest.Assets[1])
	}
}

func TestParseUploadManifestRejections(t *testing.T) {
	if _, err := parseUploadManifest([]byte("assets: []")); err == nil {
		t.Fatal("empty manifest must be rejected")
	}
	if _, err := parseUploadManifest([]byte("assets:\n  - name: missing-path")); err == nil {
		t.Fatal("entry without path must be rejected")
	}
	if _, err := parseUploadManifest([]byte("{not yaml")); err == nil {
		t.Fatal("broken yaml must be rejected")
	}
}

func TestDataURIFor(t *testing.T) {
	uri := dataURIFor("x.png", []byte{1, 2, 3})
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("uri = %q", uri)
	}
	uri = dataURIFor("mystery.bin", []byte{1})
	if !strings.HasPrefix(uri, "data:application/octet-stream;base64,") {
		t.Fatalf("uri = %q", uri)
	}
}
