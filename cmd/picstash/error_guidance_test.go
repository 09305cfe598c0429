package main

import (
	"errors"
	"strings"
	"testing"

	"picstash/internal/api"
)

func TestFormatCLIErrorNil(t *testing.T) {
	if lines := formatCLIError(nil); lines != nil {
		t.Fatalf("expected nil, got %v", lines)
	}
}

func TestFormatCLIErrorAPIHints(t *testing.T) {
	err := &api.APIError{Status: 401, Code: "unauthorized", Message: "missing or invalid api token"}
	lines := formatCLIError(err)
	if len(lines) < 2 {
		t.Fatalf("expected hint lines, got %v", lines)
	}
	if !strings.Contains(strings.Join(lines, "\n"), "PICSTASH_API_TOKEN") {
		t.Fatalf("expected token hint, got %v", lines)
	}
}

func TestFormatCLIErrorConflictHint(t *testing.T) {
	err := &api.APIError{Status: 409, Code: "conflict", Message: "another replace is in flight"}
	joined := strings.Join(formatCLIError(err), "\n")
	if !strings.Contains(joined, "retry shortly") {
		t.Fatalf("expected retry hint, got %q", joined)
	}
}

func TestFormatCLIErrorImageRejectionHint(t *testing.T) {
	err := &api.APIError{Status: 400, Code: "invalid_argument", ErrorCode: 1013, Message: "no known image signature"}
	joined := strings.Join(formatCLIError(err), "\n")
	if !strings.Contains(joined, "JPEG, PNG, and GIF") {
		t.Fatalf("expected accepted-formats hint, got %q", joined)
	}
}

func TestFormatCLIErrorServerError(t *testing.T) {
	err := &api.APIError{Status: 500, Code: "internal", Message: "internal error"}
	joined := strings.Join(formatCLIError(err), "\n")
	if !strings.Contains(joined, "server logs") {
		t.Fatalf("expected server log hint, got %q", joined)
	}
}

func TestFormatCLIErrorPlain(t *testing.T) {
	lines := formatCLIError(errors.New("boom"))
	if len(lines) != 1 || lines[0] != "boom" {
		t.Fatalf("expected bare error, got %v", lines)
	}
}

func TestUniqueLines(t *testing.T) {
	got := uniqueLines([]string{"a", "", "b", "a", "b"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("got %v", got)
	}
}
