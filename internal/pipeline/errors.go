package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures. Envelope and validation kinds are
// client errors that short-circuit before any storage write; normalize and
// thumbnail kinds are server-side.
type Kind int

const (
	// Envelope (transport wrapper) failures.
	KindEmptyInput Kind = iota + 1
	KindBadEncoding
	KindTooSmall

	// Structural validation failures.
	KindBadSignature
	KindCorrupt
	KindBounds

	// Processing failures.
	KindNormalize
	KindThumbnail
)

func (k Kind) String() string {
	switch k {
	case KindEmptyInput:
		return "empty_input"
	case KindBadEncoding:
		return "bad_encoding"
	case KindTooSmall:
		return "payload_too_small"
	case KindBadSignature:
		return "bad_signature"
	case KindCorrupt:
		return "corrupt_image"
	case KindBounds:
		return "dimension_bounds"
	case KindNormalize:
		return "normalize_failed"
	case KindThumbnail:
		return "thumbnail_failed"
	default:
		return "unknown"
	}
}

// Error is a typed pipeline failure carrying its Kind.
type Error struct {
	Kind Kind
	err  error
}

func (e *Error) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, err: fmt.Errorf(format, args...)}
}

// KindOf extracts the pipeline Kind from err, or 0 when err is not a
// pipeline error.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return 0
}

// IsClientError reports whether err is a pipeline failure caused by the
// submitted bytes rather than by processing.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindEmptyInput, KindBadEncoding, KindTooSmall, KindBadSignature, KindCorrupt, KindBounds:
		return true
	default:
		return false
	}
}
