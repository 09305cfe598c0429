package pipeline

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
)

// MinPlausibleBytes is the smallest decoded payload accepted as a possible
// image. Anything below it is rejected before structural validation.
const MinPlausibleBytes = 100

const dataURIPrefix = "data:"

type envelopeKind int

const (
	envelopeRaw envelopeKind = iota + 1
	envelopeDataURI
	envelopeBareBase64
)

// Envelope is the transport wrapper around submitted image bytes: raw
// binary, a data-URI string, or a bare base64 payload. It is resolved
// exactly once by Decode; no pixel-content validation happens here.
type Envelope struct {
	kind         envelopeKind
	raw          []byte
	text         string
	declaredMIME string
}

// RawBytes wraps already-decoded binary content plus a declared content type.
func RawBytes(data []byte, declaredMIME string) Envelope {
	return Envelope{kind: envelopeRaw, raw: data, declaredMIME: declaredMIME}
}

// DataURI wraps a `data:<mime>;base64,<payload>` string.
func DataURI(s string) Envelope {
	return Envelope{kind: envelopeDataURI, text: s}
}

// BareBase64 wraps a base64 payload with no data-URI prefix. fallbackMIME is
// the advisory content type when the producer supplied one out of band.
func BareBase64(s, fallbackMIME string) Envelope {
	return Envelope{kind: envelopeBareBase64, text: s, declaredMIME: fallbackMIME}
}

// Decode resolves the envelope into raw bytes plus the declared MIME hint.
// The hint is advisory only; the validator's sniffed type is authoritative.
func (e Envelope) Decode() ([]byte, string, error) {
	switch e.kind {
	case envelopeRaw:
		if len(e.raw) == 0 {
			return nil, "", errorf(KindEmptyInput, "empty payload")
		}
		if len(e.raw) < MinPlausibleBytes {
			return nil, "", errorf(KindTooSmall, "payload too small to be an image (%d bytes)", len(e.raw))
		}
		return e.raw, normalizeDeclaredMIME(e.declaredMIME), nil
	case envelopeDataURI:
		return decodeDataURI(e.text)
	case envelopeBareBase64:
		data, err := decodeBase64Payload(e.text)
		if err != nil {
			return nil, "", err
		}
		return data, normalizeDeclaredMIME(e.declaredMIME), nil
	default:
		return nil, "", errorf(KindEmptyInput, "no payload provided")
	}
}

func decodeDataURI(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", errorf(KindEmptyInput, "empty payload")
	}
	if !strings.HasPrefix(s, dataURIPrefix) {
		return nil, "", errorf(KindBadEncoding, "not a data uri")
	}
	rest := s[len(dataURIPrefix):]
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return nil, "", errorf(KindBadEncoding, "data uri has no payload separator")
	}
	meta, payload := rest[:comma], rest[comma+1:]
	if !strings.HasSuffix(meta, ";base64") {
		return nil, "", errorf(KindBadEncoding, "data uri is not base64 encoded")
	}
	declared := normalizeDeclaredMIME(strings.TrimSuffix(meta, ";base64"))

	data, err := decodeBase64Payload(payload)
	if err != nil {
		return nil, "", err
	}
	return data, declared, nil
}

func decodeBase64Payload(payload string) ([]byte, error) {
	cleaned := stripBase64Whitespace(payload)
	if cleaned == "" {
		return nil, errorf(KindEmptyInput, "empty payload")
	}
	data, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, &Error{Kind: KindBadEncoding, err: fmt.Errorf("invalid base64 payload: %w", err)}
	}
	if len(data) == 0 {
		return nil, errorf(KindBadEncoding, "base64 payload decoded to zero bytes")
	}
	if len(data) < MinPlausibleBytes {
		return nil, errorf(KindTooSmall, "payload too small to be an image (%d bytes)", len(data))
	}
	return data, nil
}

// stripBase64Whitespace removes the line wrapping some producers insert.
func stripBase64Whitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		default:
			return r
		}
	}, s)
}

func normalizeDeclaredMIME(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(parsed))
}
