package api

import "fmt"

// Numeric error-code range the server assigns to ingestion pipeline
// rejections: empty envelope, bad encoding, implausibly small payload,
// unknown signature, undecodable body, dimension bounds.
const (
	errCodeIngestionFirst = 1010
	errCodeIngestionLast  = 1015
)

// APIError is a structured error returned by the picstash HTTP API.
type APIError struct {
	Status    int
	Code      string
	ErrorCode int
	Message   string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Status > 0 {
		return fmt.Sprintf("api error: %d", e.Status)
	}
	return "api error"
}

// IsImageRejection reports whether the server refused the uploaded image
// itself, as opposed to the surrounding request being malformed.
func (e *APIError) IsImageRejection() bool {
	return e != nil && e.ErrorCode >= errCodeIngestionFirst && e.ErrorCode <= errCodeIngestionLast
}

// IsRetryable reports whether re-sending the identical request may succeed:
// the mutation lost a per-asset race or hit the concurrent-upload cap.
func (e *APIError) IsRetryable() bool {
	return e != nil && (e.Code == "conflict" || e.Code == "resource_exhausted")
}
