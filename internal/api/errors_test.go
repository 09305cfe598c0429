package api

import "testing"

func TestAPIErrorMessage(t *testing.T) {
	cases := []struct {
		name string
		err  *APIError
		want string
	}{
		{"code and message", &APIError{Code: "conflict", Message: "replace in flight"}, "conflict: replace in flight"},
		{"message only", &APIError{Message: "boom"}, "boom"},
		{"status only", &APIError{Status: 502}, "api error: 502"},
		{"empty", &APIError{}, "api error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAPIErrorIsImageRejection(t *testing.T) {
	for _, code := range []int{1010, 1013, 1015} {
		if !(&APIError{ErrorCode: code}).IsImageRejection() {
			t.Fatalf("code %d should classify as image rejection", code)
		}
	}
	for _, code := range []int{0, 1002, 1004, 2001, 4001} {
		if (&APIError{ErrorCode: code}).IsImageRejection() {
			t.Fatalf("code %d should not classify as image rejection", code)
		}
	}
}

func TestAPIErrorIsRetryable(t *testing.T) {
	if !(&APIError{Code: "conflict"}).IsRetryable() {
		t.Fatal("conflict should be retryable")
	}
	if !(&APIError{Code: "resource_exhausted"}).IsRetryable() {
		t.Fatal("resource_exhausted should be retryable")
	}
	if (&APIError{Code: "invalid_argument"}).IsRetryable() {
		t.Fatal("invalid_argument is not retryable")
	}
}
