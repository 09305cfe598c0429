package main

import (
	"context"
	"errors"
	"net"

	"picstash/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == "unauthorized" || apiErr.Code == "forbidden":
			lines = append(lines, "hint: verify PICSTASH_API_TOKEN configuration.")
		case apiErr.IsImageRejection():
			lines = append(lines, "hint: the file was rejected as an image; picstash accepts JPEG, PNG, and GIF within the dimension limits.")
		case apiErr.Code == "request_too_large":
			lines = append(lines, "hint: the image exceeds the upload limit (ingest.max_upload_bytes).")
		}
		if apiErr.IsRetryable() {
			lines = append(lines, "hint: another change to this photo is in flight or the server is busy; retry shortly.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify PICSTASH_API_URL points to a picstash server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase PICSTASH_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure a picstash server is running at PICSTASH_API_URL.",
			"hint: start a local server manually with: picstash srv",
			"hint: you can increase PICSTASH_HTTP_TIMEOUT for slower environments.",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
