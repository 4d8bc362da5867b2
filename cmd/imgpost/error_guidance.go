package main

import (
	"context"
	"errors"
	"fmt"
	"net"

	"imgpost/internal/api"
	"imgpost/internal/models"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode {
		case api.ErrCodeInvalidPassword:
			lines = append(lines, "hint: the post password did not match; pass the password used at creation with --password.")
		case api.ErrCodeAdminForbidden:
			lines = append(lines, "hint: admin routes need server.admin_token; set IMGPOST_ADMIN_TOKEN to the server's value.")
		case api.ErrCodeInvalidImageCount:
			lines = append(lines, fmt.Sprintf("hint: a post holds at most %d images.", models.MaxPostImages))
		case api.ErrCodeImmutableField:
			lines = append(lines, "hint: a post's author is fixed at creation.")
		case api.ErrCodePostNotFound:
			lines = append(lines, "hint: list existing posts with: imgpost post list")
		case api.ErrCodeStorageWrite:
			lines = append(lines, "hint: the blob backend rejected a write; check storage.backend settings and server logs.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify IMGPOST_API_URL points to an imgpost server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase IMGPOST_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure an imgpost server is running at IMGPOST_API_URL.",
			"hint: start local server manually with: imgpost srv",
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
