package api

import "fmt"

// Numeric error_code values the CLI reacts to. They mirror the server's
// error table.
const (
	ErrCodeImmutableField    = 1012
	ErrCodeInvalidImageCount = 1015
	ErrCodePostNotFound      = 2001
	ErrCodeInvalidPassword   = 3002
	ErrCodeAdminForbidden    = 3004
	ErrCodeStorageWrite      = 4006
)

// APIError is a decoded error response from the imgpost API.
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
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Message != "":
		return e.Message
	case e.Status > 0:
		return fmt.Sprintf("imgpost api error: %d", e.Status)
	}
	return "imgpost api error"
}
