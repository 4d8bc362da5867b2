package server

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument   = 1000
	ErrCodeInvalidJSON       = 1001
	ErrCodeRequestTooLarge   = 1002
	ErrCodeInvalidQuery      = 1003
	ErrCodeInvalidID         = 1004
	ErrCodeMissingRequired   = 1009
	ErrCodeInvalidMultipart  = 1011
	ErrCodeImmutableField    = 1012
	ErrCodeInvalidImageCount = 1015

	// Domain state (2xxx)
	ErrCodePostNotFound = 2001
	ErrCodeBlobNotFound = 2003

	// Auth & limits (3xxx)
	ErrCodeUnauthorized      = 3001
	ErrCodeInvalidPassword   = 3002
	ErrCodeResourceExhausted = 3003
	ErrCodeAdminForbidden    = 3004

	// Internal/system (4xxx)
	ErrCodeInternal       = 4001
	ErrCodeStoreFailure   = 4002
	ErrCodeStorageWrite   = 4006
	ErrCodeCacheFailure   = 4007
	ErrCodeNotImplemented = 4005
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 401:
		return ErrCodeUnauthorized
	case 403:
		return ErrCodeInvalidPassword
	case 404:
		return ErrCodePostNotFound
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	case 501:
		return ErrCodeNotImplemented
	default:
		return 0
	}
}
