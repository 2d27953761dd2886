package utils

// Application constants
const (
	AppName    = "RescueLink"
	AppVersion = "1.0.0"

	// Pagination
	DefaultPageSize = 20
	MaxPageSize     = 100

	// Response status
	StatusSuccess = "success"
	StatusError   = "error"

	// Error messages
	ErrValidationFailed = "Validation failed"
	ErrInternalServer   = "Internal server error"
	ErrUnauthorized     = "Unauthorized"
	ErrForbidden        = "Forbidden"
	ErrStorageFailure   = "Event store unavailable; SOS capture cannot be made durable"

	// User roles carried in JWT claims
	RoleUser      = "user"
	RoleAuthority = "authority"

	// Context keys set by middleware
	ContextUserID    = "user_id"
	ContextUserRole  = "user_role"
	ContextRequestID = "request_id"
)
