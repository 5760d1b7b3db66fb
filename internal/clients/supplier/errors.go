package supplier

import (
	"errors"
	"fmt"
)

// ErrNoCredentials is returned by New when neither an API key nor an
// email/password pair is configured. The engine cannot start without one.
var ErrNoCredentials = errors.New("supplier: no credentials configured")

// tokenErrorCodes are the application codes the supplier returns for an
// invalid or expired access token.
var tokenErrorCodes = map[int]bool{
	1600001: true, // invalid token
	1600002: true, // token expired
	1600003: true, // refresh token invalid
}

// APIError is a non-success response from the supplier API
type APIError struct {
	Path       string
	HTTPStatus int
	Code       int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("supplier API error on %s (http %d, code %d, request %s): %s",
			e.Path, e.HTTPStatus, e.Code, e.RequestID, e.Message)
	}
	return fmt.Sprintf("supplier API error on %s (http %d, code %d): %s", e.Path, e.HTTPStatus, e.Code, e.Message)
}

// IsTokenError reports whether the error was caused by a rejected token
func (e *APIError) IsTokenError() bool {
	return e.HTTPStatus == 401 || tokenErrorCodes[e.Code]
}

// AuthError wraps a failed authentication or refresh exchange
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("supplier %s failed: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a supplier "not found" style API error
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.HTTPStatus == 404 || apiErr.Code == 1600100
}
