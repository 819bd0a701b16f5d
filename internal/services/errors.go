package services

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired means no identity could be resolved for the request
	ErrAuthRequired = errors.New("authentication required")
	// ErrSessionExpired means the session's refresh credential is stale; the
	// local session has been invalidated and the user must sign in again
	ErrSessionExpired = errors.New("session expired, please sign in again")
	// ErrForbidden means the identity resolved but may not mutate this pin
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound means the referenced pin or photo does not exist
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken means the email already has an account
	ErrEmailTaken = errors.New("email is already registered")
	// ErrInvalidCredentials means email/password did not match
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError reports a rejected input field. It is raised before any
// network or database call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UploadError reports which photo in an attachment batch failed, so the
// caller knows which file to retry.
type UploadError struct {
	Index    int
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to upload photo %d (%s): %v", e.Index+1, e.Filename, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}
