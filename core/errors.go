package core

import "github.com/pkg/errors"

var (
	// ErrNotAuthenticated means no valid caller identity could be established.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrForbidden means the caller is known but lacks role, tenant or ownership rights.
	ErrForbidden = errors.New("permission denied")
	// ErrAuthenticationFailed is returned by identity providers on bad credentials.
	ErrAuthenticationFailed = errors.New("invalid credentials")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError is returned when a resource does not exist within the caller's authorized scope.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ConflictError reports a domain uniqueness violation (duplicate enrollment, attendance, grade...).
type ConflictError struct {
	Message string
}

func NewConflictError(msg string) error {
	return &ConflictError{Message: msg}
}

func (err ConflictError) Error() string {
	return err.Message
}

func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// UpstreamError wraps a failure to reach the table store or the identity provider.
// It does not implement Cause so errors.Cause stops here; Unwrap still exposes the original error.
type UpstreamError struct {
	Op  string
	Err error
}

func NewUpstreamError(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}

func (err UpstreamError) Error() string {
	return "upstream unavailable: " + err.Op + ": " + err.Err.Error()
}

func (err UpstreamError) Unwrap() error {
	return err.Err
}

func IsUpstream(err error) bool {
	var u *UpstreamError
	return errors.As(err, &u)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
