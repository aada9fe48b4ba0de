package app

import "errors"

// Kind classifies an application failure. The HTTP layer maps kinds onto
// status codes.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindUploadFailed
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUploadFailed:
		return "upload_failed"
	default:
		return "internal"
	}
}

// Error carries a client-facing message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors of the same kind and message, so a wrapped failure still
// compares equal to its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

// KindOf reports the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func badRequest(msg string) *Error { return newError(KindBadRequest, msg, nil) }

func internal(msg string, cause error) *Error { return newError(KindInternal, msg, cause) }

var (
	ErrSignUpFieldsRequired    = badRequest("Name, email and password are required")
	ErrInvalidEmail            = badRequest("Invalid email address")
	ErrPasswordTooShort        = badRequest("Password must be at least 6 characters")
	ErrPasswordTooLong         = badRequest("Password must be at most 72 bytes")
	ErrUserExists              = newError(KindConflict, "User already exists", nil)
	ErrAdminExists             = newError(KindConflict, "Admin already exists", nil)
	ErrUnauthorizedAdminSignup = newError(KindForbidden, "Unauthorized admin signup", nil)
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = newError(KindUnauthenticated, "Invalid credentials", nil)

	ErrFilesRequired        = badRequest("Cover image and PDF are required")
	ErrBookFieldsRequired   = badRequest("Title, description and category are required")
	ErrInvalidPublishYear   = badRequest("Invalid publish year")
	ErrCoverNotImage        = badRequest("Cover image must be an image file")
	ErrUploadFailed         = newError(KindUploadFailed, "File upload failed", nil)
	ErrBookNotFound         = newError(KindNotFound, "Book not found", nil)
	ErrAccessDenied         = newError(KindForbidden, "Access denied", nil)
	ErrUploaderNotFound     = newError(KindUnauthenticated, "User not found", nil)
)
