package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Harshil230205/e-book-backend/internal/app"
	"github.com/Harshil230205/e-book-backend/internal/util"
)

type errorResponse struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg, detail string) {
	writeErrorCode(w, status, msg, detail, errorCodeForStatus(status))
}

func writeErrorCode(w http.ResponseWriter, status int, msg, detail, code string) {
	writeJSON(w, status, errorResponse{
		Message:   msg,
		Code:      code,
		Error:     detail,
		RequestID: strings.TrimSpace(w.Header().Get(util.RequestIDHeader)),
	})
}

var appErrorCodes = []struct {
	err  error
	code string
}{
	{app.ErrUserExists, "AUTH_USER_EXISTS"},
	{app.ErrAdminExists, "AUTH_ADMIN_EXISTS"},
	{app.ErrUnauthorizedAdminSignup, "AUTH_ADMIN_SIGNUP_FORBIDDEN"},
	{app.ErrInvalidCredentials, "AUTH_INVALID_CREDENTIALS"},
	{app.ErrSignUpFieldsRequired, "AUTH_INVALID_REQUEST"},
	{app.ErrInvalidEmail, "AUTH_INVALID_EMAIL"},
	{app.ErrPasswordTooShort, "AUTH_PASSWORD_TOO_SHORT"},
	{app.ErrPasswordTooLong, "AUTH_PASSWORD_TOO_LONG"},
	{app.ErrUploaderNotFound, "AUTH_USER_NOT_FOUND"},
	{app.ErrFilesRequired, "BOOK_FILE_REQUIRED"},
	{app.ErrBookFieldsRequired, "BOOK_INVALID_REQUEST"},
	{app.ErrInvalidPublishYear, "BOOK_INVALID_PUBLISH_YEAR"},
	{app.ErrCoverNotImage, "BOOK_UNSUPPORTED_FILE_TYPE"},
	{app.ErrUploadFailed, "BOOK_UPLOAD_FAILED"},
	{app.ErrBookNotFound, "BOOK_NOT_FOUND"},
	{app.ErrAccessDenied, "BOOK_FORBIDDEN"},
}

func statusForKind(kind app.Kind) int {
	switch kind {
	case app.KindBadRequest:
		return http.StatusBadRequest
	case app.KindUnauthenticated:
		return http.StatusUnauthorized
	case app.KindForbidden:
		return http.StatusForbidden
	case app.KindNotFound:
		return http.StatusNotFound
	case app.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError renders an application error. Internal and upload failures
// are logged with their cause; the client only sees the operation that
// failed.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *app.Error
	if !errors.As(err, &appErr) {
		appErr = &app.Error{Kind: app.KindInternal, Message: "internal error", Err: err}
	}
	status := statusForKind(appErr.Kind)
	code := ""
	for _, item := range appErrorCodes {
		if errors.Is(err, item.err) {
			code = item.code
			break
		}
	}
	if code == "" {
		code = errorCodeForStatus(status)
	}
	if status >= http.StatusInternalServerError {
		logger(r).Error("request_failed", "kind", appErr.Kind.String(), "err", err)
		msg := "Internal server error"
		if appErr.Kind == app.KindUploadFailed {
			msg = appErr.Message
		}
		writeErrorCode(w, status, msg, appErr.Message, code)
		return
	}
	writeErrorCode(w, status, appErr.Message, "", code)
}

func errorCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "AUTH_FORBIDDEN"
	case http.StatusNotFound:
		return "SYSTEM_NOT_FOUND"
	case http.StatusConflict:
		return "REQUEST_CONFLICT"
	case http.StatusRequestEntityTooLarge:
		return "BOOK_FILE_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "SYSTEM_RATE_LIMITED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
