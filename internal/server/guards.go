package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Harshil230205/e-book-backend/internal/app"
	"github.com/Harshil230205/e-book-backend/internal/usertoken"
	"github.com/Harshil230205/e-book-backend/pkg/domain"
)

// Identity is the verified caller attached to the request context.
type Identity struct {
	UserID string
	Role   domain.UserRole
}

type identityContextKey struct{}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the caller set by a token guard.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}

func callerFrom(r *http.Request) app.Caller {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		return app.Caller{}
	}
	return app.Caller{UserID: id.UserID, Role: id.Role}
}

// guard either passes the (possibly enriched) request on or writes a failure
// and returns false.
type guard func(w http.ResponseWriter, r *http.Request) (*http.Request, bool)

// guarded runs guards in order before h.
func (s *Server) guarded(h http.HandlerFunc, guards ...guard) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, g := range guards {
			next, ok := g(w, r)
			if !ok {
				return
			}
			r = next
		}
		h(w, r)
	})
}

func (s *Server) requireToken(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		s.audit(r, "auth_token", "missing")
		writeErrorCode(w, http.StatusUnauthorized, "no token provided", "", "AUTH_TOKEN_MISSING")
		return r, false
	}
	return s.verifyHeader(w, r, header)
}

func (s *Server) optionalToken(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return r, true
	}
	return s.verifyHeader(w, r, header)
}

func (s *Server) verifyHeader(w http.ResponseWriter, r *http.Request, header string) (*http.Request, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		s.audit(r, "auth_token", "bad_format")
		writeErrorCode(w, http.StatusBadRequest, "invalid token format", "", "AUTH_TOKEN_FORMAT")
		return r, false
	}
	claims, err := s.tokens.Verify(parts[1])
	if err != nil {
		s.audit(r, "auth_token", "rejected", "reason", tokenFailureReason(err))
		writeErrorCode(w, http.StatusUnauthorized, "invalid or expired token", tokenFailureReason(err), "AUTH_INVALID_TOKEN")
		return r, false
	}
	ctx := withIdentity(r.Context(), Identity{UserID: claims.SubjectID, Role: claims.Role})
	return r.WithContext(ctx), true
}

func tokenFailureReason(err error) string {
	switch {
	case errors.Is(err, usertoken.ErrExpired):
		return usertoken.ErrExpired.Error()
	case errors.Is(err, usertoken.ErrInvalidSignature):
		return usertoken.ErrInvalidSignature.Error()
	default:
		return usertoken.ErrMalformed.Error()
	}
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeErrorCode(w, http.StatusUnauthorized, "no token provided", "", "AUTH_TOKEN_MISSING")
		return r, false
	}
	if id.Role != domain.RoleAdmin {
		s.audit(r, "admin_access", "denied", "user_id", id.UserID)
		writeErrorCode(w, http.StatusForbidden, "admin access required", "", "AUTH_FORBIDDEN")
		return r, false
	}
	return r, true
}
