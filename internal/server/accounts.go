package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/Harshil230205/e-book-backend/internal/app"
	"github.com/Harshil230205/e-book-backend/pkg/domain"
)

type signupRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	AdminSecret string `json:"adminSecret,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token,omitempty"`
	User    domain.User `json:"user"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	IsAdmin   bool            `json:"isAdmin"`
	Role      domain.UserRole `json:"role"`
	ExpiresAt time.Time       `json:"expiresAt"`
	User      domain.User     `json:"user"`
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		s.audit(r, "user.signup", "rate_limited")
		return
	}
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.audit(r, "user.signup", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	user, err := s.app.SignUp(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.audit(r, "user.signup", "fail", "reason", app.KindOf(err).String())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "user.signup", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, signupResponse{Message: "User registered successfully", User: user})
}

func (s *Server) handleAdminSignup(w http.ResponseWriter, r *http.Request) {
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		s.audit(r, "admin.signup", "rate_limited")
		return
	}
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.audit(r, "admin.signup", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	session, err := s.app.SignUpAdmin(r.Context(), req.Name, req.Email, req.Password, req.AdminSecret)
	if err != nil {
		s.audit(r, "admin.signup", "fail", "reason", app.KindOf(err).String())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "admin.signup", "success", "user_id", session.User.ID)
	writeJSON(w, http.StatusCreated, signupResponse{
		Message: "Admin registered successfully",
		Token:   session.Token,
		User:    session.User,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.login(w, r, "user.login", false)
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	s.login(w, r, "admin.login", true)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request, event string, asAdmin bool) {
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, event, "rate_limited")
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.audit(r, event, "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body", "")
		return
	}
	session, err := s.app.Login(r.Context(), req.Email, req.Password, asAdmin)
	if err != nil {
		s.audit(r, event, "fail", "reason", app.KindOf(err).String())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, event, "success", "user_id", session.User.ID)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     session.Token,
		IsAdmin:   session.User.IsAdmin(),
		Role:      session.User.Role,
		ExpiresAt: session.ExpiresAt,
		User:      session.User,
	})
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	users, err := s.app.ListUsers(r.Context(), page)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
