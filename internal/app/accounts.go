package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/Harshil230205/e-book-backend/internal/util"
	"github.com/Harshil230205/e-book-backend/pkg/auth"
	"github.com/Harshil230205/e-book-backend/pkg/domain"
	"github.com/Harshil230205/e-book-backend/pkg/store"
)

// Session is the result of a successful login or admin signup.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

// UserPage is one page of the admin user listing.
type UserPage struct {
	Users       []domain.User `json:"users"`
	TotalPages  int           `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	TotalUsers  int64         `json:"totalUsers"`
}

// SignUp registers an ordinary user.
func (a *App) SignUp(ctx context.Context, name, email, password string) (domain.User, error) {
	name, email, err := validateSignUp(name, email, password)
	if err != nil {
		return domain.User{}, err
	}
	_, exists, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return domain.User{}, internal("check email", err)
	}
	if exists {
		return domain.User{}, ErrUserExists
	}
	return a.createUser(ctx, name, email, password, domain.RoleUser)
}

// SignUpAdmin registers an admin when secret matches the configured admin
// secret, and returns a session for the new account.
func (a *App) SignUpAdmin(ctx context.Context, name, email, password, secret string) (Session, error) {
	if !a.adminSecretMatches(secret) {
		return Session{}, ErrUnauthorizedAdminSignup
	}
	name, email, err := validateSignUp(name, email, password)
	if err != nil {
		return Session{}, err
	}
	existing, exists, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return Session{}, internal("check email", err)
	}
	if exists {
		if existing.IsAdmin() {
			return Session{}, ErrAdminExists
		}
		return Session{}, ErrUserExists
	}
	user, err := a.createUser(ctx, name, email, password, domain.RoleAdmin)
	if err != nil {
		return Session{}, err
	}
	return a.issueSession(user)
}

// Login verifies credentials. With asAdmin set, only admin accounts match.
func (a *App) Login(ctx context.Context, email, password string, asAdmin bool) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return Session{}, internal("fetch user", err)
	}
	if !ok || (asAdmin && !user.IsAdmin()) {
		return Session{}, ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}
	return a.issueSession(user)
}

// ListUsers returns one page of accounts without password hashes.
func (a *App) ListUsers(ctx context.Context, page Page) (UserPage, error) {
	users, total, err := a.store.ListUsers(ctx, page.offset(), page.Size)
	if err != nil {
		return UserPage{}, internal("list users", err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	if users == nil {
		users = []domain.User{}
	}
	return UserPage{
		Users:       users,
		TotalPages:  totalPages(total, page.Size),
		CurrentPage: page.Number,
		TotalUsers:  total,
	}, nil
}

func (a *App) adminSecretMatches(secret string) bool {
	if a.adminSecret == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(a.adminSecret)) == 1
}

func (a *App) createUser(ctx context.Context, name, email, password string, role domain.UserRole) (domain.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, internal("hash password", err)
	}
	now := a.now()
	user := domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, internal("save user", err)
	}
	return user, nil
}

func (a *App) issueSession(user domain.User) (Session, error) {
	token, expiresAt, err := a.tokens.Issue(user.ID, user.Role, a.tokenTTL)
	if err != nil {
		return Session{}, internal("issue token", err)
	}
	user.PasswordHash = ""
	return Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func validateSignUp(name, email, password string) (string, string, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return "", "", ErrSignUpFieldsRequired
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", "", ErrInvalidEmail
	}
	switch err := auth.ValidatePassword(password); {
	case errors.Is(err, auth.ErrPasswordTooLong):
		return "", "", ErrPasswordTooLong
	case err != nil:
		return "", "", ErrPasswordTooShort
	}
	return name, email, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
