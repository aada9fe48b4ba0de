package usertoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/Harshil230205/e-book-backend/pkg/domain"
)

const (
	defaultIssuer = "ebook-backend"
	// DefaultTTL is the validity window of issued tokens.
	DefaultTTL = 30 * 24 * time.Hour
)

var (
	ErrMalformed        = errors.New("token malformed")
	ErrExpired          = errors.New("token expired")
	ErrInvalidSignature = errors.New("token signature invalid")
)

// Config configures token signing and verification.
type Config struct {
	Secret string
	Issuer string
	Leeway time.Duration
}

// Claims is the verified identity carried by a token.
type Claims struct {
	SubjectID string
	Role      domain.UserRole
	ExpiresAt time.Time
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 user tokens with a process-wide secret.
type Issuer struct {
	secret []byte
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// NewIssuer builds an issuer. An empty secret is rejected.
func NewIssuer(cfg Config) (*Issuer, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("token issuer requires a signing secret")
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	return &Issuer{
		secret: []byte(cfg.Secret),
		issuer: issuer,
		leeway: cfg.Leeway,
		now:    time.Now,
	}, nil
}

// Issue returns a signed token for the subject that expires after ttl.
func (i *Issuer) Issue(subjectID string, role domain.UserRole, ttl time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(subjectID) == "" {
		return "", time.Time{}, errors.New("token subject required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := i.now().UTC()
	expiresAt := now.Add(ttl)
	claims := tokenClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, expiry and issuer and returns the carried identity.
// Failures wrap ErrMalformed, ErrExpired or ErrInvalidSignature.
func (i *Issuer) Verify(token string) (Claims, error) {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(i.leeway),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Claims{}, classify(err)
	}
	if !parsed.Valid {
		return Claims{}, ErrMalformed
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return Claims{}, fmt.Errorf("%w: subject missing", ErrMalformed)
	}
	role := domain.UserRole(claims.Role)
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return Claims{}, fmt.Errorf("%w: unknown role", ErrMalformed)
	}
	out := Claims{SubjectID: subject, Role: role}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSignature
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
