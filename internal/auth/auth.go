// Package auth resolves the calling user for HTTP requests.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/varshithreddy7/syntra-ai-agentic-assistant/internal/config"
)

// ErrUnauthenticated is returned when no identity can be resolved.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator resolves the user id of a request.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// New builds the authenticator selected by cfg.Mode.
func New(cfg config.AuthConfig) (Authenticator, error) {
	switch cfg.Mode {
	case "", "none":
		user := cfg.AnonymousUser
		if user == "" {
			user = "local"
		}
		return None{User: user}, nil
	case "static":
		if len(cfg.Tokens) == 0 {
			return nil, errors.New("auth.mode static requires auth.tokens")
		}
		return NewStatic(cfg.Tokens), nil
	case "jwt":
		return NewJWT(cfg.Secret, cfg.Issuer, cfg.TTL)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
	}
}

// None treats every request as the same user.
type None struct {
	User string
}

func (n None) Authenticate(r *http.Request) (string, error) {
	return n.User, nil
}

// Static maps fixed bearer tokens to user ids.
type Static struct {
	tokens map[string]string
}

func NewStatic(tokens map[string]string) *Static {
	copied := make(map[string]string, len(tokens))
	for token, user := range tokens {
		copied[token] = user
	}
	return &Static{tokens: copied}
}

func (s *Static) Authenticate(r *http.Request) (string, error) {
	token := BearerToken(r)
	if token == "" {
		return "", ErrUnauthenticated
	}
	for candidate, user := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			return user, nil
		}
	}
	return "", ErrUnauthenticated
}

// JWT verifies HS256 tokens whose subject is the user id.
type JWT struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWT(secret, issuer string, ttl time.Duration) (*JWT, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth.secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWT{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for userID, valid for ttl (the configured TTL when zero).
func (j *JWT) Issue(userID string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}
	if ttl <= 0 {
		ttl = j.ttl
	}
	now := j.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    j.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

// Verify parses token and returns its subject.
func (j *JWT) Verify(token string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing sub claim", ErrUnauthenticated)
	}
	return claims.Subject, nil
}

func (j *JWT) Authenticate(r *http.Request) (string, error) {
	token := BearerToken(r)
	if token == "" {
		return "", ErrUnauthenticated
	}
	return j.Verify(token)
}

// BearerToken pulls the token from the Authorization header.
func BearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

type contextKey struct{}

// WithUser stores the authenticated user id in ctx.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserFrom returns the authenticated user id, or "" when absent.
func UserFrom(ctx context.Context) string {
	user, _ := ctx.Value(contextKey{}).(string)
	return user
}
