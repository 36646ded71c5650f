// Package auth guards the operator endpoints (manual scrape triggers and
// log cleanup) with a shared password and short-lived HS256 tokens.
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
	"golang.org/x/crypto/bcrypt"
)

const (
	issuer       = "tenderfeed"
	operatorID   = "operator"
	defaultTTL   = 12 * time.Hour
	bcryptPrefix = "$2"
	bearerPrefix = "Bearer "
)

// ErrInvalidCredentials is returned by Login for a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

type contextKey string

const operatorContextKey contextKey = "operator"

// Config holds authentication configuration.
type Config struct {
	JWTSecret     string
	AdminPassword string
	TokenDuration time.Duration
}

// Claims represents the JWT claims.
type Claims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// Authenticator issues and validates operator tokens.
type Authenticator struct {
	secret   []byte
	password string
	ttl      time.Duration
	now      func() time.Time
}

// New creates an authenticator. AdminPassword may be a bcrypt hash.
func New(cfg Config) (*Authenticator, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	if cfg.AdminPassword == "" {
		return nil, fmt.Errorf("admin password is required")
	}
	ttl := cfg.TokenDuration
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Authenticator{
		secret:   []byte(cfg.JWTSecret),
		password: cfg.AdminPassword,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Login checks the password and returns a signed token with its expiry.
func (a *Authenticator) Login(password string) (string, time.Time, error) {
	if !a.checkPassword(password) {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := a.now()
	expires := now.Add(a.ttl)
	claims := Claims{
		Operator: operatorID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

// Validate parses a token and returns the operator it was issued to.
func (a *Authenticator) Validate(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(a.now))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Operator == "" {
		return "", fmt.Errorf("invalid token")
	}
	return claims.Operator, nil
}

func (a *Authenticator) checkPassword(password string) bool {
	if strings.HasPrefix(a.password, bcryptPrefix) {
		return CheckPassword(password, a.password)
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
}

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a password with a bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		operator, err := a.Validate(strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), operatorContextKey, operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OperatorFromContext extracts the authenticated operator, if any.
func OperatorFromContext(ctx context.Context) (string, bool) {
	operator, ok := ctx.Value(operatorContextKey).(string)
	return operator, ok
}
