package auth

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/13102180531/ExcelQuery/pkg/apperrors"
	"github.com/13102180531/ExcelQuery/pkg/config"
)

// AuthService issues and validates access tokens. Use this interface for
// dependency injection and testing.
type AuthService interface {
	// Login verifies credentials and returns a signed access token.
	Login(username, password string) (string, error)

	// ValidateRequest extracts and verifies the bearer token on a request.
	ValidateRequest(r *http.Request) (*Claims, string, error)
}

type authService struct {
	secret   []byte
	tokenTTL time.Duration

	mu    sync.RWMutex
	users map[string][]byte // username -> bcrypt hash
	clock func() time.Time

	logger *zap.Logger
}

var _ AuthService = (*authService)(nil)

// NewAuthService creates the auth service with an in-memory user store
// seeded from configuration.
func NewAuthService(cfg config.AuthConfig, logger *zap.Logger) (AuthService, error) {
	s := &authService{
		secret:   []byte(cfg.Secret),
		tokenTTL: time.Duration(cfg.TokenTTLMinutes) * time.Minute,
		users:    make(map[string][]byte),
		clock:    time.Now,
		logger:   logger.Named("auth"),
	}

	if cfg.AdminUser != "" {
		if err := s.addUser(cfg.AdminUser, cfg.AdminPassword); err != nil {
			return nil, fmt.Errorf("seed admin user: %w", err)
		}
	}
	return s, nil
}

func (s *authService) addUser(username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = hash
	return nil
}

// Login verifies credentials against the user store and returns a signed
// HS256 token. Unknown user and wrong password are indistinguishable to
// the caller.
func (s *authService) Login(username, password string) (string, error) {
	s.mu.RLock()
	hash, ok := s.users[username]
	s.mu.RUnlock()

	if !ok {
		// Burn a comparison so unknown users take as long as bad passwords.
		_ = bcrypt.CompareHashAndPassword(
			[]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"),
			[]byte(password))
		return "", apperrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return "", apperrors.ErrInvalidCredentials
	}

	now := s.clock()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
		Username: username,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	s.logger.Info("Issued access token", zap.String("username", username))
	return signed, nil
}

// ValidateRequest verifies the Authorization bearer token and returns its
// claims plus the raw token string.
func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, "", fmt.Errorf("missing authorization header")
	}

	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, "", fmt.Errorf("authorization header is not a bearer token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock))
	if err != nil {
		return nil, "", fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, "", fmt.Errorf("invalid token")
	}

	return claims, tokenStr, nil
}
