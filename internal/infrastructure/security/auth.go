// Package security provides bearer-token authentication for API clients
package security

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartcrop/advisor/internal/ports/outbound"
)

const (
	issuer   = "smartcrop"
	audience = "smartcrop-api"
)

// ErrTokenRevoked is returned for tokens revoked by logout.
var ErrTokenRevoked = errors.New("token has been revoked")

// TokenType represents different types of JWT tokens
type TokenType string

const (
	AccessToken TokenType = "access"
)

// Claims represents JWT claims structure
type Claims struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256 access tokens. Revocations are
// kept in the cache until the token would have expired anyway.
type TokenService struct {
	secret     []byte
	expiration time.Duration
	revoked    outbound.CacheRepository
	logger     *zap.Logger
	now        func() time.Time
}

// NewTokenService creates a new token service
func NewTokenService(secret string, expiration time.Duration, revoked outbound.CacheRepository, logger *zap.Logger) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		expiration: expiration,
		revoked:    revoked,
		logger:     logger,
		now:        time.Now,
	}
}

// Issue creates a new access token for a farmer
func (s *TokenService) Issue(userID uuid.UUID, username string) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.expiration)
	claims := &Claims{
		UserID:    userID.String(),
		Username:  username,
		TokenType: AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID.String(),
			Audience:  []string{audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate parses a token and checks signature, expiry, audience and
// revocation
func (s *TokenService) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.TokenType != AccessToken {
		return nil, fmt.Errorf("invalid token type: %s", claims.TokenType)
	}

	revoked, err := s.revoked.Exists(ctx, revokedKey(claims.ID))
	if err != nil {
		s.logger.Warn("Failed to check token revocation", zap.Error(err))
	} else if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// Revoke blacklists the token until its expiry
func (s *TokenService) Revoke(ctx context.Context, claims *Claims) error {
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := claims.ExpiresAt.Sub(s.now()); remaining > 0 {
			ttl = remaining
		}
	}
	return s.revoked.Set(ctx, revokedKey(claims.ID), []byte("revoked"), ttl)
}

// UserUUID returns the token subject as a UUID
func (c *Claims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

func revokedKey(tokenID string) string {
	return "revoked_token:" + tokenID
}
