package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken signals a missing, malformed, or expired bearer token.
var ErrInvalidToken = errors.New("auth: invalid token")

// Service verifies bearer tokens issued by the external identity provider.
type Service struct {
	jwtSecret []byte
}

// NewService creates a token verification service sharing the provider's
// HMAC secret.
func NewService(jwtSecret string) *Service {
	return &Service{jwtSecret: []byte(jwtSecret)}
}

// GenerateToken mints a token for the identity. The production issuer lives
// in the external identity service; this is used by tooling and tests.
func (s *Service) GenerateToken(id Identity, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"email":          strings.ToLower(id.Email),
		"wallet_address": id.WalletAddress,
		"exp":            time.Now().Add(ttl).Unix(),
		"iat":            time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates a bearer token and returns the caller identity.
func (s *Service) VerifyToken(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return Identity{}, fmt.Errorf("%w: missing email claim", ErrInvalidToken)
	}

	id := Identity{Email: strings.ToLower(email)}
	if wallet, ok := claims["wallet_address"].(string); ok {
		id.WalletAddress = wallet
	}
	return id, nil
}
