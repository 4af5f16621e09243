package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const opaqueTokenBytes = 32

var (
	// ErrTokenExpired indicates the token's expiry is in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed indicates the token could not be parsed.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenNotYetValid indicates the token's not-before is in the future.
	ErrTokenNotYetValid = errors.New("token not yet valid")
	// ErrTokenVerification indicates signature or claim validation failed.
	ErrTokenVerification = errors.New("token verification failed")
	// ErrTokenGeneration indicates signing failed, typically a configuration problem.
	ErrTokenGeneration = errors.New("token generation failed")
)

// TokenConfig carries the signing secret and expiry windows. It is loaded
// once at startup and injected; a missing secret is a constructor error.
type TokenConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenClaims are the claims embedded in access and refresh tokens.
type TokenClaims struct {
	UserID string         `json:"uid"`
	Type   string         `json:"type"`
	Extra  map[string]any `json:"extra,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair bundles a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService mints and verifies signed tokens. It is stateless apart from
// its immutable configuration and safe for concurrent use.
type TokenService struct {
	cfg TokenConfig
}

// NewTokenService validates the configuration and returns a service.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: signing secret is required", ErrTokenGeneration)
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenService{cfg: cfg}, nil
}

// AccessTTL returns the configured access-token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.cfg.AccessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.cfg.RefreshTTL }

// IssueAccessToken signs a short-lived access token for the user. Extra
// claims are carried verbatim under the "extra" claim.
func (s *TokenService) IssueAccessToken(userID string, extra map[string]any) (string, error) {
	return s.issue(userID, TokenTypeAccess, s.cfg.AccessTTL, extra)
}

// IssueRefreshToken signs a refresh token for the user.
func (s *TokenService) IssueRefreshToken(userID string) (string, error) {
	return s.issue(userID, TokenTypeRefresh, s.cfg.RefreshTTL, nil)
}

// IssueTokenPair issues an access and refresh token; both are independently
// verifiable.
func (s *TokenService) IssueTokenPair(userID string) (TokenPair, error) {
	access, err := s.IssueAccessToken(userID, nil)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.IssueRefreshToken(userID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *TokenService) issue(userID, tokenType string, ttl time.Duration, extra map[string]any) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", ErrTokenGeneration)
	}

	now := time.Now().UTC()
	claims := TokenClaims{
		UserID: userID,
		Type:   tokenType,
		Extra:  extra,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}

	return signed, nil
}

// Verify parses and validates a token, returning its claims. Failures map to
// the closed error set so callers can give precise denial reasons.
func (s *TokenService) Verify(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		default:
			return nil, ErrTokenVerification
		}
	}

	if parsed == nil || !parsed.Valid || claims.UserID == "" {
		return nil, ErrTokenVerification
	}

	return claims, nil
}

// DecodeUnsafe returns the claims of a token without verifying signature or
// expiry. Diagnostics only, never for authorization decisions.
func (s *TokenService) DecodeUnsafe(token string) *TokenClaims {
	claims := &TokenClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}

// GenerateOpaqueToken returns a cryptographically random hex string with 256
// bits of entropy, used for password-reset links.
func GenerateOpaqueToken() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken calculates the SHA-256 hex digest of the provided value. Used to
// persist reset and refresh tokens without retaining the raw value.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
