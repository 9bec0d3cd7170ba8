package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/onlydeal/DevHub/internal/domain"
)

const issuer = "devhub-auth"

// Token type tags carried in the "typ" claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	// ErrInvalidSignature covers malformed tokens, foreign signatures and
	// unexpected algorithms.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrExpired is returned for a well-signed token past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrWrongType is returned when a token of one class is presented as another.
	ErrWrongType = errors.New("unexpected token type")
)

// AccessClaims are the claims of a short-lived access token.
type AccessClaims struct {
	Role string `json:"role"`
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims are the claims of a refresh token. The registered "jti" claim
// makes every issued refresh token distinct.
type RefreshClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// CodecConfig holds the secrets and lifetimes of both token classes.
type CodecConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenCodec signs and verifies access and refresh tokens with independent
// HS256 secrets.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenCodec creates a codec from cfg.
func NewTokenCodec(cfg CodecConfig) *TokenCodec {
	return &TokenCodec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
}

// WithClock replaces the time source used for issuing and verifying tokens.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	c.now = now
	return c
}

// RefreshTTL returns the lifetime of refresh tokens.
func (c *TokenCodec) RefreshTTL() time.Duration {
	return c.refreshTTL
}

// IssueAccess creates a signed access token for userID with role.
func (c *TokenCodec) IssueAccess(userID, role string) (string, error) {
	now := c.now().UTC()
	claims := &AccessClaims{
		Role: role,
		Type: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
		},
	}
	token, err := Sign(claims, c.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return token, nil
}

// IssueRefresh creates a signed refresh token for userID.
func (c *TokenCodec) IssueRefresh(userID string) (string, error) {
	now := c.now().UTC()
	claims := &RefreshClaims{
		Type: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.refreshTTL)),
		},
	}
	token, err := Sign(claims, c.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}
	return token, nil
}

// IssuePair creates a fresh access and refresh token for userID.
func (c *TokenCodec) IssuePair(userID, role string) (domain.TokenPair, error) {
	access, err := c.IssueAccess(userID, role)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := c.IssueRefresh(userID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess parses and validates an access token.
func (c *TokenCodec) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := Verify(token, claims, c.accessSecret, c.now); err != nil {
		return nil, err
	}
	if claims.Type != TypeAccess {
		return nil, ErrWrongType
	}
	return claims, nil
}

// VerifyRefresh parses and validates a refresh token.
func (c *TokenCodec) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := Verify(token, claims, c.refreshSecret, c.now); err != nil {
		return nil, err
	}
	if claims.Type != TypeRefresh {
		return nil, ErrWrongType
	}
	return claims, nil
}

// Sign encodes claims as an HS256 token signed with secret.
func Sign(claims jwt.Claims, secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify decodes token into claims, checking the signature against secret and
// the expiry against now. It returns ErrExpired or ErrInvalidSignature.
func Verify(token string, claims jwt.Claims, secret []byte, now func() time.Time) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !parsed.Valid {
		return ErrInvalidSignature
	}
	return nil
}
