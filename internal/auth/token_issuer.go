package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultAccessTTL  = 30 * time.Minute
	defaultRefreshTTL = 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingIssuer        = errors.New("issuer must be provided")
	errMissingAudience      = errors.New("audience must be provided")
	errMissingSubject       = errors.New("subject must be provided")
	errUnexpectedTokenType  = errors.New("unexpected token type")

	// ErrInvalidIssuerConfig wraps construction-time configuration failures.
	ErrInvalidIssuerConfig = errors.New("auth: invalid token issuer config")
)

// TokenIssuerConfig configures the HS256 token pair issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Clock         func() time.Time
}

// TokenPair bundles a short-lived access token with its refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// TokenIssuer issues and validates stateless signed access and refresh
// tokens. Tokens carry a token_type claim so a refresh token can never
// be replayed as an access token.
type TokenIssuer struct {
	config TokenIssuerConfig
	clock  func() time.Time
}

type tokenClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// NewTokenIssuer validates the configuration and constructs a TokenIssuer.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIssuerConfig, errMissingSigningSecret)
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIssuerConfig, errMissingIssuer)
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIssuerConfig, errMissingAudience)
	}

	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &TokenIssuer{
		config: TokenIssuerConfig{
			SigningSecret: cfg.SigningSecret,
			Issuer:        strings.TrimSpace(cfg.Issuer),
			Audience:      strings.TrimSpace(cfg.Audience),
			AccessTTL:     accessTTL,
			RefreshTTL:    refreshTTL,
			Clock:         clock,
		},
		clock: clock,
	}, nil
}

// IssuePair produces a signed access/refresh token pair for the subject.
func (i *TokenIssuer) IssuePair(_ context.Context, subject string) (TokenPair, error) {
	if strings.TrimSpace(subject) == "" {
		return TokenPair{}, errMissingSubject
	}

	access, expiresIn, err := i.sign(subject, tokenTypeAccess, i.config.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := i.sign(subject, tokenTypeRefresh, i.config.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: expiresIn}, nil
}

// Refresh validates the refresh token and issues a fresh access token.
func (i *TokenIssuer) Refresh(_ context.Context, refreshToken string) (string, error) {
	subject, err := i.validate(refreshToken, tokenTypeRefresh)
	if err != nil {
		return "", err
	}
	access, _, err := i.sign(subject, tokenTypeAccess, i.config.AccessTTL)
	return access, err
}

// ValidateAccess ensures the access token is well formed and returns its subject.
func (i *TokenIssuer) ValidateAccess(tokenString string) (string, error) {
	return i.validate(tokenString, tokenTypeAccess)
}

func (i *TokenIssuer) sign(subject, tokenType string, ttl time.Duration) (string, int64, error) {
	now := i.clock().UTC()
	expiresAt := now.Add(ttl).UTC()

	claims := tokenClaims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.config.Issuer,
			Audience:  []string{i.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.config.SigningSecret)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

func (i *TokenIssuer) validate(tokenString, wantType string) (string, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return i.config.SigningSecret, nil
		},
		jwt.WithAudience(i.config.Audience),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithTimeFunc(i.clock),
	)
	if err != nil {
		return "", err
	}
	if claims.TokenType != wantType {
		return "", fmt.Errorf("%w: got %q want %q", errUnexpectedTokenType, claims.TokenType, wantType)
	}
	if claims.Subject == "" {
		return "", errMissingSubject
	}
	return claims.Subject, nil
}
