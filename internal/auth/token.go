package auth

import (
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	errors "github.com/ortizpassos/trustpay/internal"
)

const issuer = "trustpay"

type TokenOption func(*JWTTokenGenerator)

func WithTokenClock(clock func() time.Time) TokenOption {
	return func(g *JWTTokenGenerator) { g.clock = clock }
}

// NewJWTTokenGenerator signs both token kinds with one HS256 secret; the token_type claim keeps them apart.
func NewJWTTokenGenerator(secret string, accessTTL, refreshTTL time.Duration, opts ...TokenOption) *JWTTokenGenerator {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	g := &JWTTokenGenerator{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     issuer,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *JWTTokenGenerator) AccessTokenTTL() time.Duration {
	return g.accessTTL
}

func (g *JWTTokenGenerator) GenerateAccessToken(userID, email string) (string, error) {
	return g.sign(userID, email, TokenTypeAccess, g.accessTTL)
}

func (g *JWTTokenGenerator) GenerateRefreshToken(userID, email string) (string, error) {
	return g.sign(userID, email, TokenTypeRefresh, g.refreshTTL)
}

func (g *JWTTokenGenerator) sign(userID, email, tokenType string, ttl time.Duration) (string, error) {
	now := g.clock()
	claims := &Claims{
		UserID:    userID,
		Email:     email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	return signed, nil
}

// ValidateToken verifies signature, expiry and token kind. Failures are ErrTokenExpired or ErrInvalidToken.
func (g *JWTTokenGenerator) ValidateToken(tokenString, tokenType string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(g.issuer),
		jwt.WithTimeFunc(g.clock),
		jwt.WithExpirationRequired(),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return g.secret, nil
	})
	if err != nil {
		if stdErrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrInvalidToken
	}

	if !token.Valid || claims.TokenType != tokenType || claims.UserID == "" {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
