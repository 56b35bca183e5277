package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	MemberID string   `json:"member_id"`
	Codename string   `json:"codename"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenSource signs and validates session tokens. The secret comes from
// configuration; it is never compiled in.
type TokenSource struct {
	secret   []byte
	duration time.Duration
}

func NewTokenSource(secret string, duration time.Duration) *TokenSource {
	return &TokenSource{secret: []byte(secret), duration: duration}
}

// Generate creates a signed JWT for a member using HS256.
func (t *TokenSource) Generate(memberID, codename string, roles []string) (string, error) {
	now := time.Now()
	claims := &CustomClaims{
		MemberID: memberID,
		Codename: codename,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(t.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "paluwagan",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate parses a token string and checks signature and expiration.
func (t *TokenSource) Validate(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}
