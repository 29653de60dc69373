package middleware

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ShareClaims is the payload of a design share token. Share tokens let guests
// watch a design's presence stream as viewers without an account.
type ShareClaims struct {
	DesignID string `json:"designId"`
	jwt.RegisteredClaims
}

// NewShareToken signs a viewer share token for a design.
func NewShareToken(secret []byte, designID string, ttl time.Duration) (string, error) {
	claims := ShareClaims{
		DesignID: designID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseShareToken validates a share token and returns the design id it grants
// viewer access to.
func ParseShareToken(secret []byte, token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &ShareClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*ShareClaims)
	if !ok || !parsed.Valid || claims.DesignID == "" {
		return "", fmt.Errorf("invalid share token")
	}
	return claims.DesignID, nil
}
