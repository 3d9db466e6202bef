package middleware

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fleet_tracker/internal/models"
)

// TokenCodec mints and parses the bearer tokens the adapter hands out. The
// token is a deterministic function of the user id, so the mapping back to
// the id is lossless and no server-side session table exists.
type TokenCodec struct {
	secret []byte
}

func NewTokenCodec(secret string) *TokenCodec {
	return &TokenCodec{secret: []byte(secret)}
}

var ErrInvalidToken = errors.New("invalid or expired token")

// Mint issues a signed token carrying the user id and role.
func (tc *TokenCodec) Mint(userID uint, role models.Role) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     time.Now().Add(72 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tc.secret)
}

// Parse recovers the user id and role from a token string.
func (tc *TokenCodec) Parse(tokenStr string) (uint, models.Role, error) {
	if tokenStr == "" {
		return 0, "", ErrInvalidToken
	}
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return tc.secret, nil
	})
	if err != nil || !token.Valid {
		return 0, "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", ErrInvalidToken
	}
	rawID, ok := claims["user_id"].(float64)
	if !ok || rawID <= 0 {
		return 0, "", ErrInvalidToken
	}
	rawRole, _ := claims["role"].(string)
	role := models.Role(rawRole)
	if !role.Valid() {
		return 0, "", ErrInvalidToken
	}
	return uint(rawID), role, nil
}
