// Package auth issues and verifies the staff tokens that staff devices
// present on every request.
package auth

import (
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gatherhall/doorsync/internal/common"
)

// StaffClaims carries staff identity and role assignments alongside the
// standard registered claims.
type StaffClaims struct {
	jwt.RegisteredClaims
	StaffID string   `json:"staff_id"`
	Roles   []string `json:"roles"`
}

// HasRole reports whether the token grants the given role.
func (c *StaffClaims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

func GenerateToken(staffID string, roles []string, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, StaffClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		StaffID: staffID,
		Roles:   roles,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func ParseToken(tokenString string, secretKey []byte) (*StaffClaims, error) {
	claims := &StaffClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
