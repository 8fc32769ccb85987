package jwtutil

import (
	"time"

	"github.com/ValmirAutomacao/optusadmin-sub000/pkg/config"
	"github.com/golang-jwt/jwt/v5"
)

var (
	secret          = []byte("secret-key")
	expirationHours = 24
)

// Init configures the signing key and expiration from application config
func Init(cfg *config.Config) {
	secret = []byte(cfg.JWT.SigningKey)
	expirationHours = cfg.JWT.ExpirationHours
}

// UserClaims represents the JWT claims for user authentication
type UserClaims struct {
	Email    string `json:"email"`
	UserID   uint   `json:"user_id"`
	TenantID *uint  `json:"tenant_id,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken creates a JWT token with user and tenant information
func GenerateToken(email string, userID uint, tenantID *uint, role string) (string, error) {
	claims := UserClaims{
		Email:    email,
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(expirationHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken validates and parses the JWT token
func ValidateToken(tokenString string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*UserClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}
