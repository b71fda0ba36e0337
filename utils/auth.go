package utils

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const callerNameKey = "callerName"

var errNoRealmKey = errors.New("no realm public key configured")

// ParseRealmPublicKey accepts a PEM block or the bare base64 key published by the realm.
func ParseRealmPublicKey(key string) (*rsa.PublicKey, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	if !strings.HasPrefix(key, "-----BEGIN") {
		key = "-----BEGIN PUBLIC KEY-----\n" + key + "\n-----END PUBLIC KEY-----"
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("parse realm public key: %w", err)
	}
	return pub, nil
}

// AuthMiddleware requires a bearer token signed with RS256 by key and stores the
// caller's display name. Every request is rejected when key is nil.
func AuthMiddleware(key *rsa.PublicKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			ErrorResponse(c, NewUnauthorizedError("Not Authorized"))
			return
		}

		name, err := callerFromToken(strings.TrimSpace(raw), key)
		if err != nil {
			ErrorResponse(c, NewUnauthorizedError("Not Authorized"))
			return
		}
		c.Set(callerNameKey, name)
		c.Next()
	}
}

func callerFromToken(raw string, key *rsa.PublicKey) (string, error) {
	if key == nil {
		return "", errNoRealmKey
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return "", err
	}
	for _, claim := range []string{"name", "preferred_username"} {
		if v, ok := claims[claim].(string); ok && v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("token carries no caller name")
}

// CallerName returns the identity stored by AuthMiddleware.
func CallerName(c *gin.Context) string {
	return c.GetString(callerNameKey)
}
