package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	jwt "github.com/golang-jwt/jwt/v5"
)

var (
	errTokenMissing = errors.New("authorization token missing")
	errNoUserClaim  = errors.New("token has no user_id claim")
)

// bearerToken reads the token from the Authorization header, or from the token
// query parameter for browsers that cannot set headers on a WebSocket.
func bearerToken(c *gin.Context) (string, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return "", errTokenMissing
		}
		return token, nil
	}
	if token := c.Query("token"); token != "" {
		return token, nil
	}
	return "", errTokenMissing
}

// validateAndGetUserID перевіряє HS256 токен і повертає claim user_id
func (h *Handler) validateAndGetUserID(tokenString string) (string, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return h.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	userID, _ := claims["user_id"].(string)
	if userID == "" {
		return "", errNoUserClaim
	}
	return userID, nil
}
