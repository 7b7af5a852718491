package httpkit

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// TriggerSubject is the JWT subject carried by pipeline trigger tokens.
const TriggerSubject = "pipeline-trigger"

const (
	errMissingToken = "missing token"
	errInvalidToken = "invalid token"
)

// NewTriggerToken mints a short-lived HS256 token for calling the pipeline
// trigger endpoint.
func NewTriggerToken(secret string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", errors.New("trigger secret is empty")
	}

	claims := jwt.RegisteredClaims{
		Subject:   TriggerSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// TriggerAuth requires a valid trigger token when secret is non-empty. With an
// empty secret the route is open.
func TriggerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		rawToken, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c, errMissingToken)
			return
		}

		if err := parseTriggerToken(rawToken, secret); err != nil {
			abortUnauthorized(c, errInvalidToken)
			return
		}

		c.Next()
	}
}

func parseTriggerToken(rawToken, secret string) error {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return errors.New(errInvalidToken)
	}
	if claims.Subject != TriggerSubject {
		return errors.New(errInvalidToken)
	}
	return nil
}

func extractBearerToken(authHeader string) (string, bool) {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}

	rawToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if rawToken == "" {
		return "", false
	}

	return rawToken, true
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}
