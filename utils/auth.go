// utils/auth.go
package utils

import (
	"context"
	"net/http"
	"strings"

	"roombooking-backend/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const principalKey = "principal"

// TokenVerifier turns a raw bearer token into the caller's identity.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (models.Principal, error)
}

// Hash password
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// Check password
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// Auth middleware
func AuthMiddleware(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			RespondWithError(c, http.StatusUnauthorized, "Unauthenticated.")
			c.Abort()
			return
		}

		principal, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			RespondWithError(c, http.StatusUnauthorized, "Unauthenticated.")
			c.Abort()
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		principal, ok := CurrentPrincipal(c)
		if _, permitted := allowed[principal.Role]; !ok || !permitted {
			RespondWithError(c, http.StatusForbidden, "This action is unauthorized.")
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentPrincipal returns the identity stored by AuthMiddleware.
func CurrentPrincipal(c *gin.Context) (models.Principal, bool) {
	v, exists := c.Get(principalKey)
	if !exists {
		return models.Principal{}, false
	}
	principal, ok := v.(models.Principal)
	return principal, ok
}
