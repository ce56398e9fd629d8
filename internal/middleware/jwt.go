package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lromeral/sitechat/internal/pkg/errcode"
	"github.com/lromeral/sitechat/internal/pkg/jwt"
	"github.com/lromeral/sitechat/internal/pkg/response"
)

const (
	ContextUserIDKey = "user_id"
	ContextRoleKey   = "user_role"
)

func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, secret)
		if !ok {
			response.Error(c, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextRoleKey, claims.Role)
		c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present but
// never rejects. The rate limiter keys off that identity to exempt
// authenticated callers.
func OptionalAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := bearerClaims(c, secret); ok {
			c.Set(ContextUserIDKey, claims.UserID)
			c.Set(ContextRoleKey, claims.Role)
		}
		c.Next()
	}
}

func bearerClaims(c *gin.Context, secret []byte) (*jwt.Claims, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, false
	}
	claims, err := jwt.ParseToken(parts[1], secret)
	if err != nil {
		return nil, false
	}
	return claims, true
}
