package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/event-calendar-api/internal/models"
	appErrors "github.com/noah-isme/event-calendar-api/pkg/errors"
	"github.com/noah-isme/event-calendar-api/pkg/response"
)

// RequireRoles rejects requests whose claims carry none of the given roles.
// Space level checks stay in the services, which know the event's space.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireEditor allows administrators and editors.
func RequireEditor() gin.HandlerFunc {
	return RequireRoles(models.RoleAdmin, models.RoleEditor)
}
