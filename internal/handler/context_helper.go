package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/event-calendar-api/internal/middleware"
	"github.com/noah-isme/event-calendar-api/internal/models"
)

// claimsFromContext returns the verified claims, or nil for anonymous callers.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// responseMeta copies the request metadata and adds extra.
func responseMeta(c *gin.Context, extra map[string]interface{}) map[string]interface{} {
	meta := make(map[string]interface{}, len(extra))
	for k, v := range middleware.ExtractMeta(c) {
		meta[k] = v
	}
	for k, v := range extra {
		meta[k] = v
	}
	return meta
}
