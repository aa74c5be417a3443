package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles carried in access tokens.
type UserRole string

const (
	RoleAdmin  UserRole = "ADMIN"
	RoleEditor UserRole = "EDITOR"
	RoleViewer UserRole = "VIEWER"
)

// JWTClaims represents the JWT payload for access tokens. Tokens are issued
// by the identity service; this API only verifies them.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	// SpaceIDs limits editors to the listed spaces; empty means all spaces.
	SpaceIDs []string `json:"space_ids,omitempty"`
	jwt.RegisteredClaims
}

// CanEditSpace reports whether the claims allow mutations in spaceID.
func (c *JWTClaims) CanEditSpace(spaceID string) bool {
	if c == nil {
		return false
	}
	if c.Role == RoleAdmin || len(c.SpaceIDs) == 0 {
		return true
	}
	for _, id := range c.SpaceIDs {
		if id == spaceID {
			return true
		}
	}
	return false
}
