package models

import "github.com/golang-jwt/jwt/v5"

// Claims represents the custom JWT claims accepted by the admission surfaces.
// It embeds the standard jwt.RegisteredClaims; the subject is the user id.
// Claims 代表准入层接受的自定义 JWT 声明，subject 即用户 ID。
type Claims struct {
	jwt.RegisteredClaims
	// TenantID is the school or organisation the user belongs to.
	// TenantID 是用户所属的学校或机构。
	TenantID string `json:"tenant_id"`
	// Role is the user's role inside the tenant.
	Role string `json:"role,omitempty"`
}

// UserID returns the authenticated user id carried by the token.
func (c *Claims) UserID() string {
	return c.Subject
}
