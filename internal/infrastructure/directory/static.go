package directory

import (
	"context"

	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/pkg/errors"
)

// Static serves a fixed user table, used when no database is configured.
// Every listed user is active.
type Static struct {
	users map[string]*models.User
}

// NewStatic builds a directory from a user_id -> tenant_id table.
func NewStatic(tenants map[string]string) *Static {
	users := make(map[string]*models.User, len(tenants))
	for id, tenant := range tenants {
		users[id] = &models.User{ID: id, TenantID: tenant, Active: true}
	}
	return &Static{users: users}
}

// GetUser implements service.UserDirectory.
func (s *Static) GetUser(_ context.Context, userID string) (*models.User, error) {
	u, ok := s.users[userID]
	if !ok {
		return nil, errors.ErrNotFound("user not found").WithMetadata("user_id", userID)
	}
	cp := *u
	return &cp, nil
}
