package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/internal/domain/service"
	apperrors "github.com/turtacn/edugate/pkg/errors"
)

var _ service.UserDirectory = (*UserDirectory)(nil)

const selectUserSQL = `SELECT id, tenant_id, active FROM users WHERE id = $1`

// Querier is the subset of pgxpool.Pool the directory needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserDirectory reads accounts from the users table.
type UserDirectory struct {
	db Querier
}

// NewUserDirectory creates a directory over db.
func NewUserDirectory(db Querier) *UserDirectory {
	return &UserDirectory{db: db}
}

// GetUser implements service.UserDirectory.
func (d *UserDirectory) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := d.db.QueryRow(ctx, selectUserSQL, userID).Scan(&u.ID, &u.TenantID, &u.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound("user not found").WithMetadata("user_id", userID)
	}
	if err != nil {
		return nil, apperrors.ErrServerError("failed to load user").WithCause(err)
	}
	return &u, nil
}
