package postgres

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/pkg/errors"
)

type fakeRow struct {
	user *models.User
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.user.ID
	*dest[1].(*string) = r.user.TenantID
	*dest[2].(*bool) = r.user.Active
	return nil
}

type fakeQuerier struct {
	rows    map[string]fakeRow
	lastSQL string
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.lastSQL = sql
	if row, ok := q.rows[args[0].(string)]; ok {
		return row
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func TestUserDirectory_GetUser(t *testing.T) {
	q := &fakeQuerier{rows: map[string]fakeRow{
		"u1":     {user: &models.User{ID: "u1", TenantID: "school-1", Active: true}},
		"broken": {err: stderrors.New("conn reset")},
	}}
	dir := NewUserDirectory(q)
	ctx := context.Background()

	u, err := dir.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "school-1", u.TenantID)
	assert.True(t, u.Active)
	assert.Contains(t, q.lastSQL, "FROM users")

	_, err = dir.GetUser(ctx, "ghost")
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))

	_, err = dir.GetUser(ctx, "broken")
	assert.True(t, errors.HasCode(err, errors.CodeServerError))
}
