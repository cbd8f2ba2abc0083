package directory

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/edugate/internal/domain/models"
	"github.com/turtacn/edugate/pkg/errors"
)

type countingDirectory struct {
	calls int
	next  *Static
	err   error
}

func (d *countingDirectory) GetUser(ctx context.Context, userID string) (*models.User, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.next.GetUser(ctx, userID)
}

type hitCounter struct{ hits, misses int }

func (h *hitCounter) RecordCacheAccess(hit bool) {
	if hit {
		h.hits++
	} else {
		h.misses++
	}
}

func TestStatic(t *testing.T) {
	dir := NewStatic(map[string]string{"u1": "school-1"})

	u, err := dir.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, &models.User{ID: "u1", TenantID: "school-1", Active: true}, u)

	_, err = dir.GetUser(context.Background(), "u2")
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
}

func TestCached_ReadThrough(t *testing.T) {
	backing := &countingDirectory{next: NewStatic(map[string]string{"u1": "school-1"})}
	rec := &hitCounter{}
	dir := NewCached(backing, time.Minute, rec)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		u, err := dir.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "school-1", u.TenantID)
	}
	for i := 0; i < 3; i++ {
		_, err := dir.GetUser(ctx, "ghost")
		assert.True(t, errors.HasCode(err, errors.CodeNotFound))
	}

	assert.Equal(t, 2, backing.calls)
	assert.Equal(t, 4, rec.hits)
	assert.Equal(t, 2, rec.misses)

	dir.Invalidate("u1")
	_, err := dir.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, backing.calls)
}

func TestCached_DoesNotCacheFailures(t *testing.T) {
	backing := &countingDirectory{err: stderrors.New("db down")}
	dir := NewCached(backing, time.Minute, nil)

	for i := 0; i < 2; i++ {
		_, err := dir.GetUser(context.Background(), "u1")
		assert.Error(t, err)
	}
	assert.Equal(t, 2, backing.calls)
}
