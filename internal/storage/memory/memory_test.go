package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-todo-list/internal/models"
	"github.com/pribylovaa/go-todo-list/internal/storage"
)

func newUser(email string) *models.User {
	now := time.Now().UTC()
	return &models.User{
		ID:           uuid.New(),
		FullName:     "Alice",
		Email:        email,
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestSaveAndLookup(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()
	u := newUser("a@x.com")

	require.NoError(t, st.SaveUser(ctx, u))

	byEmail, err := st.UserByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	byID, err := st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "Alice", byID.FullName)
}

func TestSaveUser_DuplicateEmail(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()

	require.NoError(t, st.SaveUser(ctx, newUser("a@x.com")))
	err := st.SaveUser(ctx, newUser("a@x.com"))
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestSaveUser_ConcurrentSameEmail_OnlyOneWins(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()

	const n = 16
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		oks int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := st.SaveUser(ctx, newUser("race@x.com")); err == nil {
				mu.Lock()
				oks++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, oks)
}

func TestLookup_NotFound(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()

	_, err := st.UserByEmail(ctx, "nobody@x.com")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.UserByID(ctx, uuid.New())
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteUser(t *testing.T) {
	t.Parallel()

	st := New()
	ctx := context.Background()
	u := newUser("gone@x.com")
	require.NoError(t, st.SaveUser(ctx, u))

	st.DeleteUser(ctx, u.ID)

	_, err := st.UserByID(ctx, u.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, st.SaveUser(ctx, newUser("gone@x.com")))
}

func TestRevocations(t *testing.T) {
	t.Parallel()

	r := NewRevocations()
	now := time.Now()
	r.now = func() time.Time { return now }
	ctx := context.Background()

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, r.Revoke(ctx, "jti-1", now.Add(time.Hour)))
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, err = r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, revoked)
}
