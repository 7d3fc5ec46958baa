package auth

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/sonarerr"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	store, err := catalog.Open(ctx, filepath.Join(t.TempDir(), "test.db"), 4, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return New(store, []byte("test-signing-key"), nil)
}

func TestCreateUserAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.CreateUser(ctx, "alice", "correct horse battery staple", false)
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEmpty(t, user.PasswordHash)

	token, loggedIn, err := svc.Login(ctx, "alice", "correct horse battery staple")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, loggedIn.ID)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateUser(ctx, "bob", "hunter2", false)
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "bob", "wrong-password")
	require.Error(t, err)
	assert.True(t, sonarerr.Is(err, sonarerr.KindUnauthenticated))
}

func TestAuthorizeRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	user, err := svc.CreateUser(ctx, "carol", "swordfish123", true)
	require.NoError(t, err)

	token, _, err := svc.Login(ctx, "carol", "swordfish123")
	require.NoError(t, err)

	userID, isAdmin, err := svc.Authorize(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.True(t, isAdmin)
}

func TestLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.CreateUser(ctx, "dave", "letmein12345", false)
	require.NoError(t, err)
	token, _, err := svc.Login(ctx, "dave", "letmein12345")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))

	_, _, err = svc.Authorize(ctx, token)
	require.Error(t, err)
	assert.True(t, sonarerr.Is(err, sonarerr.KindUnauthenticated))
}

func TestRequireAdmin(t *testing.T) {
	assert.NoError(t, RequireAdmin(true, "delete artist"))
	err := RequireAdmin(false, "delete artist")
	require.Error(t, err)
	assert.True(t, sonarerr.Is(err, sonarerr.KindPermissionDenied))
}
