package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/mtms/internal/common"
	"github.com/dmitrijs2005/mtms/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers map[string]models.User

func (f fakeUsers) Get(_ context.Context, id string) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, common.ErrNotFound)
	}
	return &u, nil
}

func newManager(t *testing.T, users fakeUsers, ttl time.Duration) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".mtms_session")
	return NewManager(NewFileStore(path), users, []byte("test-secret"), ttl), path
}

func TestFileStore_RoundTrip(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "s"))

	_, err := fs.Load()
	require.ErrorIs(t, err, common.ErrNoSession)

	require.NoError(t, fs.Save("abc.def.ghi"))
	tok, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", tok)

	require.NoError(t, fs.Clear())
	_, err = fs.Load()
	require.ErrorIs(t, err, common.ErrNoSession)
	require.NoError(t, fs.Clear())
}

func TestManager_StartRestoreEnd(t *testing.T) {
	users := fakeUsers{"u1": {ID: "u1", Username: "ahmed", Role: models.RoleSubmitter}}
	m, path := newManager(t, users, time.Hour)
	ctx := context.Background()

	require.NoError(t, m.Start(&models.User{ID: "u1", Role: models.RoleSubmitter}))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())

	u, err := m.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ahmed", u.Username)

	require.NoError(t, m.End())
	_, err = m.Restore(ctx)
	require.ErrorIs(t, err, common.ErrNoSession)
}

func TestManager_ExpiredSessionIsDiscarded(t *testing.T) {
	users := fakeUsers{"u1": {ID: "u1", Role: models.RoleSubmitter}}
	m, path := newManager(t, users, -time.Minute)

	require.NoError(t, m.Start(&models.User{ID: "u1", Role: models.RoleSubmitter}))

	_, err := m.Restore(context.Background())
	require.ErrorIs(t, err, common.ErrNoSession)
	require.ErrorIs(t, err, common.ErrInvalidToken)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestManager_TamperedToken(t *testing.T) {
	m, path := newManager(t, fakeUsers{}, time.Hour)
	require.NoError(t, os.WriteFile(path, []byte("eyJhbGciOiJIUzI1NiJ9.e30.bad"), 0o600))

	_, err := m.Restore(context.Background())
	require.ErrorIs(t, err, common.ErrNoSession)
}

func TestManager_OrphanedUser(t *testing.T) {
	m, path := newManager(t, fakeUsers{}, time.Hour)
	require.NoError(t, m.Start(&models.User{ID: "gone", Role: models.RoleTreasury}))

	_, err := m.Restore(context.Background())
	require.ErrorIs(t, err, common.ErrNoSession)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLoadOrCreateSecret(t *testing.T) {
	path := SecretFile(filepath.Join(t.TempDir(), ".mtms_session"))

	first, err := LoadOrCreateSecret(path)
	require.NoError(t, err)
	assert.Len(t, first, secretLen)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := LoadOrCreateSecret(path)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	// a short or garbled key file is replaced
	require.NoError(t, os.WriteFile(path, []byte("secretKey"), 0o600))
	replaced, err := LoadOrCreateSecret(path)
	require.NoError(t, err)
	assert.Len(t, replaced, secretLen)
	assert.NotEqual(t, first, replaced)
}

func TestManager_RejectsTokenSignedWithOtherKey(t *testing.T) {
	users := fakeUsers{"u1": {ID: "u1", Username: "layla", Role: models.RoleTreasury}}
	dir := t.TempDir()
	files := NewFileStore(filepath.Join(dir, ".mtms_session"))

	key, err := LoadOrCreateSecret(SecretFile(filepath.Join(dir, ".mtms_session")))
	require.NoError(t, err)

	forger := NewManager(files, users, []byte("secretKey"), time.Hour)
	require.NoError(t, forger.Start(&models.User{ID: "u1", Role: models.RoleTreasury}))

	m := NewManager(files, users, key, time.Hour)
	_, err = m.Restore(context.Background())
	require.ErrorIs(t, err, common.ErrNoSession)
}
