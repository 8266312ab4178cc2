package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dmitrijs2005/mtms/internal/common"
	"github.com/dmitrijs2005/mtms/internal/logging"
	"github.com/dmitrijs2005/mtms/internal/models"
	"github.com/dmitrijs2005/mtms/internal/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyAdapter wraps Memory and fails saves on demand.
type flakyAdapter struct {
	*snapshot.Memory
	mu       sync.Mutex
	failSave error
	loadErr  error
}

func (f *flakyAdapter) Load(ctx context.Context) (*models.Snapshot, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.Memory.Load(ctx)
}

func (f *flakyAdapter) Save(ctx context.Context, s *models.Snapshot) error {
	f.mu.Lock()
	err := f.failSave
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.Memory.Save(ctx, s)
}

func (f *flakyAdapter) setFail(err error) {
	f.mu.Lock()
	f.failSave = err
	f.mu.Unlock()
}

func newStore(t *testing.T) (*Store, *flakyAdapter) {
	t.Helper()
	a := &flakyAdapter{Memory: snapshot.NewMemory()}
	s, err := Open(context.Background(), a, logging.Nop())
	require.NoError(t, err)
	return s, a
}

func addUser(id string) func(*models.Snapshot) error {
	return func(snap *models.Snapshot) error {
		snap.Users = append(snap.Users, models.User{ID: id, Username: "u-" + id, Role: models.RoleSubmitter})
		return nil
	}
}

func TestOpen_LoadError(t *testing.T) {
	a := &flakyAdapter{Memory: snapshot.NewMemory(), loadErr: common.Persistence("load", errors.New("io"))}
	_, err := Open(context.Background(), a, logging.Nop())
	require.ErrorIs(t, err, common.ErrPersistence)
}

func TestUpdate_WritesThrough(t *testing.T) {
	s, a := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, addUser("1")))

	saved, err := a.Memory.Load(ctx)
	require.NoError(t, err)
	require.Len(t, saved.Users, 1)
	assert.Equal(t, 1, a.Saves())

	require.NoError(t, s.View(func(snap *models.Snapshot) error {
		assert.Len(t, snap.Users, 1)
		return nil
	}))
}

func TestUpdate_FailedSaveLeavesStateUntouched(t *testing.T) {
	s, a := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, addUser("1")))

	a.setFail(errors.New("disk full"))
	err := s.Update(ctx, addUser("2"))
	require.ErrorIs(t, err, common.ErrPersistence)
	assert.Contains(t, err.Error(), "disk full")

	assert.Len(t, s.Snapshot().Users, 1)

	a.setFail(nil)
	require.NoError(t, s.Update(ctx, addUser("3")))
	snap := s.Snapshot()
	require.Len(t, snap.Users, 2)
	assert.Equal(t, "3", snap.Users[1].ID)
}

func TestUpdate_FnErrorSkipsSave(t *testing.T) {
	s, a := newStore(t)
	boom := errors.New("rejected")

	err := s.Update(context.Background(), func(snap *models.Snapshot) error {
		snap.Users = append(snap.Users, models.User{ID: "x"})
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, a.Saves())
	assert.Empty(t, s.Snapshot().Users)
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	s, _ := newStore(t)
	require.NoError(t, s.Update(context.Background(), addUser("1")))

	cp := s.Snapshot()
	cp.Users[0].Username = "changed"

	assert.Equal(t, "u-1", s.Snapshot().Users[0].Username)
}

func TestClose_FinalSaveAndRejectsMutations(t *testing.T) {
	s, a := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, addUser("1")))

	require.NoError(t, s.Close(ctx))
	assert.Equal(t, 2, a.Saves())

	err := s.Update(ctx, addUser("2"))
	require.ErrorIs(t, err, common.ErrClosed)

	// reads keep working and a second Close is a no-op
	assert.Len(t, s.Snapshot().Users, 1)
	require.NoError(t, s.Close(ctx))
	assert.Equal(t, 2, a.Saves())
}

func TestUpdate_SerialisesWriters(t *testing.T) {
	s, a := newStore(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Update(ctx, addUser(fmt.Sprint(i))))
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Snapshot().Users, n)
	assert.Equal(t, n, a.Saves())

	saved, err := a.Memory.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, saved.Users, n)
}
