// Package session remembers the signed-in user of the terminal client
// across restarts.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/mtms/internal/auth"
	"github.com/dmitrijs2005/mtms/internal/common"
	"github.com/dmitrijs2005/mtms/internal/filex"
	"github.com/dmitrijs2005/mtms/internal/models"
)

// FileStore keeps the session token in a file readable only by its owner.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Save(token string) error {
	return filex.WriteAtomic(f.path, 0o600, func(w io.Writer) error {
		_, err := io.WriteString(w, token)
		return err
	})
}

// Load returns the stored token or common.ErrNoSession.
func (f *FileStore) Load() (string, error) {
	data, ok, err := filex.ReadIfExists(f.path)
	if err != nil {
		return "", err
	}
	token := strings.TrimSpace(string(data))
	if !ok || token == "" {
		return "", common.ErrNoSession
	}
	return token, nil
}

func (f *FileStore) Clear() error {
	return filex.RemoveIfExists(f.path)
}

const secretLen = 32

// SecretFile names the key file kept next to the session file at sessionPath.
func SecretFile(sessionPath string) string {
	return sessionPath + ".key"
}

// LoadOrCreateSecret returns the signing key stored hex-encoded at path,
// generating and saving a random one when the file is missing or unusable.
func LoadOrCreateSecret(path string) ([]byte, error) {
	data, ok, err := filex.ReadIfExists(path)
	if err != nil {
		return nil, fmt.Errorf("read session key: %w", err)
	}
	if ok {
		key, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err == nil && len(key) >= secretLen {
			return key, nil
		}
	}

	key := common.GenerateRandByteArray(secretLen)
	err = filex.WriteAtomic(path, 0o600, func(w io.Writer) error {
		_, err := io.WriteString(w, hex.EncodeToString(key))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("save session key: %w", err)
	}
	return key, nil
}

// UserGetter resolves a user id to the current directory record.
type UserGetter interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// Manager ties tokens, their storage and the user directory together.
type Manager struct {
	files  *FileStore
	users  UserGetter
	secret []byte
	ttl    time.Duration
}

func NewManager(files *FileStore, users UserGetter, secret []byte, ttl time.Duration) *Manager {
	return &Manager{files: files, users: users, secret: secret, ttl: ttl}
}

// Start records u as the current user.
func (m *Manager) Start(u *models.User) error {
	token, err := auth.GenerateToken(u.ID, u.Role, m.secret, m.ttl)
	if err != nil {
		return err
	}
	if err := m.files.Save(token); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Restore returns the user of a still valid stored session. Expired,
// tampered or orphaned sessions are discarded and reported as
// common.ErrNoSession.
func (m *Manager) Restore(ctx context.Context) (*models.User, error) {
	token, err := m.files.Load()
	if err != nil {
		return nil, err
	}

	claims, err := auth.ParseToken(token, m.secret)
	if err != nil {
		_ = m.files.Clear()
		return nil, fmt.Errorf("%w: %w", common.ErrNoSession, err)
	}

	u, err := m.users.Get(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			_ = m.files.Clear()
			return nil, fmt.Errorf("%w: %w", common.ErrNoSession, err)
		}
		return nil, err
	}
	return u, nil
}

// End forgets the current user.
func (m *Manager) End() error {
	return m.files.Clear()
}
