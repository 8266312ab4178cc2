// Package identity implements the user directory: registration,
// authentication and lookups over the shared state store.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mtms/internal/common"
	"github.com/dmitrijs2005/mtms/internal/cryptox"
	"github.com/dmitrijs2005/mtms/internal/logging"
	"github.com/dmitrijs2005/mtms/internal/metrics"
	"github.com/dmitrijs2005/mtms/internal/models"
	"github.com/dmitrijs2005/mtms/internal/store"
	"github.com/dmitrijs2005/mtms/internal/validation"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// RegisterInput carries the fields of a new account. The password is
// hashed before anything is stored.
type RegisterInput struct {
	Username string      `json:"username" validate:"notblank"`
	Password string      `json:"password" validate:"required"`
	FullName string      `json:"fullName" validate:"notblank"`
	Role     models.Role `json:"role" validate:"oneof=user treasury"`
}

type Service struct {
	store    *store.Store
	hasher   cryptox.Hasher
	validate *validator.Validate
	log      logging.Logger
	now      func() time.Time
	newID    func() string

	// dummyHash is verified against when the username is unknown.
	dummyHash string
}

// NewService fails if hasher cannot produce the hash used for unknown
// usernames.
func NewService(st *store.Store, hasher cryptox.Hasher, log logging.Logger) (*Service, error) {
	dummy, err := hasher.Hash(common.GenerateRandByteArray(16))
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &Service{
		store:     st,
		hasher:    hasher,
		validate:  validation.New(),
		log:       log.With("component", "identity"),
		now:       time.Now,
		newID:     uuid.NewString,
		dummyHash: dummy,
	}, nil
}

// Register creates an account and persists it before returning. The
// returned user carries no credential.
func (s *Service) Register(ctx context.Context, in RegisterInput) (u *models.User, err error) {
	defer func() { metrics.RecordOperation("register", err) }()

	if err := validation.Struct(s.validate, in); err != nil {
		return nil, err
	}
	if s.usernameTaken(in.Username) {
		return nil, common.ErrDuplicateUsername
	}

	credential, err := s.hasher.Hash([]byte(in.Password))
	if errors.Is(err, cryptox.ErrPasswordTooLong) {
		return nil, common.NewValidationError("password", "too long")
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		ID:         s.newID(),
		Username:   in.Username,
		Credential: credential,
		FullName:   in.FullName,
		Role:       in.Role,
		CreatedAt:  s.now().UTC().Truncate(time.Microsecond),
	}

	err = s.store.Update(ctx, func(snap *models.Snapshot) error {
		// re-checked under the write lock; another registration may have won
		if snap.FindUsername(user.Username) >= 0 {
			return common.ErrDuplicateUsername
		}
		snap.Users = append(snap.Users, user)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID, "username", user.Username, "role", string(user.Role))
	pub := user.Public()
	return &pub, nil
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords both yield ErrAuthFailed after one hash verification.
func (s *Service) Authenticate(ctx context.Context, username, password string) (u *models.User, err error) {
	defer func() { metrics.RecordOperation("authenticate", err) }()

	var (
		found models.User
		ok    bool
	)
	_ = s.store.View(func(snap *models.Snapshot) error {
		if i := snap.FindUsername(username); i >= 0 {
			found, ok = snap.Users[i], true
		}
		return nil
	})

	if !ok {
		_, _ = s.hasher.Verify(s.dummyHash, []byte(password))
		s.log.Warn(ctx, "authentication failed", "username", username)
		return nil, common.ErrAuthFailed
	}

	match, verr := s.hasher.Verify(found.Credential, []byte(password))
	if verr != nil {
		s.log.Error(ctx, "stored credential unreadable", "user_id", found.ID, "error", verr)
		return nil, common.ErrAuthFailed
	}
	if !match {
		s.log.Warn(ctx, "authentication failed", "username", username)
		return nil, common.ErrAuthFailed
	}

	pub := found.Public()
	return &pub, nil
}

// List returns every user in registration order without credentials.
func (s *Service) List(_ context.Context) ([]models.User, error) {
	var out []models.User
	err := s.store.View(func(snap *models.Snapshot) error {
		out = make([]models.User, len(snap.Users))
		for i, u := range snap.Users {
			out[i] = u.Public()
		}
		return nil
	})
	return out, err
}

// Get returns the user with the given id or ErrNotFound.
func (s *Service) Get(_ context.Context, id string) (*models.User, error) {
	var (
		found models.User
		ok    bool
	)
	_ = s.store.View(func(snap *models.Snapshot) error {
		if i := snap.FindUser(id); i >= 0 {
			found, ok = snap.Users[i], true
		}
		return nil
	})
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, common.ErrNotFound)
	}
	pub := found.Public()
	return &pub, nil
}

func (s *Service) usernameTaken(username string) bool {
	taken := false
	_ = s.store.View(func(snap *models.Snapshot) error {
		taken = snap.FindUsername(username) >= 0
		return nil
	})
	return taken
}
