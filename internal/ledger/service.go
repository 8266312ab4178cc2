// Package ledger records transfer requests and drives their confirmation
// state machine. Role checks happen here, not in callers.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/mtms/internal/common"
	"github.com/dmitrijs2005/mtms/internal/logging"
	"github.com/dmitrijs2005/mtms/internal/metrics"
	"github.com/dmitrijs2005/mtms/internal/models"
	"github.com/dmitrijs2005/mtms/internal/store"
	"github.com/dmitrijs2005/mtms/internal/validation"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultToggleAttempts bounds how often ToggleStatus retries after losing a
// race on the transfer version.
const DefaultToggleAttempts = 3

// RoleResolver looks up the caller of a ledger operation.
type RoleResolver interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// NewTransfer is the input of CreateTransfer.
type NewTransfer struct {
	CustomerName string          `json:"customerName" validate:"notblank"`
	BankAccount  string          `json:"bankAccount" validate:"notblank"`
	Amount       decimal.Decimal `json:"amount" validate:"positive"`
	CreatedBy    string          `json:"createdBy" validate:"notblank"`
	CreatorName  string          `json:"creatorName" validate:"notblank"`
}

// Filter narrows List. Nil fields do not constrain.
type Filter struct {
	CreatedBy *string
	Status    *models.TransferStatus
}

type Service struct {
	store    *store.Store
	users    RoleResolver
	validate *validator.Validate
	log      logging.Logger
	now      func() time.Time
	newID    func() string
	attempts int

	// afterRead runs between reading a version and the conditional write.
	afterRead func()
}

func NewService(st *store.Store, users RoleResolver, log logging.Logger) *Service {
	return &Service{
		store:    st,
		users:    users,
		validate: validation.New(),
		log:      log.With("component", "ledger"),
		now:      time.Now,
		newID:    uuid.NewString,
		attempts: DefaultToggleAttempts,
	}
}

// CreateTransfer records a pending transfer filed by a submitter on their
// own behalf.
func (s *Service) CreateTransfer(ctx context.Context, actorID string, in NewTransfer) (t *models.Transfer, err error) {
	defer func() { metrics.RecordOperation("create_transfer", err) }()

	if _, err := s.requireRole(ctx, actorID, models.RoleSubmitter); err != nil {
		return nil, err
	}
	if err := validation.Struct(s.validate, in); err != nil {
		return nil, err
	}
	if in.CreatedBy != actorID {
		return nil, fmt.Errorf("transfer on behalf of another user: %w", common.ErrUnauthorized)
	}

	rec := models.Transfer{
		ID:           s.newID(),
		CustomerName: in.CustomerName,
		BankAccount:  in.BankAccount,
		Amount:       in.Amount,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
		CreatedBy:    in.CreatedBy,
		CreatorName:  in.CreatorName,
		Status:       models.StatusPending,
	}

	err = s.store.Update(ctx, func(snap *models.Snapshot) error {
		if snap.FindUser(rec.CreatedBy) < 0 {
			return common.NewValidationError("createdBy", "unknown user")
		}
		snap.Transfers = append(snap.Transfers, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "transfer created",
		"transfer_id", rec.ID, "created_by", rec.CreatedBy, "amount", rec.Amount.String())
	out := rec.Clone()
	return &out, nil
}

// ToggleStatus flips a transfer between pending and reached. It retries a
// bounded number of times when a concurrent toggle changes the version
// between read and write.
func (s *Service) ToggleStatus(ctx context.Context, actorID, transferID string) (t *models.Transfer, err error) {
	defer func() { metrics.RecordOperation("toggle_status", err) }()

	if _, err := s.requireRole(ctx, actorID, models.RoleTreasury); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.attempts; attempt++ {
		version, err := s.currentVersion(transferID)
		if err != nil {
			return nil, err
		}
		if s.afterRead != nil {
			s.afterRead()
		}

		t, err = s.toggleAt(ctx, transferID, version)
		if !errors.Is(err, common.ErrConflict) {
			return t, err
		}
		s.log.Debug(ctx, "toggle lost race", "transfer_id", transferID, "attempt", attempt)
	}
	return nil, fmt.Errorf("transfer %s after %d attempts: %w", transferID, s.attempts, common.ErrConflict)
}

// ToggleStatusAt flips the status only if the transfer is still at
// expectedVersion.
func (s *Service) ToggleStatusAt(ctx context.Context, actorID, transferID string, expectedVersion int64) (t *models.Transfer, err error) {
	defer func() { metrics.RecordOperation("toggle_status", err) }()

	if _, err := s.requireRole(ctx, actorID, models.RoleTreasury); err != nil {
		return nil, err
	}
	return s.toggleAt(ctx, transferID, expectedVersion)
}

// Get returns one transfer or ErrNotFound.
func (s *Service) Get(_ context.Context, id string) (*models.Transfer, error) {
	var (
		out models.Transfer
		ok  bool
	)
	_ = s.store.View(func(snap *models.Snapshot) error {
		if i := snap.FindTransfer(id); i >= 0 {
			out, ok = snap.Transfers[i].Clone(), true
		}
		return nil
	})
	if !ok {
		return nil, fmt.Errorf("transfer %s: %w", id, common.ErrNotFound)
	}
	return &out, nil
}

// List returns the transfers matching f, newest first. Transfers created at
// the same instant are ordered by later insertion first.
func (s *Service) List(_ context.Context, f Filter) ([]models.Transfer, error) {
	out := []models.Transfer{}
	_ = s.store.View(func(snap *models.Snapshot) error {
		for i := len(snap.Transfers) - 1; i >= 0; i-- {
			t := snap.Transfers[i]
			if f.CreatedBy != nil && t.CreatedBy != *f.CreatedBy {
				continue
			}
			if f.Status != nil && t.Status != *f.Status {
				continue
			}
			out = append(out, t.Clone())
		}
		return nil
	})

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Service) toggleAt(ctx context.Context, transferID string, expectedVersion int64) (*models.Transfer, error) {
	var out models.Transfer
	err := s.store.Update(ctx, func(snap *models.Snapshot) error {
		i := snap.FindTransfer(transferID)
		if i < 0 {
			return fmt.Errorf("transfer %s: %w", transferID, common.ErrNotFound)
		}
		t := &snap.Transfers[i]
		if t.Version != expectedVersion {
			return fmt.Errorf("transfer %s at version %d, expected %d: %w",
				transferID, t.Version, expectedVersion, common.ErrConflict)
		}

		now := s.now().UTC().Truncate(time.Microsecond)
		t.Status = t.Status.Toggled()
		t.UpdatedAt = &now
		t.Version++
		out = t.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "transfer status changed",
		"transfer_id", out.ID, "status", string(out.Status), "version", out.Version)
	return &out, nil
}

func (s *Service) currentVersion(transferID string) (int64, error) {
	var (
		version int64
		ok      bool
	)
	_ = s.store.View(func(snap *models.Snapshot) error {
		if i := snap.FindTransfer(transferID); i >= 0 {
			version, ok = snap.Transfers[i].Version, true
		}
		return nil
	})
	if !ok {
		return 0, fmt.Errorf("transfer %s: %w", transferID, common.ErrNotFound)
	}
	return version, nil
}

func (s *Service) requireRole(ctx context.Context, actorID string, role models.Role) (*models.User, error) {
	actor, err := s.users.Get(ctx, actorID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("unknown actor %q: %w", actorID, common.ErrUnauthorized)
		}
		return nil, err
	}
	if actor.Role != role {
		return nil, fmt.Errorf("role %s required: %w", role, common.ErrUnauthorized)
	}
	return actor, nil
}
