package legacy

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/mtms/internal/cryptox"
	"github.com/dmitrijs2005/mtms/internal/identity"
	"github.com/dmitrijs2005/mtms/internal/ledger"
	"github.com/dmitrijs2005/mtms/internal/logging"
	"github.com/dmitrijs2005/mtms/internal/models"
	"github.com/dmitrijs2005/mtms/internal/store"
	"github.com/dmitrijs2005/mtms/internal/validation"
	"github.com/go-playground/validator/v10"
)

// Status labels used by the legacy client.
const (
	LabelNotReached = "لم يتم الوصول"
	LabelReached    = "تم الوصول"
)

// Result counts what an import did.
type Result struct {
	UsersAdded       int
	UsersSkipped     int
	TransfersAdded   int
	TransfersSkipped int
}

// Importer applies the same input rules as registration and transfer
// creation, so imported records satisfy every store invariant.
type Importer struct {
	store    *store.Store
	hasher   cryptox.Hasher
	validate *validator.Validate
	log      logging.Logger
}

func NewImporter(st *store.Store, hasher cryptox.Hasher, log logging.Logger) *Importer {
	return &Importer{
		store:    st,
		hasher:   hasher,
		validate: validation.New(),
		log:      log.With("component", "legacy"),
	}
}

// ImportFile parses the export at path and merges it.
func (im *Importer) ImportFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open legacy export: %w", err)
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return Result{}, err
	}
	return im.Import(ctx, d)
}

// Import merges d into the store in a single update. Records whose id or
// username already exists are skipped, so importing the same export twice
// changes nothing. Rows that would break store invariants (blank fields,
// unknown role or status, non-positive amount, unknown creator) are skipped
// and logged.
func (im *Importer) Import(ctx context.Context, d *Dump) (Result, error) {
	var res Result

	users := make([]models.User, 0, len(d.Users))
	for _, lu := range d.Users {
		u, err := im.convertUser(lu)
		if err != nil {
			im.log.Warn(ctx, "legacy user skipped", "user_id", lu.ID, "reason", err.Error())
			res.UsersSkipped++
			continue
		}
		users = append(users, u)
	}

	transfers := make([]models.Transfer, 0, len(d.Transfers))
	for _, lt := range d.Transfers {
		t, err := im.convertTransfer(lt)
		if err != nil {
			im.log.Warn(ctx, "legacy transfer skipped", "transfer_id", lt.ID, "reason", err.Error())
			res.TransfersSkipped++
			continue
		}
		transfers = append(transfers, t)
	}
	sort.SliceStable(transfers, func(i, j int) bool {
		return transfers[i].CreatedAt.Before(transfers[j].CreatedAt)
	})

	err := im.store.Update(ctx, func(snap *models.Snapshot) error {
		r := Result{UsersSkipped: res.UsersSkipped, TransfersSkipped: res.TransfersSkipped}
		for _, u := range users {
			if snap.FindUser(u.ID) >= 0 || snap.FindUsername(u.Username) >= 0 {
				r.UsersSkipped++
				continue
			}
			snap.Users = append(snap.Users, u)
			r.UsersAdded++
		}
		for _, t := range transfers {
			if snap.FindTransfer(t.ID) >= 0 || snap.FindUser(t.CreatedBy) < 0 {
				r.TransfersSkipped++
				continue
			}
			snap.Transfers = append(snap.Transfers, t)
			r.TransfersAdded++
		}
		res = r
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	im.log.Info(ctx, "legacy import finished",
		"users_added", res.UsersAdded, "users_skipped", res.UsersSkipped,
		"transfers_added", res.TransfersAdded, "transfers_skipped", res.TransfersSkipped)
	return res, nil
}

func (im *Importer) convertUser(lu User) (models.User, error) {
	if strings.TrimSpace(lu.ID) == "" {
		return models.User{}, fmt.Errorf("missing id")
	}
	role, ok := models.ParseRole(lu.Role)
	if !ok {
		return models.User{}, fmt.Errorf("unknown role %q", lu.Role)
	}
	err := validation.Struct(im.validate, identity.RegisterInput{
		Username: lu.Username,
		Password: lu.Password,
		FullName: lu.FullName,
		Role:     role,
	})
	if err != nil {
		return models.User{}, err
	}

	credential, err := im.hasher.Hash([]byte(lu.Password))
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}
	return models.User{
		ID:         lu.ID,
		Username:   lu.Username,
		Credential: credential,
		FullName:   lu.FullName,
		Role:       role,
	}, nil
}

func (im *Importer) convertTransfer(lt Transfer) (models.Transfer, error) {
	if strings.TrimSpace(lt.ID) == "" {
		return models.Transfer{}, fmt.Errorf("missing id")
	}
	err := validation.Struct(im.validate, ledger.NewTransfer{
		CustomerName: lt.CustomerName,
		BankAccount:  lt.BankAccount,
		Amount:       lt.Amount,
		CreatedBy:    lt.CreatedBy,
		CreatorName:  lt.CreatorName,
	})
	if err != nil {
		return models.Transfer{}, err
	}
	status, ok := parseStatus(lt.Status)
	if !ok {
		return models.Transfer{}, fmt.Errorf("unknown status %q", lt.Status)
	}
	createdAt, err := parseTime(lt.CreatedAt)
	if err != nil {
		return models.Transfer{}, fmt.Errorf("createdAt: %w", err)
	}

	t := models.Transfer{
		ID:           lt.ID,
		CustomerName: lt.CustomerName,
		BankAccount:  lt.BankAccount,
		Amount:       lt.Amount,
		CreatedAt:    createdAt,
		CreatedBy:    lt.CreatedBy,
		CreatorName:  lt.CreatorName,
		Status:       status,
	}
	if lt.UpdatedAt != nil && *lt.UpdatedAt != "" {
		u, err := parseTime(*lt.UpdatedAt)
		if err != nil {
			return models.Transfer{}, fmt.Errorf("updatedAt: %w", err)
		}
		t.UpdatedAt = &u
	}
	return t, nil
}

func parseStatus(label string) (models.TransferStatus, bool) {
	switch strings.TrimSpace(label) {
	case LabelNotReached, string(models.StatusPending):
		return models.StatusPending, true
	case LabelReached, string(models.StatusReached):
		return models.StatusReached, true
	default:
		return "", false
	}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC().Truncate(time.Microsecond), nil
}
