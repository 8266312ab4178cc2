// Package cli is the interactive terminal client of MTMS. It is a caller of
// the identity and ledger services and holds no business rules of its own.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/mtms/internal/common"
	"github.com/dmitrijs2005/mtms/internal/identity"
	"github.com/dmitrijs2005/mtms/internal/ledger"
	"github.com/dmitrijs2005/mtms/internal/logging"
	"github.com/dmitrijs2005/mtms/internal/models"
)

// getSimpleText and getPassword point to the interactive input helpers and
// can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

type IdentityService interface {
	Register(ctx context.Context, in identity.RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

type LedgerService interface {
	CreateTransfer(ctx context.Context, actorID string, in ledger.NewTransfer) (*models.Transfer, error)
	ToggleStatus(ctx context.Context, actorID, transferID string) (*models.Transfer, error)
	List(ctx context.Context, f ledger.Filter) ([]models.Transfer, error)
}

type SessionManager interface {
	Start(u *models.User) error
	Restore(ctx context.Context) (*models.User, error)
	End() error
}

type App struct {
	identity   IdentityService
	ledger     LedgerService
	sessions   SessionManager
	log        logging.Logger
	reader     *bufio.Reader
	out        io.Writer
	windowDays int
	now        func() time.Time

	user *models.User
}

func NewApp(ids IdentityService, led LedgerService, sessions SessionManager, log logging.Logger,
	in io.Reader, out io.Writer, windowDays int) *App {
	return &App{
		identity:   ids,
		ledger:     led,
		sessions:   sessions,
		log:        log,
		reader:     bufio.NewReader(in),
		out:        out,
		windowDays: windowDays,
		now:        time.Now,
	}
}

// Run resumes a stored session if there is one and then serves commands
// until the input ends or the user exits.
func (a *App) Run(ctx context.Context) {
	a.println("MTMS terminal (type 'help' for commands)")
	a.restoreSession(ctx)

	scanner := bufio.NewScanner(a.reader)
	runREPL(ctx, a, a.getStatus, scanner)
}

func (a *App) restoreSession(ctx context.Context) {
	u, err := a.sessions.Restore(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrNoSession) {
			a.log.Warn(ctx, "session restore failed", "error", err)
		}
		return
	}
	a.user = u
	a.printf("Welcome back, %s\n", u.FullName)
}

func (a *App) getStatus() string {
	if a.user == nil {
		return ""
	}
	return fmt.Sprintf("(%s %s)", a.user.Username, roleLabel(a.user.Role))
}

func (a *App) isLoggedIn() bool { return a.user != nil }

func (a *App) isTreasury() bool { return a.user != nil && a.user.Role == models.RoleTreasury }

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// fail prints err in user terms and returns it.
func (a *App) fail(err error) error {
	var ve *common.ValidationError
	switch {
	case errors.As(err, &ve):
		a.println("Invalid input:", ve.Error())
	case errors.Is(err, common.ErrAuthFailed):
		a.println("Invalid username or password")
	case errors.Is(err, common.ErrDuplicateUsername):
		a.println("That username is already taken")
	case errors.Is(err, common.ErrUnauthorized):
		a.println("You are not allowed to do that")
	case errors.Is(err, common.ErrNotFound):
		a.println("No such record")
	case errors.Is(err, common.ErrConflict):
		a.println("The record was changed by someone else, try again")
	default:
		a.println("Error:", err.Error())
	}
	return err
}

var errNotLoggedIn = errors.New("not logged in")

func (a *App) requireLogin() error {
	if a.user == nil {
		a.println("Please log in first")
		return errNotLoggedIn
	}
	return nil
}

func roleLabel(r models.Role) string {
	if r == models.RoleTreasury {
		return "treasury"
	}
	return "submitter"
}
