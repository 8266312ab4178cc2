package cli

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/mtms/internal/common"
	"github.com/dmitrijs2005/mtms/internal/identity"
	"github.com/dmitrijs2005/mtms/internal/models"
)

// Register prompts for the account fields and creates the account. It does
// not log the new user in.
func (a *App) Register(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	fullName, err := getSimpleText(a.reader, "Enter full name", a.out)
	if err != nil {
		return err
	}
	roleText, err := getSimpleText(a.reader, "Enter role (submitter|treasury)", a.out)
	if err != nil {
		return err
	}
	role, ok := models.ParseRole(roleText)
	if !ok {
		return a.fail(common.NewValidationError("role", "must be submitter or treasury"))
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.identity.Register(ctx, identity.RegisterInput{
		Username: username,
		Password: string(password),
		FullName: fullName,
		Role:     role,
	})
	if err != nil {
		return a.fail(err)
	}

	a.printf("Registered %s (%s). You can log in now.\n", u.Username, roleLabel(u.Role))
	return nil
}

// Login authenticates and remembers the user for later runs.
func (a *App) Login(ctx context.Context) error {
	username, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.identity.Authenticate(ctx, username, string(password))
	if err != nil {
		return a.fail(err)
	}
	a.user = u

	if err := a.sessions.Start(u); err != nil {
		// still logged in for this run
		a.log.Warn(ctx, "session not saved", "error", err)
	}
	a.printf("Welcome, %s\n", u.FullName)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	a.user = nil
	if err := a.sessions.End(); err != nil && !errors.Is(err, common.ErrNoSession) {
		a.log.Warn(ctx, "session not cleared", "error", err)
	}
	a.println("Logged out")
	return nil
}

func (a *App) WhoAmI(_ context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	a.printf("%s (%s), %s, id %s\n", a.user.FullName, a.user.Username, roleLabel(a.user.Role), a.user.ID)
	return nil
}
