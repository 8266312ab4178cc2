package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/mtms/internal/ledger"
	"github.com/dmitrijs2005/mtms/internal/reporting"
)

func (a *App) requireTreasury() error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if !a.isTreasury() {
		a.println("Only treasury users can do that")
		return errNotLoggedIn
	}
	return nil
}

// Report prints the summary, daily series and user counts.
func (a *App) Report(ctx context.Context) error {
	if err := a.requireTreasury(); err != nil {
		return err
	}

	users, err := a.identity.List(ctx)
	if err != nil {
		return a.fail(err)
	}
	transfers, err := a.ledger.List(ctx, ledger.Filter{})
	if err != nil {
		return a.fail(err)
	}
	// days are UTC calendar dates, as in the browser-era reports
	r := reporting.Build(users, transfers, a.windowDays, a.now().UTC())

	a.printf("Transfers: %d (%d reached, %d pending)\n",
		r.Summary.TotalCount, r.Summary.ReachedCount, r.Summary.PendingCount())
	a.printf("Amount:    %s total, %s reached\n",
		r.Summary.TotalAmount.StringFixed(2), r.Summary.ReachedAmount.StringFixed(2))
	a.printf("Users:     %d submitters, %d treasury\n", r.Users.Submitters, r.Users.Treasury)

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "DATE\tAMOUNT\t")
	for _, d := range r.Daily {
		fmt.Fprintf(tw, "%s\t%s\t\n", d.Date, d.Amount.StringFixed(2))
	}
	return tw.Flush()
}

// Users prints the directory.
func (a *App) Users(ctx context.Context) error {
	if err := a.requireTreasury(); err != nil {
		return err
	}
	users, err := a.identity.List(ctx)
	if err != nil {
		return a.fail(err)
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tNAME\tROLE")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Username, u.FullName, roleLabel(u.Role))
	}
	return tw.Flush()
}
