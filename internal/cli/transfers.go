package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dmitrijs2005/mtms/internal/common"
	"github.com/dmitrijs2005/mtms/internal/ledger"
	"github.com/dmitrijs2005/mtms/internal/models"
	"github.com/shopspring/decimal"
)

const timeLayout = "2006-01-02 15:04"

// NewTransfer prompts for a transfer filed by the current user.
func (a *App) NewTransfer(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	customer, err := getSimpleText(a.reader, "Customer name", a.out)
	if err != nil {
		return err
	}
	account, err := getSimpleText(a.reader, "Bank account", a.out)
	if err != nil {
		return err
	}
	amountText, err := getSimpleText(a.reader, "Amount", a.out)
	if err != nil {
		return err
	}
	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		return a.fail(common.NewValidationError("amount", "must be a number"))
	}

	t, err := a.ledger.CreateTransfer(ctx, a.user.ID, ledger.NewTransfer{
		CustomerName: customer,
		BankAccount:  account,
		Amount:       amount,
		CreatedBy:    a.user.ID,
		CreatorName:  a.user.FullName,
	})
	if err != nil {
		return a.fail(err)
	}

	a.printf("Transfer %s recorded (%s)\n", t.ID, statusLabel(t.Status))
	return nil
}

// Toggle flips the status of transfer id.
func (a *App) Toggle(ctx context.Context, id string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	t, err := a.ledger.ToggleStatus(ctx, a.user.ID, id)
	if err != nil {
		return a.fail(err)
	}
	a.printf("Transfer %s is now %s\n", t.ID, statusLabel(t.Status))
	return nil
}

// List prints transfers newest first. Submitters only see their own.
func (a *App) List(ctx context.Context, status string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	var f ledger.Filter
	if a.user.Role == models.RoleSubmitter {
		f.CreatedBy = &a.user.ID
	}
	if status != "" {
		s := models.TransferStatus(status)
		if !s.Valid() {
			return a.fail(common.NewValidationError("status", "must be pending or reached"))
		}
		f.Status = &s
	}

	transfers, err := a.ledger.List(ctx, f)
	if err != nil {
		return a.fail(err)
	}
	if len(transfers) == 0 {
		a.println("No transfers")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCUSTOMER\tACCOUNT\tAMOUNT\tSTATUS\tCREATED\tBY")
	for _, t := range transfers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.CustomerName, t.BankAccount, t.Amount.StringFixed(2),
			statusLabel(t.Status), t.CreatedAt.Local().Format(timeLayout), t.CreatorName)
	}
	return tw.Flush()
}

func statusLabel(s models.TransferStatus) string {
	if s == models.StatusReached {
		return "reached"
	}
	return "pending"
}
