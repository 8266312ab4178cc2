package sqlstore

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/mtms/internal/dbx"
	"github.com/dmitrijs2005/mtms/internal/models"
)

func (s *Store) insertTransfers(ctx context.Context, tx dbx.DBTX, transfers []models.Transfer) error {
	query := s.dialect.Rebind(
		`INSERT INTO transfers (position, id, customer_name, bank_account, amount, created_at,
		                        created_by, creator_name, status, updated_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	for i, t := range transfers {
		_, err := tx.ExecContext(ctx, query,
			i, t.ID, t.CustomerName, t.BankAccount, t.Amount.String(),
			s.dialect.TimeArg(t.CreatedAt), t.CreatedBy, t.CreatorName, string(t.Status),
			s.dialect.NullTimeArg(t.UpdatedAt), t.Version)
		if err != nil {
			return fmt.Errorf("insert transfer %s: %w", t.ID, err)
		}
	}
	return nil
}

func (s *Store) loadTransfers(ctx context.Context, q dbx.DBTX) ([]models.Transfer, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, customer_name, bank_account, amount, created_at, created_by,
		        creator_name, status, updated_at, version
		 FROM transfers
		 ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transfers := []models.Transfer{}
	for rows.Next() {
		var (
			t                    models.Transfer
			status               string
			createdAt, updatedAt dbx.Time
		)
		err := rows.Scan(&t.ID, &t.CustomerName, &t.BankAccount, &t.Amount, &createdAt,
			&t.CreatedBy, &t.CreatorName, &status, &updatedAt, &t.Version)
		if err != nil {
			return nil, err
		}
		t.Status = models.TransferStatus(status)
		t.CreatedAt = createdAt.Time
		t.UpdatedAt = updatedAt.Ptr()
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}
