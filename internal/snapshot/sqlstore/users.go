package sqlstore

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/mtms/internal/dbx"
	"github.com/dmitrijs2005/mtms/internal/models"
)

func (s *Store) insertUsers(ctx context.Context, tx dbx.DBTX, users []models.User) error {
	query := s.dialect.Rebind(
		`INSERT INTO users (position, id, username, credential, full_name, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)

	for i, u := range users {
		_, err := tx.ExecContext(ctx, query,
			i, u.ID, u.Username, u.Credential, u.FullName, string(u.Role), s.dialect.TimeArg(u.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert user %s: %w", u.ID, err)
		}
	}
	return nil
}

func (s *Store) loadUsers(ctx context.Context, q dbx.DBTX) ([]models.User, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, username, credential, full_name, role, created_at
		 FROM users
		 ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var (
			u         models.User
			role      string
			createdAt dbx.Time
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Credential, &u.FullName, &role, &createdAt); err != nil {
			return nil, err
		}
		u.Role = models.Role(role)
		u.CreatedAt = createdAt.Time
		users = append(users, u)
	}
	return users, rows.Err()
}
