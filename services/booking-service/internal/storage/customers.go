package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptdesk/services/booking-service/internal/model"
)

const customerColumns = `id::text, name, phone, email, address, notes, created_at`

func scanCustomer(row rowScanner) (model.Customer, error) {
	var c model.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.Address, &c.Notes, &c.CreatedAt)
	return c, err
}

func (s *Store) GetCustomer(ctx context.Context, id string) (model.Customer, error) {
	if !validID(id) {
		return model.Customer{}, ErrNotFound
	}
	c, err := scanCustomer(s.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Customer{}, ErrNotFound
	}
	return c, err
}

func (s *Store) getCustomer(ctx context.Context, tx pgx.Tx, id string) (model.Customer, error) {
	return scanCustomer(tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
}

// findOrCreateCustomer reuses the oldest customer with the same phone number. A
// missing email on the stored record is filled in from c.
func (s *Store) findOrCreateCustomer(ctx context.Context, tx pgx.Tx, c model.Customer) (model.Customer, error) {
	existing, err := scanCustomer(tx.QueryRow(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE phone = $1
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE
	`, c.Phone))
	switch {
	case err == nil:
		if existing.Email == "" && c.Email != "" {
			if _, err := tx.Exec(ctx, `UPDATE customers SET email = $2 WHERE id = $1`, existing.ID, c.Email); err != nil {
				return model.Customer{}, err
			}
			existing.Email = c.Email
		}
		return existing, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return model.Customer{}, err
	}

	return scanCustomer(tx.QueryRow(ctx, `
		INSERT INTO customers (id, name, phone, email, address, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+customerColumns,
		c.ID, c.Name, c.Phone, c.Email, c.Address, c.Notes,
	))
}
