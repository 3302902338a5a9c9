package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/expirians/storefront/internal/domain"
)

type addressRepository struct {
	db *sql.DB
}

// NewAddressRepository создаёт PostgreSQL-реализацию AddressRepository.
func NewAddressRepository(store *Store) domain.AddressRepository {
	return &addressRepository{db: store.DB()}
}

func (r *addressRepository) Create(address domain.Address) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Лимит адресов проверяется под транзакционным advisory-lock клиента,
	// иначе два конкурентных Create могут оба пройти подсчёт.
	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, customerLockKey(address.CustomerID)); err != nil {
		return fmt.Errorf("acquire customer lock: %w", err)
	}

	var count int
	if err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM addresses WHERE customer_id = $1
	`, address.CustomerID).Scan(&count); err != nil {
		return fmt.Errorf("count customer addresses: %w", err)
	}
	if count >= domain.MaxAddressesPerCustomer {
		err = domain.ErrMaxAddressesExceeded
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO addresses (
			id, customer_id, description, postal_code, street, number,
			complement, neighborhood, city, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		address.ID, address.CustomerID, address.Description, address.PostalCode,
		address.Street, address.Number, address.Complement, address.Neighborhood,
		address.City, address.CreatedAt, address.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			err = domain.ErrDuplicateDescription
			return err
		}
		return fmt.Errorf("insert address: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create address: %w", err)
	}

	return nil
}

func (r *addressRepository) Get(id string) (domain.Address, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var address domain.Address
	err := r.db.QueryRowContext(ctx, `
		SELECT id, customer_id, description, postal_code, street, number,
		       complement, neighborhood, city, created_at, updated_at
		FROM addresses
		WHERE id = $1
	`, id).Scan(
		&address.ID, &address.CustomerID, &address.Description, &address.PostalCode,
		&address.Street, &address.Number, &address.Complement, &address.Neighborhood,
		&address.City, &address.CreatedAt, &address.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Address{}, domain.ErrAddressNotFound
		}
		return domain.Address{}, fmt.Errorf("select address: %w", err)
	}

	return address, nil
}

func (r *addressRepository) ListByCustomer(customerID string) ([]domain.Address, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_id, description, postal_code, street, number,
		       complement, neighborhood, city, created_at, updated_at
		FROM addresses
		WHERE customer_id = $1
		ORDER BY created_at ASC, id ASC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	defer rows.Close()

	addresses := make([]domain.Address, 0)
	for rows.Next() {
		var address domain.Address
		if err := rows.Scan(
			&address.ID, &address.CustomerID, &address.Description, &address.PostalCode,
			&address.Street, &address.Number, &address.Complement, &address.Neighborhood,
			&address.City, &address.CreatedAt, &address.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan address row: %w", err)
		}
		addresses = append(addresses, address)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate address rows: %w", err)
	}

	return addresses, nil
}

func (r *addressRepository) Update(address domain.Address) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE addresses
		SET description = $2,
		    postal_code = $3,
		    street = $4,
		    number = $5,
		    complement = $6,
		    neighborhood = $7,
		    city = $8,
		    updated_at = $9
		WHERE id = $1
	`,
		address.ID, address.Description, address.PostalCode, address.Street,
		address.Number, address.Complement, address.Neighborhood, address.City,
		time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateDescription
		}
		return fmt.Errorf("update address: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for update address: %w", err)
	}
	if affected == 0 {
		return domain.ErrAddressNotFound
	}

	return nil
}

func (r *addressRepository) Delete(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM addresses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for delete address: %w", err)
	}
	if affected == 0 {
		return domain.ErrAddressNotFound
	}

	return nil
}

// customerLockKey сводит идентификатор клиента к ключу advisory-lock.
func customerLockKey(customerID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(customerID))
	return int64(h.Sum64())
}

var _ domain.AddressRepository = (*addressRepository)(nil)
