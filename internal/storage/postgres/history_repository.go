package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/expirians/storefront/internal/domain"
)

type historyRepository struct {
	db *sql.DB
}

// NewHistoryRepository создаёт PostgreSQL-реализацию StatusHistoryRepository.
func NewHistoryRepository(store *Store) domain.StatusHistoryRepository {
	return &historyRepository{db: store.DB()}
}

func (r *historyRepository) Append(change domain.StatusChange) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if change.Occurred.IsZero() {
		change.Occurred = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO order_status_history (
			order_id, from_status, to_status, reason, occurred_at
		) VALUES ($1,$2,$3,$4,$5)
	`,
		change.OrderID, string(change.From), string(change.To),
		change.Reason, change.Occurred,
	)
	if err != nil {
		return fmt.Errorf("insert status change: %w", err)
	}

	return nil
}

func (r *historyRepository) List(orderID string) ([]domain.StatusChange, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, from_status, to_status, reason, occurred_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer rows.Close()

	changes := make([]domain.StatusChange, 0)
	for rows.Next() {
		var change domain.StatusChange
		var from, to string
		if err := rows.Scan(&change.OrderID, &from, &to, &change.Reason, &change.Occurred); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		change.From = domain.OrderStatus(from)
		change.To = domain.OrderStatus(to)
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history rows: %w", err)
	}

	return changes, nil
}

var _ domain.StatusHistoryRepository = (*historyRepository)(nil)
