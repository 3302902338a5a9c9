package memory

import (
	"sync"

	"github.com/expirians/storefront/internal/domain"
)

// historyRepositoryInMemory хранит историю переходов статуса заказа.
type historyRepositoryInMemory struct {
	mu      sync.RWMutex
	byOrder map[string][]domain.StatusChange
}

// NewStatusHistoryRepository создаёт in-memory реализацию StatusHistoryRepository.
func NewStatusHistoryRepository() domain.StatusHistoryRepository {
	return &historyRepositoryInMemory{
		byOrder: make(map[string][]domain.StatusChange),
	}
}

// Append добавляет запись перехода в конец истории заказа.
func (r *historyRepositoryInMemory) Append(change domain.StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byOrder[change.OrderID] = append(r.byOrder[change.OrderID], change)
	return nil
}

// List возвращает историю заказа в порядке добавления.
func (r *historyRepositoryInMemory) List(orderID string) ([]domain.StatusChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	changes := r.byOrder[orderID]
	result := make([]domain.StatusChange, len(changes))
	copy(result, changes)
	return result, nil
}

var _ domain.StatusHistoryRepository = (*historyRepositoryInMemory)(nil)
