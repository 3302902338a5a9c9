package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/expirians/storefront/internal/domain"
)

// addressRepositoryInMemory — in-memory реестр адресов. Один мьютекс
// сериализует добавления, поэтому проверки кардинальности и уникальности
// описания неделимы относительно конкурентных запросов одного клиента.
type addressRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Address
}

// NewAddressRepository возвращает in-memory реализацию AddressRepository.
func NewAddressRepository() domain.AddressRepository {
	return &addressRepositoryInMemory{
		items: make(map[string]domain.Address),
	}
}

// Create сохраняет адрес, атомарно проверяя лимит адресов клиента
// и уникальность описания.
func (r *addressRepositoryInMemory) Create(address domain.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	normalized := address.NormalizedDescription()
	for _, existing := range r.items {
		if existing.CustomerID != address.CustomerID {
			continue
		}
		count++
		if existing.NormalizedDescription() == normalized {
			return domain.ErrDuplicateDescription
		}
	}
	if count >= domain.MaxAddressesPerCustomer {
		return domain.ErrMaxAddressesExceeded
	}

	now := time.Now().UTC()
	if address.CreatedAt.IsZero() {
		address.CreatedAt = now
	}
	address.UpdatedAt = now
	r.items[address.ID] = address
	return nil
}

// Get возвращает адрес или ErrAddressNotFound.
func (r *addressRepositoryInMemory) Get(id string) (domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	address, ok := r.items[id]
	if !ok {
		return domain.Address{}, domain.ErrAddressNotFound
	}
	return address, nil
}

// ListByCustomer возвращает адреса клиента в порядке создания.
func (r *addressRepositoryInMemory) ListByCustomer(customerID string) ([]domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Address, 0)
	for _, address := range r.items {
		if address.CustomerID == customerID {
			result = append(result, address)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Update переписывает адрес с той же проверкой уникальности описания.
func (r *addressRepositoryInMemory) Update(address domain.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[address.ID]
	if !ok {
		return domain.ErrAddressNotFound
	}

	normalized := address.NormalizedDescription()
	for id, existing := range r.items {
		if id == address.ID || existing.CustomerID != current.CustomerID {
			continue
		}
		if existing.NormalizedDescription() == normalized {
			return domain.ErrDuplicateDescription
		}
	}

	address.CustomerID = current.CustomerID
	address.CreatedAt = current.CreatedAt
	address.UpdatedAt = time.Now().UTC()
	r.items[address.ID] = address
	return nil
}

// Delete удаляет адрес или возвращает ErrAddressNotFound.
func (r *addressRepositoryInMemory) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrAddressNotFound
	}
	delete(r.items, id)
	return nil
}

var _ domain.AddressRepository = (*addressRepositoryInMemory)(nil)
