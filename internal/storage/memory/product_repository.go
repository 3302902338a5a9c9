package memory

import (
	"sync"
	"time"

	"github.com/expirians/storefront/internal/domain"
)

// productRepositoryInMemory — in-memory каталог, одновременно реализующий
// StockLedger. Мьютекс сериализует check-and-decrement по стокам, что даёт
// требуемую атомарность на уровне товара.
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductRepository возвращает in-memory репозиторий для локальной
// разработки и тестов.
func NewProductRepository() *productRepositoryInMemory {
	return &productRepositoryInMemory{
		items: make(map[string]domain.Product),
	}
}

// Create сохраняет товар; повторная запись с тем же ID перезаписывает его.
func (r *productRepositoryInMemory) Create(product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	r.items[product.ID] = product
	return nil
}

// Get возвращает товар или ErrProductNotFound.
func (r *productRepositoryInMemory) Get(id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// Reserve атомарно проверяет остаток и списывает qty.
// При нехватке возвращает ErrInsufficientStock без побочных эффектов.
func (r *productRepositoryInMemory) Reserve(productID string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	if qty > product.Stock {
		return domain.ErrInsufficientStock
	}
	product.Stock -= qty
	product.UpdatedAt = time.Now().UTC()
	r.items[productID] = product
	return nil
}

// Restore возвращает qty единиц в остаток.
func (r *productRepositoryInMemory) Restore(productID string, qty int32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	product.Stock += qty
	product.UpdatedAt = time.Now().UTC()
	r.items[productID] = product
	return nil
}

var (
	_ domain.ProductRepository = (*productRepositoryInMemory)(nil)
	_ domain.StockLedger       = (*productRepositoryInMemory)(nil)
)
