package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/expirians/storefront/internal/domain"
)

// reviewRepositoryInMemory хранит отзывы с ключом по паре (клиент, товар):
// вставка дубликата невозможна даже при гонке, проверка и запись
// выполняются под одним мьютексом.
type reviewRepositoryInMemory struct {
	mu     sync.RWMutex
	byPair map[pairKey]domain.Review
}

type pairKey struct {
	customerID string
	productID  string
}

// NewReviewRepository возвращает in-memory реализацию ReviewRepository.
func NewReviewRepository() domain.ReviewRepository {
	return &reviewRepositoryInMemory{
		byPair: make(map[pairKey]domain.Review),
	}
}

// Create сохраняет отзыв или возвращает ErrAlreadyReviewed,
// если пара (клиент, товар) уже оставляла отзыв.
func (r *reviewRepositoryInMemory) Create(review domain.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{customerID: review.CustomerID, productID: review.ProductID}
	if _, exists := r.byPair[key]; exists {
		return domain.ErrAlreadyReviewed
	}

	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	r.byPair[key] = review
	return nil
}

// Exists отвечает, есть ли отзыв пары (клиент, товар).
func (r *reviewRepositoryInMemory) Exists(customerID, productID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byPair[pairKey{customerID: customerID, productID: productID}]
	return ok, nil
}

// ListByProduct возвращает отзывы на товар, новые первыми.
func (r *reviewRepositoryInMemory) ListByProduct(productID string) ([]domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Review, 0)
	for key, review := range r.byPair {
		if key.productID == productID {
			result = append(result, review)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	return result, nil
}

var _ domain.ReviewRepository = (*reviewRepositoryInMemory)(nil)
