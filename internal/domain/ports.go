package domain

import "time"

// StockLedger — единственная точка записи остатков товара.
// Reserve атомарно проверяет и списывает остаток по товару;
// Restore возвращает ранее списанное количество.
type StockLedger interface {
	// Reserve списывает qty единиц, если их хватает, иначе возвращает
	// ErrInsufficientStock без побочных эффектов.
	Reserve(productID string, qty int32) error
	// Restore возвращает qty единиц в остаток.
	Restore(productID string, qty int32) error
}

// ProductRepository описывает каталожное хранилище товаров.
type ProductRepository interface {
	// Create сохраняет товар (сидинг каталога, тесты).
	Create(product Product) error
	// Get возвращает товар или ErrProductNotFound.
	Get(id string) (Product, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ вместе с позициями одной атомарной записью.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id string) (Order, error)
	// ListByCustomer возвращает заказы клиента, новые первыми.
	ListByCustomer(customerID string, limit int) ([]Order, error)
	// Save применяет обновления полей заказа с учётом optimistic locking;
	// состав позиций не трогает.
	Save(order Order) error
	// ReplaceItems атомарно перезаписывает позиции и суммы заказа
	// с той же version-проверкой, что и Save.
	ReplaceItems(order Order) error
	// HasDeliveredProduct отвечает, есть ли у клиента доставленный заказ,
	// содержащий данный товар.
	HasDeliveredProduct(customerID, productID string) (bool, error)
}

// AddressRepository хранит адреса клиентов и атомарно навязывает
// ограничения реестра: не более MaxAddressesPerCustomer адресов
// и уникальность описания внутри клиента.
type AddressRepository interface {
	// Create сохраняет адрес или возвращает ErrMaxAddressesExceeded /
	// ErrDuplicateDescription. Проверка и запись неделимы относительно
	// конкурентных добавлений того же клиента.
	Create(address Address) error
	// Get возвращает адрес или ErrAddressNotFound.
	Get(id string) (Address, error)
	// ListByCustomer возвращает адреса клиента.
	ListByCustomer(customerID string) ([]Address, error)
	// Update переписывает адрес с той же проверкой уникальности описания.
	Update(address Address) error
	// Delete удаляет адрес или возвращает ErrAddressNotFound.
	Delete(id string) error
}

// ReviewRepository хранит отзывы. Create атомарен относительно
// конкурентных вставок той же пары (клиент, товар).
type ReviewRepository interface {
	// Create сохраняет отзыв или возвращает ErrAlreadyReviewed.
	Create(review Review) error
	// Exists отвечает, есть ли отзыв пары (клиент, товар).
	Exists(customerID, productID string) (bool, error)
	// ListByProduct возвращает отзывы на товар, новые первыми.
	ListByProduct(productID string) ([]Review, error)
}

// StatusHistoryRepository хранит историю переходов статуса заказа.
type StatusHistoryRepository interface {
	Append(change StatusChange) error
	List(orderID string) ([]StatusChange, error)
}

// PostalAddress — результат обогащения по почтовому индексу.
type PostalAddress struct {
	Street       string
	Neighborhood string
	City         string
}

// PostalLookup — внешний сервис обогащения адреса по индексу.
// Результат потребляется как есть, без дополнительной валидации.
type PostalLookup interface {
	Lookup(postalCode string) (PostalAddress, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
