package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProductNotFound возвращается, если товар отсутствует в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrAddressNotFound возвращается, если адрес не найден или принадлежит другому клиенту.
	ErrAddressNotFound = errors.New("address not found")
	// ErrReviewNotFound возвращается, если отзыв не найден.
	ErrReviewNotFound = errors.New("review not found")
	// ErrInsufficientStock — остатка товара недостаточно для резервирования.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrMaxAddressesExceeded — у клиента уже максимальное число адресов.
	ErrMaxAddressesExceeded = errors.New("customer already has the maximum number of addresses")
	// ErrDuplicateDescription — у клиента уже есть адрес с таким описанием.
	ErrDuplicateDescription = errors.New("address description already in use")
	// ErrInvalidTransition — запрошенный переход статуса запрещён таблицей переходов.
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrNotEligible — клиент не покупал товар или заказ ещё не доставлен.
	ErrNotEligible = errors.New("customer is not eligible to review this product")
	// ErrAlreadyReviewed — отзыв по паре (клиент, товар) уже существует.
	ErrAlreadyReviewed = errors.New("review already exists for this customer and product")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой хэш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyNotFound — запись по ключу отсутствует.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyKeyAlreadyExists — ключ уже занят другим запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key is used with a different request payload")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// FieldError описывает нарушение валидации по конкретному полю.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError агрегирует все нарушения валидации запроса,
// а не только первое встреченное.
type ValidationError struct {
	Fields []FieldError
}

// Add регистрирует нарушение для поля.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Addf регистрирует нарушение с форматированием сообщения.
func (e *ValidationError) Addf(field, format string, args ...any) {
	e.Add(field, fmt.Sprintf(format, args...))
}

// Error собирает все нарушения в одну строку.
func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ErrOrNil возвращает ошибку, только если зарегистрировано хотя бы одно нарушение.
func (e *ValidationError) ErrOrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// AsValidation извлекает ValidationError из цепочки ошибок.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
