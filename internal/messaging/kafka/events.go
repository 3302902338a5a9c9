package kafka

import "time"

// EventType определяет тип доменного события.
type EventType string

const (
	// События заказа
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderCanceled      EventType = "order.canceled"
	EventTypeOrderDelivered     EventType = "order.delivered"

	// События отзывов
	EventTypeReviewSubmitted EventType = "review.submitted"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "storefront.order.events"
	TopicReviewEvents    = "storefront.review.events"
	TopicDeadLetterQueue = "storefront.dlq"
)

// Aggregate types, по которым publisher выбирает топик.
const (
	AggregateOrder  = "order"
	AggregateReview = "review"
)

// OrderEvent представляет событие жизненного цикла заказа.
type OrderEvent struct {
	EventType  EventType      `json:"event_type"`
	OrderID    string         `json:"order_id"`
	CustomerID string         `json:"customer_id"`
	Status     string         `json:"status"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ReviewEvent представляет событие принятого отзыва.
type ReviewEvent struct {
	EventType  EventType `json:"event_type"`
	ReviewID   string    `json:"review_id"`
	ProductID  string    `json:"product_id"`
	CustomerID string    `json:"customer_id"`
	Rating     int32     `json:"rating"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewOrderEvent создаёт событие заказа с текущей меткой времени.
func NewOrderEvent(eventType EventType, orderID, customerID, status string, metadata map[string]any) *OrderEvent {
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    orderID,
		CustomerID: customerID,
		Status:     status,
		Timestamp:  time.Now().UTC(),
		Metadata:   metadata,
	}
}

// NewReviewEvent создаёт событие отзыва с текущей меткой времени.
func NewReviewEvent(reviewID, productID, customerID string, rating int32) *ReviewEvent {
	return &ReviewEvent{
		EventType:  EventTypeReviewSubmitted,
		ReviewID:   reviewID,
		ProductID:  productID,
		CustomerID: customerID,
		Rating:     rating,
		Timestamp:  time.Now().UTC(),
	}
}
