package review

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/expirians/storefront/internal/domain"
	"github.com/expirians/storefront/internal/messaging/kafka"
	"github.com/expirians/storefront/internal/metrics"
)

// Eligibility — ответ на вопрос «может ли клиент оставить отзыв».
// Eligible отражает только факт доставленной покупки; AlreadyReviewed
// сообщается отдельно и права не отменяет.
type Eligibility struct {
	Eligible        bool
	AlreadyReviewed bool
}

// Gate допускает к отзыву только покупателей с доставленным заказом на
// этот товар и не более одного отзыва на пару клиент-товар. Доставка —
// терминальное состояние, поэтому положительный ответ CanReview не
// устаревает; гонку закрывает атомарная проверка дубликата при записи.
type Gate struct {
	reviews domain.ReviewRepository
	orders  domain.OrderRepository
	outbox  domain.OutboxRepository
	logger  *log.Entry
	metrics *metrics.CheckoutMetrics
}

// NewGate создаёт рабочий экземпляр с метриками.
func NewGate(reviews domain.ReviewRepository, orders domain.OrderRepository, outbox domain.OutboxRepository, logger *log.Entry) *Gate {
	g := newGate(reviews, orders, outbox, logger)
	g.metrics = metrics.NewCheckoutMetrics()
	return g
}

// NewGateWithoutMetrics создаёт экземпляр без метрик (для тестов).
func NewGateWithoutMetrics(reviews domain.ReviewRepository, orders domain.OrderRepository, outbox domain.OutboxRepository, logger *log.Entry) *Gate {
	return newGate(reviews, orders, outbox, logger)
}

func newGate(reviews domain.ReviewRepository, orders domain.OrderRepository, outbox domain.OutboxRepository, logger *log.Entry) *Gate {
	if logger == nil {
		logger = log.New().WithField("component", "review")
	}
	return &Gate{
		reviews: reviews,
		orders:  orders,
		outbox:  outbox,
		logger:  logger,
	}
}

// CanReview отвечает, допущен ли клиент к отзыву на товар, и отдельно —
// оставил ли он его уже.
func (g *Gate) CanReview(customerID, productID string) (Eligibility, error) {
	delivered, err := g.orders.HasDeliveredProduct(customerID, productID)
	if err != nil {
		return Eligibility{}, err
	}
	if !delivered {
		return Eligibility{}, nil
	}

	reviewed, err := g.reviews.Exists(customerID, productID)
	if err != nil {
		return Eligibility{}, err
	}
	return Eligibility{
		Eligible:        true,
		AlreadyReviewed: reviewed,
	}, nil
}

// SubmitReview записывает отзыв. Право на отзыв перепроверяется в момент
// записи, дубликат отлавливает репозиторий.
func (g *Gate) SubmitReview(review domain.Review) (domain.Review, error) {
	if ve := review.Validate(); ve != nil {
		return domain.Review{}, ve
	}

	delivered, err := g.orders.HasDeliveredProduct(review.CustomerID, review.ProductID)
	if err != nil {
		return domain.Review{}, err
	}
	if !delivered {
		return domain.Review{}, domain.ErrNotEligible
	}

	now := time.Now().UTC()
	review.ID = uuid.NewString()
	review.CreatedAt = now

	if err := g.reviews.Create(review); err != nil {
		return domain.Review{}, err
	}

	g.emitReviewEvent(review)
	if g.metrics != nil {
		g.metrics.RecordReviewSubmitted()
	}
	g.logger.WithFields(log.Fields{
		"review_id":   review.ID,
		"product_id":  review.ProductID,
		"customer_id": review.CustomerID,
		"rating":      review.Rating,
	}).Info("review submitted")

	return review, nil
}

// ListByProduct возвращает отзывы на товар, новые первыми.
func (g *Gate) ListByProduct(productID string) ([]domain.Review, error) {
	return g.reviews.ListByProduct(productID)
}

func (g *Gate) emitReviewEvent(review domain.Review) {
	if g.outbox == nil {
		return
	}

	event := kafka.NewReviewEvent(review.ID, review.ProductID, review.CustomerID, review.Rating)
	payload, err := json.Marshal(event)
	if err != nil {
		g.logger.WithError(err).WithField("review_id", review.ID).Error("marshal review event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: kafka.AggregateReview,
		AggregateID:   review.ID,
		EventType:     string(kafka.EventTypeReviewSubmitted),
		Payload:       payload,
	}
	if _, err := g.outbox.Enqueue(msg); err != nil {
		g.logger.WithError(err).WithField("review_id", review.ID).Error("enqueue review event failed")
	}
}
