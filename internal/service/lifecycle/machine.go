package lifecycle

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/expirians/storefront/internal/domain"
	"github.com/expirians/storefront/internal/messaging/kafka"
	"github.com/expirians/storefront/internal/metrics"
)

// Machine продвигает заказ по жизненному циклу. Переходы проверяются
// по таблице домена; запись идёт через optimistic locking с retry на
// version conflict, так что конкурирующие переходы упорядочиваются и
// ровно один из них выигрывает.
type Machine struct {
	orders  domain.OrderRepository
	ledger  domain.StockLedger
	history domain.StatusHistoryRepository
	outbox  domain.OutboxRepository
	logger  *log.Entry
	metrics *metrics.CheckoutMetrics
}

// NewMachine создаёт рабочий экземпляр с метриками.
func NewMachine(
	orders domain.OrderRepository,
	ledger domain.StockLedger,
	history domain.StatusHistoryRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Machine {
	m := newMachine(orders, ledger, history, outbox, logger)
	m.metrics = metrics.NewCheckoutMetrics()
	return m
}

// NewMachineWithoutMetrics создаёт экземпляр без метрик (для тестов).
func NewMachineWithoutMetrics(
	orders domain.OrderRepository,
	ledger domain.StockLedger,
	history domain.StatusHistoryRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Machine {
	return newMachine(orders, ledger, history, outbox, logger)
}

func newMachine(
	orders domain.OrderRepository,
	ledger domain.StockLedger,
	history domain.StatusHistoryRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Machine {
	if logger == nil {
		logger = log.New().WithField("component", "lifecycle")
	}
	return &Machine{
		orders:  orders,
		ledger:  ledger,
		history: history,
		outbox:  outbox,
		logger:  logger,
	}
}

// Advance переводит заказ в статус target. Повторный запрос уже
// достигнутого статуса — no-op. Недопустимый по таблице переход
// возвращает ErrInvalidTransition. Переход в Cancelado возвращает
// резерв стока, причём ровно один раз: возврат выполняет только тот
// вызов, чья запись выиграла CAS.
func (m *Machine) Advance(orderID string, target domain.OrderStatus, reason string) (domain.Order, error) {
	if !target.Valid() {
		return domain.Order{}, fmt.Errorf("status %q: %w", target, domain.ErrInvalidTransition)
	}

	order, err := m.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	const maxRetries = 3
	const baseDelay = 10 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		if order.Status == target {
			return order, nil
		}
		if !order.Status.CanTransitionTo(target) {
			return domain.Order{}, fmt.Errorf("%s -> %s: %w", order.Status, target, domain.ErrInvalidTransition)
		}

		from := order.Status
		order.Status = target
		order.UpdatedAt = time.Now().UTC()
		prevVersion := order.Version

		if err := m.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxRetries-1 {
				m.logger.WithFields(log.Fields{
					"order_id": order.ID,
					"attempt":  attempt + 1,
					"version":  order.Version,
				}).Warn("version conflict detected, retrying")

				fresh, loadErr := m.orders.Get(order.ID)
				if loadErr != nil {
					m.logger.WithError(loadErr).WithField("order_id", order.ID).Error("failed to reload order after conflict")
					return domain.Order{}, loadErr
				}
				order = fresh

				delay := baseDelay * time.Duration(1<<uint(attempt))
				time.Sleep(delay)
				continue
			}

			m.logger.WithError(err).WithFields(log.Fields{
				"order_id": order.ID,
				"attempt":  attempt + 1,
			}).Error("failed to persist status")
			return domain.Order{}, err
		}

		order.Version = prevVersion + 1
		m.afterTransition(order, from, reason)
		return order, nil
	}

	return domain.Order{}, domain.ErrOrderVersionConflict
}

// Cancel — переход в Cancelado с причиной.
func (m *Machine) Cancel(orderID, reason string) (domain.Order, error) {
	if reason == "" {
		reason = "canceled by customer"
	}
	return m.Advance(orderID, domain.OrderStatusCanceled, reason)
}

// afterTransition выполняется только у победителя CAS: побочные
// эффекты перехода не дублируются проигравшими.
func (m *Machine) afterTransition(order domain.Order, from domain.OrderStatus, reason string) {
	m.appendHistory(order.ID, from, order.Status, reason, order.UpdatedAt)

	switch order.Status {
	case domain.OrderStatusCanceled:
		m.restoreStock(order)
		m.emitOrderEvent(kafka.EventTypeOrderCanceled, order, from, reason)
		if m.metrics != nil {
			m.metrics.RecordOrderCanceled()
		}
	case domain.OrderStatusDelivered:
		m.emitOrderEvent(kafka.EventTypeOrderDelivered, order, from, reason)
		if m.metrics != nil {
			m.metrics.RecordOrderDelivered()
		}
	default:
		m.emitOrderEvent(kafka.EventTypeOrderStatusChanged, order, from, reason)
	}

	m.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     string(from),
		"to":       string(order.Status),
	}).Info("order status changed")
}

func (m *Machine) restoreStock(order domain.Order) {
	for _, item := range order.Items {
		if err := m.ledger.Restore(item.ProductID, item.Qty); err != nil {
			m.logger.WithError(err).WithFields(log.Fields{
				"order_id":   order.ID,
				"product_id": item.ProductID,
				"qty":        item.Qty,
			}).Error("failed to restore stock on cancel")
			continue
		}
		if m.metrics != nil {
			m.metrics.RecordStockRestored()
		}
	}
}

func (m *Machine) appendHistory(orderID string, from, to domain.OrderStatus, reason string, occurred time.Time) {
	if m.history == nil {
		return
	}
	change := domain.StatusChange{
		OrderID:  orderID,
		From:     from,
		To:       to,
		Reason:   reason,
		Occurred: occurred,
	}
	if err := m.history.Append(change); err != nil {
		m.logger.WithError(err).WithField("order_id", orderID).Warn("failed to append status history")
	}
}

func (m *Machine) emitOrderEvent(eventType kafka.EventType, order domain.Order, from domain.OrderStatus, reason string) {
	if m.outbox == nil {
		return
	}

	event := kafka.NewOrderEvent(eventType, order.ID, order.CustomerID, string(order.Status), map[string]any{
		"from":   string(from),
		"reason": reason,
	})
	payload, err := json.Marshal(event)
	if err != nil {
		m.logger.WithError(err).WithField("order_id", order.ID).Error("marshal order event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: kafka.AggregateOrder,
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       payload,
	}
	if _, err := m.outbox.Enqueue(msg); err != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue order event failed")
	}
}
