package checkout

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/expirians/storefront/internal/domain"
	"github.com/expirians/storefront/internal/messaging/kafka"
	"github.com/expirians/storefront/internal/metrics"
)

// ItemRequest — запрошенная позиция корзины.
type ItemRequest struct {
	ProductID string
	Qty       int32
	Size      string
}

// CreateOrderRequest — вход операции оформления заказа. Идентичность
// клиента приходит уже аутентифицированной.
type CreateOrderRequest struct {
	CustomerID string
	AddressID  string
	Discount   decimal.Decimal
	Freight    decimal.Decimal
	Items      []ItemRequest
}

// Assembler собирает заказ: валидация корзины, фиксация цен каталога,
// резервирование стока и запись заказа — всё или ничего. Каждый шаг
// с побочным эффектом регистрирует компенсацию, выполняемую в обратном
// порядке при любой последующей ошибке.
type Assembler struct {
	orders    domain.OrderRepository
	products  domain.ProductRepository
	addresses domain.AddressRepository
	ledger    domain.StockLedger
	history   domain.StatusHistoryRepository
	outbox    domain.OutboxRepository
	logger    *log.Entry
	metrics   *metrics.CheckoutMetrics
}

// NewAssembler создаёт рабочий экземпляр с метриками.
func NewAssembler(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	addresses domain.AddressRepository,
	ledger domain.StockLedger,
	history domain.StatusHistoryRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Assembler {
	a := newAssembler(orders, products, addresses, ledger, history, outbox, logger)
	a.metrics = metrics.NewCheckoutMetrics()
	return a
}

// NewAssemblerWithoutMetrics создаёт экземпляр без метрик (для тестов).
func NewAssemblerWithoutMetrics(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	addresses domain.AddressRepository,
	ledger domain.StockLedger,
	history domain.StatusHistoryRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Assembler {
	return newAssembler(orders, products, addresses, ledger, history, outbox, logger)
}

func newAssembler(
	orders domain.OrderRepository,
	products domain.ProductRepository,
	addresses domain.AddressRepository,
	ledger domain.StockLedger,
	history domain.StatusHistoryRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Assembler {
	if logger == nil {
		logger = log.New().WithField("component", "checkout")
	}
	return &Assembler{
		orders:    orders,
		products:  products,
		addresses: addresses,
		ledger:    ledger,
		history:   history,
		outbox:    outbox,
		logger:    logger,
	}
}

// CreateOrder оформляет заказ по корзине. При любой ошибке сток
// остаётся в исходном состоянии: частичный резерв не переживает
// неудачное оформление.
func (a *Assembler) CreateOrder(req CreateOrderRequest) (domain.Order, error) {
	start := time.Now()
	if a.metrics != nil {
		a.metrics.RecordCheckoutStarted()
	}
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordCheckoutFinished()
			a.metrics.RecordCheckoutDuration(time.Since(start))
		}
	}()

	if err := a.validateRequest(req); err != nil {
		a.recordFailure("validation")
		return domain.Order{}, err
	}

	if err := a.checkAddressOwnership(req.CustomerID, req.AddressID); err != nil {
		a.recordFailure("address_not_found")
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	orderID := uuid.NewString()

	items, subtotal, err := a.priceItems(orderID, req.Items, now)
	if err != nil {
		a.recordFailure("product_not_found")
		return domain.Order{}, err
	}

	order := domain.Order{
		ID:         orderID,
		CustomerID: req.CustomerID,
		AddressID:  req.AddressID,
		Subtotal:   subtotal,
		Discount:   req.Discount,
		Freight:    req.Freight,
		Status:     domain.OrderStatusPending,
		Items:      items,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	order.Total = order.ComputeTotal()

	if ve := order.ValidateInvariants(); ve != nil {
		a.recordFailure("validation")
		return domain.Order{}, ve
	}

	// Резервирование по товарам; компенсации накапливаются и выполняются
	// в обратном порядке при отказе любого последующего шага.
	compensations, err := a.reserveItems(order.Items)
	if err != nil {
		a.recordFailure("insufficient_stock")
		return domain.Order{}, err
	}

	if err := a.orders.Create(order); err != nil {
		a.logger.WithError(err).WithField("order_id", order.ID).Error("failed to persist order")
		a.unwind(compensations)
		a.recordFailure("persistence")
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}

	a.appendHistory(order.ID, "", domain.OrderStatusPending, "order created", now)
	a.emitOrderEvent(kafka.EventTypeOrderCreated, order)

	if a.metrics != nil {
		a.metrics.RecordOrderCreated()
	}
	a.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"items":       len(order.Items),
		"total":       order.Total.String(),
	}).Info("order created")

	return order, nil
}

// UpdateItems заменяет состав позиций заказа, пока он в статусе Pendente.
// Новые количества резервируются по тому же контракту всё-или-ничего;
// прежний резерв возвращается только после успешной записи.
func (a *Assembler) UpdateItems(orderID string, items []ItemRequest) (domain.Order, error) {
	order, err := a.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.OrderStatusPending {
		return domain.Order{}, domain.ErrInvalidTransition
	}

	ve := &domain.ValidationError{}
	validateItemRequests(ve, items)
	if err := ve.ErrOrNil(); err != nil {
		return domain.Order{}, err
	}

	now := time.Now().UTC()
	newItems, subtotal, err := a.priceItems(order.ID, items, now)
	if err != nil {
		return domain.Order{}, err
	}

	compensations, err := a.reserveItems(newItems)
	if err != nil {
		return domain.Order{}, err
	}

	previousItems := order.Items
	order.Items = newItems
	order.Subtotal = subtotal
	order.Total = order.ComputeTotal()
	order.UpdatedAt = now

	if err := a.orders.ReplaceItems(order); err != nil {
		a.unwind(compensations)
		return domain.Order{}, err
	}

	// Заказ переписан; возвращаем резерв прежнего состава.
	for _, item := range previousItems {
		a.restore(item.ProductID, item.Qty)
	}

	updated, err := a.orders.Get(order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

func (a *Assembler) validateRequest(req CreateOrderRequest) error {
	ve := &domain.ValidationError{}

	if req.CustomerID == "" {
		ve.Add("customer_id", "is required")
	}
	if req.AddressID == "" {
		ve.Add("address_id", "is required")
	}
	if req.Discount.IsNegative() {
		ve.Add("discount", "must be non-negative")
	}
	if req.Freight.IsNegative() {
		ve.Add("freight", "must be non-negative")
	}
	validateItemRequests(ve, req.Items)

	return ve.ErrOrNil()
}

func validateItemRequests(ve *domain.ValidationError, items []ItemRequest) {
	if len(items) == 0 {
		ve.Add("items", "order must contain at least one item")
		return
	}
	for i, item := range items {
		prefix := "items[" + strconv.Itoa(i) + "]"
		if item.ProductID == "" {
			ve.Add(prefix+".product_id", "is required")
		}
		if item.Qty < 1 {
			ve.Add(prefix+".qty", "must be at least 1")
		}
	}
}

func (a *Assembler) checkAddressOwnership(customerID, addressID string) error {
	address, err := a.addresses.Get(addressID)
	if err != nil {
		return err
	}
	// Чужой адрес неотличим от несуществующего.
	if address.CustomerID != customerID {
		return domain.ErrAddressNotFound
	}
	return nil
}

// priceItems фиксирует каталожные цены в позициях заказа.
func (a *Assembler) priceItems(orderID string, items []ItemRequest, now time.Time) ([]domain.OrderItem, decimal.Decimal, error) {
	result := make([]domain.OrderItem, 0, len(items))
	subtotal := decimal.Zero

	for _, item := range items {
		product, err := a.products.Get(item.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				return nil, decimal.Zero, fmt.Errorf("product %s: %w", item.ProductID, domain.ErrProductNotFound)
			}
			return nil, decimal.Zero, err
		}

		result = append(result, domain.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			ProductID: product.ID,
			Qty:       item.Qty,
			Size:      item.Size,
			UnitPrice: product.UnitPrice(),
			CreatedAt: now,
		})
		subtotal = subtotal.Add(product.LinePrice(item.Qty))
	}

	return result, subtotal, nil
}

// reserveItems резервирует сток позиций по порядку. При первом отказе
// уже выполненные резервы снимаются в обратном порядке, и наружу уходит
// исходная ошибка.
func (a *Assembler) reserveItems(items []domain.OrderItem) ([]func(), error) {
	compensations := make([]func(), 0, len(items))

	for _, item := range items {
		productID, qty := item.ProductID, item.Qty
		if err := a.ledger.Reserve(productID, qty); err != nil {
			a.unwind(compensations)
			if errors.Is(err, domain.ErrInsufficientStock) {
				return nil, fmt.Errorf("product %s: %w", productID, domain.ErrInsufficientStock)
			}
			return nil, err
		}
		compensations = append(compensations, func() {
			a.restore(productID, qty)
		})
	}

	return compensations, nil
}

// unwind выполняет компенсации в обратном порядке регистрации.
func (a *Assembler) unwind(compensations []func()) {
	for i := len(compensations) - 1; i >= 0; i-- {
		compensations[i]()
	}
}

func (a *Assembler) restore(productID string, qty int32) {
	if err := a.ledger.Restore(productID, qty); err != nil {
		a.logger.WithError(err).WithFields(log.Fields{
			"product_id": productID,
			"qty":        qty,
		}).Error("failed to restore stock")
		return
	}
	if a.metrics != nil {
		a.metrics.RecordStockRestored()
	}
}

func (a *Assembler) recordFailure(reason string) {
	if a.metrics != nil {
		a.metrics.RecordOrderFailed(reason)
	}
}

func (a *Assembler) appendHistory(orderID string, from, to domain.OrderStatus, reason string, occurred time.Time) {
	if a.history == nil {
		return
	}
	change := domain.StatusChange{
		OrderID:  orderID,
		From:     from,
		To:       to,
		Reason:   reason,
		Occurred: occurred,
	}
	if err := a.history.Append(change); err != nil {
		a.logger.WithError(err).WithField("order_id", orderID).Warn("failed to append status history")
	}
}

func (a *Assembler) emitOrderEvent(eventType kafka.EventType, order domain.Order) {
	if a.outbox == nil {
		return
	}

	event := kafka.NewOrderEvent(eventType, order.ID, order.CustomerID, string(order.Status), map[string]any{
		"total":       order.Total.String(),
		"items_count": len(order.Items),
	})
	payload, err := json.Marshal(event)
	if err != nil {
		a.logger.WithError(err).WithField("order_id", order.ID).Error("marshal order event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: kafka.AggregateOrder,
		AggregateID:   order.ID,
		EventType:     string(eventType),
		Payload:       payload,
	}
	if _, err := a.outbox.Enqueue(msg); err != nil {
		a.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue order event failed")
	}
}
