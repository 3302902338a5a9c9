package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа. Значения совпадают
// с тем, что хранится в базе и отдаётся наружу.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан, сток зарезервирован, исполнение не начато.
	OrderStatusPending OrderStatus = "Pendente"
	// OrderStatusConfirmed — заказ подтверждён и принят в работу.
	OrderStatusConfirmed OrderStatus = "Confirmado"
	// OrderStatusPreparing — заказ собирается на складе.
	OrderStatusPreparing OrderStatus = "EmPreparacao"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "Enviado"
	// OrderStatusDelivered — заказ доставлен; терминальный статус,
	// открывающий право на отзыв.
	OrderStatusDelivered OrderStatus = "Entregue"
	// OrderStatusCanceled — заказ отменён; терминальный статус,
	// резерв стока возвращается.
	OrderStatusCanceled OrderStatus = "Cancelado"
)

// orderTransitions — закрытая таблица допустимых переходов: только
// пошаговое движение вперёд, отмена из любого нетерминального статуса.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCanceled},
	OrderStatusConfirmed: {OrderStatusPreparing, OrderStatusCanceled},
	OrderStatusPreparing: {OrderStatusShipped, OrderStatusCanceled},
	OrderStatusShipped:   {OrderStatusDelivered, OrderStatusCanceled},
	OrderStatusDelivered: nil,
	OrderStatusCanceled:  nil,
}

// Valid сообщает, относится ли статус к известным значениям.
func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Terminal сообщает, является ли статус конечным.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCanceled
}

// CanTransitionTo проверяет переход по таблице.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// OrderItem — одна позиция заказа. UnitPrice фиксируется в момент
// оформления: последующие изменения каталога исторические заказы не трогают.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Qty       int32
	// Size — опциональная метка размера (одежда/обувь).
	Size      string
	UnitPrice decimal.Decimal
	CreatedAt time.Time
}

// Order агрегирует заказ и его позиции. После создания мутирует
// только Status (через машину статусов) и, пока заказ Pendente, состав позиций.
type Order struct {
	ID         string
	CustomerID string
	AddressID  string
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Freight    decimal.Decimal
	Total      decimal.Decimal
	Status     OrderStatus
	Items      []OrderItem
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ComputeTotal пересчитывает Total по формуле subtotal − discount + freight.
func (o *Order) ComputeTotal() decimal.Decimal {
	return o.Subtotal.Sub(o.Discount).Add(o.Freight)
}

// ValidateInvariants проверяет инварианты заказа и возвращает все нарушения.
func (o *Order) ValidateInvariants() *ValidationError {
	ve := &ValidationError{}

	if o.CustomerID == "" {
		ve.Add("customer_id", "is required")
	}
	if o.AddressID == "" {
		ve.Add("address_id", "is required")
	}
	if len(o.Items) == 0 {
		ve.Add("items", "order must contain at least one item")
	}
	if o.Subtotal.IsNegative() {
		ve.Add("subtotal", "must be non-negative")
	}
	if o.Discount.IsNegative() {
		ve.Add("discount", "must be non-negative")
	}
	if o.Freight.IsNegative() {
		ve.Add("freight", "must be non-negative")
	}
	if o.Total.IsNegative() {
		ve.Add("total", "must be non-negative")
	}
	if !o.Status.Valid() {
		ve.Add("status", "unknown status")
	}

	var subtotal decimal.Decimal
	for i, item := range o.Items {
		prefix := "items[" + strconv.Itoa(i) + "]"
		if item.ProductID == "" {
			ve.Add(prefix+".product_id", "is required")
		}
		if item.Qty < 1 {
			ve.Add(prefix+".qty", "must be at least 1")
		}
		if item.UnitPrice.IsNegative() {
			ve.Add(prefix+".unit_price", "must be non-negative")
		}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt32(item.Qty)))
	}
	if len(o.Items) > 0 && !subtotal.Equal(o.Subtotal) {
		ve.Add("subtotal", "does not match the sum of item line prices")
	}
	if !o.ComputeTotal().Equal(o.Total) {
		ve.Add("total", "does not equal subtotal - discount + freight")
	}

	if ve.ErrOrNil() == nil {
		return nil
	}
	return ve
}

// StatusChange — запись истории переходов статуса заказа.
type StatusChange struct {
	OrderID  string
	From     OrderStatus
	To       OrderStatus
	Reason   string
	Occurred time.Time
}
