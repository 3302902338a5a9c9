package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/expirians/storefront/internal/domain"
)

func makeStoredOrder(id, customerID string, status domain.OrderStatus) domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:         id,
		CustomerID: customerID,
		AddressID:  "address-1",
		Subtotal:   decimal.RequireFromString("49.90"),
		Discount:   decimal.Zero,
		Freight:    decimal.Zero,
		Total:      decimal.RequireFromString("49.90"),
		Status:     status,
		Items: []domain.OrderItem{{
			ID:        id + "-item-1",
			OrderID:   id,
			ProductID: "product-1",
			Qty:       1,
			UnitPrice: decimal.RequireFromString("49.90"),
			CreatedAt: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderRepository_CreateAndGet(t *testing.T) {
	repo := NewOrderRepository()
	order := makeStoredOrder("order-1", "customer-1", domain.OrderStatusPending)

	if err := repo.Create(order); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(order); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("duplicate create: expected conflict, got %v", err)
	}

	got, err := repo.Get("order-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "order-1" || len(got.Items) != 1 {
		t.Fatalf("unexpected order: %+v", got)
	}

	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_SaveVersionConflict(t *testing.T) {
	repo := NewOrderRepository()
	order := makeStoredOrder("order-1", "customer-1", domain.OrderStatusPending)
	if err := repo.Create(order); err != nil {
		t.Fatalf("create: %v", err)
	}

	first := order
	first.Status = domain.OrderStatusConfirmed
	if err := repo.Save(first); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Вторая запись с устаревшей версией должна отклоняться.
	second := order
	second.Status = domain.OrderStatusCanceled
	if err := repo.Save(second); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	got, _ := repo.Get("order-1")
	if got.Status != domain.OrderStatusConfirmed {
		t.Fatalf("status = %s, want %s", got.Status, domain.OrderStatusConfirmed)
	}
	if got.Version != 1 {
		t.Fatalf("version = %d, want 1", got.Version)
	}
}

func TestOrderRepository_SaveDoesNotTouchItems(t *testing.T) {
	repo := NewOrderRepository()
	order := makeStoredOrder("order-1", "customer-1", domain.OrderStatusPending)
	if err := repo.Create(order); err != nil {
		t.Fatalf("create: %v", err)
	}

	update := order
	update.Status = domain.OrderStatusConfirmed
	update.Items = nil
	if err := repo.Save(update); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, _ := repo.Get("order-1")
	if len(got.Items) != 1 {
		t.Fatalf("items were lost on save: %+v", got.Items)
	}
}

func TestOrderRepository_ReplaceItems(t *testing.T) {
	repo := NewOrderRepository()
	order := makeStoredOrder("order-1", "customer-1", domain.OrderStatusPending)
	if err := repo.Create(order); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated := order
	updated.Items = []domain.OrderItem{{
		ID:        "order-1-item-2",
		OrderID:   "order-1",
		ProductID: "product-2",
		Qty:       3,
		UnitPrice: decimal.RequireFromString("10.00"),
	}}
	updated.Subtotal = decimal.RequireFromString("30.00")
	updated.Total = decimal.RequireFromString("30.00")

	if err := repo.ReplaceItems(updated); err != nil {
		t.Fatalf("replace items: %v", err)
	}

	got, _ := repo.Get("order-1")
	if len(got.Items) != 1 || got.Items[0].ProductID != "product-2" {
		t.Fatalf("items not replaced: %+v", got.Items)
	}
	if !got.Subtotal.Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("subtotal = %s, want 30.00", got.Subtotal)
	}

	// Устаревшая версия — конфликт.
	if err := repo.ReplaceItems(updated); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}
}

func TestOrderRepository_ListByCustomer(t *testing.T) {
	repo := NewOrderRepository()
	for _, id := range []string{"order-1", "order-2", "order-3"} {
		order := makeStoredOrder(id, "customer-1", domain.OrderStatusPending)
		if err := repo.Create(order); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	other := makeStoredOrder("order-x", "customer-2", domain.OrderStatusPending)
	if err := repo.Create(other); err != nil {
		t.Fatalf("create other: %v", err)
	}

	orders, err := repo.ListByCustomer("customer-1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(orders) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(orders))
	}

	limited, _ := repo.ListByCustomer("customer-1", 2)
	if len(limited) != 2 {
		t.Fatalf("expected 2 orders with limit, got %d", len(limited))
	}
}

func TestOrderRepository_HasDeliveredProduct(t *testing.T) {
	repo := NewOrderRepository()

	pending := makeStoredOrder("order-1", "customer-1", domain.OrderStatusPending)
	if err := repo.Create(pending); err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := repo.HasDeliveredProduct("customer-1", "product-1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if ok {
		t.Fatal("pending order must not grant delivered flag")
	}

	delivered := makeStoredOrder("order-2", "customer-1", domain.OrderStatusDelivered)
	if err := repo.Create(delivered); err != nil {
		t.Fatalf("create delivered: %v", err)
	}

	ok, _ = repo.HasDeliveredProduct("customer-1", "product-1")
	if !ok {
		t.Fatal("delivered order must grant delivered flag")
	}

	ok, _ = repo.HasDeliveredProduct("customer-2", "product-1")
	if ok {
		t.Fatal("delivered flag must be scoped to the owning customer")
	}
	ok, _ = repo.HasDeliveredProduct("customer-1", "product-999")
	if ok {
		t.Fatal("delivered flag must be scoped to the referenced product")
	}
}
