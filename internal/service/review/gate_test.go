package review

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/expirians/storefront/internal/domain"
	"github.com/expirians/storefront/internal/messaging/kafka"
	"github.com/expirians/storefront/internal/storage/memory"
)

type fixture struct {
	gate    *Gate
	orders  domain.OrderRepository
	pending func() []domain.OutboxMessage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	orders := memory.NewOrderRepository()
	outbox := memory.NewOutboxRepository()
	gate := NewGateWithoutMetrics(memory.NewReviewRepository(), orders, outbox, nil)

	return &fixture{gate: gate, orders: orders, pending: outbox.AllPending}
}

func (f *fixture) seedOrder(t *testing.T, id, customerID, productID string, status domain.OrderStatus) {
	t.Helper()
	now := time.Now().UTC()

	order := domain.Order{
		ID:         id,
		CustomerID: customerID,
		AddressID:  "addr-1",
		Subtotal:   decimal.RequireFromString("49.90"),
		Status:     status,
		Items: []domain.OrderItem{
			{ID: id + "-item", OrderID: id, ProductID: productID, Qty: 1, UnitPrice: decimal.RequireFromString("49.90"), CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	order.Total = order.ComputeTotal()

	if err := f.orders.Create(order); err != nil {
		t.Fatalf("seed order %s: %v", id, err)
	}
}

func validReview() domain.Review {
	return domain.Review{
		ProductID:  "prod-1",
		CustomerID: "cust-1",
		Rating:     5,
		Comment:    "Great fit",
	}
}

func TestCanReviewRequiresDelivery(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "order-1", "cust-1", "prod-1", domain.OrderStatusShipped)

	got, err := f.gate.CanReview("cust-1", "prod-1")
	if err != nil {
		t.Fatalf("CanReview failed: %v", err)
	}
	if got.Eligible || got.AlreadyReviewed {
		t.Fatalf("shipped order must not grant eligibility: %+v", got)
	}
}

func TestCanReviewAfterDelivery(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "order-1", "cust-1", "prod-1", domain.OrderStatusDelivered)

	got, err := f.gate.CanReview("cust-1", "prod-1")
	if err != nil {
		t.Fatalf("CanReview failed: %v", err)
	}
	if !got.Eligible || got.AlreadyReviewed {
		t.Fatalf("delivered order must grant eligibility: %+v", got)
	}
}

func TestSubmitReview(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "order-1", "cust-1", "prod-1", domain.OrderStatusDelivered)

	review, err := f.gate.SubmitReview(validReview())
	if err != nil {
		t.Fatalf("SubmitReview failed: %v", err)
	}
	if review.ID == "" {
		t.Fatal("expected generated review id")
	}

	got, err := f.gate.CanReview("cust-1", "prod-1")
	if err != nil {
		t.Fatalf("CanReview failed: %v", err)
	}
	if !got.Eligible || !got.AlreadyReviewed {
		t.Fatalf("delivered purchase keeps eligibility after review: %+v", got)
	}

	list, err := f.gate.ListByProduct("prod-1")
	if err != nil {
		t.Fatalf("ListByProduct failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != review.ID {
		t.Fatalf("unexpected review list: %+v", list)
	}

	events := f.pending()
	if len(events) != 1 || events[0].EventType != string(kafka.EventTypeReviewSubmitted) {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestSubmitReviewWithoutDelivery(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "order-1", "cust-1", "prod-1", domain.OrderStatusConfirmed)

	_, err := f.gate.SubmitReview(validReview())
	if !errors.Is(err, domain.ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
	if events := f.pending(); len(events) != 0 {
		t.Fatalf("refused review must not emit events, got %d", len(events))
	}
}

func TestSubmitReviewForeignPurchase(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "order-1", "cust-2", "prod-1", domain.OrderStatusDelivered)

	_, err := f.gate.SubmitReview(validReview())
	if !errors.Is(err, domain.ErrNotEligible) {
		t.Fatalf("someone else's purchase must not qualify, got %v", err)
	}
}

func TestSubmitReviewDuplicate(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "order-1", "cust-1", "prod-1", domain.OrderStatusDelivered)

	if _, err := f.gate.SubmitReview(validReview()); err != nil {
		t.Fatalf("first SubmitReview failed: %v", err)
	}
	if _, err := f.gate.SubmitReview(validReview()); !errors.Is(err, domain.ErrAlreadyReviewed) {
		t.Fatalf("expected ErrAlreadyReviewed, got %v", err)
	}
}

func TestSubmitReviewValidation(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "order-1", "cust-1", "prod-1", domain.OrderStatusDelivered)

	bad := validReview()
	bad.Rating = 6
	_, err := f.gate.SubmitReview(bad)
	ve, ok := domain.AsValidation(err)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Fields) != 1 || ve.Fields[0].Field != "rating" {
		t.Fatalf("unexpected validation fields: %+v", ve.Fields)
	}
}

// Конкурентная отправка одного и того же отзыва: записывается ровно один.
func TestConcurrentSubmitSingleWinner(t *testing.T) {
	f := newFixture(t)
	f.seedOrder(t, "order-1", "cust-1", "prod-1", domain.OrderStatusDelivered)

	const workers = 10
	var succeeded atomic.Int32
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := f.gate.SubmitReview(validReview()); err == nil {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := succeeded.Load(); got != 1 {
		t.Fatalf("successful submissions = %d, want 1", got)
	}
	list, err := f.gate.ListByProduct("prod-1")
	if err != nil {
		t.Fatalf("ListByProduct failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("stored reviews = %d, want 1", len(list))
	}
}
