package postgres

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/expirians/storefront/internal/domain"
)

func TestProductRepository_PostgresReserveAndRestore(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)

	product := sampleProduct("prod-stock", 5)
	if err := repo.Create(product); err != nil {
		t.Fatalf("create product: %v", err)
	}

	if err := repo.Reserve("prod-stock", 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	got, err := repo.Get("prod-stock")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Stock != 2 {
		t.Fatalf("unexpected stock after reserve: %d", got.Stock)
	}

	if err := repo.Reserve("prod-stock", 3); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	got, err = repo.Get("prod-stock")
	if err != nil {
		t.Fatalf("get product after failed reserve: %v", err)
	}
	if got.Stock != 2 {
		t.Fatalf("failed reserve must not change stock: %d", got.Stock)
	}

	if err := repo.Restore("prod-stock", 3); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, err = repo.Get("prod-stock")
	if err != nil {
		t.Fatalf("get product after restore: %v", err)
	}
	if got.Stock != 5 {
		t.Fatalf("unexpected stock after restore: %d", got.Stock)
	}

	if err := repo.Reserve("missing-product", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := repo.Get("missing-product"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound on get, got %v", err)
	}
}

func TestProductRepository_PostgresConcurrentReserve(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)

	if err := repo.Create(sampleProduct("prod-race", 3)); err != nil {
		t.Fatalf("create product: %v", err)
	}

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Reserve("prod-race", 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 3 {
		t.Fatalf("expected exactly 3 successful reservations, got %d", succeeded)
	}

	got, err := repo.Get("prod-race")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Stock != 0 {
		t.Fatalf("unexpected stock after concurrent reserve: %d", got.Stock)
	}
}

func sampleProduct(id string, stock int32) domain.Product {
	now := time.Now().UTC().Round(time.Microsecond)
	return domain.Product{
		ID:         id,
		Name:       "Camiseta basica",
		Price:      decimal.RequireFromString("49.90"),
		Stock:      stock,
		CategoryID: "cat-1",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
