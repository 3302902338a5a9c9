package postgres

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/expirians/storefront/internal/domain"
)

func TestReviewRepository_PostgresCreateExistsAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewReviewRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	review := domain.Review{
		ID:         "review-1",
		ProductID:  "prod-1",
		CustomerID: "customer-1",
		Rating:     5,
		Comment:    "Chegou rapido, recomendo",
		CreatedAt:  now,
	}

	exists, err := repo.Exists("customer-1", "prod-1")
	if err != nil {
		t.Fatalf("exists before create: %v", err)
	}
	if exists {
		t.Fatal("review must not exist before create")
	}

	if err := repo.Create(review); err != nil {
		t.Fatalf("create review: %v", err)
	}

	exists, err = repo.Exists("customer-1", "prod-1")
	if err != nil {
		t.Fatalf("exists after create: %v", err)
	}
	if !exists {
		t.Fatal("review must exist after create")
	}

	dup := review
	dup.ID = "review-2"
	dup.Rating = 1
	if err := repo.Create(dup); !errors.Is(err, domain.ErrAlreadyReviewed) {
		t.Fatalf("expected ErrAlreadyReviewed, got %v", err)
	}

	other := domain.Review{
		ID:         "review-3",
		ProductID:  "prod-1",
		CustomerID: "customer-2",
		Rating:     4,
		CreatedAt:  now.Add(time.Minute),
	}
	if err := repo.Create(other); err != nil {
		t.Fatalf("create review from other customer: %v", err)
	}

	listed, err := repo.ListByProduct("prod-1")
	if err != nil {
		t.Fatalf("list reviews: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(listed))
	}
	if listed[0].ID != "review-3" {
		t.Fatalf("expected newest review first, got %s", listed[0].ID)
	}
}

func TestReviewRepository_PostgresConcurrentCreateSingleWinner(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewReviewRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)

	const attempts = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			review := domain.Review{
				ID:         "review-race-" + string(rune('a'+n)),
				ProductID:  "prod-race",
				CustomerID: "customer-race",
				Rating:     5,
				CreatedAt:  now,
			}
			if err := repo.Create(review); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("expected exactly one winning insert, got %d", succeeded)
	}
}
