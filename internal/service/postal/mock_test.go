package postal

import (
	"errors"
	"testing"

	"github.com/expirians/storefront/internal/domain"
)

func TestMockLookup(t *testing.T) {
	mock := NewMockLookup()
	mock.Addresses["01310-100"] = domain.PostalAddress{
		Street:       "Av. Paulista",
		Neighborhood: "Bela Vista",
		City:         "Sao Paulo",
	}

	address, err := mock.Lookup("01310-100")
	if err != nil {
		t.Fatalf("unexpected lookup error: %v", err)
	}
	if address.City != "Sao Paulo" {
		t.Fatalf("unexpected city: %s", address.City)
	}

	if _, err := mock.Lookup("99999-999"); !errors.Is(err, ErrPostalCodeNotFound) {
		t.Fatalf("expected ErrPostalCodeNotFound, got %v", err)
	}

	mock.LookupErr = errors.New("upstream down")
	if _, err := mock.Lookup("01310-100"); err == nil {
		t.Fatal("expected configured error")
	}
	if mock.LookupCalls != 3 {
		t.Fatalf("unexpected call counter: %d", mock.LookupCalls)
	}
}
