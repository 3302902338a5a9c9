package address

import (
	"errors"
	"testing"

	"github.com/expirians/storefront/internal/domain"
	"github.com/expirians/storefront/internal/service/postal"
	"github.com/expirians/storefront/internal/storage/memory"
)

func newRegistry(t *testing.T) (*Registry, *postal.MockLookup) {
	t.Helper()

	lookup := postal.NewMockLookup()
	lookup.Addresses["01310-100"] = domain.PostalAddress{
		Street:       "Av. Paulista",
		Neighborhood: "Bela Vista",
		City:         "Sao Paulo",
	}
	return NewRegistry(memory.NewAddressRepository(), lookup, nil), lookup
}

func validAddress() domain.Address {
	return domain.Address{
		CustomerID:   "cust-1",
		Description:  "Home",
		PostalCode:   "01310-100",
		Street:       "Av. Paulista",
		Number:       "1000",
		Neighborhood: "Bela Vista",
		City:         "Sao Paulo",
	}
}

func TestAddAddress(t *testing.T) {
	registry, _ := newRegistry(t)

	added, err := registry.AddAddress(validAddress())
	if err != nil {
		t.Fatalf("AddAddress failed: %v", err)
	}
	if added.ID == "" {
		t.Fatal("expected generated address id")
	}

	got, err := registry.GetAddress("cust-1", added.ID)
	if err != nil {
		t.Fatalf("GetAddress failed: %v", err)
	}
	if got.Description != "Home" {
		t.Fatalf("description = %q", got.Description)
	}
}

func TestAddAddressEnrichesFromPostalCode(t *testing.T) {
	registry, lookup := newRegistry(t)

	input := validAddress()
	input.Street = ""
	input.Neighborhood = ""
	input.City = ""

	added, err := registry.AddAddress(input)
	if err != nil {
		t.Fatalf("AddAddress failed: %v", err)
	}
	if added.Street != "Av. Paulista" || added.Neighborhood != "Bela Vista" || added.City != "Sao Paulo" {
		t.Fatalf("enrichment missing: %+v", added)
	}
	if lookup.LookupCalls != 1 {
		t.Fatalf("lookup calls = %d, want 1", lookup.LookupCalls)
	}
}

func TestAddAddressDoesNotOverrideExplicitFields(t *testing.T) {
	registry, _ := newRegistry(t)

	input := validAddress()
	input.Street = "Rua Augusta"
	input.Neighborhood = ""

	added, err := registry.AddAddress(input)
	if err != nil {
		t.Fatalf("AddAddress failed: %v", err)
	}
	if added.Street != "Rua Augusta" {
		t.Fatalf("explicit street overwritten: %s", added.Street)
	}
	if added.Neighborhood != "Bela Vista" {
		t.Fatalf("neighborhood not enriched: %s", added.Neighborhood)
	}
}

func TestAddAddressLookupFailureFallsThroughToValidation(t *testing.T) {
	registry, lookup := newRegistry(t)
	lookup.LookupErr = errors.New("upstream down")

	input := validAddress()
	input.City = ""

	_, err := registry.AddAddress(input)
	ve, ok := domain.AsValidation(err)
	if !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Fields) != 1 || ve.Fields[0].Field != "city" {
		t.Fatalf("unexpected validation fields: %+v", ve.Fields)
	}
}

func TestAddAddressEnforcesLimit(t *testing.T) {
	registry, _ := newRegistry(t)

	descriptions := []string{"Home", "Work", "Parents"}
	for _, d := range descriptions {
		a := validAddress()
		a.Description = d
		if _, err := registry.AddAddress(a); err != nil {
			t.Fatalf("AddAddress %q failed: %v", d, err)
		}
	}

	extra := validAddress()
	extra.Description = "Beach house"
	if _, err := registry.AddAddress(extra); !errors.Is(err, domain.ErrMaxAddressesExceeded) {
		t.Fatalf("expected ErrMaxAddressesExceeded, got %v", err)
	}

	// Другой клиент лимитом первого не ограничен.
	other := validAddress()
	other.CustomerID = "cust-2"
	if _, err := registry.AddAddress(other); err != nil {
		t.Fatalf("AddAddress for another customer failed: %v", err)
	}
}

func TestAddAddressDuplicateDescription(t *testing.T) {
	registry, _ := newRegistry(t)

	if _, err := registry.AddAddress(validAddress()); err != nil {
		t.Fatalf("AddAddress failed: %v", err)
	}

	dup := validAddress()
	dup.Description = "  Home  "
	if _, err := registry.AddAddress(dup); !errors.Is(err, domain.ErrDuplicateDescription) {
		t.Fatalf("expected ErrDuplicateDescription, got %v", err)
	}
}

func TestUpdateAddress(t *testing.T) {
	registry, _ := newRegistry(t)

	added, err := registry.AddAddress(validAddress())
	if err != nil {
		t.Fatalf("AddAddress failed: %v", err)
	}

	added.Number = "2000"
	updated, err := registry.UpdateAddress(added)
	if err != nil {
		t.Fatalf("UpdateAddress failed: %v", err)
	}
	if updated.Number != "2000" {
		t.Fatalf("number = %s, want 2000", updated.Number)
	}
}

func TestUpdateForeignAddress(t *testing.T) {
	registry, _ := newRegistry(t)

	added, err := registry.AddAddress(validAddress())
	if err != nil {
		t.Fatalf("AddAddress failed: %v", err)
	}

	added.CustomerID = "cust-2"
	if _, err := registry.UpdateAddress(added); !errors.Is(err, domain.ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound, got %v", err)
	}
}

func TestDeleteAddressFreesSlot(t *testing.T) {
	registry, _ := newRegistry(t)

	descriptions := []string{"Home", "Work", "Parents"}
	var firstID string
	for i, d := range descriptions {
		a := validAddress()
		a.Description = d
		added, err := registry.AddAddress(a)
		if err != nil {
			t.Fatalf("AddAddress %q failed: %v", d, err)
		}
		if i == 0 {
			firstID = added.ID
		}
	}

	if err := registry.DeleteAddress("cust-1", firstID); err != nil {
		t.Fatalf("DeleteAddress failed: %v", err)
	}

	replacement := validAddress()
	replacement.Description = "Beach house"
	if _, err := registry.AddAddress(replacement); err != nil {
		t.Fatalf("AddAddress after delete failed: %v", err)
	}

	list, err := registry.ListAddresses("cust-1")
	if err != nil {
		t.Fatalf("ListAddresses failed: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("addresses = %d, want 3", len(list))
	}
}

func TestDeleteForeignAddress(t *testing.T) {
	registry, _ := newRegistry(t)

	added, err := registry.AddAddress(validAddress())
	if err != nil {
		t.Fatalf("AddAddress failed: %v", err)
	}

	if err := registry.DeleteAddress("cust-2", added.ID); !errors.Is(err, domain.ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound, got %v", err)
	}
}
