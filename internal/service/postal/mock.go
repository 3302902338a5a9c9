package postal

import (
	"errors"

	"github.com/expirians/storefront/internal/domain"
)

// ErrPostalCodeNotFound возвращается для индекса, которого нет в справочнике.
var ErrPostalCodeNotFound = errors.New("postal code not found")

// MockLookup — конфигурируемая заглушка PostalLookup для тестов и
// локального запуска без внешнего сервиса индексов.
type MockLookup struct {
	Addresses map[string]domain.PostalAddress
	LookupErr error

	LookupCalls int
}

// NewMockLookup возвращает mock с пустым справочником.
func NewMockLookup() *MockLookup {
	return &MockLookup{Addresses: make(map[string]domain.PostalAddress)}
}

// Lookup возвращает адрес из справочника либо заранее настроенную ошибку.
func (m *MockLookup) Lookup(postalCode string) (domain.PostalAddress, error) {
	m.LookupCalls++
	if m.LookupErr != nil {
		return domain.PostalAddress{}, m.LookupErr
	}
	address, ok := m.Addresses[postalCode]
	if !ok {
		return domain.PostalAddress{}, ErrPostalCodeNotFound
	}
	return address, nil
}

var _ domain.PostalLookup = (*MockLookup)(nil)
