package address

import (
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/expirians/storefront/internal/domain"
)

// Registry управляет адресной книгой клиента: не больше трёх адресов,
// описания уникальны в пределах клиента. Лимит и уникальность
// проверяются атомарно на уровне репозитория, регистр здесь только
// валидирует и обогащает вход.
type Registry struct {
	addresses domain.AddressRepository
	postal    domain.PostalLookup
	logger    *log.Entry
}

// NewRegistry создаёт регистр. postal может быть nil, тогда обогащение
// по индексу отключено.
func NewRegistry(addresses domain.AddressRepository, postal domain.PostalLookup, logger *log.Entry) *Registry {
	if logger == nil {
		logger = log.New().WithField("component", "address")
	}
	return &Registry{
		addresses: addresses,
		postal:    postal,
		logger:    logger,
	}
}

// AddAddress добавляет адрес клиенту. Пустые улица, район или город
// заполняются по почтовому индексу, если справочник доступен; явно
// переданные значения никогда не перезаписываются.
func (r *Registry) AddAddress(address domain.Address) (domain.Address, error) {
	r.enrich(&address)

	if ve := address.Validate(); ve != nil {
		return domain.Address{}, ve
	}

	now := time.Now().UTC()
	address.ID = uuid.NewString()
	address.Description = address.NormalizedDescription()
	address.CreatedAt = now
	address.UpdatedAt = now

	if err := r.addresses.Create(address); err != nil {
		return domain.Address{}, err
	}

	r.logger.WithFields(log.Fields{
		"address_id":  address.ID,
		"customer_id": address.CustomerID,
	}).Info("address added")
	return address, nil
}

// UpdateAddress заменяет содержимое адреса клиента. Принадлежность
// проверяется до записи: чужой адрес неотличим от несуществующего.
func (r *Registry) UpdateAddress(address domain.Address) (domain.Address, error) {
	current, err := r.addresses.Get(address.ID)
	if err != nil {
		return domain.Address{}, err
	}
	if current.CustomerID != address.CustomerID {
		return domain.Address{}, domain.ErrAddressNotFound
	}

	r.enrich(&address)

	if ve := address.Validate(); ve != nil {
		return domain.Address{}, ve
	}

	address.Description = address.NormalizedDescription()
	address.UpdatedAt = time.Now().UTC()

	if err := r.addresses.Update(address); err != nil {
		return domain.Address{}, err
	}

	updated, err := r.addresses.Get(address.ID)
	if err != nil {
		return domain.Address{}, err
	}
	return updated, nil
}

// DeleteAddress удаляет адрес клиента.
func (r *Registry) DeleteAddress(customerID, addressID string) error {
	current, err := r.addresses.Get(addressID)
	if err != nil {
		return err
	}
	if current.CustomerID != customerID {
		return domain.ErrAddressNotFound
	}
	return r.addresses.Delete(addressID)
}

// GetAddress возвращает адрес клиента по идентификатору.
func (r *Registry) GetAddress(customerID, addressID string) (domain.Address, error) {
	address, err := r.addresses.Get(addressID)
	if err != nil {
		return domain.Address{}, err
	}
	if address.CustomerID != customerID {
		return domain.Address{}, domain.ErrAddressNotFound
	}
	return address, nil
}

// ListAddresses возвращает все адреса клиента в порядке добавления.
func (r *Registry) ListAddresses(customerID string) ([]domain.Address, error) {
	return r.addresses.ListByCustomer(customerID)
}

// enrich заполняет пустые поля адреса по почтовому индексу. Отказ
// справочника не фатален: валидация дальше сама решит, хватает ли полей.
func (r *Registry) enrich(address *domain.Address) {
	if r.postal == nil {
		return
	}
	code := strings.TrimSpace(address.PostalCode)
	if code == "" {
		return
	}
	if address.Street != "" && address.Neighborhood != "" && address.City != "" {
		return
	}

	found, err := r.postal.Lookup(code)
	if err != nil {
		r.logger.WithError(err).WithField("postal_code", code).Warn("postal lookup failed")
		return
	}

	if address.Street == "" {
		address.Street = found.Street
	}
	if address.Neighborhood == "" {
		address.Neighborhood = found.Neighborhood
	}
	if address.City == "" {
		address.City = found.City
	}
}
