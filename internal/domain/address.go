package domain

import (
	"strings"
	"time"
)

// MaxAddressesPerCustomer — предел количества адресов у одного клиента.
const MaxAddressesPerCustomer = 3

// Address — адрес доставки. Принадлежит ровно одному клиенту;
// Description уникально среди адресов этого клиента.
type Address struct {
	ID           string
	CustomerID   string
	Description  string
	PostalCode   string
	Street       string
	Number       string
	Neighborhood string
	City         string
	// Complement — необязательное уточнение (квартира, блок и т.п.).
	Complement string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NormalizedDescription возвращает описание в той форме, в которой
// проверяется уникальность: точное совпадение после обрезки пробелов.
func (a *Address) NormalizedDescription() string {
	return strings.TrimSpace(a.Description)
}

// Validate проверяет обязательные поля адреса и возвращает все нарушения.
func (a *Address) Validate() *ValidationError {
	ve := &ValidationError{}

	if a.CustomerID == "" {
		ve.Add("customer_id", "is required")
	}
	if a.NormalizedDescription() == "" {
		ve.Add("description", "is required")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		ve.Add("postal_code", "is required")
	}
	if strings.TrimSpace(a.Street) == "" {
		ve.Add("street", "is required")
	}
	if strings.TrimSpace(a.Number) == "" {
		ve.Add("number", "is required")
	}
	if strings.TrimSpace(a.Neighborhood) == "" {
		ve.Add("neighborhood", "is required")
	}
	if strings.TrimSpace(a.City) == "" {
		ve.Add("city", "is required")
	}

	if ve.ErrOrNil() == nil {
		return nil
	}
	return ve
}
