package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product описывает товар каталога. Поле Stock меняется только через
// StockLedger; цена и скидка управляются внешним каталогом и здесь
// читаются как есть.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	// DiscountPct — скидка каталога в процентах, 0..100.
	DiscountPct int32
	Stock       int32
	CategoryID  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UnitPrice возвращает цену единицы с учётом каталожной скидки,
// округлённую до сотых. Именно это значение замораживается в позиции заказа.
func (p *Product) UnitPrice() decimal.Decimal {
	if p.DiscountPct <= 0 {
		return p.Price.Round(2)
	}
	factor := decimal.NewFromInt32(100 - p.DiscountPct).Div(decimal.NewFromInt(100))
	return p.Price.Mul(factor).Round(2)
}

// LinePrice возвращает вклад qty единиц товара в subtotal заказа.
func (p *Product) LinePrice(qty int32) decimal.Decimal {
	return p.UnitPrice().Mul(decimal.NewFromInt32(qty))
}
