package valueobject

import (
	"fmt"

	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Money struct {
	Amount   decimal.Decimal
	Currency string
}

func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	if amount.IsNegative() {
		return Money{}, apperror.New(apperror.ErrCodeValidation, "сумма не может быть отрицательной")
	}
	if currency == "" {
		currency = "AED"
	}
	return Money{Amount: amount.Round(2), Currency: currency}, nil
}

// MinorUnits сумма в минимальных единицах валюты (филсы, центы) для платёжного шлюза.
func (m Money) MinorUnits() int64 {
	return m.Amount.Mul(hundred).Round(0).IntPart()
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Currency, m.Amount.StringFixed(2))
}

// Tax разбивка цены на налог и итог.
type Tax struct {
	Percentage   decimal.Decimal
	TaxAmount    decimal.Decimal
	PriceWithTax decimal.Decimal
}

// ApplyTax считает налог от цены по проценту, округляя до двух знаков.
func ApplyTax(price, percentage decimal.Decimal) Tax {
	tax := price.Mul(percentage).Div(hundred).Round(2)
	return Tax{
		Percentage:   percentage,
		TaxAmount:    tax,
		PriceWithTax: price.Add(tax),
	}
}
