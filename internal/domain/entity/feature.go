package entity

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/shopspring/decimal"
)

const labelMaxLength = 200

// Feature бронируемый вариант услуги и описание формы заявки.
type Feature struct {
	ID        uuid.UUID
	ServiceID uuid.UUID
	Name      string
	IsActive  bool
	Cities    []string
	Fields    []ServiceField
}

type ServiceField struct {
	ID           uuid.UUID
	FeatureID    uuid.UUID
	Name         string
	Label        string
	Type         valueobject.FieldType
	IsPriceUnit  bool
	PricePerUnit *decimal.Decimal
	IsRequired   bool
	IsActive     bool
}

// ResolvedValue проверенное значение поля формы.
type ResolvedValue struct {
	Field ServiceField
	Value string
}

// ValidateFields проверяет набор полей варианта услуги при создании и обновлении.
func ValidateFields(fields []ServiceField) error {
	errs := make(map[string]string)
	seen := make(map[string]struct{}, len(fields))
	put := func(key, msg string) {
		if _, ok := errs[key]; !ok {
			errs[key] = msg
		}
	}

	for _, f := range fields {
		if !valueobject.ValidFieldName(f.Name) {
			put("field_name", "This value does not match the required pattern.")
		}
		if _, dup := seen[f.Name]; dup {
			put("field_name", fmt.Sprintf("Field %q is declared more than once.", f.Name))
		}
		seen[f.Name] = struct{}{}

		switch {
		case f.Label == "":
			put("label", "This field may not be blank.")
		case utf8.RuneCountInString(f.Label) > labelMaxLength:
			put("label", fmt.Sprintf("Ensure this field has no more than %d characters.", labelMaxLength))
		}

		if !f.Type.IsValid() {
			put("field_type", fmt.Sprintf("%q is not a valid choice.", string(f.Type)))
		}
		if f.PricePerUnit != nil && f.PricePerUnit.IsNegative() {
			put("price_per_unit", "Ensure this value is greater than or equal to 0.")
		}
		if f.IsPriceUnit && f.PricePerUnit == nil {
			put("price_per_unit", "This value can't be null for price unit fields")
		}
	}
	if len(errs) > 0 {
		return apperror.Fields(errs)
	}

	hasPriceUnit := false
	for _, f := range fields {
		if f.IsPriceUnit && !f.Type.CanBePriceUnit() {
			return apperror.Field(f.Name, "Price unit field can be only numberic types.")
		}
		hasPriceUnit = hasPriceUnit || f.IsPriceUnit
	}
	if !hasPriceUnit {
		return apperror.Field("is_price_unit_field", "Please mark one or more field as price unit field.")
	}
	return nil
}

// FormFields поля, которые клиент заполняет в заявке.
// Для расчёта цены достаточно полей с единицей цены.
func (f *Feature) FormFields(priceOnly bool) []ServiceField {
	out := make([]ServiceField, 0, len(f.Fields))
	for _, field := range f.Fields {
		if !field.IsActive {
			continue
		}
		if priceOnly && !field.IsPriceUnit {
			continue
		}
		out = append(out, field)
	}
	return out
}

func (f *Feature) AvailableIn(city string) bool {
	if len(f.Cities) == 0 {
		return true
	}
	for _, c := range f.Cities {
		if c == city {
			return true
		}
	}
	return false
}

// ResolveValues сопоставляет ввод клиента с полями формы.
// Для файловых полей во вводе ожидается имя файла, ключ хранилища подставляется позже.
func ResolveValues(fields []ServiceField, input map[string]string) ([]ResolvedValue, error) {
	errs := make(map[string]string)
	values := make([]ResolvedValue, 0, len(fields))

	for _, field := range fields {
		raw, ok := input[field.Name]
		if !ok || raw == "" {
			if field.IsRequired {
				errs[field.Name] = "This field is required."
			}
			continue
		}
		normalized, err := field.Type.Normalize(raw)
		if err != nil {
			errs[field.Name] = err.Error()
			continue
		}
		if field.IsPriceUnit {
			if qty, err := field.Type.Quantity(normalized); err == nil && qty.IsNegative() {
				errs[field.Name] = "Ensure this value is greater than or equal to 0."
				continue
			}
		}
		values = append(values, ResolvedValue{Field: field, Value: normalized})
	}

	if len(errs) > 0 {
		return nil, apperror.Fields(errs)
	}
	return values, nil
}

// ComputePrice сумма по полям с единицей цены: логическое поле даёт цену за единицу,
// числовое умножает цену за единицу на значение.
func ComputePrice(values []ResolvedValue) (decimal.Decimal, error) {
	price := decimal.Zero
	for _, v := range values {
		if !v.Field.IsPriceUnit || v.Field.PricePerUnit == nil {
			continue
		}
		qty, err := v.Field.Type.Quantity(v.Value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %s: %w", v.Field.Name, err)
		}
		if qty.IsNegative() {
			return decimal.Zero, fmt.Errorf("field %s: negative quantity %s", v.Field.Name, v.Value)
		}
		price = price.Add(v.Field.PricePerUnit.Mul(qty))
	}
	return price.Round(2), nil
}
