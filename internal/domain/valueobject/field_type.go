package valueobject

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

type FieldType string

const (
	FieldTypeChar     FieldType = "CharField"
	FieldTypeText     FieldType = "TextField"
	FieldTypeInteger  FieldType = "IntegerField"
	FieldTypeDecimal  FieldType = "DecimalField"
	FieldTypeBoolean  FieldType = "BooleanField"
	FieldTypeImage    FieldType = "ImageField"
	FieldTypeFile     FieldType = "FileField"
	FieldTypeDate     FieldType = "DateField"
	FieldTypeDateTime FieldType = "DateTimeField"
	FieldTypeDuration FieldType = "DurationField"
)

const (
	charFieldMaxLength = 500
	decimalMaxDigits   = 6
	decimalPlaces      = 2
	dateLayout         = "2006-01-02"
)

var fieldNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var durationClock = regexp.MustCompile(`^(?:(\d+) )?(\d{1,2}):(\d{2}):(\d{2})$`)

var truthy = map[string]bool{
	"true": true, "1": true, "yes": true, "on": true, "y": true, "t": true,
	"false": false, "0": false, "no": false, "off": false, "n": false, "f": false,
}

// FieldTypes возвращает все поддерживаемые типы полей.
func FieldTypes() []FieldType {
	return []FieldType{
		FieldTypeChar,
		FieldTypeText,
		FieldTypeInteger,
		FieldTypeDecimal,
		FieldTypeBoolean,
		FieldTypeImage,
		FieldTypeFile,
		FieldTypeDate,
		FieldTypeDateTime,
		FieldTypeDuration,
	}
}

func (t FieldType) IsValid() bool {
	for _, ft := range FieldTypes() {
		if ft == t {
			return true
		}
	}
	return false
}

// CanBePriceUnit только числовые и логические поля участвуют в расчёте цены.
func (t FieldType) CanBePriceUnit() bool {
	switch t {
	case FieldTypeInteger, FieldTypeDecimal, FieldTypeBoolean:
		return true
	}
	return false
}

// IsFile поля, значение которых загружается в хранилище.
func (t FieldType) IsFile() bool {
	return t == FieldTypeImage || t == FieldTypeFile
}

// ValidFieldName проверяет имя поля.
func ValidFieldName(name string) bool {
	return fieldNamePattern.MatchString(name)
}

// Normalize проверяет значение и приводит его к каноническому строковому виду.
// Ошибка содержит текст для клиента.
func (t FieldType) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	switch t {
	case FieldTypeChar:
		if raw == "" {
			return "", errors.New("This field may not be blank.")
		}
		if utf8.RuneCountInString(raw) > charFieldMaxLength {
			return "", fmt.Errorf("Ensure this field has no more than %d characters.", charFieldMaxLength)
		}
		return raw, nil
	case FieldTypeText:
		if raw == "" {
			return "", errors.New("This field may not be blank.")
		}
		return raw, nil
	case FieldTypeInteger:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return "", errors.New("A valid integer is required.")
		}
		return strconv.FormatInt(v, 10), nil
	case FieldTypeDecimal:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return "", errors.New("A valid number is required.")
		}
		if -d.Exponent() > decimalPlaces {
			return "", fmt.Errorf("Ensure that there are no more than %d decimal places.", decimalPlaces)
		}
		if len(d.Truncate(0).Abs().String()) > decimalMaxDigits-decimalPlaces {
			return "", fmt.Errorf("Ensure that there are no more than %d digits in total.", decimalMaxDigits)
		}
		return d.StringFixed(decimalPlaces), nil
	case FieldTypeBoolean:
		v, ok := truthy[strings.ToLower(raw)]
		if !ok {
			return "", errors.New("Must be a valid boolean.")
		}
		return strconv.FormatBool(v), nil
	case FieldTypeDate:
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return "", errors.New("Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
		}
		return d.Format(dateLayout), nil
	case FieldTypeDateTime:
		d, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return "", errors.New("Datetime has wrong format. Use RFC3339 instead.")
		}
		return d.UTC().Format(time.RFC3339), nil
	case FieldTypeDuration:
		d, err := ParseDuration(raw)
		if err != nil {
			return "", errors.New("Duration has wrong format. Use one of these formats instead: [DD] [HH:[MM:]]ss[.uuuuuu].")
		}
		return d.String(), nil
	case FieldTypeImage, FieldTypeFile:
		if raw == "" {
			return "", errors.New("No file was submitted.")
		}
		return raw, nil
	}
	return "", errors.New("Unsupported field type.")
}

// Quantity возвращает множитель цены для нормализованного значения.
// Для логического поля true даёт 1, false даёт 0.
func (t FieldType) Quantity(value string) (decimal.Decimal, error) {
	switch t {
	case FieldTypeBoolean:
		if value == "true" {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil
	case FieldTypeInteger, FieldTypeDecimal:
		return decimal.NewFromString(value)
	}
	return decimal.Zero, fmt.Errorf("field type %s is not a price unit", t)
}

// ParseDuration принимает формат Go ("1h30m") и "[DD ]HH:MM:SS".
func ParseDuration(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	m := durationClock.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	var days int
	if m[1] != "" {
		days, _ = strconv.Atoi(m[1])
	}
	h, _ := strconv.Atoi(m[2])
	mi, _ := strconv.Atoi(m[3])
	sec, _ := strconv.Atoi(m[4])
	if mi > 59 || sec > 59 {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return time.Duration(days)*24*time.Hour +
		time.Duration(h)*time.Hour +
		time.Duration(mi)*time.Minute +
		time.Duration(sec)*time.Second, nil
}
