package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/services-marketplace/internal/models"
)

// Константы валидации
const (
	MinNameLength         = 2
	MaxNameLength         = 100
	MaxProviderNameLength = 200
	MinAdvertTitleLength  = 3
	MaxAdvertTitleLength  = 200
	MaxAdvertDescription  = 5000
	MaxServiceNameLength  = 200
	MaxRequestDescription = 5000
	MaxRatingDescription  = 2000
	MaxLocationLength     = 200
	MinRating             = 1
	MaxRating             = 5
	MaxAddressLabelLength = 100
	MaxPromoCodeLength    = 50
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	phoneRegex       = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
	nameRegex        = regexp.MustCompile(`^[\p{L}0-9\s\-_.,'()&]+$`)
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	// Базовая проверка формата
	if !strings.Contains(email, "@") {
		return fmt.Errorf("email должен содержать символ @")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}

	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}

	if !emailLocalRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}

	if !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateName проверяет имя пользователя или поставщика.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("имя обязательно")
	}

	if err := ValidateLength("имя", name, MinNameLength, MaxNameLength); err != nil {
		return err
	}

	if !nameRegex.MatchString(name) {
		return fmt.Errorf("имя содержит недопустимые символы")
	}

	return nil
}

// ValidatePhone проверяет телефон в международном формате.
func ValidatePhone(phone *string) error {
	if phone == nil || *phone == "" {
		return nil
	}
	p := strings.NewReplacer(" ", "", "-", "").Replace(*phone)
	if !phoneRegex.MatchString(p) {
		return fmt.Errorf("некорректный номер телефона")
	}
	return nil
}

// ValidateCity проверяет, что город входит в список поддерживаемых.
func ValidateCity(city string) error {
	if _, ok := models.ValidCities[city]; !ok {
		return fmt.Errorf("\"%s\" is not a valid choice.", city)
	}
	return nil
}

// ValidateCities проверяет список городов.
func ValidateCities(cities []string) error {
	for _, c := range cities {
		if err := ValidateCity(c); err != nil {
			return err
		}
	}
	return nil
}

// ValidateRole проверяет роль пользователя.
func ValidateRole(role string) error {
	if _, ok := models.ValidRoles[role]; !ok {
		return fmt.Errorf("\"%s\" is not a valid choice.", role)
	}
	return nil
}

// ValidateRating проверяет оценку 1..5.
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return fmt.Errorf("Ensure this value is between %d and %d.", MinRating, MaxRating)
	}
	return nil
}

// ValidateAdvertTitle проверяет заголовок объявления.
func ValidateAdvertTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("This field is required.")
	}
	return ValidateLength("заголовок", title, MinAdvertTitleLength, MaxAdvertTitleLength)
}

// ValidateDescription проверяет необязательное описание.
func ValidateDescription(fieldName, description string, max int) error {
	return ValidateLength(fieldName, strings.TrimSpace(description), 0, max)
}

// ValidatePrice цена не может быть отрицательной.
func ValidatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("Ensure this value is greater than or equal to 0.")
	}
	return nil
}
