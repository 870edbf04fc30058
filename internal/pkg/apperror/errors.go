package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

type ErrorCode string

const (
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest      ErrorCode = "BAD_REQUEST"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError   ErrorCode = "DATABASE_ERROR"
	ErrCodePaymentRequired ErrorCode = "PAYMENT_FAILED"
)

// AppError прикладная ошибка с HTTP статусом.
// Fields заполняется для ошибок валидации: имя поля -> сообщение.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Fields     map[string]string
	Cause      error
}

func (e *AppError) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		msg = fmt.Sprintf("%s %s", msg, formatFields(e.Fields))
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Field возвращает ошибку валидации одного поля.
func Field(field, message string) *AppError {
	return Fields(map[string]string{field: message})
}

// Fields возвращает ошибку валидации набора полей.
func Fields(fields map[string]string) *AppError {
	return &AppError{
		Code:       ErrCodeValidation,
		Message:    "ошибка валидации",
		HTTPStatus: http.StatusBadRequest,
		Fields:     fields,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodePaymentRequired:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func formatFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}
	return "[" + strings.Join(parts, "; ") + "]"
}

// As извлекает AppError из цепочки ошибок.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeForbidden
}

func IsValidation(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == ErrCodeValidation
}

var (
	ErrServiceNotFound        = New(ErrCodeNotFound, "услуга не найдена")
	ErrFeatureNotFound        = New(ErrCodeNotFound, "вариант услуги не найден")
	ErrFieldNotFound          = New(ErrCodeNotFound, "поле не найдено")
	ErrServiceRequestNotFound = New(ErrCodeNotFound, "заявка не найдена")
	ErrProviderNotFound       = New(ErrCodeNotFound, "поставщик не найден")
	ErrCategoryNotFound       = New(ErrCodeNotFound, "категория не найдена")
	ErrAdvertiseNotFound      = New(ErrCodeNotFound, "объявление не найдено")
	ErrUserNotFound           = New(ErrCodeNotFound, "пользователь не найден")
	ErrAddressNotFound        = New(ErrCodeNotFound, "адрес не найден")
	ErrPaymentNotFound        = New(ErrCodeNotFound, "платёж не найден")
	ErrPromoCodeNotFound      = New(ErrCodeNotFound, "промокод не найден")
	ErrNotificationNotFound   = New(ErrCodeNotFound, "уведомление не найдено")
	ErrFavouriteNotFound      = New(ErrCodeNotFound, "избранное не найдено")
	ErrRatingNotFound         = New(ErrCodeNotFound, "оценка не найдена")
	ErrSessionNotFound        = New(ErrCodeNotFound, "сессия не найдена")
	ErrUnauthorized           = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden              = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidCredentials     = New(ErrCodeUnauthorized, "неверные учетные данные")
	ErrPaymentInitiation      = &AppError{
		Code:       ErrCodePaymentRequired,
		Message:    "Payment initiation Failed",
		HTTPStatus: http.StatusBadRequest,
		Fields:     map[string]string{"payment": "Payment initiation Failed"},
	}
)
