package service

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/validation"
)

// UserInput данные нового пользователя: регистрация, поставщик, сотрудник.
type UserInput struct {
	Email       string
	Password    string
	Name        string
	Phone       *string
	CurrentCity *string
}

// buildUser проверяет ввод и возвращает пользователя с захешированным паролем.
func buildUser(in UserInput, role string) (*models.User, error) {
	fields := map[string]string{}
	if err := validation.ValidateEmail(in.Email); err != nil {
		fields["email"] = err.Error()
	}
	if err := validation.ValidatePassword(in.Password, in.Email, in.Name); err != nil {
		fields["password"] = err.Error()
	}
	if err := validation.ValidateName(in.Name); err != nil {
		fields["name"] = err.Error()
	}
	if err := validation.ValidatePhone(in.Phone); err != nil {
		fields["phone"] = err.Error()
	}
	if in.CurrentCity != nil && *in.CurrentCity != "" {
		if err := validation.ValidateCity(*in.CurrentCity); err != nil {
			fields["current_city"] = err.Error()
		}
	}
	if err := validation.ValidateRole(role); err != nil {
		fields["role"] = err.Error()
	}
	if len(fields) > 0 {
		return nil, apperror.Fields(fields)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("не удалось захешировать пароль: %w", err)
	}

	return &models.User{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:        in.Phone,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		Role:         role,
		CurrentCity:  in.CurrentCity,
		IsActive:     true,
	}, nil
}
