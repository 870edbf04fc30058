package common

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// ErrInvalidInput запрос к репозиторию с некорректными аргументами.
var ErrInvalidInput = errors.New("invalid input")

// IsNoRows сообщает, что запрос не вернул строк
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsUniqueViolation нарушение уникального индекса (SQLSTATE 23505)
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// UniqueConstraint имя нарушенного уникального ограничения
func UniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}
	return "", false
}
