package common

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestArgsAndWhere(t *testing.T) {
	var args Args
	conds := []string{
		"status = " + args.Add("approved"),
		"price >= " + args.Add(10),
	}

	assert.Equal(t, " WHERE status = $1 AND price >= $2", Where(conds))
	assert.Equal(t, Args{"approved", 10}, args)
	assert.Empty(t, Where(nil))
}

type rowsResult int64

func (r rowsResult) LastInsertId() (int64, error) { return 0, nil }
func (r rowsResult) RowsAffected() (int64, error) { return int64(r), nil }

func TestCheckRowsAffected(t *testing.T) {
	notFound := errors.New("not found")
	assert.ErrorIs(t, CheckRowsAffected(rowsResult(0), notFound), notFound)
	assert.NoError(t, CheckRowsAffected(rowsResult(1), notFound))
}

func TestPostgresErrorHelpers(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "users_email_key"})

	assert.True(t, IsUniqueViolation(dup))
	name, ok := UniqueConstraint(dup)
	assert.True(t, ok)
	assert.Equal(t, "users_email_key", name)

	assert.False(t, IsUniqueViolation(errors.New("other")))
	assert.True(t, IsNoRows(fmt.Errorf("get: %w", sql.ErrNoRows)))
}
