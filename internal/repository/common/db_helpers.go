package common

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// GetByID выбирает строку таблицы по id. Подходит и для *sqlx.DB, и для *sqlx.Tx.
func GetByID[T any](ctx context.Context, q sqlx.QueryerContext, table string, id interface{}, notFoundErr error) (*T, error) {
	var row T
	if err := sqlx.GetContext(ctx, q, &row, "SELECT * FROM "+table+" WHERE id = $1", id); err != nil {
		if IsNoRows(err) {
			return nil, notFoundErr
		}
		return nil, fmt.Errorf("%s: get %w", table, err)
	}
	return &row, nil
}

// DeleteByID удаляет строку по id, notFoundErr если строки не было.
func DeleteByID(ctx context.Context, db sqlx.ExecerContext, table string, id interface{}, notFoundErr error) error {
	res, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("%s: delete %w", table, err)
	}
	return CheckRowsAffected(res, notFoundErr)
}

// CheckRowsAffected возвращает notFoundErr, если запрос не затронул строк.
func CheckRowsAffected(res sql.Result, notFoundErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}

// Args позиционные параметры динамического запроса.
type Args []interface{}

// Add добавляет значение и возвращает его плейсхолдер $n.
func (a *Args) Add(v interface{}) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}

// Where склеивает условия через AND.
func Where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// BatchInserter копит строки и вставляет их одним INSERT пачками по batchSize.
type BatchInserter struct {
	tx        *sqlx.Tx
	prefix    string
	columns   int
	batchSize int
	values    []interface{}
}

func NewBatchInserter(tx *sqlx.Tx, insertPrefix string, columns, batchSize int) *BatchInserter {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &BatchInserter{
		tx:        tx,
		prefix:    insertPrefix,
		columns:   columns,
		batchSize: batchSize,
		values:    make([]interface{}, 0, batchSize*columns),
	}
}

func (bi *BatchInserter) rows() int {
	return len(bi.values) / bi.columns
}

// Add добавляет строку, при заполнении пачки сразу её записывает.
func (bi *BatchInserter) Add(ctx context.Context, row ...interface{}) error {
	if len(row) != bi.columns {
		return fmt.Errorf("batch insert: ожидалось %d значений, получено %d", bi.columns, len(row))
	}
	bi.values = append(bi.values, row...)
	if bi.rows() >= bi.batchSize {
		return bi.Flush(ctx)
	}
	return nil
}

// Flush записывает накопленные строки.
func (bi *BatchInserter) Flush(ctx context.Context) error {
	if len(bi.values) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(bi.prefix)
	sb.WriteString(" VALUES ")
	for i := 0; i < bi.rows(); i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for j := 0; j < bi.columns; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(i*bi.columns + j + 1))
		}
		sb.WriteByte(')')
	}

	if _, err := bi.tx.ExecContext(ctx, sb.String(), bi.values...); err != nil {
		return fmt.Errorf("batch insert: %w", err)
	}
	bi.values = bi.values[:0]
	return nil
}

// WithTransaction выполняет fn в транзакции. Ошибка или паника откатывают её.
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
