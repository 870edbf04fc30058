package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/repository/common"
)

const providerColumns = `p.id, p.user_id, p.name, p.cover_photo, p.description, p.licence, p.passport,
	p.licence_start, p.licence_end, p.residence_photo, p.contract_info, p.cities, p.created_at, p.updated_at`

// ProviderRepository поставщики услуг, их услуги и сотрудники.
type ProviderRepository struct {
	db *sqlx.DB
}

func NewProviderRepository(db *sqlx.DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// List возвращает страницу поставщиков, query ищет по имени поставщика и пользователя.
func (r *ProviderRepository) List(ctx context.Context, f models.ProviderFilter) ([]models.ServiceProvider, int, error) {
	var args common.Args
	var conds []string
	if f.Query != "" {
		p := args.Add("%" + f.Query + "%")
		conds = append(conds, "(p.name ILIKE "+p+" OR u.name ILIKE "+p+")")
	}
	from := ` FROM service_providers p JOIN users u ON u.id = p.user_id` + common.Where(conds)

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*)`+from, args...); err != nil {
		return nil, 0, fmt.Errorf("provider repository: count %w", err)
	}

	query := `SELECT ` + providerColumns + from + ` ORDER BY p.created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + args.Add(f.Limit) + ` OFFSET ` + args.Add(f.Offset)
	}
	var out []models.ServiceProvider
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, fmt.Errorf("provider repository: list %w", err)
	}
	if err := r.attach(ctx, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// attach подгружает пользователей и услуги поставщиков пакетно.
func (r *ProviderRepository) attach(ctx context.Context, providers []models.ServiceProvider) error {
	if len(providers) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(providers))
	userIDs := make([]uuid.UUID, len(providers))
	index := make(map[uuid.UUID]int, len(providers))
	for i := range providers {
		ids[i] = providers[i].ID
		userIDs[i] = providers[i].UserID
		index[providers[i].ID] = i
		providers[i].Services = []models.DropdownItem{}
	}

	query, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE id IN (?)`, userIDs)
	if err != nil {
		return fmt.Errorf("provider repository: users %w", err)
	}
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("provider repository: users %w", err)
	}
	byUser := make(map[uuid.UUID]*models.User, len(users))
	for i := range users {
		byUser[users[i].ID] = &users[i]
	}

	query, args, err = sqlx.In(`
		SELECT sps.provider_id, s.id, s.name
		FROM service_provider_services sps
		JOIN services s ON s.id = sps.service_id
		WHERE sps.provider_id IN (?)
		ORDER BY s.name`, ids)
	if err != nil {
		return fmt.Errorf("provider repository: services %w", err)
	}
	var rows []struct {
		ProviderID uuid.UUID `db:"provider_id"`
		models.DropdownItem
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("provider repository: services %w", err)
	}

	for i := range providers {
		providers[i].User = byUser[providers[i].UserID]
	}
	for _, row := range rows {
		p := &providers[index[row.ProviderID]]
		p.Services = append(p.Services, row.DropdownItem)
	}
	return nil
}

// GetByID возвращает поставщика со счётчиками принятых и отклонённых основных заявок.
func (r *ProviderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceProvider, error) {
	var p models.ServiceProvider
	if err := r.db.GetContext(ctx, &p, `SELECT `+providerColumns+` FROM service_providers p WHERE p.id = $1`, id); err != nil {
		if common.IsNoRows(err) {
			return nil, apperror.ErrProviderNotFound
		}
		return nil, fmt.Errorf("provider repository: get %w", err)
	}

	var counts struct {
		Accepted int `db:"accepted"`
		Rejected int `db:"rejected"`
	}
	err := r.db.GetContext(ctx, &counts, `
		SELECT
			(SELECT COUNT(*) FROM service_requests WHERE assigned_provider_id = $1 AND parent_id IS NULL) AS accepted,
			(SELECT COUNT(DISTINCT sr.id) FROM service_requests sr
				JOIN service_provider_rejected_services rs ON rs.service_request_id = sr.id
				WHERE rs.provider_id = $1 AND sr.parent_id IS NULL) AS rejected`, id)
	if err != nil {
		return nil, fmt.Errorf("provider repository: counts %w", err)
	}
	p.RequestAccepted = &counts.Accepted
	p.RequestRejected = &counts.Rejected

	list := []models.ServiceProvider{p}
	if err := r.attach(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *ProviderRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.ServiceProvider, error) {
	var p models.ServiceProvider
	if err := r.db.GetContext(ctx, &p, `SELECT `+providerColumns+` FROM service_providers p WHERE p.user_id = $1`, userID); err != nil {
		if common.IsNoRows(err) {
			return nil, apperror.ErrProviderNotFound
		}
		return nil, fmt.Errorf("provider repository: get by user %w", err)
	}
	return &p, nil
}

func replaceServices(ctx context.Context, tx *sqlx.Tx, providerID uuid.UUID, serviceIDs []uuid.UUID) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM service_provider_services WHERE provider_id = $1`, providerID); err != nil {
		return fmt.Errorf("provider repository: services %w", err)
	}
	if len(serviceIDs) == 0 {
		return nil
	}
	bi := common.NewBatchInserter(tx, `INSERT INTO service_provider_services (id, service_id, provider_id, price_per_unit)`, 4, 100)
	for _, sid := range serviceIDs {
		if err := bi.Add(ctx, uuid.New(), sid, providerID, decimal.Zero); err != nil {
			return fmt.Errorf("provider repository: services %w", err)
		}
	}
	if err := bi.Flush(ctx); err != nil {
		return fmt.Errorf("provider repository: services %w", err)
	}
	return nil
}

// Create создаёт пользователя поставщика, поставщика и его услуги одной транзакцией.
func (r *ProviderRepository) Create(ctx context.Context, p *models.ServiceProvider, serviceIDs []uuid.UUID) error {
	if p.User == nil {
		return fmt.Errorf("provider repository: create %w", common.ErrInvalidInput)
	}
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		p.User.Role = models.RoleServiceProvider
		if err := insertUser(ctx, tx, p.User); err != nil {
			return err
		}
		p.UserID = p.User.ID

		query := `
			INSERT INTO service_providers (user_id, name, cover_photo, description, licence, passport,
				licence_start, licence_end, residence_photo, contract_info, cities)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at, updated_at
		`
		if err := tx.QueryRowxContext(ctx, query,
			p.UserID, p.Name, p.CoverPhoto, p.Description, p.Licence, p.Passport,
			p.LicenceStart, p.LicenceEnd, p.ResidencePhoto, p.ContractInfo, p.Cities,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return fmt.Errorf("provider repository: create %w", err)
		}
		return replaceServices(ctx, tx, p.ID, serviceIDs)
	})
}

// Update обновляет поставщика и его пользователя, набор услуг заменяется целиком.
func (r *ProviderRepository) Update(ctx context.Context, p *models.ServiceProvider, serviceIDs []uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE service_providers
			SET name = $2, cover_photo = $3, description = $4, licence = $5, passport = $6,
				licence_start = $7, licence_end = $8, residence_photo = $9, contract_info = $10,
				cities = $11, updated_at = NOW()
			WHERE id = $1`,
			p.ID, p.Name, p.CoverPhoto, p.Description, p.Licence, p.Passport,
			p.LicenceStart, p.LicenceEnd, p.ResidencePhoto, p.ContractInfo, p.Cities,
		)
		if err != nil {
			return fmt.Errorf("provider repository: update %w", err)
		}
		if err := common.CheckRowsAffected(res, apperror.ErrProviderNotFound); err != nil {
			return err
		}
		if p.User != nil {
			if _, err := tx.ExecContext(ctx, `
				UPDATE users SET name = $2, email = $3, phone = $4, updated_at = NOW()
				WHERE id = (SELECT user_id FROM service_providers WHERE id = $1)`,
				p.ID, p.User.Name, p.User.Email, p.User.Phone,
			); err != nil {
				return fmt.Errorf("provider repository: update user %w", err)
			}
		}
		return replaceServices(ctx, tx, p.ID, serviceIDs)
	})
}

func (r *ProviderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, table := range []string{"service_provider_services", "service_provider_employees"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE provider_id = $1`, id); err != nil {
				return fmt.Errorf("provider repository: delete %s %w", table, err)
			}
		}
		return common.DeleteByID(ctx, tx, "service_providers", id, apperror.ErrProviderNotFound)
	})
}

// AddEmployee создаёт пользователя с ролью сотрудника и привязывает его к поставщику.
func (r *ProviderRepository) AddEmployee(ctx context.Context, providerID uuid.UUID, user *models.User) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM service_providers WHERE id = $1)`, providerID); err != nil {
			return fmt.Errorf("provider repository: add employee %w", err)
		}
		if !exists {
			return apperror.ErrProviderNotFound
		}
		user.Role = models.RoleServiceProviderEmployee
		if err := insertUser(ctx, tx, user); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO service_provider_employees (provider_id, employee_id) VALUES ($1, $2)`,
			providerID, user.ID,
		); err != nil {
			return fmt.Errorf("provider repository: add employee %w", err)
		}
		return nil
	})
}

// ListEmployees возвращает страницу сотрудников поставщика.
func (r *ProviderRepository) ListEmployees(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]models.ServiceProviderEmployee, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM service_provider_employees WHERE provider_id = $1`, providerID); err != nil {
		return nil, 0, fmt.Errorf("provider repository: count employees %w", err)
	}

	var args common.Args
	args.Add(providerID)
	query := `
		SELECT e.id, e.provider_id, e.employee_id, e.is_active, e.created_at, e.updated_at,
			u.id AS "u.id", u.name AS "u.name", u.email AS "u.email", u.phone AS "u.phone", u.photo AS "u.photo"
		FROM service_provider_employees e
		JOIN users u ON u.id = e.employee_id
		WHERE e.provider_id = $1
		ORDER BY e.created_at DESC`
	if limit > 0 {
		query += ` LIMIT ` + args.Add(limit) + ` OFFSET ` + args.Add(offset)
	}
	var rows []struct {
		models.ServiceProviderEmployee
		User models.UserSummary `db:"u"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("provider repository: list employees %w", err)
	}
	out := make([]models.ServiceProviderEmployee, len(rows))
	for i := range rows {
		out[i] = rows[i].ServiceProviderEmployee
		u := rows[i].User
		out[i].Employee = &u
	}
	return out, total, nil
}

// TotalEarning сумма цен всех заявок, назначенных поставщику.
func (r *ProviderRepository) TotalEarning(ctx context.Context, providerID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	if err := r.db.GetContext(ctx, &total, `SELECT SUM(price) FROM service_requests WHERE assigned_provider_id = $1`, providerID); err != nil {
		return decimal.Zero, fmt.Errorf("provider repository: total earning %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
