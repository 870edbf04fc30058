package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatzorin/services-marketplace/internal/domain/entity"
	"github.com/ignatzorin/services-marketplace/internal/domain/repository"
	"github.com/ignatzorin/services-marketplace/internal/domain/valueobject"
	"github.com/ignatzorin/services-marketplace/internal/models"
	"github.com/ignatzorin/services-marketplace/internal/pkg/apperror"
	"github.com/ignatzorin/services-marketplace/internal/repository/common"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const serialPrefix = "FLGP"

const serviceRequestColumns = `sr.id, sr.serial, sr.feature_id, sr.status, sr.requester_id, sr.address_id,
	sr.primary_schedule, sr.secondary_schedule, sr.description, sr.audio_note, sr.rejection_reason,
	sr.assigned_provider_id, sr.parent_id, sr.price, sr.tax_percentage, sr.tax_amount, sr.price_with_tax,
	sr.created_at, sr.updated_at`

const paymentColumns = `id, service_request_id, user_id, price, invoice_id, payment_url, status, tax_amount,
	price_with_tax, user_promo_code_id, loyalty_points, amount_discounted, completed_at, created_at`

type serviceRequestRow struct {
	ID                 uuid.UUID           `db:"id"`
	Serial             sql.NullString      `db:"serial"`
	FeatureID          uuid.UUID           `db:"feature_id"`
	Status             string              `db:"status"`
	RequesterID        uuid.UUID           `db:"requester_id"`
	AddressID          uuid.UUID           `db:"address_id"`
	PrimarySchedule    time.Time           `db:"primary_schedule"`
	SecondarySchedule  *time.Time          `db:"secondary_schedule"`
	Description        string              `db:"description"`
	AudioNote          *string             `db:"audio_note"`
	RejectionReason    *string             `db:"rejection_reason"`
	AssignedProviderID *uuid.UUID          `db:"assigned_provider_id"`
	ParentID           *uuid.UUID          `db:"parent_id"`
	Price              decimal.Decimal     `db:"price"`
	TaxPercentage      decimal.Decimal     `db:"tax_percentage"`
	TaxAmount          decimal.NullDecimal `db:"tax_amount"`
	PriceWithTax       decimal.NullDecimal `db:"price_with_tax"`
	CreatedAt          time.Time           `db:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at"`
}

func (row serviceRequestRow) toEntity() *entity.ServiceRequest {
	status, _ := valueobject.NewRequestStatus(row.Status)
	r := &entity.ServiceRequest{
		ID:                 row.ID,
		Serial:             row.Serial.String,
		FeatureID:          row.FeatureID,
		Status:             status,
		RequesterID:        row.RequesterID,
		AddressID:          row.AddressID,
		PrimarySchedule:    row.PrimarySchedule,
		SecondarySchedule:  row.SecondarySchedule,
		Description:        row.Description,
		AudioNote:          row.AudioNote,
		RejectionReason:    row.RejectionReason,
		AssignedProviderID: row.AssignedProviderID,
		ParentID:           row.ParentID,
		Price:              row.Price,
		TaxPercentage:      row.TaxPercentage,
		TaxAmount:          row.TaxAmount.Decimal,
		PriceWithTax:       row.Price,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
	if row.PriceWithTax.Valid {
		r.PriceWithTax = row.PriceWithTax.Decimal
	}
	return r
}

type paymentRow struct {
	ID               uuid.UUID       `db:"id"`
	ServiceRequestID uuid.UUID       `db:"service_request_id"`
	UserID           uuid.UUID       `db:"user_id"`
	Price            decimal.Decimal `db:"price"`
	InvoiceID        string          `db:"invoice_id"`
	PaymentURL       string          `db:"payment_url"`
	Status           string          `db:"status"`
	TaxAmount        decimal.Decimal `db:"tax_amount"`
	PriceWithTax     decimal.Decimal `db:"price_with_tax"`
	UserPromoCodeID  *uuid.UUID      `db:"user_promo_code_id"`
	LoyaltyPoints    int64           `db:"loyalty_points"`
	AmountDiscounted decimal.Decimal `db:"amount_discounted"`
	CompletedAt      *time.Time      `db:"completed_at"`
	CreatedAt        time.Time       `db:"created_at"`
}

func (row paymentRow) toEntity() *entity.Payment {
	status, _ := valueobject.NewPaymentStatus(row.Status)
	return &entity.Payment{
		ID:               row.ID,
		ServiceRequestID: row.ServiceRequestID,
		UserID:           row.UserID,
		Price:            row.Price,
		InvoiceID:        row.InvoiceID,
		PaymentURL:       row.PaymentURL,
		Status:           status,
		TaxAmount:        row.TaxAmount,
		PriceWithTax:     row.PriceWithTax,
		AmountDiscounted: row.AmountDiscounted,
		LoyaltyPoints:    row.LoyaltyPoints,
		CompletedAt:      row.CompletedAt,
		CreatedAt:        row.CreatedAt,
	}
}

type ServiceRequestRepository struct {
	db *sqlx.DB
}

func NewServiceRequestRepository(db *sqlx.DB) *ServiceRequestRepository {
	return &ServiceRequestRepository{db: db}
}

var _ repository.ServiceRequestRepository = (*ServiceRequestRepository)(nil)
var _ repository.FeatureReader = (*ServiceRequestRepository)(nil)

func (r *ServiceRequestRepository) nextSerial(ctx context.Context, tx *sqlx.Tx, at time.Time) (string, error) {
	day := at.UTC().Truncate(24 * time.Hour)
	var n int
	err := tx.GetContext(ctx, &n, `
		INSERT INTO service_request_serials (day, last_value) VALUES ($1, 1)
		ON CONFLICT (day) DO UPDATE SET last_value = service_request_serials.last_value + 1
		RETURNING last_value`, day)
	if err != nil {
		return "", fmt.Errorf("service request repository: next serial: %w", err)
	}
	return fmt.Sprintf("%s-%s-%04d", serialPrefix, day.Format("20060102"), n), nil
}

func (r *ServiceRequestRepository) Create(ctx context.Context, sr *entity.ServiceRequest, payment *entity.Payment) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		serial, err := r.nextSerial(ctx, tx, sr.CreatedAt)
		if err != nil {
			return err
		}
		sr.Serial = serial

		_, err = tx.ExecContext(ctx, `
			INSERT INTO service_requests (id, serial, feature_id, status, requester_id, address_id,
				primary_schedule, secondary_schedule, description, audio_note, parent_id,
				price, tax_percentage, tax_amount, price_with_tax, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
			sr.ID, sr.Serial, sr.FeatureID, string(sr.Status), sr.RequesterID, sr.AddressID,
			sr.PrimarySchedule, sr.SecondarySchedule, sr.Description, sr.AudioNote, sr.ParentID,
			sr.Price, sr.TaxPercentage, sr.TaxAmount, sr.PriceWithTax, sr.CreatedAt, sr.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("service request repository: insert: %w", err)
		}

		if len(sr.Values) > 0 {
			bi := common.NewBatchInserter(tx, "INSERT INTO service_request_values (id, service_request_id, service_field_id, value)", 4, 100)
			for i := range sr.Values {
				if sr.Values[i].ID == uuid.Nil {
					sr.Values[i].ID = uuid.New()
				}
				if err := bi.Add(ctx, sr.Values[i].ID, sr.ID, sr.Values[i].FieldID, sr.Values[i].Value); err != nil {
					return fmt.Errorf("service request repository: values: %w", err)
				}
			}
			if err := bi.Flush(ctx); err != nil {
				return fmt.Errorf("service request repository: values: %w", err)
			}
		}

		if len(sr.Attachments) > 0 {
			bi := common.NewBatchInserter(tx, "INSERT INTO service_request_attachments (id, service_request_id, attachment)", 3, 100)
			for i := range sr.Attachments {
				if sr.Attachments[i].ID == uuid.Nil {
					sr.Attachments[i].ID = uuid.New()
				}
				if err := bi.Add(ctx, sr.Attachments[i].ID, sr.ID, sr.Attachments[i].Key); err != nil {
					return fmt.Errorf("service request repository: attachments: %w", err)
				}
			}
			if err := bi.Flush(ctx); err != nil {
				return fmt.Errorf("service request repository: attachments: %w", err)
			}
		}

		if payment != nil {
			return r.insertPayment(ctx, tx, payment)
		}
		return nil
	})
}

func (r *ServiceRequestRepository) AddPayment(ctx context.Context, payment *entity.Payment) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		return r.insertPayment(ctx, tx, payment)
	})
}

// insertPayment сохраняет платёж и списывает промокод или баллы в той же транзакции.
func (r *ServiceRequestRepository) insertPayment(ctx context.Context, tx *sqlx.Tx, p *entity.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	var userPromoCodeID *uuid.UUID
	if p.PromoCodeID != nil {
		id := uuid.New()
		userPromoCodeID = &id
	}

	if p.LoyaltyPoints > 0 {
		// блокировка пользователя сериализует списания баллов
		if _, err := tx.ExecContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, p.UserID); err != nil {
			return fmt.Errorf("service request repository: lock user: %w", err)
		}
		var balance int64
		if err := tx.GetContext(ctx, &balance, `SELECT COALESCE(SUM(points), 0) FROM loyalty_points WHERE user_id = $1`, p.UserID); err != nil {
			return fmt.Errorf("service request repository: loyalty balance: %w", err)
		}
		if balance < p.LoyaltyPoints {
			return apperror.Field("loyalty_points", "Not enough loyalty points.")
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO service_request_payments (id, service_request_id, user_id, price, invoice_id, payment_url,
			status, tax_amount, price_with_tax, user_promo_code_id, loyalty_points, amount_discounted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)`,
		p.ID, p.ServiceRequestID, p.UserID, p.Price, p.InvoiceID, p.PaymentURL,
		string(p.Status), p.TaxAmount, p.PriceWithTax, userPromoCodeID, p.LoyaltyPoints, p.AmountDiscounted, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("service request repository: insert payment: %w", err)
	}

	switch {
	case p.LoyaltyPoints > 0:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO loyalty_points (user_id, reason, service_request_id, points)
			VALUES ($1, $2, $3, $4)`,
			p.UserID, models.LoyaltyReasonServiceRequestPayment, p.ServiceRequestID, -p.LoyaltyPoints,
		)
		if err != nil {
			return fmt.Errorf("service request repository: debit loyalty: %w", err)
		}
	case userPromoCodeID != nil:
		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_promo_codes (id, user_id, promo_code_id, discounted_amount, payment_id)
			VALUES ($1, $2, $3, $4, $5)`,
			*userPromoCodeID, p.UserID, *p.PromoCodeID, p.AmountDiscounted, p.ID,
		)
		if err != nil {
			return fmt.Errorf("service request repository: redeem promo: %w", err)
		}
	}
	return nil
}

func (r *ServiceRequestRepository) getRow(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID, lock bool) (*entity.ServiceRequest, error) {
	query := `SELECT ` + serviceRequestColumns + ` FROM service_requests sr WHERE sr.id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	var row serviceRequestRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrServiceRequestNotFound
		}
		return nil, fmt.Errorf("service request repository: get: %w", err)
	}
	return row.toEntity(), nil
}

func (r *ServiceRequestRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.ServiceRequest, error) {
	sr, err := r.getRow(ctx, r.db, id, false)
	if err != nil {
		return nil, err
	}
	if err := r.loadDetails(ctx, r.db, []*entity.ServiceRequest{sr}); err != nil {
		return nil, err
	}
	return sr, nil
}

// Exists проверяет наличие заявки без загрузки деталей.
func (r *ServiceRequestRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM service_requests WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("service request repository: exists: %w", err)
	}
	return exists, nil
}

func (r *ServiceRequestRepository) findExtras(ctx context.Context, q sqlx.QueryerContext, parentID uuid.UUID, lock bool) ([]*entity.ServiceRequest, error) {
	query := `SELECT ` + serviceRequestColumns + ` FROM service_requests sr WHERE sr.parent_id = $1 ORDER BY sr.created_at`
	if lock {
		query += ` FOR UPDATE`
	}
	var rows []serviceRequestRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, parentID); err != nil {
		return nil, fmt.Errorf("service request repository: extras: %w", err)
	}
	out := make([]*entity.ServiceRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

func (r *ServiceRequestRepository) FindExtras(ctx context.Context, parentID uuid.UUID) ([]*entity.ServiceRequest, error) {
	extras, err := r.findExtras(ctx, r.db, parentID, false)
	if err != nil {
		return nil, err
	}
	if err := r.loadDetails(ctx, r.db, extras); err != nil {
		return nil, err
	}
	return extras, nil
}

// loadDetails подгружает значения, вложения, исполнителей и отказы одним запросом на таблицу.
func (r *ServiceRequestRepository) loadDetails(ctx context.Context, q sqlx.QueryerContext, requests []*entity.ServiceRequest) error {
	if len(requests) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(requests))
	byID := make(map[uuid.UUID]*entity.ServiceRequest, len(requests))
	for _, sr := range requests {
		ids = append(ids, sr.ID)
		byID[sr.ID] = sr
		sr.Values, sr.Attachments, sr.AssigneeIDs, sr.Rejections = nil, nil, nil, nil
	}

	var values []struct {
		ID        uuid.UUID `db:"id"`
		RequestID uuid.UUID `db:"service_request_id"`
		FieldID   uuid.UUID `db:"service_field_id"`
		FieldName string    `db:"field_name"`
		FieldType string    `db:"field_type"`
		Label     string    `db:"label"`
		Value     string    `db:"value"`
	}
	err := sqlx.SelectContext(ctx, q, &values, `
		SELECT v.id, v.service_request_id, v.service_field_id, f.field_name, f.field_type, f.label, v.value
		FROM service_request_values v
		JOIN service_fields f ON f.id = v.service_field_id
		WHERE v.service_request_id = ANY($1)
		ORDER BY v.created_at, f.field_name`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("service request repository: load values: %w", err)
	}
	for _, v := range values {
		sr := byID[v.RequestID]
		sr.Values = append(sr.Values, entity.ServiceRequestValue{
			ID:        v.ID,
			FieldID:   v.FieldID,
			FieldName: v.FieldName,
			FieldType: valueobject.FieldType(v.FieldType),
			Label:     v.Label,
			Value:     v.Value,
		})
	}

	var attachments []struct {
		ID        uuid.UUID `db:"id"`
		RequestID uuid.UUID `db:"service_request_id"`
		Key       string    `db:"attachment"`
		CreatedAt time.Time `db:"created_at"`
	}
	err = sqlx.SelectContext(ctx, q, &attachments, `
		SELECT id, service_request_id, attachment, created_at
		FROM service_request_attachments
		WHERE service_request_id = ANY($1)
		ORDER BY created_at`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("service request repository: load attachments: %w", err)
	}
	for _, a := range attachments {
		sr := byID[a.RequestID]
		sr.Attachments = append(sr.Attachments, entity.ServiceRequestAttachment{ID: a.ID, Key: a.Key, CreatedAt: a.CreatedAt})
	}

	var assignees []struct {
		RequestID uuid.UUID `db:"service_request_id"`
		UserID    uuid.UUID `db:"user_id"`
	}
	err = sqlx.SelectContext(ctx, q, &assignees, `
		SELECT service_request_id, user_id FROM service_request_assignees
		WHERE service_request_id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("service request repository: load assignees: %w", err)
	}
	for _, a := range assignees {
		sr := byID[a.RequestID]
		sr.AssigneeIDs = append(sr.AssigneeIDs, a.UserID)
	}

	var rejections []struct {
		ID           uuid.UUID `db:"id"`
		RequestID    uuid.UUID `db:"service_request_id"`
		ProviderID   uuid.UUID `db:"provider_id"`
		ProviderName string    `db:"provider_name"`
		Reason       *string   `db:"rejection_reason"`
		CreatedAt    time.Time `db:"created_at"`
	}
	err = sqlx.SelectContext(ctx, q, &rejections, `
		SELECT rj.id, rj.service_request_id, rj.provider_id, p.name AS provider_name, rj.rejection_reason, rj.created_at
		FROM service_provider_rejected_services rj
		JOIN service_providers p ON p.id = rj.provider_id
		WHERE rj.service_request_id = ANY($1)
		ORDER BY rj.created_at`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("service request repository: load rejections: %w", err)
	}
	for _, rj := range rejections {
		sr := byID[rj.RequestID]
		reason := ""
		if rj.Reason != nil {
			reason = *rj.Reason
		}
		sr.Rejections = append(sr.Rejections, entity.ProviderRejection{
			ID:              rj.ID,
			ProviderID:      rj.ProviderID,
			ProviderName:    rj.ProviderName,
			RejectionReason: reason,
			CreatedAt:       rj.CreatedAt,
		})
	}
	return nil
}

// visibility условие видимости заявок для роли смотрящего.
func visibility(v repository.Viewer, args *common.Args) string {
	switch v.Role {
	case models.RoleAdmin:
		return ""
	case models.RoleServiceProvider:
		if v.ProviderID == nil {
			return "FALSE"
		}
		p := args.Add(*v.ProviderID)
		return fmt.Sprintf(`(
			(sr.status = 'approved' AND EXISTS (
				SELECT 1 FROM service_provider_services ps
				WHERE ps.provider_id = %[1]s AND ps.is_active AND (ps.service_id = s.id OR ps.service_id = s.parent_id)))
			OR sr.assigned_provider_id = %[1]s
			OR sr.parent_id IN (SELECT id FROM service_requests WHERE assigned_provider_id = %[1]s)
			OR EXISTS (SELECT 1 FROM service_provider_rejected_services rj WHERE rj.service_request_id = sr.id AND rj.provider_id = %[1]s)
		)`, p)
	case models.RoleServiceProviderEmployee:
		u := args.Add(v.UserID)
		return fmt.Sprintf(`(EXISTS (SELECT 1 FROM service_request_assignees a WHERE a.service_request_id = sr.id AND a.user_id = %s)
			AND sr.status NOT IN ('pending', 'rejected', 'payment-pending'))`, u)
	default:
		return "sr.requester_id = " + args.Add(v.UserID)
	}
}

func buildFilter(f repository.ServiceRequestFilter, args *common.Args) []string {
	var conds []string
	if vis := visibility(f.Viewer, args); vis != "" {
		conds = append(conds, vis)
	}
	if f.ParentsOnly {
		conds = append(conds, "sr.parent_id IS NULL")
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		hasApproved := false
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
			hasApproved = hasApproved || s == valueobject.RequestStatusApproved
		}
		conds = append(conds, "sr.status = ANY("+args.Add(pq.Array(statuses))+")")
		// поставщик не видит в пуле одобренных заявки, от которых отказался
		if hasApproved && f.Viewer.Role == models.RoleServiceProvider && f.Viewer.ProviderID != nil {
			conds = append(conds, `NOT EXISTS (SELECT 1 FROM service_provider_rejected_services rj
				WHERE rj.service_request_id = sr.id AND rj.provider_id = `+args.Add(*f.Viewer.ProviderID)+`)`)
		}
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		conds = append(conds, "sr.serial ILIKE "+args.Add("%"+q+"%"))
	}
	if f.AssigneeID != nil {
		conds = append(conds, `EXISTS (SELECT 1 FROM service_request_assignees a
			WHERE a.service_request_id = sr.id AND a.user_id = `+args.Add(*f.AssigneeID)+`)`)
	}
	if f.AssignedProviderID != nil {
		conds = append(conds, "sr.assigned_provider_id = "+args.Add(*f.AssignedProviderID))
	}
	if f.RejectedByProviderID != nil {
		conds = append(conds, `EXISTS (SELECT 1 FROM service_provider_rejected_services rj
			WHERE rj.service_request_id = sr.id AND rj.provider_id = `+args.Add(*f.RejectedByProviderID)+`)`)
	}
	return conds
}

const serviceRequestFrom = ` FROM service_requests sr
	JOIN features f ON f.id = sr.feature_id
	JOIN services s ON s.id = f.service_id`

func (r *ServiceRequestRepository) List(ctx context.Context, filter repository.ServiceRequestFilter) ([]*entity.ServiceRequest, int, error) {
	total, err := r.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	var args common.Args
	where := common.Where(buildFilter(filter, &args))
	query := `SELECT ` + serviceRequestColumns + serviceRequestFrom + where + ` ORDER BY sr.created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + args.Add(filter.Limit) + ` OFFSET ` + args.Add(filter.Offset)
	}

	var rows []serviceRequestRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("service request repository: list: %w", err)
	}
	out := make([]*entity.ServiceRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	if err := r.loadDetails(ctx, r.db, out); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *ServiceRequestRepository) Count(ctx context.Context, filter repository.ServiceRequestFilter) (int, error) {
	var args common.Args
	where := common.Where(buildFilter(filter, &args))
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*)`+serviceRequestFrom+where, args...); err != nil {
		return 0, fmt.Errorf("service request repository: count: %w", err)
	}
	return total, nil
}

func (r *ServiceRequestRepository) IsVisible(ctx context.Context, id uuid.UUID, viewer repository.Viewer) (bool, error) {
	var args common.Args
	conds := buildFilter(repository.ServiceRequestFilter{Viewer: viewer}, &args)
	conds = append(conds, "sr.id = "+args.Add(id))
	var exists bool
	query := `SELECT EXISTS (SELECT 1` + serviceRequestFrom + common.Where(conds) + `)`
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		return false, fmt.Errorf("service request repository: visible: %w", err)
	}
	return exists, nil
}

func (r *ServiceRequestRepository) Mutate(ctx context.Context, id uuid.UUID, fn repository.MutateFunc) (*entity.ServiceRequest, error) {
	var result *entity.ServiceRequest
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		sr, err := r.getRow(ctx, tx, id, true)
		if err != nil {
			return err
		}
		extras, err := r.findExtras(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := r.loadDetails(ctx, tx, append([]*entity.ServiceRequest{sr}, extras...)); err != nil {
			return err
		}

		before := snapshot(sr)
		extraBefore := make([]requestSnapshot, len(extras))
		for i, e := range extras {
			extraBefore[i] = snapshot(e)
		}

		if err := fn(sr, extras); err != nil {
			return err
		}

		if err := r.save(ctx, tx, sr, before); err != nil {
			return err
		}
		for i, e := range extras {
			if err := r.save(ctx, tx, e, extraBefore[i]); err != nil {
				return err
			}
		}
		result = sr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type requestSnapshot struct {
	rejections int
	assignees  map[uuid.UUID]struct{}
}

func snapshot(sr *entity.ServiceRequest) requestSnapshot {
	s := requestSnapshot{rejections: len(sr.Rejections), assignees: make(map[uuid.UUID]struct{}, len(sr.AssigneeIDs))}
	for _, id := range sr.AssigneeIDs {
		s.assignees[id] = struct{}{}
	}
	return s
}

func (r *ServiceRequestRepository) save(ctx context.Context, tx *sqlx.Tx, sr *entity.ServiceRequest, before requestSnapshot) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE service_requests
		SET status = $2, assigned_provider_id = $3, rejection_reason = $4,
			primary_schedule = $5, secondary_schedule = $6, updated_at = $7
		WHERE id = $1`,
		sr.ID, string(sr.Status), sr.AssignedProviderID, sr.RejectionReason,
		sr.PrimarySchedule, sr.SecondarySchedule, sr.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("service request repository: update: %w", err)
	}

	for _, rj := range sr.Rejections[before.rejections:] {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO service_provider_rejected_services (id, service_request_id, provider_id, rejection_reason, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $5)`,
			rj.ID, sr.ID, rj.ProviderID, rj.RejectionReason, rj.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("service request repository: insert rejection: %w", err)
		}
	}

	for _, userID := range sr.AssigneeIDs {
		if _, ok := before.assignees[userID]; ok {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO service_request_assignees (service_request_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, sr.ID, userID)
		if err != nil {
			return fmt.Errorf("service request repository: assign: %w", err)
		}
	}
	return nil
}

func (r *ServiceRequestRepository) ApplyPayment(ctx context.Context, invoiceID string, fn repository.PaymentFunc) (*entity.Payment, *entity.ServiceRequest, error) {
	var (
		payment *entity.Payment
		sr      *entity.ServiceRequest
	)
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var row paymentRow
		err := tx.GetContext(ctx, &row, `SELECT `+paymentColumns+` FROM service_request_payments WHERE invoice_id = $1 FOR UPDATE`, invoiceID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrPaymentNotFound
			}
			return fmt.Errorf("service request repository: get payment: %w", err)
		}
		payment = row.toEntity()

		sr, err = r.getRow(ctx, tx, payment.ServiceRequestID, true)
		if err != nil {
			return err
		}
		if err := r.loadDetails(ctx, tx, []*entity.ServiceRequest{sr}); err != nil {
			return err
		}
		before := snapshot(sr)

		if err := fn(payment, sr); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE service_request_payments SET status = $2, completed_at = $3, updated_at = NOW()
			WHERE id = $1`, payment.ID, string(payment.Status), payment.CompletedAt)
		if err != nil {
			return fmt.Errorf("service request repository: update payment: %w", err)
		}
		if payment.EarnedPoints > 0 {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO loyalty_points (user_id, reason, service_request_id, points)
				VALUES ($1, $2, $3, $4)`,
				payment.UserID, models.LoyaltyReasonServiceRequestEarned, sr.ID, payment.EarnedPoints,
			)
			if err != nil {
				return fmt.Errorf("service request repository: credit loyalty: %w", err)
			}
		}
		return r.save(ctx, tx, sr, before)
	})
	if err != nil {
		return nil, nil, err
	}
	return payment, sr, nil
}

func (r *ServiceRequestRepository) CompletedPayments(ctx context.Context, requestID uuid.UUID) ([]entity.Payment, error) {
	var rows []paymentRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+paymentColumns+`
		FROM service_request_payments
		WHERE service_request_id = $1 AND status = $2
		ORDER BY created_at`, requestID, string(valueobject.PaymentStatusComplete))
	if err != nil {
		return nil, fmt.Errorf("service request repository: payments: %w", err)
	}
	out := make([]entity.Payment, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toEntity())
	}
	return out, nil
}

func (r *ServiceRequestRepository) LoadParties(ctx context.Context, sr *entity.ServiceRequest) (*repository.RequestParties, error) {
	parties := &repository.RequestParties{}

	var requester []repository.PartySummary
	if err := r.selectParties(ctx, &requester, []uuid.UUID{sr.RequesterID}); err != nil {
		return nil, err
	}
	if len(requester) == 0 {
		return nil, apperror.ErrUserNotFound
	}
	parties.Requester = requester[0]

	if len(sr.AssigneeIDs) > 0 {
		if err := r.selectParties(ctx, &parties.Assignees, sr.AssigneeIDs); err != nil {
			return nil, err
		}
	}

	if sr.AssignedProviderID != nil {
		var ref repository.ProviderRef
		err := r.db.QueryRowxContext(ctx, `SELECT id, user_id, name FROM service_providers WHERE id = $1`, *sr.AssignedProviderID).
			Scan(&ref.ID, &ref.UserID, &ref.Name)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("service request repository: provider: %w", err)
		}
		if err == nil {
			parties.Provider = &ref
		}
	}

	if err := r.db.GetContext(ctx, &parties.FeatureName, `SELECT name FROM features WHERE id = $1`, sr.FeatureID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("service request repository: feature name: %w", err)
	}
	return parties, nil
}

func (r *ServiceRequestRepository) selectParties(ctx context.Context, dst *[]repository.PartySummary, ids []uuid.UUID) error {
	rows, err := r.db.QueryxContext(ctx, `SELECT id, name, email, phone, photo FROM users WHERE id = ANY($1) ORDER BY name`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("service request repository: users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p repository.PartySummary
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.Photo); err != nil {
			return fmt.Errorf("service request repository: scan user: %w", err)
		}
		*dst = append(*dst, p)
	}
	return rows.Err()
}

func (r *ServiceRequestRepository) FindFeature(ctx context.Context, id uuid.UUID) (*entity.Feature, error) {
	var f models.Feature
	err := r.db.GetContext(ctx, &f, `SELECT id, service_id, name, cover_photo, description, is_active, cities, created_at, updated_at FROM features WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrFeatureNotFound
		}
		return nil, fmt.Errorf("service request repository: feature: %w", err)
	}

	var fields []models.ServiceField
	err = r.db.SelectContext(ctx, &fields, `SELECT * FROM service_fields WHERE feature_id = $1 ORDER BY created_at, field_name`, id)
	if err != nil {
		return nil, fmt.Errorf("service request repository: fields: %w", err)
	}
	f.ServiceFields = fields
	return FeatureToEntity(&f), nil
}

// FeatureToEntity переводит строку каталога в доменную модель формы.
func FeatureToEntity(f *models.Feature) *entity.Feature {
	out := &entity.Feature{
		ID:        f.ID,
		ServiceID: f.ServiceID,
		Name:      f.Name,
		IsActive:  f.IsActive,
		Cities:    []string(f.Cities),
		Fields:    make([]entity.ServiceField, 0, len(f.ServiceFields)),
	}
	for _, sf := range f.ServiceFields {
		out.Fields = append(out.Fields, FieldToEntity(sf))
	}
	return out
}

func FieldToEntity(sf models.ServiceField) entity.ServiceField {
	return entity.ServiceField{
		ID:           sf.ID,
		FeatureID:    sf.FeatureID,
		Name:         sf.FieldName,
		Label:        sf.Label,
		Type:         valueobject.FieldType(sf.FieldType),
		IsPriceUnit:  sf.IsPriceUnitField,
		PricePerUnit: sf.PricePerUnit,
		IsRequired:   sf.IsRequired,
		IsActive:     sf.IsActive,
	}
}
