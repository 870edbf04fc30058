package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// ServiceProvider компания или частное лицо, выполняющее заявки.
type ServiceProvider struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	UserID         uuid.UUID      `db:"user_id" json:"-"`
	Name           string         `db:"name" json:"name"`
	CoverPhoto     *string        `db:"cover_photo" json:"cover_photo,omitempty"`
	Description    string         `db:"description" json:"description"`
	Licence        *string        `db:"licence" json:"licence,omitempty"`
	Passport       *string        `db:"passport" json:"passport,omitempty"`
	LicenceStart   *time.Time     `db:"licence_start" json:"licence_start,omitempty"`
	LicenceEnd     *time.Time     `db:"licence_end" json:"licence_end,omitempty"`
	ResidencePhoto *string        `db:"residence_photo" json:"residence_photo,omitempty"`
	ContractInfo   *string        `db:"contract_info" json:"contract_info,omitempty"`
	Cities         pq.StringArray `db:"cities" json:"cities"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`

	User     *User          `db:"-" json:"user,omitempty"`
	Services []DropdownItem `db:"-" json:"services"`

	RequestAccepted *int `db:"-" json:"request_accepted,omitempty"`
	RequestRejected *int `db:"-" json:"request_rejected,omitempty"`
}

// ServiceProviderService связь поставщика с корневой услугой.
type ServiceProviderService struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	ServiceID    uuid.UUID       `db:"service_id" json:"service"`
	ProviderID   uuid.UUID       `db:"provider_id" json:"service_provider"`
	PricePerUnit decimal.Decimal `db:"price_per_unit" json:"price_per_unit"`
	IsActive     bool            `db:"is_active" json:"is_active"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// ServiceProviderEmployee сотрудник поставщика.
type ServiceProviderEmployee struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ProviderID uuid.UUID `db:"provider_id" json:"service_provider"`
	EmployeeID uuid.UUID `db:"employee_id" json:"-"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	Employee *UserSummary `db:"-" json:"employee,omitempty"`
}

// ProviderFilter параметры фильтрации поставщиков.
type ProviderFilter struct {
	Query  string
	Limit  int
	Offset int
}
