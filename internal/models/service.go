package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Service узел дерева каталога услуг.
type Service struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	ParentID         *uuid.UUID `db:"parent_id" json:"parent,omitempty"`
	CoverPhoto       *string    `db:"cover_photo" json:"cover_photo,omitempty"`
	Description      string     `db:"description" json:"description"`
	IsActive         bool       `db:"is_active" json:"is_active"`
	HasChildServices bool       `db:"has_child_services" json:"has_child_services"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// Feature бронируемый вариант услуги с настраиваемым набором полей.
type Feature struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	ServiceID     uuid.UUID      `db:"service_id" json:"service"`
	Name          string         `db:"name" json:"name"`
	CoverPhoto    *string        `db:"cover_photo" json:"cover_photo,omitempty"`
	Description   string         `db:"description" json:"description"`
	IsActive      bool           `db:"is_active" json:"is_active"`
	Cities        pq.StringArray `db:"cities" json:"cities"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
	ServiceFields []ServiceField `db:"-" json:"service_fields"`
}

// ServiceField описание динамического поля формы заявки.
type ServiceField struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	FeatureID        uuid.UUID        `db:"feature_id" json:"service_feature"`
	FieldName        string           `db:"field_name" json:"field_name"`
	Label            string           `db:"label" json:"label"`
	FieldType        string           `db:"field_type" json:"field_type"`
	IsPriceUnitField bool             `db:"is_price_unit_field" json:"is_price_unit_field"`
	PricePerUnit     *decimal.Decimal `db:"price_per_unit" json:"price_per_unit"`
	IsRequired       bool             `db:"is_required" json:"is_required"`
	IsActive         bool             `db:"is_active" json:"is_active"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// DropdownItem элемент выпадающего списка.
type DropdownItem struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	ServiceName *string   `db:"service_name" json:"service__name,omitempty"`
}

// ServiceFilter параметры фильтрации услуг.
type ServiceFilter struct {
	Query      string
	ParentID   *uuid.UUID
	RootsOnly  bool
	City       string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// FeatureFilter параметры фильтрации вариантов услуг.
type FeatureFilter struct {
	Query      string
	ServiceID  *uuid.UUID
	City       string
	ActiveOnly bool
	Limit      int
	Offset     int
}
