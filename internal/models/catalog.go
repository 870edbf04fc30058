package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CategoryKeywordNone ключевое слово группирующей категории без формы объявления.
const CategoryKeywordNone = "None"

// Category категория объявлений.
type Category struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Name      string     `db:"name" json:"name"`
	ParentID  *uuid.UUID `db:"parent_id" json:"parent,omitempty"`
	Depth     int        `db:"depth" json:"depth"`
	Keyword   string     `db:"keyword" json:"keyword"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Advertisement общая оболочка объявления. Details содержит конкретную запись вида ContentType.
type Advertisement struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	UserID       *uuid.UUID      `db:"user_id" json:"user,omitempty"`
	CategoryID   *uuid.UUID      `db:"category_id" json:"category,omitempty"`
	Title        string          `db:"title" json:"title"`
	Description  string          `db:"description" json:"description"`
	Price        decimal.Decimal `db:"price" json:"price"`
	Location     string          `db:"location" json:"location"`
	Availability bool            `db:"availability" json:"availability"`
	ContentType  string          `db:"content_type" json:"content_type"`
	Details      json.RawMessage `db:"details" json:"details"`
	Latitude     *float64        `db:"latitude" json:"latitude,omitempty"`
	Longitude    *float64        `db:"longitude" json:"longitude,omitempty"`
	Geohash      *string         `db:"geohash" json:"geohash,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// AdvertisementFilter параметры поиска объявлений.
type AdvertisementFilter struct {
	CategoryID    *uuid.UUID
	ContentType   string
	Query         string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	GeohashPrefix string
	UserID        *uuid.UUID
	Limit         int
	Offset        int
}
