package models

import (
	"time"

	"github.com/google/uuid"
)

// ServiceRequestRating оценка выполненной заявки.
type ServiceRequestRating struct {
	ID               uuid.UUID `db:"id" json:"id"`
	ServiceRequestID uuid.UUID `db:"service_request_id" json:"service_request"`
	RatingFrom       string    `db:"rating_from" json:"rating_from"`
	CreatedByID      uuid.UUID `db:"created_by" json:"created_by"`
	Description      string    `db:"description" json:"description"`
	Rating           int       `db:"rating" json:"rating"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
