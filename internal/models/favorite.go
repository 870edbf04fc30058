package models

import (
	"time"

	"github.com/google/uuid"
)

// Favourite объявление в избранном пользователя.
type Favourite struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	UserID      uuid.UUID  `db:"user_id" json:"user"`
	CategoryID  *uuid.UUID `db:"category_id" json:"category,omitempty"`
	ContentType string     `db:"content_type" json:"content_type"`
	ObjectID    uuid.UUID  `db:"object_id" json:"object_id"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
