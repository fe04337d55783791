package model

import (
	"time"

	"gorm.io/gorm/schema"
)

// Visit is a booked (or pre-booked) property visit for a contact,
// created either manually or by the bot on a SCHEDULE_VISIT intent.
type Visit struct {
	ID              string    `json:"id" gorm:"primaryKey;type:text" validate:"required"`
	OwnerID         string    `json:"owner_id" gorm:"column:owner_id;index;type:text" validate:"required"`
	ContactID       string    `json:"contact_id" gorm:"column:contact_id;index;type:text" validate:"required"`
	Date            time.Time `json:"date"`
	Notes           string    `json:"notes,omitempty" gorm:"type:text"`
	Completed       bool      `json:"completed"`
	GoogleEventLink string    `json:"google_event_link,omitempty" gorm:"column:google_event_link;type:text"`
	CreatedAt       time.Time `json:"created_at,omitempty" gorm:"autoCreateTime"`
}

// TableName specifies the table name for the Visit model, respecting the Namer.
func (Visit) TableName(namer schema.Namer) string {
	return namer.TableName("visits")
}
