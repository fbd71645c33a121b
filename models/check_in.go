package models

import (
	"time"
)

// CheckIn is written exactly once per booking by the check-in flow; this core
// only ever reads it to decide when escrow becomes releasable.
type CheckIn struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	CreatedAt time.Time `json:"createdAt"`

	BookingID   uint      `gorm:"uniqueIndex;column:booking_id" json:"booking_id"`
	CheckedInAt time.Time `gorm:"column:checked_in_at" json:"checked_in_at"`

	Booking Booking `gorm:"foreignKey:BookingID;references:ID" json:"-"`
}
