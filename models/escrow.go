package models

import (
	"time"
)

const (
	EscrowStatusHeld     = "held"
	EscrowStatusDisputed = "disputed"
	EscrowStatusReleased = "released"
)

// Escrow holds a booking's captured funds until release. Transitions are
// monotone: held -> disputed, held -> released, disputed -> released;
// released is terminal. released_amount never exceeds held_amount.
type Escrow struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	BookingID uint   `gorm:"uniqueIndex;column:booking_id" json:"booking_id"`
	Status    string `gorm:"column:status;size:32;default:held;index" json:"status"`

	// Amounts in major units of Currency.
	HeldAmount     float64 `gorm:"column:held_amount" json:"held_amount"`
	ReleasedAmount float64 `gorm:"column:released_amount;default:0" json:"released_amount"`
	Currency       string  `gorm:"column:currency;size:8;default:usd" json:"currency"`

	ReleaseDate *time.Time `gorm:"column:release_date" json:"release_date,omitempty"`
	TransferRef string     `gorm:"column:transfer_ref;size:128" json:"transfer_ref,omitempty"`

	Booking Booking `gorm:"foreignKey:BookingID;references:ID" json:"booking,omitempty"`
}
