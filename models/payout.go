package models

import (
	"time"
)

const (
	PayoutStatusPending = "pending"
	// PayoutStatusProcessing marks a payout claimed by a scheduler run; a
	// concurrent run must not pick it up again.
	PayoutStatusProcessing = "processing"
	PayoutStatusPaid       = "paid"
	PayoutStatusFailed     = "failed"
)

// Payout is a scheduled disbursement to a host. pending -> processing ->
// paid|failed; paid and failed are terminal, re-scheduling a failed payout is
// an external action that resets status and scheduled_at.
type Payout struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	BookingID uint `gorm:"index;column:booking_id" json:"booking_id"`
	HostID    uint `gorm:"index;column:host_id" json:"host_id"`

	Amount   float64 `gorm:"column:amount" json:"amount"`
	Currency string  `gorm:"column:currency;size:8;default:usd" json:"currency"`

	Status      string     `gorm:"column:status;size:32;default:pending;index" json:"status"`
	ScheduledAt time.Time  `gorm:"column:scheduled_at;index" json:"scheduled_at"`
	PaidAt      *time.Time `gorm:"column:paid_at" json:"paid_at,omitempty"`
	TransferRef string     `gorm:"column:transfer_ref;size:128" json:"transfer_ref,omitempty"`
	LastError   string     `gorm:"column:last_error;size:512" json:"last_error,omitempty"`

	Booking Booking `gorm:"foreignKey:BookingID;references:ID" json:"-"`
	Host    User    `gorm:"foreignKey:HostID;references:ID" json:"-"`
}
