package models

import (
	"time"
)

// ConnectedAccount is a host's processor-verified payout destination. The
// onboarding flow owns writes; this core reads it for payout eligibility.
type ConnectedAccount struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	HostID             uint   `gorm:"uniqueIndex;column:host_id" json:"host_id"`
	ProcessorAccountID string `gorm:"column:processor_account_id;size:128" json:"processor_account_id"`
	ChargesEnabled     bool   `gorm:"column:charges_enabled;default:false" json:"charges_enabled"`
	PayoutsEnabled     bool   `gorm:"column:payouts_enabled;default:false" json:"payouts_enabled"`

	Host User `gorm:"foreignKey:HostID;references:ID" json:"-"`
}

// Eligible reports whether the account can receive a transfer right now.
func (a ConnectedAccount) Eligible() bool {
	return a.ChargesEnabled && a.PayoutsEnabled && a.ProcessorAccountID != ""
}
