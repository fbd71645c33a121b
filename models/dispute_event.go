package models

import (
	"time"

	"gorm.io/datatypes"
)

// DisputeEvent is append-only: rows are never updated or deleted. Resolving a
// dispute (disputed -> released) is a separate workflow outside this core.
type DisputeEvent struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	EscrowID uint      `gorm:"index;column:escrow_id" json:"escrow_id"`
	Reason   string    `gorm:"column:reason;size:512" json:"reason"`
	FiledAt  time.Time `gorm:"column:filed_at" json:"filed_at"`

	Metadata datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`

	Escrow Escrow `gorm:"foreignKey:EscrowID;references:ID" json:"-"`
}
