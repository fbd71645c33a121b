package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	NotificationKindDisputeFiled = "dispute_filed"
)

// Notification is a durable per-user record picked up by the delivery
// surfaces (push, in-app). Writing it is best-effort for this core.
type Notification struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	CreatedAt time.Time `json:"createdAt"`

	UserID uint   `gorm:"index;column:user_id" json:"user_id"`
	Kind   string `gorm:"column:kind;size:64" json:"kind"`
	Title  string `gorm:"column:title;size:255" json:"title"`
	Body   string `gorm:"column:body;size:1024" json:"body"`

	Metadata datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`

	User User `gorm:"foreignKey:UserID;references:ID" json:"-"`
}
