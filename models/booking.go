package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	BookingStatusActive    = "active"
	BookingStatusCompleted = "completed"
	BookingStatusDisputed  = "disputed"
)

type Booking struct {
	ID uint `gorm:"primaryKey" json:"id"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	GuestID uint `gorm:"index;column:guest_id" json:"guest_id"`
	HostID  uint `gorm:"index;column:host_id" json:"host_id"`

	ReferenceCode string     `gorm:"column:reference_code;size:64" json:"reference_code,omitempty"`
	Status        string     `gorm:"column:status;size:64;default:active" json:"status"`
	CheckIn       *time.Time `gorm:"column:check_in" json:"check_in,omitempty"`
	CheckOut      *time.Time `gorm:"column:check_out" json:"check_out,omitempty"`

	Guest User `gorm:"foreignKey:GuestID;references:ID" json:"guest,omitempty"`
	Host  User `gorm:"foreignKey:HostID;references:ID" json:"host,omitempty"`
}
