package models

import (
	"time"
)

const (
	UserRoleGuest = "guest"
	UserRoleHost  = "host"
)

// User is the identity row shared by guests and hosts. Profile data is owned
// by the account service; this core only reads it to resolve dispute parties.
type User struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	FullName string `gorm:"column:full_name;size:255" json:"fullName"`
	Email    string `gorm:"column:email;size:255;index" json:"email"`
	Role     string `gorm:"column:role;size:32" json:"role"`
}
