package models

import "rms/src/types"

type User struct {
	ID    uint   `gorm:"primarykey" json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `gorm:"uniqueIndex" json:"email,omitempty"`
	Role  string `gorm:"default:'renter'" json:"role,omitempty"`

	Properties []*Property `gorm:"foreignKey:owner_id" json:"properties,omitempty"`
	Bookings   []*Booking  `gorm:"foreignKey:renter_id" json:"bookings,omitempty"`

	types.Timestamps
}
