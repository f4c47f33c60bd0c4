package models

import (
	"time"

	"rms/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Booking struct {
	ID         uint                `gorm:"primarykey" json:"id"`
	RenterID   uint                `json:"renter_id,omitempty"`
	PropertyID uint                `json:"property_id,omitempty"`
	StartDate  time.Time           `json:"start_date,omitempty"`
	EndDate    *time.Time          `json:"end_date,omitempty"`
	Status     types.BookingStatus `gorm:"default:'requested'" json:"status,omitempty"`

	// Amount is the base rent for the stay; TotalAmount adds the platform fee.
	Amount      decimal.Decimal `gorm:"type:numeric(12,2)" json:"amount,omitempty"`
	PlatformFee decimal.Decimal `gorm:"type:numeric(12,2)" json:"platform_fee,omitempty"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(12,2)" json:"total_amount,omitempty"`
	Currency    string          `json:"currency,omitempty"`

	TransactionID *uuid.UUID `gorm:"type:uuid" json:"transaction_id,omitempty"`

	Property    *Property    `gorm:"foreignKey:property_id" json:"property,omitempty"`
	Renter      *User        `gorm:"foreignKey:renter_id" json:"renter,omitempty"`
	Units       []*Unit      `gorm:"many2many:booking_units;" json:"units,omitempty"`
	Transaction *Transaction `gorm:"foreignKey:transaction_id" json:"transaction,omitempty"`

	types.Timestamps
}
