package models

import (
	"time"

	"rms/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Transaction struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	Type      types.TransactionType   `json:"type,omitempty"`
	Amount    decimal.Decimal         `gorm:"type:numeric(12,2)" json:"amount,omitempty"`
	Currency  string                  `json:"currency,omitempty"`
	Status    types.TransactionStatus `gorm:"default:'pending'" json:"status,omitempty"`
	Reference string                  `gorm:"uniqueIndex" json:"reference,omitempty"`
	UserID    uint                    `json:"user_id,omitempty"`
	BookingID *uint                   `json:"booking_id,omitempty"`

	// Metadata carries base_amount/platform_fee bookkeeping, the gateway
	// session reference and the verifier's retry counters.
	Metadata    types.JSONB `gorm:"type:jsonb" json:"metadata,omitempty"`
	ProcessedAt *time.Time  `json:"processed_at,omitempty"`

	User    *User    `gorm:"foreignKey:user_id" json:"-"`
	Booking *Booking `gorm:"foreignKey:booking_id" json:"-"`

	types.Timestamps
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
