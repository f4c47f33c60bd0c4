package models

import (
	"rms/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Wallet struct {
	ID       uint            `gorm:"primarykey" json:"id"`
	UserID   uint            `gorm:"uniqueIndex" json:"user_id,omitempty"`
	Balance  decimal.Decimal `gorm:"type:numeric(12,2)" json:"balance"`
	Currency string          `gorm:"default:'usd'" json:"currency,omitempty"`

	User *User `gorm:"foreignKey:user_id" json:"-"`

	types.Timestamps
}

// WalletTransaction Append-only ledger entry. Amount is always a positive
// magnitude; Type determines the direction. Only withdrawal entries ever
// change status after creation (pending -> completed on approval).
type WalletTransaction struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`

	WalletID    uint                          `json:"wallet_id,omitempty"`
	Amount      decimal.Decimal               `gorm:"type:numeric(12,2)" json:"amount,omitempty"`
	Type        types.WalletTransactionType   `json:"type,omitempty"`
	Status      types.WalletTransactionStatus `gorm:"default:'completed'" json:"status,omitempty"`
	Reference   string                        `gorm:"uniqueIndex" json:"reference,omitempty"`
	Description string                        `json:"description,omitempty"`

	RelatedTransactionID *uuid.UUID `gorm:"type:uuid" json:"related_transaction_id,omitempty"`

	Wallet             *Wallet      `gorm:"foreignKey:wallet_id" json:"-"`
	RelatedTransaction *Transaction `gorm:"foreignKey:related_transaction_id" json:"-"`

	types.Timestamps
}

func (t *WalletTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
