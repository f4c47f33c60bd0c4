package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Metadata map[string]any

type BookingStatus string

const (
	BOOKING_REQUESTED       BookingStatus = "requested"
	BOOKING_DECLINED        BookingStatus = "declined"
	BOOKING_PENDING         BookingStatus = "pending"
	BOOKING_PENDING_PAYMENT BookingStatus = "pending_payment"
	BOOKING_CONFIRMED       BookingStatus = "confirmed"
	BOOKING_COMPLETED       BookingStatus = "completed"
	BOOKING_CANCELED        BookingStatus = "canceled"
)

// BookingLiveStatuses Statuses that keep a unit held. Terminal bookings
// (declined, completed, canceled) never block another renter.
var BookingLiveStatuses = []BookingStatus{
	BOOKING_REQUESTED,
	BOOKING_PENDING,
	BOOKING_PENDING_PAYMENT,
	BOOKING_CONFIRMED,
}

var BookingTerminalStatuses = []BookingStatus{
	BOOKING_DECLINED,
	BOOKING_COMPLETED,
	BOOKING_CANCELED,
}

type TransactionStatus string

const (
	TRANSACTION_PENDING   TransactionStatus = "pending"
	TRANSACTION_HELD      TransactionStatus = "held"
	TRANSACTION_RELEASED  TransactionStatus = "released"
	TRANSACTION_COMPLETED TransactionStatus = "completed"
	TRANSACTION_CANCELED  TransactionStatus = "canceled"
	TRANSACTION_FAILED    TransactionStatus = "failed"
)

type TransactionType string

const (
	TRANSACTION_RENT_PAYMENT   TransactionType = "rent_payment"
	TRANSACTION_WITHDRAWAL     TransactionType = "withdrawal"
	TRANSACTION_ESCROW_RELEASE TransactionType = "escrow_release"
	TRANSACTION_REFUND         TransactionType = "refund"
)

type WalletTransactionType string

const (
	WALLET_DEPOSIT        WalletTransactionType = "deposit"
	WALLET_WITHDRAWAL     WalletTransactionType = "withdrawal"
	WALLET_ESCROW_RELEASE WalletTransactionType = "escrow_release"
	WALLET_REFUND         WalletTransactionType = "refund"
)

type WalletTransactionStatus string

const (
	WALLET_TXN_PENDING   WalletTransactionStatus = "pending"
	WALLET_TXN_COMPLETED WalletTransactionStatus = "completed"
)

type PropertyStatus string

const (
	PROPERTY_ACTIVE          PropertyStatus = "active"
	PROPERTY_PENDING_BOOKING PropertyStatus = "pending_booking"
	PROPERTY_RENTED          PropertyStatus = "rented"
	PROPERTY_INACTIVE        PropertyStatus = "inactive"
)

type UnitStatus string

const (
	UNIT_AVAILABLE       UnitStatus = "available"
	UNIT_PENDING_BOOKING UnitStatus = "pending_booking"
	UNIT_RENTED          UnitStatus = "rented"
	UNIT_INACTIVE        UnitStatus = "inactive"
	UNIT_REJECTED        UnitStatus = "rejected"
	UNIT_SUSPENDED       UnitStatus = "suspended"
	UNIT_PENDING_REVIEW  UnitStatus = "pending_review"
)

type CreateBookingRequestBody struct {
	PropertyID uint       `json:"property" validate:"required"`
	UnitIDs    []uint     `json:"units" validate:"required,min=1,dive,required"`
	StartDate  time.Time  `json:"start_date" validate:"required"`
	EndDate    *time.Time `json:"end_date,omitempty" validate:"omitempty,gtfield=StartDate"`
}

type WithdrawalRequestBody struct {
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	PaymentMethod string          `json:"payment_method" validate:"required"`
	Details       JSONB           `json:"details,omitempty"`
}

type UpdateBalanceParams struct {
	UserID               uint
	Amount               decimal.Decimal
	Type                 WalletTransactionType
	Status               WalletTransactionStatus
	Description          string
	RelatedTransactionID *uuid.UUID
}
