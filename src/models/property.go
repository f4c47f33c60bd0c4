package models

import (
	"rms/src/types"

	"github.com/shopspring/decimal"
)

type Property struct {
	ID       uint                 `gorm:"primarykey" json:"id"`
	Name     string               `json:"name,omitempty"`
	About    *string              `json:"about,omitempty"`
	Location string               `json:"location,omitempty"`
	Status   types.PropertyStatus `gorm:"default:'active'" json:"status,omitempty"`
	OwnerID  uint                 `json:"owner_id,omitempty"`
	Amount   decimal.Decimal      `gorm:"type:numeric(12,2)" json:"amount,omitempty"`
	Currency string               `gorm:"default:'usd'" json:"currency,omitempty"`

	Owner *User   `gorm:"foreignKey:owner_id" json:"-"`
	Units []*Unit `gorm:"foreignKey:property_id" json:"units,omitempty"`

	types.Timestamps
}

type Unit struct {
	ID         uint             `gorm:"primarykey" json:"id"`
	PropertyID uint             `json:"property_id,omitempty"`
	Label      string           `json:"label,omitempty"`
	Status     types.UnitStatus `gorm:"default:'available'" json:"status,omitempty"`
	RenterID   *uint            `json:"renter_id,omitempty"`
	Amount     decimal.Decimal  `gorm:"type:numeric(12,2)" json:"amount,omitempty"`

	Property *Property `gorm:"foreignKey:property_id" json:"-"`
	Renter   *User     `gorm:"foreignKey:renter_id" json:"-"`

	types.Timestamps
}
