package services

import (
	"rms/src/config"

	"github.com/shopspring/decimal"
)

var daysPerMonth = decimal.NewFromInt(30)

// FeeService Platform fee schedule. The fee is a flat percentage of the base
// rent, rounded to 2 decimal places.
type FeeService struct {
	percent decimal.Decimal
}

func NewFeeService(percent decimal.Decimal) *FeeService {
	return &FeeService{percent: percent}
}

func NewFeeServiceFromEnv() *FeeService {
	return NewFeeService(config.PlatformFeePercent())
}

func (f *FeeService) PlatformFee(base decimal.Decimal) decimal.Decimal {
	return base.Mul(f.percent).Div(decimal.NewFromInt(100)).Round(2)
}

// BaseRent Prorates a monthly amount over the booked days on a 30-day month.
func BaseRent(monthlyAmount decimal.Decimal, days int64) decimal.Decimal {
	return monthlyAmount.Div(daysPerMonth).Mul(decimal.NewFromInt(days)).Round(2)
}
