package services

import (
	"context"

	"github.com/shopspring/decimal"
)

type PaymentInitialization struct {
	AuthorizationURL string `json:"authorization_url"`
	GatewayReference string `json:"gateway_reference"`
}

// PaymentVerification Amount is in minor units, exactly as the gateway
// reports it.
type PaymentVerification struct {
	GatewayReference string `json:"gateway_reference"`
	Status           string `json:"status"`
	Paid             bool   `json:"paid"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

type PaymentGateway interface {
	InitializePayment(ctx context.Context, email string, amount decimal.Decimal, currency string, reference string) (*PaymentInitialization, error)
	VerifyPayment(ctx context.Context, gatewayReference string) (*PaymentVerification, error)
}
