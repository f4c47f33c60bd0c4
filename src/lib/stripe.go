package lib

import (
	"context"
	"fmt"
	"log"
	"os"

	"rms/src/services"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

var stripeClient *stripe.Client

func GetStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	sc := stripe.NewClient(apiKey)
	stripeClient = sc

	return sc
}

func NewStripeClient(c *stripe.Client) {
	stripeClient = c
}

// StripeGateway Hosted-checkout implementation of services.PaymentGateway.
// The checkout session id is stored as the gateway reference and the session
// URL is handed to the renter as the authorization URL.
type StripeGateway struct{}

func NewStripeGateway() *StripeGateway {
	return &StripeGateway{}
}

func (g *StripeGateway) InitializePayment(ctx context.Context, email string, amount decimal.Decimal, currency string, reference string) (*services.PaymentInitialization, error) {
	sc := GetStripeClient()
	successUrl := fmt.Sprintf("%s/payments/callback/success", os.Getenv("APP_HOST"))
	minorUnits := amount.Mul(decimal.NewFromInt(100)).IntPart()
	createParams := stripe.CheckoutSessionCreateParams{
		SuccessURL:        stripe.String(successUrl),
		UIMode:            stripe.String("hosted"),
		Mode:              stripe.String("payment"),
		CustomerEmail:     stripe.String(email),
		ClientReferenceID: stripe.String(reference),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(minorUnits),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("Rent payment %s", reference)),
					},
				},
			},
		},
		Metadata: map[string]string{
			"reference": reference,
		},
	}
	checkoutSession, err := sc.V1CheckoutSessions.Create(ctx, &createParams)
	if err != nil {
		log.Printf("InitializePayment failed: %s\n", err.Error())
		return nil, err
	}
	log.Printf("CheckoutSessionID: %s\n", checkoutSession.ID)
	return &services.PaymentInitialization{
		AuthorizationURL: checkoutSession.URL,
		GatewayReference: checkoutSession.ID,
	}, nil
}

func (g *StripeGateway) VerifyPayment(ctx context.Context, gatewayReference string) (*services.PaymentVerification, error) {
	sc := GetStripeClient()
	checkoutSession, err := sc.V1CheckoutSessions.Retrieve(ctx, gatewayReference, nil)
	if err != nil {
		log.Printf("VerifyPayment failed for %s: %s\n", gatewayReference, err.Error())
		return nil, err
	}
	return &services.PaymentVerification{
		GatewayReference: checkoutSession.ID,
		Status:           string(checkoutSession.PaymentStatus),
		Paid:             checkoutSession.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Amount:           checkoutSession.AmountTotal,
		Currency:         string(checkoutSession.Currency),
	}, nil
}
