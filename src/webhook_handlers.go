package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"

	"rms/src/services"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

func paymentWebhookRoutes(g *gin.Engine, bookings *services.BookingService) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/payments", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s\n", event.Type)
		switch event.Type {
		case "checkout.session.completed", "checkout.session.async_payment_succeeded":
			var cs stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
				log.Printf("[Stripe] Error parsing CheckoutSession: %s\n", err.Error())
				break
			}
			reference := cs.ClientReferenceID
			if reference == "" {
				reference = cs.Metadata["reference"]
			}
			if reference == "" {
				log.Printf("[Stripe] CheckoutSession %s carries no reference\n", cs.ID)
				break
			}
			go func() {
				if err := bookings.HandleGatewayConfirmation(reference); err != nil {
					log.Printf("Error confirming payment %s: %s\n", reference, err.Error())
				}
			}()
		case "checkout.session.expired":
			var cs stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
				log.Printf("[Stripe] Error parsing CheckoutSession: %s\n", err.Error())
				break
			}
			log.Printf("[Stripe] Checkout session expired for %s\n", cs.ClientReferenceID)
		}
		ctx.Status(http.StatusOK)
	})
	return apiv1
}
