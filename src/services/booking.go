package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"rms/src/config"
	"rms/src/models"
	"rms/src/types"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var validate = validator.New()

// BookingService Owns the booking state machine and the escrow transaction
// lifecycle. Every state transition happens inside one DB transaction;
// gateway calls always happen outside of it (commit-then-notify), with the
// payment verifier and booking sweeper recovering anything the gateway
// left behind.
type BookingService struct {
	db      *gorm.DB
	gateway PaymentGateway
	fees    *FeeService
	wallets *WalletService
	events  Publisher
}

func NewBookingService(db *gorm.DB, gateway PaymentGateway, fees *FeeService, wallets *WalletService, events Publisher) *BookingService {
	return &BookingService{
		db:      db,
		gateway: gateway,
		fees:    fees,
		wallets: wallets,
		events:  events,
	}
}

func bookingDays(start time.Time, end *time.Time) int64 {
	if end == nil {
		return 30
	}
	days := int64(end.Sub(start).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return days
}

func cloneMetadata(metadata types.JSONB) types.JSONB {
	out := types.JSONB{}
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

// bookableUnits Loads the property and the requested units and rejects
// anything another live booking already holds.
func (s *BookingService) bookableUnits(tx *gorm.DB, propertyID uint, unitIDs []uint) (*models.Property, []*models.Unit, error) {
	var property models.Property
	if err := tx.Where(&models.Property{ID: propertyID}).First(&property).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, &types.NotFoundError{Entity: "property", ID: propertyID}
		}
		return nil, nil, err
	}
	if property.Status != types.PROPERTY_ACTIVE {
		return nil, nil, &types.InvalidStateError{Message: fmt.Sprintf("property [%d] is not open for booking", propertyID)}
	}
	var units []*models.Unit
	if err := tx.Where("property_id = ? AND id IN ?", propertyID, unitIDs).Find(&units).Error; err != nil {
		return nil, nil, err
	}
	if len(units) != len(unitIDs) {
		return nil, nil, &types.NotFoundError{Entity: "unit", ID: unitIDs}
	}
	for _, unit := range units {
		if unit.Status != types.UNIT_AVAILABLE {
			return nil, nil, &types.ConflictError{Message: fmt.Sprintf("unit [%d] is no longer available", unit.ID)}
		}
	}
	var held int64
	if err := tx.
		Table("booking_units").
		Joins("JOIN bookings ON bookings.id = booking_units.booking_id").
		Where("booking_units.unit_id IN ?", unitIDs).
		Where("bookings.status IN ?", types.BookingLiveStatuses).
		Count(&held).
		Error; err != nil {
		return nil, nil, err
	}
	if held > 0 {
		return nil, nil, &types.ConflictError{Message: "one or more units are held by another booking"}
	}
	return &property, units, nil
}

func (s *BookingService) CreateBookingRequest(params *types.CreateBookingRequestBody, renterID uint) *types.Result {
	if err := validate.Struct(params); err != nil {
		return types.ResultErr(err)
	}
	var (
		booking  models.Booking
		property models.Property
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		p, units, err := s.bookableUnits(tx, params.PropertyID, params.UnitIDs)
		if err != nil {
			return err
		}
		property = *p
		days := bookingDays(params.StartDate, params.EndDate)
		booking = models.Booking{
			RenterID:   renterID,
			PropertyID: p.ID,
			StartDate:  params.StartDate,
			EndDate:    params.EndDate,
			Status:     types.BOOKING_REQUESTED,
			Amount:     BaseRent(p.Amount, days),
			Currency:   p.Currency,
			Units:      units,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("CreateBookingRequest failed: %s\n", err.Error())
		return types.ResultErr(err)
	}
	s.events.Publish(context.Background(), &Event{
		Name:    "booking.requested",
		UserID:  property.OwnerID,
		Title:   "New booking request",
		Message: fmt.Sprintf("A renter requested to book %s", property.Name),
		Data:    types.JSONB{"booking_id": booking.ID},
	})
	return types.ResultOK("booking request created", &booking)
}

func (s *BookingService) RespondToBookingRequest(bookingID uint, listerID uint, accept bool) *types.Result {
	var booking models.Booking
	newStatus := types.BOOKING_DECLINED
	if accept {
		newStatus = types.BOOKING_PENDING_PAYMENT
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Property").Where(&models.Booking{ID: bookingID}).First(&booking).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &types.NotFoundError{Entity: "booking", ID: bookingID}
			}
			return err
		}
		if booking.Property == nil || booking.Property.OwnerID != listerID {
			return &types.AuthorizationError{Message: "only the property owner can respond to a booking request"}
		}
		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND status = ?", bookingID, types.BOOKING_REQUESTED).
			Update("status", newStatus)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &types.InvalidStateError{Message: fmt.Sprintf("booking [%d] is not awaiting a response", bookingID)}
		}
		booking.Status = newStatus
		return nil
	})
	if err != nil {
		log.Printf("RespondToBookingRequest failed: %s\n", err.Error())
		return types.ResultErr(err)
	}
	title := "Booking request declined"
	message := fmt.Sprintf("Your booking request [%d] was declined", bookingID)
	if accept {
		title = "Booking request approved"
		message = fmt.Sprintf("Your booking request [%d] was approved. Complete the payment to confirm it", bookingID)
	}
	s.events.Publish(context.Background(), &Event{
		Name:    fmt.Sprintf("booking.%s", newStatus),
		UserID:  booking.RenterID,
		Title:   title,
		Message: message,
		Data:    types.JSONB{"booking_id": booking.ID},
	})
	return types.ResultOK("booking request updated", &booking)
}

// CreateBooking Direct-payment variant: the booking, its escrow transaction
// and the unit holds commit first, then the gateway session is created on a
// best-effort basis.
func (s *BookingService) CreateBooking(params *types.CreateBookingRequestBody, renterID uint) *types.Result {
	if err := validate.Struct(params); err != nil {
		return types.ResultErr(err)
	}
	var (
		booking models.Booking
		txn     models.Transaction
		renter  models.User
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&models.User{ID: renterID}).First(&renter).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &types.NotFoundError{Entity: "user", ID: renterID}
			}
			return err
		}
		property, units, err := s.bookableUnits(tx, params.PropertyID, params.UnitIDs)
		if err != nil {
			return err
		}
		days := bookingDays(params.StartDate, params.EndDate)
		base := BaseRent(property.Amount, days)
		fee := s.fees.PlatformFee(base)
		total := base.Add(fee)
		booking = models.Booking{
			RenterID:    renterID,
			PropertyID:  property.ID,
			StartDate:   params.StartDate,
			EndDate:     params.EndDate,
			Status:      types.BOOKING_PENDING,
			Amount:      base,
			PlatformFee: fee,
			TotalAmount: total,
			Currency:    property.Currency,
			Units:       units,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}
		txn = models.Transaction{
			Type:      types.TRANSACTION_RENT_PAYMENT,
			Amount:    total,
			Currency:  property.Currency,
			Status:    types.TRANSACTION_PENDING,
			Reference: fmt.Sprintf("rnt_%s", uuid.NewString()),
			UserID:    renterID,
			BookingID: &booking.ID,
			Metadata: types.JSONB{
				"base_amount":  base.String(),
				"platform_fee": fee.String(),
				"retry_count":  0,
			},
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Booking{}).
			Where("id = ?", booking.ID).
			Update("transaction_id", txn.ID).
			Error; err != nil {
			return err
		}
		booking.TransactionID = &txn.ID
		if err := tx.
			Model(&models.Unit{}).
			Where("id IN ?", params.UnitIDs).
			Update("status", types.UNIT_PENDING_BOOKING).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Property{}).
			Where("id = ? AND status = ?", property.ID, types.PROPERTY_ACTIVE).
			Update("status", types.PROPERTY_PENDING_BOOKING).
			Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("CreateBooking failed: %s\n", err.Error())
		return types.ResultErr(err)
	}
	authorizationURL, gwErr := s.initializeGatewaySession(&txn, renter.Email)
	if gwErr != nil {
		log.Printf("Error initializing payment for %s: %s\n", txn.Reference, gwErr.Error())
	}
	s.events.Publish(context.Background(), &Event{
		Name:    "booking.created",
		UserID:  renterID,
		Title:   "Booking created",
		Message: fmt.Sprintf("Booking [%d] created. Complete the payment of %s %s to confirm it", booking.ID, txn.Amount.String(), txn.Currency),
		Data: types.JSONB{
			"booking_id": booking.ID,
			"reference":  txn.Reference,
		},
	})
	message := "booking created"
	if authorizationURL == "" {
		message = "booking created; payment initialization pending"
	}
	return types.ResultOK(message, map[string]any{
		"booking":     &booking,
		"reference":   txn.Reference,
		"payment_url": authorizationURL,
	})
}

// initializeGatewaySession Creates a checkout session for a committed pending
// transaction and stores the gateway reference in its metadata.
func (s *BookingService) initializeGatewaySession(txn *models.Transaction, email string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.GatewayTimeout())
	defer cancel()
	initialization, err := s.gateway.InitializePayment(ctx, email, txn.Amount, txn.Currency, txn.Reference)
	if err != nil {
		return "", &types.TransientIOError{Op: fmt.Sprintf("initialize payment %s", txn.Reference), Err: err}
	}
	metadata := cloneMetadata(txn.Metadata)
	metadata["gateway_reference"] = initialization.GatewayReference
	if err := s.db.
		Model(&models.Transaction{}).
		Where("id = ?", txn.ID).
		Update("metadata", metadata).
		Error; err != nil {
		log.Printf("Error saving gateway reference for %s: %s\n", txn.Reference, err.Error())
		return "", err
	}
	txn.Metadata = metadata
	return initialization.AuthorizationURL, nil
}

// RetryPayment Creates a fresh gateway session for a booking that is still
// awaiting payment. For an accepted booking request this is also the first
// payment attempt, so the escrow transaction is created here if missing.
func (s *BookingService) RetryPayment(bookingID uint, renterID uint) *types.Result {
	var (
		booking models.Booking
		txn     models.Transaction
		renter  models.User
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where(&models.Booking{ID: bookingID}).First(&booking).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &types.NotFoundError{Entity: "booking", ID: bookingID}
			}
			return err
		}
		if booking.RenterID != renterID {
			return &types.AuthorizationError{Message: "booking belongs to another renter"}
		}
		if booking.Status != types.BOOKING_PENDING && booking.Status != types.BOOKING_PENDING_PAYMENT {
			return &types.InvalidStateError{Message: fmt.Sprintf("booking [%d] is not awaiting payment", bookingID)}
		}
		if err := tx.Where(&models.User{ID: renterID}).First(&renter).Error; err != nil {
			return err
		}
		err := tx.
			Where("booking_id = ? AND type = ? AND status = ?", booking.ID, types.TRANSACTION_RENT_PAYMENT, types.TRANSACTION_PENDING).
			First(&txn).
			Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fee := booking.PlatformFee
			total := booking.TotalAmount
			if total.IsZero() {
				fee = s.fees.PlatformFee(booking.Amount)
				total = booking.Amount.Add(fee)
			}
			txn = models.Transaction{
				Type:      types.TRANSACTION_RENT_PAYMENT,
				Amount:    total,
				Currency:  booking.Currency,
				Status:    types.TRANSACTION_PENDING,
				Reference: fmt.Sprintf("rnt_%s", uuid.NewString()),
				UserID:    renterID,
				BookingID: &booking.ID,
				Metadata: types.JSONB{
					"base_amount":  booking.Amount.String(),
					"platform_fee": fee.String(),
					"retry_count":  0,
				},
			}
			if err := tx.Create(&txn).Error; err != nil {
				return err
			}
			if err := tx.
				Model(&models.Booking{}).
				Where("id = ?", booking.ID).
				Updates(map[string]any{
					"transaction_id": txn.ID,
					"platform_fee":   fee,
					"total_amount":   total,
				}).
				Error; err != nil {
				return err
			}
			booking.TransactionID = &txn.ID
			booking.PlatformFee = fee
			booking.TotalAmount = total
			if err := tx.
				Model(&models.Unit{}).
				Where("id IN (SELECT unit_id FROM booking_units WHERE booking_id = ?)", booking.ID).
				Where("status = ?", types.UNIT_AVAILABLE).
				Update("status", types.UNIT_PENDING_BOOKING).
				Error; err != nil {
				return err
			}
			if err := tx.
				Model(&models.Property{}).
				Where("id = ? AND status = ?", booking.PropertyID, types.PROPERTY_ACTIVE).
				Update("status", types.PROPERTY_PENDING_BOOKING).
				Error; err != nil {
				return err
			}
			return nil
		}
		return err
	})
	if err != nil {
		log.Printf("RetryPayment failed: %s\n", err.Error())
		return types.ResultErr(err)
	}
	authorizationURL, err := s.initializeGatewaySession(&txn, renter.Email)
	if err != nil {
		log.Printf("RetryPayment failed: %s\n", err.Error())
		return types.ResultErr(err)
	}
	return types.ResultOK("payment initialized", map[string]any{
		"reference":   txn.Reference,
		"payment_url": authorizationURL,
	})
}

// verifyWithGateway Checks a pending escrow transaction against the gateway.
// Transport failures come back as TransientIOError; everything the gateway
// actually rejected comes back as PaymentVerificationError.
func (s *BookingService) verifyWithGateway(txn *models.Transaction) (*PaymentVerification, error) {
	gatewayReference, _ := txn.Metadata["gateway_reference"].(string)
	if gatewayReference == "" {
		return nil, &types.PaymentVerificationError{Reference: txn.Reference, Reason: "payment was never initialized with the gateway"}
	}
	ctx, cancel := context.WithTimeout(context.Background(), config.GatewayTimeout())
	defer cancel()
	verification, err := s.gateway.VerifyPayment(ctx, gatewayReference)
	if err != nil {
		return nil, &types.TransientIOError{Op: fmt.Sprintf("verify payment %s", txn.Reference), Err: err}
	}
	if !verification.Paid {
		return nil, &types.PaymentVerificationError{Reference: txn.Reference, Reason: fmt.Sprintf("gateway reports status %q", verification.Status)}
	}
	settled := decimal.NewFromInt(verification.Amount).Div(decimal.NewFromInt(100))
	if !settled.Equal(txn.Amount) {
		return nil, &types.PaymentVerificationError{
			Reference: txn.Reference,
			Reason:    fmt.Sprintf("amount mismatch: expected %s, gateway settled %s", txn.Amount.String(), settled.String()),
		}
	}
	return verification, nil
}

// settlePayment Applies the verified payment: Transaction to HELD, Booking to
// CONFIRMED, property and units to RENTED with the renter stamped. The fee
// stays inside the held amount as bookkeeping; no wallet moves here.
func (s *BookingService) settlePayment(txn *models.Transaction, verification *PaymentVerification) error {
	now := time.Now()
	return s.db.Transaction(func(tx *gorm.DB) error {
		metadata := cloneMetadata(txn.Metadata)
		metadata["gateway_reference"] = verification.GatewayReference
		metadata["fee_charged"] = true
		res := tx.
			Model(&models.Transaction{}).
			Where("id = ? AND status = ?", txn.ID, types.TRANSACTION_PENDING).
			Updates(map[string]any{
				"status":       types.TRANSACTION_HELD,
				"processed_at": &now,
				"metadata":     metadata,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var current models.Transaction
			if err := tx.Where(&models.Transaction{ID: txn.ID}).First(&current).Error; err != nil {
				return err
			}
			if current.Status == types.TRANSACTION_HELD {
				// another caller settled it first
				txn.Status = types.TRANSACTION_HELD
				return nil
			}
			return &types.InvalidStateError{Message: fmt.Sprintf("transaction %s is %s and can no longer be held", txn.Reference, current.Status)}
		}
		if txn.BookingID == nil {
			return &types.InvalidStateError{Message: fmt.Sprintf("transaction %s has no booking", txn.Reference)}
		}
		var booking models.Booking
		if err := tx.Where(&models.Booking{ID: *txn.BookingID}).First(&booking).Error; err != nil {
			return err
		}
		res = tx.
			Model(&models.Booking{}).
			Where("id = ? AND status IN ?", booking.ID, []types.BookingStatus{types.BOOKING_PENDING, types.BOOKING_PENDING_PAYMENT}).
			Update("status", types.BOOKING_CONFIRMED)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &types.InvalidStateError{Message: fmt.Sprintf("booking [%d] can no longer be confirmed", booking.ID)}
		}
		if err := tx.
			Model(&models.Unit{}).
			Where("id IN (SELECT unit_id FROM booking_units WHERE booking_id = ?)", booking.ID).
			Updates(map[string]any{
				"status":    types.UNIT_RENTED,
				"renter_id": booking.RenterID,
			}).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Property{}).
			Where("id = ?", booking.PropertyID).
			Update("status", types.PROPERTY_RENTED).
			Error; err != nil {
			return err
		}
		txn.Status = types.TRANSACTION_HELD
		txn.ProcessedAt = &now
		txn.Metadata = metadata
		return nil
	})
}

func (s *BookingService) ConfirmBookingPayment(reference string, userID uint) *types.Result {
	var txn models.Transaction
	if err := s.db.Where(&models.Transaction{Reference: reference}).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ResultErr(&types.NotFoundError{Entity: "transaction", ID: reference})
		}
		return types.ResultErr(err)
	}
	if txn.Status == types.TRANSACTION_HELD {
		return types.ResultOK("payment already confirmed", &txn)
	}
	if txn.UserID != userID {
		return types.ResultErr(&types.AuthorizationError{Message: "transaction belongs to another user"})
	}
	if txn.Type != types.TRANSACTION_RENT_PAYMENT {
		return types.ResultErr(&types.InvalidStateError{Message: fmt.Sprintf("transaction %s is not a rent payment", reference)})
	}
	if txn.Status != types.TRANSACTION_PENDING {
		return types.ResultErr(&types.InvalidStateError{Message: fmt.Sprintf("transaction %s is %s", reference, txn.Status)})
	}
	verification, err := s.verifyWithGateway(&txn)
	if err != nil {
		var tioerr *types.TransientIOError
		if errors.As(err, &tioerr) {
			err = &types.PaymentVerificationError{Reference: txn.Reference, Reason: "payment gateway is unreachable"}
		}
		log.Printf("ConfirmBookingPayment failed: %s\n", err.Error())
		return types.ResultErr(err)
	}
	if err := s.settlePayment(&txn, verification); err != nil {
		log.Printf("ConfirmBookingPayment failed: %s\n", err.Error())
		return types.ResultErr(err)
	}
	s.publishPaymentConfirmed(&txn)
	return types.ResultOK("payment confirmed", &txn)
}

func (s *BookingService) publishPaymentConfirmed(txn *models.Transaction) {
	s.events.Publish(context.Background(), &Event{
		Name:    "payment.confirmed",
		UserID:  txn.UserID,
		Title:   "Payment confirmed",
		Message: fmt.Sprintf("Your payment of %s %s has been confirmed", txn.Amount.String(), txn.Currency),
		Data: types.JSONB{
			"reference": txn.Reference,
		},
	})
	if txn.BookingID == nil {
		return
	}
	var booking models.Booking
	if err := s.db.Preload("Property").Where(&models.Booking{ID: *txn.BookingID}).First(&booking).Error; err != nil {
		log.Printf("Error loading booking for %s: %s\n", txn.Reference, err.Error())
		return
	}
	if booking.Property == nil {
		return
	}
	s.events.Publish(context.Background(), &Event{
		Name:    "booking.confirmed",
		UserID:  booking.Property.OwnerID,
		Title:   "Booking confirmed",
		Message: fmt.Sprintf("Booking [%d] for %s has been paid and confirmed", booking.ID, booking.Property.Name),
		Data: types.JSONB{
			"booking_id": booking.ID,
		},
	})
}

// SettlePendingPayment Worker path: same verification and settlement as
// ConfirmBookingPayment, minus the ownership check (the caller is the
// verifier or the gateway webhook, not a renter).
func (s *BookingService) SettlePendingPayment(txn *models.Transaction) error {
	verification, err := s.verifyWithGateway(txn)
	if err != nil {
		return err
	}
	if err := s.settlePayment(txn, verification); err != nil {
		return err
	}
	s.publishPaymentConfirmed(txn)
	return nil
}

// HandleGatewayConfirmation Entry point for the payment webhook.
func (s *BookingService) HandleGatewayConfirmation(reference string) error {
	var txn models.Transaction
	if err := s.db.Where(&models.Transaction{Reference: reference}).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &types.NotFoundError{Entity: "transaction", ID: reference}
		}
		return err
	}
	if txn.Status == types.TRANSACTION_HELD {
		return nil
	}
	if txn.Status != types.TRANSACTION_PENDING {
		return &types.InvalidStateError{Message: fmt.Sprintf("transaction %s is %s", reference, txn.Status)}
	}
	return s.SettlePendingPayment(&txn)
}

func (s *BookingService) CompleteBooking(bookingID uint, userID uint) *types.Result {
	var booking models.Booking
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Property").Where(&models.Booking{ID: bookingID}).First(&booking).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &types.NotFoundError{Entity: "booking", ID: bookingID}
			}
			return err
		}
		if booking.RenterID != userID && (booking.Property == nil || booking.Property.OwnerID != userID) {
			return &types.AuthorizationError{Message: "only the renter or the property owner can complete a booking"}
		}
		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND status = ?", bookingID, types.BOOKING_CONFIRMED).
			Update("status", types.BOOKING_COMPLETED)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &types.InvalidStateError{Message: fmt.Sprintf("booking [%d] is not confirmed", bookingID)}
		}
		// the tenancy carries on: units stay rented, only the listing reopens
		if err := tx.
			Model(&models.Property{}).
			Where("id = ?", booking.PropertyID).
			Update("status", types.PROPERTY_ACTIVE).
			Error; err != nil {
			return err
		}
		booking.Status = types.BOOKING_COMPLETED
		return nil
	})
	if err != nil {
		log.Printf("CompleteBooking failed: %s\n", err.Error())
		return types.ResultErr(err)
	}
	s.events.Publish(context.Background(), &Event{
		Name:    "booking.completed",
		UserID:  booking.RenterID,
		Title:   "Booking completed",
		Message: fmt.Sprintf("Booking [%d] has been marked as completed", booking.ID),
		Data:    types.JSONB{"booking_id": booking.ID},
	})
	return types.ResultOK("booking completed", &booking)
}

// ReleaseEscrow Credits the owner's wallet with the base amount (the platform
// fee stays behind) and moves the held transaction to RELEASED. Both happen
// in one DB transaction; if the credit fails the funds stay in escrow.
func (s *BookingService) ReleaseEscrow(bookingID uint, adminID uint) *types.Result {
	var (
		booking models.Booking
		txn     models.Transaction
		ownerID uint
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Property").Where(&models.Booking{ID: bookingID}).First(&booking).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &types.NotFoundError{Entity: "booking", ID: bookingID}
			}
			return err
		}
		if booking.Status != types.BOOKING_COMPLETED {
			return &types.InvalidStateError{Message: fmt.Sprintf("booking [%d] is not completed", bookingID)}
		}
		if booking.TransactionID == nil {
			return &types.InvalidStateError{Message: fmt.Sprintf("booking [%d] has no escrow transaction", bookingID)}
		}
		if booking.Property == nil {
			return &types.NotFoundError{Entity: "property", ID: booking.PropertyID}
		}
		ownerID = booking.Property.OwnerID
		if err := tx.Where(&models.Transaction{ID: *booking.TransactionID}).First(&txn).Error; err != nil {
			return err
		}
		if txn.Status != types.TRANSACTION_HELD {
			return &types.InvalidStateError{Message: fmt.Sprintf("transaction %s is %s, not held", txn.Reference, txn.Status)}
		}
		if _, _, err := s.wallets.ApplyBalanceChange(tx, &types.UpdateBalanceParams{
			UserID:               ownerID,
			Amount:               booking.Amount,
			Type:                 types.WALLET_ESCROW_RELEASE,
			Status:               types.WALLET_TXN_COMPLETED,
			Description:          fmt.Sprintf("Escrow release for booking [%d]", booking.ID),
			RelatedTransactionID: &txn.ID,
		}); err != nil {
			return err
		}
		now := time.Now()
		metadata := cloneMetadata(txn.Metadata)
		metadata["released_by"] = adminID
		res := tx.
			Model(&models.Transaction{}).
			Where("id = ? AND status = ?", txn.ID, types.TRANSACTION_HELD).
			Updates(map[string]any{
				"status":       types.TRANSACTION_RELEASED,
				"processed_at": &now,
				"metadata":     metadata,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &types.InvalidStateError{Message: fmt.Sprintf("transaction %s was released concurrently", txn.Reference)}
		}
		txn.Status = types.TRANSACTION_RELEASED
		txn.ProcessedAt = &now
		txn.Metadata = metadata
		return nil
	})
	if err != nil {
		log.Printf("ReleaseEscrow failed: %s\n", err.Error())
		return types.ResultErr(err)
	}
	s.events.Publish(context.Background(), &Event{
		Name:    "escrow.released",
		UserID:  ownerID,
		Title:   "Payout released",
		Message: fmt.Sprintf("The escrow for booking [%d] was released to your wallet", booking.ID),
		Data: types.JSONB{
			"booking_id": booking.ID,
			"amount":     booking.Amount.String(),
		},
	})
	return types.ResultOK("escrow released", &txn)
}

func (s *BookingService) CancelBooking(bookingID uint, userID uint) *types.Result {
	var booking models.Booking
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Property").Where(&models.Booking{ID: bookingID}).First(&booking).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &types.NotFoundError{Entity: "booking", ID: bookingID}
			}
			return err
		}
		if booking.RenterID != userID && (booking.Property == nil || booking.Property.OwnerID != userID) {
			return &types.AuthorizationError{Message: "only the renter or the property owner can cancel a booking"}
		}
		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND status NOT IN ?", bookingID, types.BookingTerminalStatuses).
			Update("status", types.BOOKING_CANCELED)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &types.InvalidStateError{Message: fmt.Sprintf("booking [%d] is already %s", bookingID, booking.Status)}
		}
		if err := tx.
			Model(&models.Unit{}).
			Where("id IN (SELECT unit_id FROM booking_units WHERE booking_id = ?)", booking.ID).
			Updates(map[string]any{
				"status":    types.UNIT_AVAILABLE,
				"renter_id": nil,
			}).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Property{}).
			Where("id = ? AND status IN ?", booking.PropertyID, []types.PropertyStatus{types.PROPERTY_PENDING_BOOKING, types.PROPERTY_RENTED}).
			Update("status", types.PROPERTY_ACTIVE).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Transaction{}).
			Where("booking_id = ? AND status = ?", booking.ID, types.TRANSACTION_PENDING).
			Update("status", types.TRANSACTION_CANCELED).
			Error; err != nil {
			return err
		}
		booking.Status = types.BOOKING_CANCELED
		return nil
	})
	if err != nil {
		log.Printf("CancelBooking failed: %s\n", err.Error())
		return types.ResultErr(err)
	}
	s.events.Publish(context.Background(), &Event{
		Name:    "booking.canceled",
		UserID:  booking.RenterID,
		Title:   "Booking canceled",
		Message: fmt.Sprintf("Booking [%d] has been canceled", booking.ID),
		Data:    types.JSONB{"booking_id": booking.ID},
	})
	return types.ResultOK("booking canceled", &booking)
}

func (s *BookingService) GetUserBookingByID(bookingID uint, userID uint) *types.Result {
	var booking models.Booking
	err := s.db.
		Preload("Property").
		Preload("Units").
		Preload("Transaction").
		Where(&models.Booking{ID: bookingID}).
		First(&booking).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.ResultErr(&types.NotFoundError{Entity: "booking", ID: bookingID})
		}
		return types.ResultErr(err)
	}
	if booking.RenterID != userID && (booking.Property == nil || booking.Property.OwnerID != userID) {
		return types.ResultErr(&types.AuthorizationError{Message: "booking belongs to another user"})
	}
	return types.ResultOK("booking retrieved", &booking)
}

func (s *BookingService) GetHostBookingRequests(listerID uint) *types.Result {
	var bookings []*models.Booking
	err := s.db.
		Joins("JOIN properties ON properties.id = bookings.property_id").
		Where("properties.owner_id = ? AND bookings.status = ?", listerID, types.BOOKING_REQUESTED).
		Preload("Units").
		Preload("Property").
		Order("bookings.created_at DESC").
		Find(&bookings).
		Error
	if err != nil {
		log.Printf("GetHostBookingRequests failed: %s\n", err.Error())
		return types.ResultErr(err)
	}
	return types.ResultOK("booking requests retrieved", bookings)
}

func (s *BookingService) GetRenterBookings(renterID uint) *types.Result {
	var bookings []*models.Booking
	err := s.db.
		Where(&models.Booking{RenterID: renterID}).
		Preload("Units").
		Preload("Property").
		Preload("Transaction").
		Order("created_at DESC").
		Limit(50).
		Find(&bookings).
		Error
	if err != nil {
		log.Printf("GetRenterBookings failed: %s\n", err.Error())
		return types.ResultErr(err)
	}
	return types.ResultOK("bookings retrieved", bookings)
}
