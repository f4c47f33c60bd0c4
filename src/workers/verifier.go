package workers

import (
	"errors"
	"log"
	"time"

	"rms/src/config"
	"rms/src/models"
	"rms/src/services"
	"rms/src/types"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

const verifierMaxRetries = 3

// PaymentVerifier Polls pending rent payments whose booking never got
// confirmed and asks the gateway what happened to them. Transactions younger
// than minAge are skipped so the renter on the checkout page is not raced.
type PaymentVerifier struct {
	db       *gorm.DB
	bookings *services.BookingService
	interval time.Duration
	minAge   time.Duration
	sched    gocron.Scheduler
}

func NewPaymentVerifier(db *gorm.DB, bookings *services.BookingService) *PaymentVerifier {
	return &PaymentVerifier{
		db:       db,
		bookings: bookings,
		interval: config.PaymentVerifierInterval(),
		minAge:   config.PaymentVerifierMinAge(),
	}
}

func (w *PaymentVerifier) Name() string {
	return "PaymentVerifier"
}

func (w *PaymentVerifier) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			if _, err := w.RunOnce(); err != nil {
				log.Printf("[%s] run failed: %s\n", w.Name(), err.Error())
			}
		}),
	)
	if err != nil {
		return err
	}
	w.sched = sched
	sched.Start()
	log.Printf("[%s] started: interval=%s\n", w.Name(), w.interval)
	return nil
}

func (w *PaymentVerifier) Stop() error {
	if w.sched == nil {
		return nil
	}
	return w.sched.Shutdown()
}

// RunOnce Returns how many transactions were settled this tick. Per-item
// failures are logged and skipped, never aborting the sweep.
func (w *PaymentVerifier) RunOnce() (int, error) {
	cutoff := time.Now().Add(-w.minAge)
	var txns []models.Transaction
	err := w.db.
		Joins("JOIN bookings ON bookings.id = transactions.booking_id").
		Where("transactions.type = ? AND transactions.status = ?", types.TRANSACTION_RENT_PAYMENT, types.TRANSACTION_PENDING).
		Where("bookings.status IN ?", []types.BookingStatus{types.BOOKING_PENDING, types.BOOKING_PENDING_PAYMENT}).
		Where("transactions.created_at < ?", cutoff).
		Find(&txns).
		Error
	if err != nil {
		return 0, err
	}
	settled := 0
	for i := range txns {
		if err := w.verifyOne(&txns[i]); err != nil {
			log.Printf("[%s] %s: %s\n", w.Name(), txns[i].Reference, err.Error())
			continue
		}
		settled++
	}
	if len(txns) > 0 {
		log.Printf("[%s] checked %d pending transactions, settled %d\n", w.Name(), len(txns), settled)
	}
	return settled, nil
}

// verifyOne No DB transaction is held across the gateway call; settlement
// opens its own. A rejected payment burns one retry per tick until the
// budget is spent, then the transaction fails for good. Transient errors
// burn nothing, the next tick is their retry.
func (w *PaymentVerifier) verifyOne(txn *models.Transaction) error {
	err := w.bookings.SettlePendingPayment(txn)
	if err == nil {
		return nil
	}
	var verr *types.PaymentVerificationError
	if !errors.As(err, &verr) {
		return err
	}
	retries := retryCount(txn.Metadata)
	metadata := types.JSONB{}
	for k, v := range txn.Metadata {
		metadata[k] = v
	}
	now := time.Now()
	if retries >= verifierMaxRetries {
		metadata["error"] = verr.Reason
		if uerr := w.db.
			Model(&models.Transaction{}).
			Where("id = ? AND status = ?", txn.ID, types.TRANSACTION_PENDING).
			Updates(map[string]any{
				"status":       types.TRANSACTION_FAILED,
				"processed_at": &now,
				"metadata":     metadata,
			}).
			Error; uerr != nil {
			return uerr
		}
		log.Printf("[%s] %s failed after %d retries: %s\n", w.Name(), txn.Reference, retries, verr.Reason)
		return err
	}
	metadata["retry_count"] = retries + 1
	metadata["last_retry"] = now.Format(time.RFC3339)
	if uerr := w.db.
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", txn.ID, types.TRANSACTION_PENDING).
		Update("metadata", metadata).
		Error; uerr != nil {
		return uerr
	}
	return err
}

func retryCount(metadata types.JSONB) int {
	switch v := metadata["retry_count"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
