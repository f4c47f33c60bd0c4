package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"rms/src/config"
	"rms/src/models"
	"rms/src/services"
	"rms/src/types"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// ExpiredBookingSweeper Cancels unpaid bookings stuck in PENDING or
// PENDING_PAYMENT past the expiry threshold, frees their units and voids
// their pending transactions.
type ExpiredBookingSweeper struct {
	db        *gorm.DB
	events    services.Publisher
	interval  time.Duration
	threshold time.Duration
	sched     gocron.Scheduler
}

func NewExpiredBookingSweeper(db *gorm.DB, events services.Publisher) *ExpiredBookingSweeper {
	return &ExpiredBookingSweeper{
		db:        db,
		events:    events,
		interval:  config.BookingSweeperInterval(),
		threshold: config.BookingExpiryThreshold(),
	}
}

func (w *ExpiredBookingSweeper) Name() string {
	return "ExpiredBookingSweeper"
}

func (w *ExpiredBookingSweeper) Start() error {
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
	log.Printf("[%s] started: interval=%s threshold=%s\n", w.Name(), w.interval, w.threshold)
	return nil
}

func (w *ExpiredBookingSweeper) Stop() error {
	if w.sched == nil {
		return nil
	}
	return w.sched.Shutdown()
}

// RunOnce Staleness is measured on updated_at, so a booking that saw any
// recent transition gets the full threshold again.
func (w *ExpiredBookingSweeper) RunOnce() (int, error) {
	cutoff := time.Now().Add(-w.threshold)
	var bookings []models.Booking
	err := w.db.
		Where("status IN ?", []types.BookingStatus{types.BOOKING_PENDING, types.BOOKING_PENDING_PAYMENT}).
		Where("updated_at < ?", cutoff).
		Find(&bookings).
		Error
	if err != nil {
		return 0, err
	}
	swept := 0
	for i := range bookings {
		if err := w.sweep(&bookings[i]); err != nil {
			log.Printf("[%s] booking %d: %s\n", w.Name(), bookings[i].ID, err.Error())
			continue
		}
		swept++
	}
	if swept > 0 {
		log.Printf("[%s] canceled %d expired bookings\n", w.Name(), swept)
	}
	return swept, nil
}

func (w *ExpiredBookingSweeper) sweep(booking *models.Booking) error {
	err := w.db.Transaction(func(tx *gorm.DB) error {
		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND status IN ?", booking.ID, []types.BookingStatus{types.BOOKING_PENDING, types.BOOKING_PENDING_PAYMENT}).
			Update("status", types.BOOKING_CANCELED)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// paid or canceled while we were scanning
			return nil
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
			Where("id = ? AND status = ?", booking.PropertyID, types.PROPERTY_PENDING_BOOKING).
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
		return nil
	})
	if err != nil {
		return err
	}
	w.events.Publish(context.Background(), &services.Event{
		Name:    "booking.expired",
		UserID:  booking.RenterID,
		Title:   "Booking expired",
		Message: fmt.Sprintf("Booking [%d] was canceled because the payment was never completed", booking.ID),
		Data:    types.JSONB{"booking_id": booking.ID},
	})
	return nil
}
