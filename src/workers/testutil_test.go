package workers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"rms/src/models"
	"rms/src/services"
	"rms/src/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	inner, err := gdb.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database alive and serializes writers
	inner.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.Unit{},
		&models.Booking{},
		&models.Transaction{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.Notification{},
	))
	return gdb
}

type fakeGateway struct {
	mu        sync.Mutex
	verifyErr error
	sessions  map[string]*services.PaymentVerification
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]*services.PaymentVerification{}}
}

func (g *fakeGateway) InitializePayment(ctx context.Context, email string, amount decimal.Decimal, currency string, reference string) (*services.PaymentInitialization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	gatewayRef := "cs_" + reference
	g.sessions[gatewayRef] = &services.PaymentVerification{
		GatewayReference: gatewayRef,
		Status:           "unpaid",
		Amount:           amount.Mul(decimal.NewFromInt(100)).IntPart(),
		Currency:         currency,
	}
	return &services.PaymentInitialization{
		AuthorizationURL: "https://pay.example/" + reference,
		GatewayReference: gatewayRef,
	}, nil
}

func (g *fakeGateway) VerifyPayment(ctx context.Context, gatewayReference string) (*services.PaymentVerification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	v, ok := g.sessions[gatewayReference]
	if !ok {
		return nil, fmt.Errorf("no such session %s", gatewayReference)
	}
	return v, nil
}

func (g *fakeGateway) markPaid(gatewayReference string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if v, ok := g.sessions[gatewayReference]; ok {
		v.Paid = true
		v.Status = "paid"
	}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*services.Event
}

func (p *fakePublisher) Publish(ctx context.Context, event *services.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *fakePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.events))
	for _, e := range p.events {
		names = append(names, e.Name)
	}
	return names
}

type fixture struct {
	db       *gorm.DB
	gateway  *fakeGateway
	events   *fakePublisher
	bookings *services.BookingService
	renter   models.User
	unit     models.Unit
}

// newFixture Wires a booking service over an in-memory DB with one listed
// property and returns everything the workers need to reconcile against it.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := newTestDB(t)
	gateway := newFakeGateway()
	events := &fakePublisher{}
	wallets := services.NewWalletService(gdb, events)
	bookings := services.NewBookingService(gdb, gateway, services.NewFeeService(decimal.NewFromInt(5)), wallets, events)

	owner := models.User{Name: "Olivia Owner", Email: "owner@example.com", Role: "lister"}
	require.NoError(t, gdb.Create(&owner).Error)
	renter := models.User{Name: "Rita Renter", Email: "renter@example.com", Role: "renter"}
	require.NoError(t, gdb.Create(&renter).Error)
	property := models.Property{
		Name:     "Seaside Flats",
		OwnerID:  owner.ID,
		Status:   types.PROPERTY_ACTIVE,
		Amount:   decimal.NewFromInt(30000),
		Currency: "usd",
	}
	require.NoError(t, gdb.Create(&property).Error)
	unit := models.Unit{
		PropertyID: property.ID,
		Label:      "A-1",
		Status:     types.UNIT_AVAILABLE,
		Amount:     decimal.NewFromInt(30000),
	}
	require.NoError(t, gdb.Create(&unit).Error)

	return &fixture{
		db:       gdb,
		gateway:  gateway,
		events:   events,
		bookings: bookings,
		renter:   renter,
		unit:     unit,
	}
}

// createPendingBooking Creates a direct booking and returns it together with
// the reference of its pending escrow transaction.
func (f *fixture) createPendingBooking(t *testing.T) (*models.Booking, string) {
	t.Helper()
	start := time.Date(2025, time.July, 1, 12, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 10)
	res := f.bookings.CreateBooking(&types.CreateBookingRequestBody{
		PropertyID: f.unit.PropertyID,
		UnitIDs:    []uint{f.unit.ID},
		StartDate:  start,
		EndDate:    &end,
	}, f.renter.ID)
	require.True(t, res.Success, res.Message)
	data := res.Data.(map[string]any)
	return data["booking"].(*models.Booking), data["reference"].(string)
}

// backdateTransaction Rewinds created_at with UpdateColumn so the gorm
// auto-timestamps stay out of the way.
func (f *fixture) backdateTransaction(t *testing.T, reference string, age time.Duration) {
	t.Helper()
	err := f.db.
		Model(&models.Transaction{}).
		Where("reference = ?", reference).
		UpdateColumn("created_at", time.Now().Add(-age)).
		Error
	require.NoError(t, err)
}

func (f *fixture) backdateBooking(t *testing.T, bookingID uint, age time.Duration) {
	t.Helper()
	err := f.db.
		Model(&models.Booking{}).
		Where("id = ?", bookingID).
		UpdateColumn("updated_at", time.Now().Add(-age)).
		Error
	require.NoError(t, err)
}

func (f *fixture) reloadBooking(t *testing.T, id uint) models.Booking {
	t.Helper()
	var booking models.Booking
	require.NoError(t, f.db.Where(&models.Booking{ID: id}).First(&booking).Error)
	return booking
}

func (f *fixture) reloadUnit(t *testing.T, id uint) models.Unit {
	t.Helper()
	var unit models.Unit
	require.NoError(t, f.db.Where(&models.Unit{ID: id}).First(&unit).Error)
	return unit
}

func (f *fixture) reloadTransaction(t *testing.T, reference string) models.Transaction {
	t.Helper()
	var txn models.Transaction
	require.NoError(t, f.db.Where(&models.Transaction{Reference: reference}).First(&txn).Error)
	return txn
}
