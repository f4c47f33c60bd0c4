package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"rms/src/models"
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
	initErr   error
	verifyErr error
	sessions  map[string]*PaymentVerification
	initCalls []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]*PaymentVerification{}}
}

func (g *fakeGateway) InitializePayment(ctx context.Context, email string, amount decimal.Decimal, currency string, reference string) (*PaymentInitialization, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initErr != nil {
		return nil, g.initErr
	}
	g.initCalls = append(g.initCalls, reference)
	gatewayRef := "cs_" + reference
	g.sessions[gatewayRef] = &PaymentVerification{
		GatewayReference: gatewayRef,
		Status:           "unpaid",
		Amount:           amount.Mul(decimal.NewFromInt(100)).IntPart(),
		Currency:         currency,
	}
	return &PaymentInitialization{
		AuthorizationURL: "https://pay.example/" + reference,
		GatewayReference: gatewayRef,
	}, nil
}

func (g *fakeGateway) VerifyPayment(ctx context.Context, gatewayReference string) (*PaymentVerification, error) {
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
	events []*Event
}

func (p *fakePublisher) Publish(ctx context.Context, event *Event) {
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
	wallets  *WalletService
	bookings *BookingService
	owner    models.User
	renter   models.User
	property models.Property
	unit     models.Unit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := newTestDB(t)
	gateway := newFakeGateway()
	events := &fakePublisher{}
	wallets := NewWalletService(gdb, events)
	bookings := NewBookingService(gdb, gateway, NewFeeService(decimal.NewFromInt(5)), wallets, events)

	f := &fixture{
		db:       gdb,
		gateway:  gateway,
		events:   events,
		wallets:  wallets,
		bookings: bookings,
		owner:    models.User{Name: "Olivia Owner", Email: "owner@example.com", Role: "lister"},
		renter:   models.User{Name: "Rita Renter", Email: "renter@example.com", Role: "renter"},
	}
	require.NoError(t, gdb.Create(&f.owner).Error)
	require.NoError(t, gdb.Create(&f.renter).Error)
	f.property = models.Property{
		Name:     "Seaside Flats",
		OwnerID:  f.owner.ID,
		Status:   types.PROPERTY_ACTIVE,
		Amount:   decimal.NewFromInt(30000),
		Currency: "usd",
	}
	require.NoError(t, gdb.Create(&f.property).Error)
	f.unit = models.Unit{
		PropertyID: f.property.ID,
		Label:      "A-1",
		Status:     types.UNIT_AVAILABLE,
		Amount:     decimal.NewFromInt(30000),
	}
	require.NoError(t, gdb.Create(&f.unit).Error)
	return f
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
