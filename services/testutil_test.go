package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"escrow-backend/config"
	"escrow-backend/models"
	"escrow-backend/processor"
)

// newTestDB opens a throwaway sqlite database with the production schema.
// A file under t.TempDir() (not :memory:) so concurrent connections see the
// same data, which the race tests depend on.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)", filepath.Join(t.TempDir(), "escrow_test.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	return db
}

// fakeProcessor implements processor.Client in memory. It deduplicates by
// group key the way a real processor honors idempotency keys: repeating a
// call with the same key returns the already-created transfer.
type fakeProcessor struct {
	mu        sync.Mutex
	calls     int
	transfers map[string]processor.Transfer

	// failDestinations rejects specific destination accounts.
	failDestinations map[string]error
	// failWith, when set, is returned from every CreateTransfer call.
	failWith error
	// recordBeforeFailing simulates a timeout after the processor already
	// committed the transfer: the transfer is stored, then failWith returned.
	recordBeforeFailing bool
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		transfers:        make(map[string]processor.Transfer),
		failDestinations: make(map[string]error),
	}
}

func (f *fakeProcessor) CreateTransfer(_ context.Context, req processor.TransferRequest) (processor.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if err, ok := f.failDestinations[req.Destination]; ok {
		return processor.Transfer{}, err
	}

	if existing, ok := f.transfers[req.GroupKey]; ok {
		if f.failWith != nil && !f.recordBeforeFailing {
			return processor.Transfer{}, f.failWith
		}
		return existing, nil
	}

	tr := processor.Transfer{
		ID:          "tr_" + uuid.NewString(),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Destination: req.Destination,
		GroupKey:    req.GroupKey,
	}
	if f.failWith != nil {
		if f.recordBeforeFailing {
			f.transfers[req.GroupKey] = tr
		}
		return processor.Transfer{}, f.failWith
	}
	f.transfers[req.GroupKey] = tr
	return tr, nil
}

func (f *fakeProcessor) LookupTransfer(_ context.Context, groupKey string) (processor.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tr, ok := f.transfers[groupKey]; ok {
		return tr, nil
	}
	return processor.Transfer{}, processor.ErrTransferNotFound
}

func (f *fakeProcessor) uniqueTransfers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transfers)
}

func (f *fakeProcessor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ---------------------------
// Seed helpers
// ---------------------------

func seedUser(t *testing.T, db *gorm.DB, role string) models.User {
	t.Helper()
	user := models.User{FullName: role + " user", Email: uuid.NewString() + "@example.com", Role: role}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func seedBooking(t *testing.T, db *gorm.DB, guestID, hostID uint) models.Booking {
	t.Helper()
	booking := models.Booking{
		GuestID:       guestID,
		HostID:        hostID,
		ReferenceCode: uuid.NewString()[:8],
		Status:        models.BookingStatusActive,
	}
	require.NoError(t, db.Create(&booking).Error)
	return booking
}

func seedEscrow(t *testing.T, db *gorm.DB, bookingID uint, status string, held float64) models.Escrow {
	t.Helper()
	escrow := models.Escrow{
		BookingID:  bookingID,
		Status:     status,
		HeldAmount: held,
		Currency:   "usd",
	}
	require.NoError(t, db.Create(&escrow).Error)
	return escrow
}

func seedCheckIn(t *testing.T, db *gorm.DB, bookingID uint, at time.Time) models.CheckIn {
	t.Helper()
	checkIn := models.CheckIn{BookingID: bookingID, CheckedInAt: at}
	require.NoError(t, db.Create(&checkIn).Error)
	return checkIn
}

func seedAccount(t *testing.T, db *gorm.DB, hostID uint, ready bool) models.ConnectedAccount {
	t.Helper()
	account := models.ConnectedAccount{
		HostID:             hostID,
		ProcessorAccountID: "acct_" + uuid.NewString()[:8],
		ChargesEnabled:     ready,
		PayoutsEnabled:     ready,
	}
	require.NoError(t, db.Create(&account).Error)
	return account
}

func seedPayout(t *testing.T, db *gorm.DB, bookingID, hostID uint, amount float64, status string, scheduledAt time.Time) models.Payout {
	t.Helper()
	payout := models.Payout{
		BookingID:   bookingID,
		HostID:      hostID,
		Amount:      amount,
		Currency:    "usd",
		Status:      status,
		ScheduledAt: scheduledAt,
	}
	require.NoError(t, db.Create(&payout).Error)
	return payout
}
