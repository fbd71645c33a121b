package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"escrow-backend/config"
	"escrow-backend/controllers"
	"escrow-backend/models"
	"escrow-backend/processor"
	"escrow-backend/routes"
	"escrow-backend/services"
)

type stubProcessor struct{}

func (stubProcessor) CreateTransfer(_ context.Context, req processor.TransferRequest) (processor.Transfer, error) {
	return processor.Transfer{
		ID:          "tr_stub",
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Destination: req.Destination,
		GroupKey:    req.GroupKey,
	}, nil
}

func (stubProcessor) LookupTransfer(_ context.Context, _ string) (processor.Transfer, error) {
	return processor.Transfer{}, processor.ErrTransferNotFound
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)", filepath.Join(t.TempDir(), "api_test.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	transfers := services.NewTransferService(stubProcessor{})
	router := routes.SetupRouter(
		controllers.NewEscrowController(services.NewEscrowService(db, transfers)),
		controllers.NewDisputeController(services.NewDisputeService(db)),
		controllers.NewPayoutController(services.NewPayoutService(db, transfers, 2)),
	)
	return router, db
}

type envelope struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
	Error   string                 `json:"error"`
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestTriggerReleaseEndpoint(t *testing.T) {
	t.Run("no escrow is a successful informative outcome", func(t *testing.T) {
		router, db := newTestRouter(t)
		booking := models.Booking{GuestID: 1, HostID: 2, Status: models.BookingStatusActive}
		require.NoError(t, db.Create(&booking).Error)

		rec, env := doJSON(t, router, http.MethodPost, "/api/escrows/trigger-release",
			map[string]interface{}{"booking_id": booking.ID})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)
		assert.Equal(t, false, env.Data["released"])
		assert.Equal(t, services.DecisionNoEscrow, env.Data["decision"])
	})

	t.Run("not due reports hours remaining and due timestamp", func(t *testing.T) {
		router, db := newTestRouter(t)
		booking := models.Booking{GuestID: 1, HostID: 2, Status: models.BookingStatusActive}
		require.NoError(t, db.Create(&booking).Error)
		require.NoError(t, db.Create(&models.Escrow{
			BookingID: booking.ID, Status: models.EscrowStatusHeld, HeldAmount: 100, Currency: "usd",
		}).Error)
		require.NoError(t, db.Create(&models.CheckIn{
			BookingID: booking.ID, CheckedInAt: time.Now().UTC().Add(-time.Hour),
		}).Error)

		rec, env := doJSON(t, router, http.MethodPost, "/api/escrows/trigger-release",
			map[string]interface{}{"booking_id": booking.ID})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, env.Success)
		assert.Equal(t, services.DecisionNotDue, env.Data["decision"])
		assert.Equal(t, float64(23), env.Data["hours_remaining"])
		assert.NotEmpty(t, env.Data["due_at"])
	})

	t.Run("missing booking_id is a validation error", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec, env := doJSON(t, router, http.MethodPost, "/api/escrows/trigger-release", map[string]interface{}{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, env.Success)
		assert.NotEmpty(t, env.Error)
	})
}

func TestFileDisputeEndpoint(t *testing.T) {
	t.Run("files a dispute and lists both parties", func(t *testing.T) {
		router, db := newTestRouter(t)
		guest := models.User{FullName: "Guest", Role: models.UserRoleGuest}
		host := models.User{FullName: "Host", Role: models.UserRoleHost}
		require.NoError(t, db.Create(&guest).Error)
		require.NoError(t, db.Create(&host).Error)
		booking := models.Booking{GuestID: guest.ID, HostID: host.ID, Status: models.BookingStatusActive}
		require.NoError(t, db.Create(&booking).Error)
		escrow := models.Escrow{BookingID: booking.ID, Status: models.EscrowStatusHeld, HeldAmount: 100, Currency: "usd"}
		require.NoError(t, db.Create(&escrow).Error)

		rec, env := doJSON(t, router, http.MethodPost, "/api/disputes",
			map[string]interface{}{"escrow_id": escrow.ID, "reason": "damage claim"})

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.True(t, env.Success)
		assert.Equal(t, float64(guest.ID), env.Data["notified_guest_id"])
		assert.Equal(t, float64(host.ID), env.Data["notified_host_id"])
	})

	t.Run("unknown escrow is 404", func(t *testing.T) {
		router, _ := newTestRouter(t)
		rec, env := doJSON(t, router, http.MethodPost, "/api/disputes",
			map[string]interface{}{"escrow_id": 12345, "reason": "anything"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.False(t, env.Success)
		assert.Equal(t, services.ErrEscrowNotFound.Error(), env.Error)
	})
}

func TestRunScheduledPayoutsEndpoint(t *testing.T) {
	router, db := newTestRouter(t)
	host := models.User{FullName: "Host", Role: models.UserRoleHost}
	require.NoError(t, db.Create(&host).Error)
	booking := models.Booking{GuestID: 1, HostID: host.ID, Status: models.BookingStatusCompleted}
	require.NoError(t, db.Create(&booking).Error)
	require.NoError(t, db.Create(&models.ConnectedAccount{
		HostID: host.ID, ProcessorAccountID: "acct_h", ChargesEnabled: true, PayoutsEnabled: true,
	}).Error)
	require.NoError(t, db.Create(&models.Payout{
		BookingID: booking.ID, HostID: host.ID, Amount: 42, Currency: "usd",
		Status: models.PayoutStatusPending, ScheduledAt: time.Now().UTC().Add(-time.Minute),
	}).Error)

	rec, env := doJSON(t, router, http.MethodPost, "/api/payouts/run", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, float64(1), env.Data["processed"])
	assert.Equal(t, float64(0), env.Data["failed"])
	assert.Equal(t, float64(1), env.Data["total"])
}
