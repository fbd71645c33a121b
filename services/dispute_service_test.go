package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"escrow-backend/models"
)

func TestDisputeService_File(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*DisputeService, models.Escrow, models.User, models.User) {
		db := newTestDB(t)
		svc := NewDisputeService(db)
		guest := seedUser(t, db, models.UserRoleGuest)
		host := seedUser(t, db, models.UserRoleHost)
		booking := seedBooking(t, db, guest.ID, host.ID)
		escrow := seedEscrow(t, db, booking.ID, models.EscrowStatusHeld, 150)
		return svc, escrow, guest, host
	}

	t.Run("files the dispute and notifies both parties", func(t *testing.T) {
		svc, escrow, guest, host := setup(t)

		outcome, err := svc.File(ctx, escrow.ID, "property not as described")
		require.NoError(t, err)
		assert.Equal(t, guest.ID, outcome.NotifiedGuestID)
		assert.Equal(t, host.ID, outcome.NotifiedHostID)

		var eventCount int64
		require.NoError(t, svc.DB.Model(&models.DisputeEvent{}).
			Where("escrow_id = ?", escrow.ID).Count(&eventCount).Error)
		assert.Equal(t, int64(1), eventCount)

		var notifications []models.Notification
		require.NoError(t, svc.DB.Where("kind = ?", models.NotificationKindDisputeFiled).
			Find(&notifications).Error)
		assert.Len(t, notifications, 2)

		var updated models.Escrow
		require.NoError(t, svc.DB.First(&updated, escrow.ID).Error)
		assert.Equal(t, models.EscrowStatusDisputed, updated.Status)
	})

	t.Run("dispute stands even when notification writes fail", func(t *testing.T) {
		svc, escrow, guest, host := setup(t)
		require.NoError(t, svc.DB.Migrator().DropTable(&models.Notification{}))

		outcome, err := svc.File(ctx, escrow.ID, "double charged")
		require.NoError(t, err)
		assert.Equal(t, guest.ID, outcome.NotifiedGuestID)
		assert.Equal(t, host.ID, outcome.NotifiedHostID)

		var eventCount int64
		require.NoError(t, svc.DB.Model(&models.DisputeEvent{}).
			Where("escrow_id = ?", escrow.ID).Count(&eventCount).Error)
		assert.Equal(t, int64(1), eventCount)
	})

	t.Run("released escrow stays released", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewDisputeService(db)
		guest := seedUser(t, db, models.UserRoleGuest)
		host := seedUser(t, db, models.UserRoleHost)
		booking := seedBooking(t, db, guest.ID, host.ID)
		escrow := seedEscrow(t, db, booking.ID, models.EscrowStatusReleased, 150)

		_, err := svc.File(ctx, escrow.ID, "late complaint")
		require.NoError(t, err)

		// The event is appended but the terminal status never moves back.
		var updated models.Escrow
		require.NoError(t, db.First(&updated, escrow.ID).Error)
		assert.Equal(t, models.EscrowStatusReleased, updated.Status)
	})

	t.Run("missing escrow is a hard not found", func(t *testing.T) {
		svc, _, _, _ := setup(t)
		_, err := svc.File(ctx, 99999, "anything")
		assert.ErrorIs(t, err, ErrEscrowNotFound)
	})

	t.Run("missing party is a hard not found", func(t *testing.T) {
		db := newTestDB(t)
		svc := NewDisputeService(db)
		booking := seedBooking(t, db, 777, 888) // users never created
		escrow := seedEscrow(t, db, booking.ID, models.EscrowStatusHeld, 150)

		_, err := svc.File(ctx, escrow.ID, "anything")
		assert.ErrorIs(t, err, ErrPartyNotFound)

		var eventCount int64
		require.NoError(t, db.Model(&models.DisputeEvent{}).Count(&eventCount).Error)
		assert.Equal(t, int64(0), eventCount)
	})

	t.Run("empty reason is rejected", func(t *testing.T) {
		svc, escrow, _, _ := setup(t)
		_, err := svc.File(ctx, escrow.ID, "")
		assert.ErrorIs(t, err, ErrReasonRequired)
	})
}
