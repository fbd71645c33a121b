// services/dispute_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"escrow-backend/models"
)

// DisputeOutcome reports a filed dispute and the parties notified about it.
type DisputeOutcome struct {
	EventID         uint `json:"event_id"`
	EscrowID        uint `json:"escrow_id"`
	NotifiedGuestID uint `json:"notified_guest_id"`
	NotifiedHostID  uint `json:"notified_host_id"`
}

// DisputeService records disputes against escrows. It never moves money and
// never resolves a dispute; resolution is a separate workflow.
type DisputeService struct {
	DB *gorm.DB
}

func NewDisputeService(db *gorm.DB) *DisputeService {
	return &DisputeService{DB: db}
}

// File appends a dispute event for the escrow and notifies both parties.
// The dispute counts as filed once the event row is durable; notification
// failures are logged and swallowed.
func (s *DisputeService) File(ctx context.Context, escrowID uint, reason string) (DisputeOutcome, error) {
	if reason == "" {
		return DisputeOutcome{}, ErrReasonRequired
	}

	var escrow models.Escrow
	if err := s.DB.First(&escrow, escrowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DisputeOutcome{}, ErrEscrowNotFound
		}
		return DisputeOutcome{}, fmt.Errorf("failed to load escrow %d: %w", escrowID, err)
	}

	var booking models.Booking
	if err := s.DB.First(&booking, escrow.BookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DisputeOutcome{}, ErrBookingNotFound
		}
		return DisputeOutcome{}, fmt.Errorf("failed to load booking %d: %w", escrow.BookingID, err)
	}

	// Both parties must resolve to real users before anything is written.
	var guest, host models.User
	if err := s.DB.First(&guest, booking.GuestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DisputeOutcome{}, ErrPartyNotFound
		}
		return DisputeOutcome{}, fmt.Errorf("failed to load guest %d: %w", booking.GuestID, err)
	}
	if err := s.DB.First(&host, booking.HostID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DisputeOutcome{}, ErrPartyNotFound
		}
		return DisputeOutcome{}, fmt.Errorf("failed to load host %d: %w", booking.HostID, err)
	}

	event := models.DisputeEvent{
		EscrowID: escrow.ID,
		Reason:   reason,
		FiledAt:  time.Now().UTC(),
		Metadata: datatypes.JSON([]byte(fmt.Sprintf(`{"booking_id":%d}`, booking.ID))),
	}
	if err := s.DB.WithContext(ctx).Create(&event).Error; err != nil {
		return DisputeOutcome{}, fmt.Errorf("failed to record dispute: %w", err)
	}

	// held -> disputed. Zero rows affected means the escrow was already
	// disputed or released; the event above still stands.
	if res := s.DB.Model(&models.Escrow{}).
		Where("id = ? AND status = ?", escrow.ID, models.EscrowStatusHeld).
		Update("status", models.EscrowStatusDisputed); res.Error != nil {
		logrus.WithError(res.Error).WithField("escrow_id", escrow.ID).
			Warn("failed to flag escrow as disputed")
	}
	if err := s.DB.Model(&models.Booking{}).
		Where("id = ? AND status = ?", booking.ID, models.BookingStatusActive).
		Update("status", models.BookingStatusDisputed).Error; err != nil {
		logrus.WithError(err).WithField("booking_id", booking.ID).
			Warn("failed to flag booking as disputed")
	}

	s.notifyParty(guest.ID, escrow.ID, reason, "A dispute was filed for your booking")
	s.notifyParty(host.ID, escrow.ID, reason, "A dispute was filed against your booking")

	return DisputeOutcome{
		EventID:         event.ID,
		EscrowID:        escrow.ID,
		NotifiedGuestID: guest.ID,
		NotifiedHostID:  host.ID,
	}, nil
}

func (s *DisputeService) notifyParty(userID, escrowID uint, reason, title string) {
	notification := models.Notification{
		UserID:   userID,
		Kind:     models.NotificationKindDisputeFiled,
		Title:    title,
		Body:     fmt.Sprintf("Reason: %s", reason),
		Metadata: datatypes.JSON([]byte(fmt.Sprintf(`{"escrow_id":%d}`, escrowID))),
	}
	if err := s.DB.Create(&notification).Error; err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":   userID,
			"escrow_id": escrowID,
		}).Warn("failed to write dispute notification")
	}
}
