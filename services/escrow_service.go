// services/escrow_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"escrow-backend/models"
	"escrow-backend/processor"
)

// ReleaseHoldWindow is how long after check-in escrow stays held before it
// becomes releasable. The boundary instant itself counts as due.
const ReleaseHoldWindow = 24 * time.Hour

const (
	DecisionNoEscrow        = "no_escrow"
	DecisionAlreadyReleased = "already_released"
	DecisionDisputed        = "disputed"
	DecisionNoCheckIn       = "no_check_in"
	DecisionNotDue          = "not_due"
	DecisionDue             = "due"
)

// ReleaseDecision is the evaluator's verdict for one booking at one instant.
// Every code except "due" is an expected, successful outcome for callers.
type ReleaseDecision struct {
	Code           string     `json:"code"`
	HoursRemaining int        `json:"hours_remaining,omitempty"`
	DueAt          *time.Time `json:"due_at,omitempty"`
}

// ReleaseOutcome is what TryRelease reports back: either the decision that
// stopped it, or the release that happened.
type ReleaseOutcome struct {
	Decision ReleaseDecision `json:"decision"`
	Released bool            `json:"released"`
	// RaceLost is set when a concurrent caller won the conditional update;
	// the money moved exactly once either way.
	RaceLost bool            `json:"-"`
	Transfer *TransferResult `json:"transfer,omitempty"`
	Escrow   *models.Escrow  `json:"escrow,omitempty"`
}

// EscrowService owns the escrow ledger: the release trigger evaluator, the
// release orchestration, and the explicit release operation.
type EscrowService struct {
	DB        *gorm.DB
	Transfers *TransferService
}

func NewEscrowService(db *gorm.DB, transfers *TransferService) *EscrowService {
	return &EscrowService{DB: db, Transfers: transfers}
}

// EscrowByBookingID fetches the escrow row for a booking.
func (s *EscrowService) EscrowByBookingID(bookingID uint) (models.Escrow, error) {
	var escrow models.Escrow
	if err := s.DB.Where("booking_id = ?", bookingID).First(&escrow).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Escrow{}, ErrEscrowNotFound
		}
		return models.Escrow{}, fmt.Errorf("failed to load escrow for booking %d: %w", bookingID, err)
	}
	return escrow, nil
}

func (s *EscrowService) checkInByBookingID(bookingID uint) (models.CheckIn, error) {
	var checkIn models.CheckIn
	err := s.DB.Where("booking_id = ?", bookingID).First(&checkIn).Error
	return checkIn, err
}

func (s *EscrowService) accountByHostID(hostID uint) (models.ConnectedAccount, error) {
	var account models.ConnectedAccount
	err := s.DB.Where("host_id = ?", hostID).First(&account).Error
	return account, err
}

// Evaluate decides whether a booking's escrow is due for release at `now`.
// Pure with respect to the stored CheckIn and Escrow rows: it never writes.
func (s *EscrowService) Evaluate(bookingID uint, now time.Time) (ReleaseDecision, error) {
	escrow, err := s.EscrowByBookingID(bookingID)
	if err != nil {
		if errors.Is(err, ErrEscrowNotFound) {
			return ReleaseDecision{Code: DecisionNoEscrow}, nil
		}
		return ReleaseDecision{}, err
	}

	switch escrow.Status {
	case models.EscrowStatusReleased:
		return ReleaseDecision{Code: DecisionAlreadyReleased}, nil
	case models.EscrowStatusDisputed:
		return ReleaseDecision{Code: DecisionDisputed}, nil
	}

	checkIn, err := s.checkInByBookingID(bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ReleaseDecision{Code: DecisionNoCheckIn}, nil
		}
		return ReleaseDecision{}, fmt.Errorf("failed to load check-in for booking %d: %w", bookingID, err)
	}

	dueAt := checkIn.CheckedInAt.Add(ReleaseHoldWindow)
	if now.Before(dueAt) {
		remaining := int(math.Ceil(dueAt.Sub(now).Hours()))
		return ReleaseDecision{Code: DecisionNotDue, HoursRemaining: remaining, DueAt: &dueAt}, nil
	}
	return ReleaseDecision{Code: DecisionDue, DueAt: &dueAt}, nil
}

// TryRelease runs the evaluator and, when due, moves the held amount to the
// host and marks the escrow released. Every non-due decision is returned
// verbatim as a successful outcome.
func (s *EscrowService) TryRelease(ctx context.Context, bookingID uint, now time.Time) (ReleaseOutcome, error) {
	decision, err := s.Evaluate(bookingID, now)
	if err != nil {
		return ReleaseOutcome{}, err
	}
	if decision.Code != DecisionDue {
		return ReleaseOutcome{Decision: decision}, nil
	}

	escrow, err := s.EscrowByBookingID(bookingID)
	if err != nil {
		return ReleaseOutcome{}, err
	}
	var booking models.Booking
	if err := s.DB.First(&booking, escrow.BookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ReleaseOutcome{}, ErrBookingNotFound
		}
		return ReleaseOutcome{}, fmt.Errorf("failed to load booking %d: %w", escrow.BookingID, err)
	}
	account, err := s.accountByHostID(booking.HostID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ReleaseOutcome{}, ErrAccountNotReady
		}
		return ReleaseOutcome{}, fmt.Errorf("failed to load connected account for host %d: %w", booking.HostID, err)
	}
	if !account.Eligible() {
		return ReleaseOutcome{}, ErrAccountNotReady
	}

	transfer, err := s.executeEscrowTransfer(ctx, escrow, booking, account, escrow.HeldAmount)
	if err != nil {
		return ReleaseOutcome{}, err
	}

	return s.settleRelease(escrow, booking.ID, transfer, now, models.EscrowStatusHeld)
}

// Release is the explicit release operation: move `amount` of the escrow's
// held funds to the host regardless of the check-in clock. Used by support
// tooling and dispute resolution. Rejects amounts above held_amount.
func (s *EscrowService) Release(ctx context.Context, escrowID uint, amount float64, reason string) (ReleaseOutcome, error) {
	var escrow models.Escrow
	if err := s.DB.First(&escrow, escrowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ReleaseOutcome{}, ErrEscrowNotFound
		}
		return ReleaseOutcome{}, fmt.Errorf("failed to load escrow %d: %w", escrowID, err)
	}
	if escrow.Status == models.EscrowStatusReleased {
		return ReleaseOutcome{}, ErrEscrowReleased
	}
	if amount <= 0 {
		return ReleaseOutcome{}, ErrInvalidAmount
	}
	if amount > escrow.HeldAmount {
		return ReleaseOutcome{}, ErrAmountExceedsHeld
	}

	var booking models.Booking
	if err := s.DB.First(&booking, escrow.BookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ReleaseOutcome{}, ErrBookingNotFound
		}
		return ReleaseOutcome{}, fmt.Errorf("failed to load booking %d: %w", escrow.BookingID, err)
	}
	account, err := s.accountByHostID(booking.HostID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ReleaseOutcome{}, ErrAccountNotReady
		}
		return ReleaseOutcome{}, fmt.Errorf("failed to load connected account for host %d: %w", booking.HostID, err)
	}
	if !account.Eligible() {
		return ReleaseOutcome{}, ErrAccountNotReady
	}

	transfer, err := s.executeEscrowTransfer(ctx, escrow, booking, account, amount)
	if err != nil {
		return ReleaseOutcome{}, err
	}

	if reason != "" {
		logrus.WithFields(logrus.Fields{
			"escrow_id": escrow.ID,
			"reason":    reason,
		}).Info("explicit escrow release")
	}

	return s.settleRelease(escrow, booking.ID, transfer, time.Now().UTC(), escrow.Status)
}

// executeEscrowTransfer runs the transfer with the escrow id as group key and
// reconciles an ambiguous outcome once before giving up.
func (s *EscrowService) executeEscrowTransfer(ctx context.Context, escrow models.Escrow, booking models.Booking, account models.ConnectedAccount, amount float64) (TransferResult, error) {
	groupKey := fmt.Sprintf("escrow_%d", escrow.ID)
	metadata := map[string]string{
		"booking_id": fmt.Sprintf("%d", booking.ID),
		"escrow_id":  fmt.Sprintf("%d", escrow.ID),
		"host_id":    fmt.Sprintf("%d", booking.HostID),
	}

	transfer, err := s.Transfers.Execute(ctx, amount, escrow.Currency, account.ProcessorAccountID, groupKey, metadata)
	if err == nil {
		return transfer, nil
	}
	if !processor.IsAmbiguous(err) {
		return TransferResult{}, err
	}

	// Timeout without a definitive answer: ask the processor whether the
	// transfer landed before reporting failure. Never blind-retry.
	reconciled, lookupErr := s.Transfers.Reconcile(ctx, groupKey)
	if lookupErr != nil {
		if errors.Is(lookupErr, processor.ErrTransferNotFound) {
			return TransferResult{}, err
		}
		logrus.WithError(lookupErr).WithField("group_key", groupKey).Warn("transfer reconciliation failed")
		return TransferResult{}, err
	}
	logrus.WithFields(logrus.Fields{
		"group_key":   groupKey,
		"transfer_id": reconciled.TransferID,
	}).Info("ambiguous transfer reconciled as success")
	reconciled.Amount = amount
	return reconciled, nil
}

// settleRelease performs the terminal ledger write. The update is conditioned
// on the status observed before the transfer; zero rows affected means a
// concurrent caller already released, which is success, not an error.
func (s *EscrowService) settleRelease(escrow models.Escrow, bookingID uint, transfer TransferResult, now time.Time, expectedStatus string) (ReleaseOutcome, error) {
	res := s.DB.Model(&models.Escrow{}).
		Where("id = ? AND status = ?", escrow.ID, expectedStatus).
		Updates(map[string]interface{}{
			"status":          models.EscrowStatusReleased,
			"released_amount": transfer.Amount,
			"release_date":    now,
			"transfer_ref":    transfer.TransferID,
		})
	if res.Error != nil {
		// Money moved but the ledger write failed: this needs an operator.
		logrus.WithError(res.Error).WithFields(logrus.Fields{
			"escrow_id":   escrow.ID,
			"transfer_id": transfer.TransferID,
		}).Error("escrow release ledger update failed after successful transfer")
		return ReleaseOutcome{}, fmt.Errorf("failed to mark escrow %d released: %w", escrow.ID, res.Error)
	}
	raceLost := res.RowsAffected == 0
	if raceLost {
		logrus.WithField("escrow_id", escrow.ID).Info("escrow already released by a concurrent caller")
	}

	// Secondary effect: the booking status is cosmetic next to the ledger.
	// A failure here is logged and swallowed, never rolled back.
	if err := s.DB.Model(&models.Booking{}).
		Where("id = ?", bookingID).
		Update("status", models.BookingStatusCompleted).Error; err != nil {
		logrus.WithError(err).WithField("booking_id", bookingID).
			Warn("failed to mark booking completed after escrow release")
	}

	var updated models.Escrow
	if err := s.DB.First(&updated, escrow.ID).Error; err != nil {
		updated = escrow
		updated.Status = models.EscrowStatusReleased
	}

	return ReleaseOutcome{
		Decision: ReleaseDecision{Code: DecisionDue},
		Released: true,
		RaceLost: raceLost,
		Transfer: &transfer,
		Escrow:   &updated,
	}, nil
}
