// services/payout_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"

	"escrow-backend/models"
	"escrow-backend/processor"
)

const (
	PayoutItemPaid    = "paid"
	PayoutItemFailed  = "failed"
	PayoutItemSkipped = "skipped"
)

// PayoutItemResult is one payout's fate within a batch run.
type PayoutItemResult struct {
	PayoutID    uint   `json:"payout_id"`
	Status      string `json:"status"`
	TransferRef string `json:"transfer_ref,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BatchResult aggregates one scheduler run. Total counts every due pending
// payout the run saw, including the ones it skipped as ineligible.
type BatchResult struct {
	Processed int                `json:"processed"`
	Failed    int                `json:"failed"`
	Total     int                `json:"total"`
	Items     []PayoutItemResult `json:"items"`
}

// PayoutResult is the outcome of processing a single payout.
type PayoutResult struct {
	PayoutID    uint      `json:"payout_id"`
	Status      string    `json:"status"`
	TransferRef string    `json:"transfer_ref"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	PaidAt      time.Time `json:"paid_at"`
}

// PayoutService drives disbursements from the payout ledger through the
// transfer executor, one conditional claim at a time.
type PayoutService struct {
	DB        *gorm.DB
	Transfers *TransferService
	// Concurrency bounds parallel batch items; zero means sequential.
	Concurrency int64
}

func NewPayoutService(db *gorm.DB, transfers *TransferService, concurrency int64) *PayoutService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &PayoutService{DB: db, Transfers: transfers, Concurrency: concurrency}
}

// DuePayouts returns pending payouts whose scheduled_at has passed.
func (s *PayoutService) DuePayouts(now time.Time) ([]models.Payout, error) {
	var payouts []models.Payout
	err := s.DB.
		Where("status = ? AND scheduled_at <= ?", models.PayoutStatusPending, now).
		Order("scheduled_at ASC").
		Find(&payouts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load due payouts: %w", err)
	}
	return payouts, nil
}

// AccountsByHostIDs loads connected accounts for a set of hosts in one query.
func (s *PayoutService) AccountsByHostIDs(hostIDs []uint) (map[uint]models.ConnectedAccount, error) {
	accounts := make(map[uint]models.ConnectedAccount, len(hostIDs))
	if len(hostIDs) == 0 {
		return accounts, nil
	}
	var rows []models.ConnectedAccount
	if err := s.DB.Where("host_id IN ?", hostIDs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load connected accounts: %w", err)
	}
	for _, row := range rows {
		accounts[row.HostID] = row
	}
	return accounts, nil
}

// claim atomically reserves a pending payout. A false return means another
// run (or a direct processing call) already owns it.
func (s *PayoutService) claim(payoutID uint) (bool, error) {
	res := s.DB.Model(&models.Payout{}).
		Where("id = ? AND status = ?", payoutID, models.PayoutStatusPending).
		Update("status", models.PayoutStatusProcessing)
	if res.Error != nil {
		return false, fmt.Errorf("failed to claim payout %d: %w", payoutID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *PayoutService) settlePaid(payoutID uint, transferRef string, paidAt time.Time) error {
	return s.DB.Model(&models.Payout{}).
		Where("id = ? AND status = ?", payoutID, models.PayoutStatusProcessing).
		Updates(map[string]interface{}{
			"status":       models.PayoutStatusPaid,
			"transfer_ref": transferRef,
			"paid_at":      paidAt,
		}).Error
}

func (s *PayoutService) settleFailed(payoutID uint, cause error) {
	msg := cause.Error()
	if len(msg) > 512 {
		msg = msg[:512]
	}
	if err := s.DB.Model(&models.Payout{}).
		Where("id = ? AND status = ?", payoutID, models.PayoutStatusProcessing).
		Updates(map[string]interface{}{
			"status":     models.PayoutStatusFailed,
			"last_error": msg,
		}).Error; err != nil {
		logrus.WithError(err).WithField("payout_id", payoutID).
			Error("failed to mark payout failed")
	}
}

// Process handles one payout end to end: claim, transfer, settle. The caller
// supplies the destination account so the operation can be driven directly
// from a processor webhook or an operator tool.
func (s *PayoutService) Process(ctx context.Context, payoutID uint, destination string, amount float64, currency string) (PayoutResult, error) {
	var payout models.Payout
	if err := s.DB.First(&payout, payoutID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return PayoutResult{}, ErrPayoutNotFound
		}
		return PayoutResult{}, fmt.Errorf("failed to load payout %d: %w", payoutID, err)
	}

	claimed, err := s.claim(payout.ID)
	if err != nil {
		return PayoutResult{}, err
	}
	if !claimed {
		return PayoutResult{}, ErrPayoutNotPending
	}

	transfer, err := s.executePayoutTransfer(ctx, payout, destination, amount, currency)
	if err != nil {
		s.settleFailed(payout.ID, err)
		return PayoutResult{}, err
	}

	paidAt := time.Now().UTC()
	if err := s.settlePaid(payout.ID, transfer.TransferID, paidAt); err != nil {
		// Money moved; the ledger write must be retried by an operator.
		logrus.WithError(err).WithFields(logrus.Fields{
			"payout_id":   payout.ID,
			"transfer_id": transfer.TransferID,
		}).Error("payout paid but ledger update failed")
		return PayoutResult{}, fmt.Errorf("failed to mark payout %d paid: %w", payout.ID, err)
	}

	return PayoutResult{
		PayoutID:    payout.ID,
		Status:      models.PayoutStatusPaid,
		TransferRef: transfer.TransferID,
		Amount:      amount,
		Currency:    transfer.Currency,
		PaidAt:      paidAt,
	}, nil
}

// RunOnce is one scheduler tick: select due pending payouts, join account
// readiness, and disburse each eligible one independently. One item's
// failure never blocks the rest.
func (s *PayoutService) RunOnce(ctx context.Context, now time.Time) (BatchResult, error) {
	payouts, err := s.DuePayouts(now)
	if err != nil {
		return BatchResult{}, err
	}

	hostIDs := make([]uint, 0, len(payouts))
	for _, p := range payouts {
		hostIDs = append(hostIDs, p.HostID)
	}
	accounts, err := s.AccountsByHostIDs(hostIDs)
	if err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{Total: len(payouts)}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(s.Concurrency)

	record := func(item PayoutItemResult) {
		mu.Lock()
		defer mu.Unlock()
		result.Items = append(result.Items, item)
		switch item.Status {
		case PayoutItemPaid:
			result.Processed++
		case PayoutItemFailed:
			result.Failed++
		}
	}

	for _, payout := range payouts {
		account, ok := accounts[payout.HostID]
		if !ok || !account.Eligible() {
			// Left pending untouched; a future run will pick it up once the
			// host finishes onboarding.
			record(PayoutItemResult{
				PayoutID: payout.ID,
				Status:   PayoutItemSkipped,
				Error:    ErrAccountNotReady.Error(),
			})
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			record(PayoutItemResult{PayoutID: payout.ID, Status: PayoutItemSkipped, Error: err.Error()})
			continue
		}
		wg.Add(1)
		go func(payout models.Payout, destination string) {
			defer wg.Done()
			defer sem.Release(1)
			record(s.runItem(ctx, payout, destination))
		}(payout, account.ProcessorAccountID)
	}
	wg.Wait()

	logrus.WithFields(logrus.Fields{
		"processed": result.Processed,
		"failed":    result.Failed,
		"total":     result.Total,
	}).Info("payout batch finished")

	return result, nil
}

func (s *PayoutService) runItem(ctx context.Context, payout models.Payout, destination string) PayoutItemResult {
	claimed, err := s.claim(payout.ID)
	if err != nil {
		return PayoutItemResult{PayoutID: payout.ID, Status: PayoutItemFailed, Error: err.Error()}
	}
	if !claimed {
		// A concurrent run got here first.
		return PayoutItemResult{PayoutID: payout.ID, Status: PayoutItemSkipped, Error: ErrPayoutNotPending.Error()}
	}

	transfer, err := s.executePayoutTransfer(ctx, payout, destination, payout.Amount, payout.Currency)
	if err != nil {
		s.settleFailed(payout.ID, err)
		return PayoutItemResult{PayoutID: payout.ID, Status: PayoutItemFailed, Error: err.Error()}
	}

	if err := s.settlePaid(payout.ID, transfer.TransferID, time.Now().UTC()); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"payout_id":   payout.ID,
			"transfer_id": transfer.TransferID,
		}).Error("payout paid but ledger update failed")
		return PayoutItemResult{PayoutID: payout.ID, Status: PayoutItemFailed, Error: err.Error()}
	}

	return PayoutItemResult{PayoutID: payout.ID, Status: PayoutItemPaid, TransferRef: transfer.TransferID}
}

// executePayoutTransfer uses the payout id as the processor group key and
// reconciles ambiguous outcomes by that key before reporting failure.
func (s *PayoutService) executePayoutTransfer(ctx context.Context, payout models.Payout, destination string, amount float64, currency string) (TransferResult, error) {
	groupKey := fmt.Sprintf("payout_%d", payout.ID)
	metadata := map[string]string{
		"payout_id":  fmt.Sprintf("%d", payout.ID),
		"booking_id": fmt.Sprintf("%d", payout.BookingID),
		"host_id":    fmt.Sprintf("%d", payout.HostID),
	}

	transfer, err := s.Transfers.Execute(ctx, amount, currency, destination, groupKey, metadata)
	if err == nil {
		return transfer, nil
	}
	if !processor.IsAmbiguous(err) {
		return TransferResult{}, err
	}

	reconciled, lookupErr := s.Transfers.Reconcile(ctx, groupKey)
	if lookupErr != nil {
		if !errors.Is(lookupErr, processor.ErrTransferNotFound) {
			logrus.WithError(lookupErr).WithField("group_key", groupKey).
				Warn("payout transfer reconciliation failed")
		}
		return TransferResult{}, err
	}
	logrus.WithFields(logrus.Fields{
		"group_key":   groupKey,
		"transfer_id": reconciled.TransferID,
	}).Info("ambiguous payout transfer reconciled as success")
	return reconciled, nil
}
