// services/transfer_service.go
package services

import (
	"context"
	"math"
	"strings"

	"escrow-backend/processor"
)

// TransferService is the single place that talks to the payment processor.
// Both escrow release and payout processing go through it, so amount
// normalization and idempotency behave identically for both.
type TransferService struct {
	Client processor.Client
}

func NewTransferService(client processor.Client) *TransferService {
	return &TransferService{Client: client}
}

// TransferResult echoes what the processor confirmed.
type TransferResult struct {
	TransferID  string  `json:"transfer_id"`
	Amount      float64 `json:"amount"`
	AmountMinor int64   `json:"amount_minor"`
	Currency    string  `json:"currency"`
	Destination string  `json:"destination"`
	GroupKey    string  `json:"group_key"`
}

// Execute moves amount (major units) to destination. The group key is passed
// to the processor as the idempotency key, so repeating a call with the same
// key is recognized as the same logical transfer, not a second payment.
func (s *TransferService) Execute(ctx context.Context, amount float64, currency, destination, groupKey string, metadata map[string]string) (TransferResult, error) {
	if amount <= 0 {
		return TransferResult{}, ErrInvalidAmount
	}
	if destination == "" {
		return TransferResult{}, ErrAccountNotReady
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return TransferResult{}, ErrCurrencyRequired
	}

	// Processor API wants integer minor units; round to nearest.
	minor := int64(math.Round(amount * 100))

	tr, err := s.Client.CreateTransfer(ctx, processor.TransferRequest{
		AmountMinor: minor,
		Currency:    currency,
		Destination: destination,
		GroupKey:    groupKey,
		Metadata:    metadata,
	})
	if err != nil {
		return TransferResult{}, err
	}

	return TransferResult{
		TransferID:  tr.ID,
		Amount:      amount,
		AmountMinor: tr.AmountMinor,
		Currency:    tr.Currency,
		Destination: tr.Destination,
		GroupKey:    groupKey,
	}, nil
}

// Reconcile re-queries the processor by group key after an ambiguous outcome.
// It returns the transfer if the processor did record one, or
// processor.ErrTransferNotFound if the original call never landed.
func (s *TransferService) Reconcile(ctx context.Context, groupKey string) (TransferResult, error) {
	tr, err := s.Client.LookupTransfer(ctx, groupKey)
	if err != nil {
		return TransferResult{}, err
	}
	return TransferResult{
		TransferID:  tr.ID,
		Amount:      float64(tr.AmountMinor) / 100,
		AmountMinor: tr.AmountMinor,
		Currency:    tr.Currency,
		Destination: tr.Destination,
		GroupKey:    groupKey,
	}, nil
}
