package services

import "errors"

// Sentinel errors surfaced to controllers. The string form is what ends up
// in the response envelope's error field.
var (
	ErrEscrowNotFound    = errors.New("escrow_not_found")
	ErrBookingNotFound   = errors.New("booking_not_found")
	ErrPartyNotFound     = errors.New("party_not_found")
	ErrPayoutNotFound    = errors.New("payout_not_found")
	ErrPayoutNotPending  = errors.New("payout_not_pending")
	ErrAccountNotReady   = errors.New("connected_account_not_ready")
	ErrEscrowReleased    = errors.New("escrow_already_released")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrAmountExceedsHeld = errors.New("amount_exceeds_held")
	ErrCurrencyRequired  = errors.New("currency_required")
	ErrReasonRequired    = errors.New("reason_required")
)
