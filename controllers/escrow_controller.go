// controllers/escrow_controller.go
package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"escrow-backend/processor"
	"escrow-backend/services"
	"escrow-backend/utils"
)

// ---------------------------
// Payload / DTOs
// ---------------------------

type ReleaseEscrowPayload struct {
	Amount float64 `json:"amount" binding:"required"`
	Reason string  `json:"reason"`
}

type TriggerReleasePayload struct {
	BookingID uint `json:"booking_id" binding:"required"`
}

// ---------------------------
// Controller
// ---------------------------

type EscrowController struct {
	EscrowSvc *services.EscrowService
}

func NewEscrowController(svc *services.EscrowService) *EscrowController {
	return &EscrowController{EscrowSvc: svc}
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		utils.JSONError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// statusForServiceError maps the service error taxonomy onto HTTP codes.
func statusForServiceError(err error) int {
	switch {
	case errors.Is(err, services.ErrEscrowNotFound),
		errors.Is(err, services.ErrBookingNotFound),
		errors.Is(err, services.ErrPartyNotFound),
		errors.Is(err, services.ErrPayoutNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrEscrowReleased),
		errors.Is(err, services.ErrPayoutNotPending),
		errors.Is(err, services.ErrAccountNotReady):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrAmountExceedsHeld),
		errors.Is(err, services.ErrCurrencyRequired),
		errors.Is(err, services.ErrReasonRequired):
		return http.StatusBadRequest
	}
	var procErr *processor.ProcessorError
	if errors.As(err, &procErr) || processor.IsAmbiguous(err) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// ReleaseEscrow handles POST /api/escrows/:id/release
func (ctl *EscrowController) ReleaseEscrow(c *gin.Context) {
	escrowID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var payload ReleaseEscrowPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "amount is required")
		return
	}

	outcome, err := ctl.EscrowSvc.Release(c.Request.Context(), escrowID, payload.Amount, payload.Reason)
	if err != nil {
		utils.JSONError(c, statusForServiceError(err), err.Error())
		return
	}

	utils.JSONSuccess(c, http.StatusOK, gin.H{
		"escrow_id":       outcome.Escrow.ID,
		"status":          outcome.Escrow.Status,
		"released_amount": outcome.Escrow.ReleasedAmount,
		"transfer":        outcome.Transfer,
	})
}

// TriggerRelease handles POST /api/escrows/trigger-release
func (ctl *EscrowController) TriggerRelease(c *gin.Context) {
	var payload TriggerReleasePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "booking_id is required")
		return
	}

	outcome, err := ctl.EscrowSvc.TryRelease(c.Request.Context(), payload.BookingID, time.Now().UTC())
	if err != nil {
		utils.JSONError(c, statusForServiceError(err), err.Error())
		return
	}

	if outcome.Released {
		utils.JSONSuccess(c, http.StatusOK, gin.H{
			"released":        true,
			"escrow_id":       outcome.Escrow.ID,
			"status":          outcome.Escrow.Status,
			"released_amount": outcome.Escrow.ReleasedAmount,
			"transfer":        outcome.Transfer,
		})
		return
	}

	// Expected-absence outcomes are successes, not errors.
	body := gin.H{"released": false, "decision": outcome.Decision.Code}
	switch outcome.Decision.Code {
	case services.DecisionNoEscrow:
		body["message"] = "no escrow exists for this booking"
	case services.DecisionAlreadyReleased:
		body["message"] = "escrow funds were already released"
	case services.DecisionDisputed:
		body["message"] = "escrow is under dispute; release is blocked until resolution"
	case services.DecisionNoCheckIn:
		body["message"] = "guest has not checked in yet"
	case services.DecisionNotDue:
		body["message"] = "escrow is not due for release yet"
		body["hours_remaining"] = outcome.Decision.HoursRemaining
		body["due_at"] = outcome.Decision.DueAt
	}
	utils.JSONSuccess(c, http.StatusOK, body)
}

// GetEscrowByBooking handles GET /api/escrows/booking/:bookingId
func (ctl *EscrowController) GetEscrowByBooking(c *gin.Context) {
	bookingID, ok := parseIDParam(c, "bookingId")
	if !ok {
		return
	}
	escrow, err := ctl.EscrowSvc.EscrowByBookingID(bookingID)
	if err != nil {
		if errors.Is(err, services.ErrEscrowNotFound) {
			utils.JSONSuccess(c, http.StatusOK, gin.H{
				"escrow":  nil,
				"message": "no escrow exists for this booking",
			})
			return
		}
		utils.JSONError(c, http.StatusInternalServerError, err.Error())
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"escrow": escrow})
}
