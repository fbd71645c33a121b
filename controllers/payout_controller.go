// controllers/payout_controller.go
package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"escrow-backend/models"
	"escrow-backend/services"
	"escrow-backend/utils"
)

type ProcessPayoutPayload struct {
	DestinationAccountID string  `json:"destination_account_id" binding:"required"`
	Amount               float64 `json:"amount" binding:"required"`
	Currency             string  `json:"currency" binding:"required"`
}

type PayoutController struct {
	PayoutSvc *services.PayoutService
}

func NewPayoutController(svc *services.PayoutService) *PayoutController {
	return &PayoutController{PayoutSvc: svc}
}

// ProcessPayout handles POST /api/payouts/:id/process
func (ctl *PayoutController) ProcessPayout(c *gin.Context) {
	payoutID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var payload ProcessPayoutPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "destination_account_id, amount and currency are required")
		return
	}

	result, err := ctl.PayoutSvc.Process(c.Request.Context(), payoutID, payload.DestinationAccountID, payload.Amount, payload.Currency)
	if err != nil {
		utils.JSONError(c, statusForServiceError(err), err.Error())
		return
	}

	utils.JSONSuccess(c, http.StatusOK, result)
}

// RunScheduledPayouts handles POST /api/payouts/run
func (ctl *PayoutController) RunScheduledPayouts(c *gin.Context) {
	result, err := ctl.PayoutSvc.RunOnce(c.Request.Context(), time.Now().UTC())
	if err != nil {
		utils.JSONError(c, http.StatusInternalServerError, err.Error())
		return
	}
	utils.JSONSuccess(c, http.StatusOK, result)
}

// ListPayouts handles GET /api/payouts with an optional ?status= filter.
func (ctl *PayoutController) ListPayouts(c *gin.Context) {
	query := ctl.PayoutSvc.DB.Order("scheduled_at ASC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	var payouts []models.Payout
	if err := query.Find(&payouts).Error; err != nil {
		utils.JSONError(c, http.StatusInternalServerError, "failed to list payouts")
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"payouts": payouts, "count": len(payouts)})
}
