// controllers/dispute_controller.go
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"escrow-backend/services"
	"escrow-backend/utils"
)

type FileDisputePayload struct {
	EscrowID uint   `json:"escrow_id" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

type DisputeController struct {
	DisputeSvc *services.DisputeService
}

func NewDisputeController(svc *services.DisputeService) *DisputeController {
	return &DisputeController{DisputeSvc: svc}
}

// FileDispute handles POST /api/disputes
func (ctl *DisputeController) FileDispute(c *gin.Context) {
	var payload FileDisputePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "escrow_id and reason are required")
		return
	}

	outcome, err := ctl.DisputeSvc.File(c.Request.Context(), payload.EscrowID, payload.Reason)
	if err != nil {
		utils.JSONError(c, statusForServiceError(err), err.Error())
		return
	}

	utils.JSONSuccess(c, http.StatusCreated, gin.H{
		"escrow_id":         outcome.EscrowID,
		"notified_guest_id": outcome.NotifiedGuestID,
		"notified_host_id":  outcome.NotifiedHostID,
	})
}
