// internal/handlers/ledger/ledger_handler.go
package ledger

import (
	"net/http"
	"strconv"

	"boda-service/internal/domain/rider"
	"boda-service/internal/pkg/response"
	service "boda-service/internal/service/ledger"

	"github.com/gin-gonic/gin"
)

type LedgerHandler struct {
	ledgerService *service.Service
}

func NewLedgerHandler(ledgerService *service.Service) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

func riderIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("riderId"), 10, 64)
	if err != nil || id < 1 {
		response.Error(c, http.StatusBadRequest, "invalid rider ID", err)
		return 0, false
	}
	return id, true
}

// CreditDelivery records a completed delivery and credits the rider's share.
// Replays of the same order_id return the original earning unchanged.
func (h *LedgerHandler) CreditDelivery(c *gin.Context) {
	riderID, ok := riderIDParam(c)
	if !ok {
		return
	}

	var req rider.CreditDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.ledgerService.CreditDelivery(c.Request.Context(), riderID, &req)
	if err != nil {
		response.FromError(c, "failed to credit delivery", err)
		return
	}

	if result.Duplicate {
		response.Success(c, http.StatusOK, "delivery already credited", result)
		return
	}
	response.Success(c, http.StatusCreated, "delivery credited", result)
}

// GetBalance returns the rider's balance snapshot and recent earnings.
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	riderID, ok := riderIDParam(c)
	if !ok {
		return
	}

	result, err := h.ledgerService.Balance(c.Request.Context(), riderID)
	if err != nil {
		response.FromError(c, "failed to get balance", err)
		return
	}

	response.Success(c, http.StatusOK, "balance retrieved", result)
}

// Reconcile replays the rider's activity log and compares the rebuilt
// balance against the stored one.
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	riderID, ok := riderIDParam(c)
	if !ok {
		return
	}

	result, err := h.ledgerService.Reconcile(c.Request.Context(), riderID)
	if err != nil {
		response.FromError(c, "failed to reconcile balance", err)
		return
	}

	response.Success(c, http.StatusOK, "reconciliation completed", result)
}
