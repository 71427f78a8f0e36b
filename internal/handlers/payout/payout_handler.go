// internal/handlers/payout/payout_handler.go
package payout

import (
	"net/http"
	"strconv"

	domainpayout "boda-service/internal/domain/payout"
	"boda-service/internal/pkg/response"
	service "boda-service/internal/service/payout"

	"github.com/gin-gonic/gin"
)

type PayoutHandler struct {
	scheduler *service.Scheduler
}

func NewPayoutHandler(scheduler *service.Scheduler) *PayoutHandler {
	return &PayoutHandler{scheduler: scheduler}
}

// ListPayments returns automated payment records with filters.
func (h *PayoutHandler) ListPayments(c *gin.Context) {
	filters := &domainpayout.ListFilters{
		Status: domainpayout.PaymentStatus(c.Query("status")),
	}
	if v := c.Query("rider_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "invalid rider_id filter", err)
			return
		}
		filters.RiderID = &id
	}
	filters.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	filters.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	result, err := h.scheduler.ListPayments(c.Request.Context(), filters)
	if err != nil {
		response.FromError(c, "failed to list automated payments", err)
		return
	}

	response.Success(c, http.StatusOK, "automated payments retrieved", result)
}

// TriggerSweep runs a payout sweep immediately. force=true bypasses the
// once-per-day guard.
func (h *PayoutHandler) TriggerSweep(c *gin.Context) {
	force := c.Query("force") == "true"

	summary, err := h.scheduler.RunSweep(c.Request.Context(), force, "manual")
	if err != nil {
		response.FromError(c, "payout sweep failed", err)
		return
	}

	response.Success(c, http.StatusOK, "payout sweep completed", summary)
}

// Status reports whether the scheduler is running, the next fire times, and
// payment aggregates.
func (h *PayoutHandler) Status(c *gin.Context) {
	status, err := h.scheduler.Status(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to get scheduler status", err)
		return
	}

	response.Success(c, http.StatusOK, "scheduler status retrieved", status)
}

// Start arms the scheduler timers.
func (h *PayoutHandler) Start(c *gin.Context) {
	h.scheduler.Start()
	response.Success(c, http.StatusOK, "payment scheduler started", nil)
}

// Stop disarms the scheduler. An in-flight sweep finishes first.
func (h *PayoutHandler) Stop(c *gin.Context) {
	h.scheduler.Stop()
	response.Success(c, http.StatusOK, "payment scheduler stopped", nil)
}
