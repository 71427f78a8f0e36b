// internal/handlers/withdrawal/withdrawal_handler.go
package withdrawal

import (
	"net/http"
	"strconv"

	domainwithdrawal "boda-service/internal/domain/withdrawal"
	"boda-service/internal/pkg/response"
	"boda-service/internal/service/fees"
	service "boda-service/internal/service/withdrawal"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type WithdrawalHandler struct {
	withdrawalService *service.Service
}

func NewWithdrawalHandler(withdrawalService *service.Service) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalService: withdrawalService}
}

// CreateRequest opens a pending withdrawal for a rider.
func (h *WithdrawalHandler) CreateRequest(c *gin.Context) {
	riderID, err := strconv.ParseInt(c.Param("riderId"), 10, 64)
	if err != nil || riderID < 1 {
		response.Error(c, http.StatusBadRequest, "invalid rider ID", err)
		return
	}

	var input domainwithdrawal.CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.withdrawalService.RequestWithdrawal(c.Request.Context(), riderID, &input)
	if err != nil {
		response.FromError(c, "failed to create withdrawal request", err)
		return
	}

	response.Success(c, http.StatusCreated, "withdrawal request created", result)
}

// ListRequests returns withdrawal requests with filters and aggregate stats.
func (h *WithdrawalHandler) ListRequests(c *gin.Context) {
	filters := &domainwithdrawal.ListFilters{
		Status: domainwithdrawal.Status(c.Query("status")),
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

	result, err := h.withdrawalService.List(c.Request.Context(), filters)
	if err != nil {
		response.FromError(c, "failed to list withdrawal requests", err)
		return
	}

	response.Success(c, http.StatusOK, "withdrawal requests retrieved", result)
}

// UpdateStatus applies the admin decision to a pending request.
func (h *WithdrawalHandler) UpdateStatus(c *gin.Context) {
	requestID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || requestID < 1 {
		response.Error(c, http.StatusBadRequest, "invalid request ID", err)
		return
	}

	var input domainwithdrawal.UpdateStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	result, err := h.withdrawalService.UpdateStatus(c.Request.Context(), requestID, &input)
	if err != nil {
		response.FromError(c, "failed to update withdrawal request", err)
		return
	}

	response.Success(c, http.StatusOK, "withdrawal request updated", result)
}

// FeeCalculator quotes the fee and net payout for a prospective amount
// without creating anything.
func (h *WithdrawalHandler) FeeCalculator(c *gin.Context) {
	raw := c.Query("amount")
	if raw == "" {
		response.Error(c, http.StatusBadRequest, "amount query parameter is required", nil)
		return
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil || !amount.IsPositive() {
		response.Error(c, http.StatusBadRequest, "amount must be a positive number", err)
		return
	}

	response.Success(c, http.StatusOK, "fee calculated", fees.Calculate(amount))
}
