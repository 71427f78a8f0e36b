// internal/handlers/activity/activity_handler.go
package activity

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	domainactivity "boda-service/internal/domain/activity"
	"boda-service/internal/pkg/response"
	service "boda-service/internal/service/activity"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type ActivityHandler struct {
	activityService *service.Service
}

func NewActivityHandler(activityService *service.Service) *ActivityHandler {
	return &ActivityHandler{activityService: activityService}
}

func parseFilters(c *gin.Context) (*domainactivity.ListFilters, error) {
	filters := &domainactivity.ListFilters{
		Type:    domainactivity.Type(c.Query("type")),
		OrderID: c.Query("order_id"),
	}
	if v := c.Query("rider_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid rider_id: %w", err)
		}
		filters.RiderID = &id
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid from timestamp: %w", err)
		}
		filters.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("invalid to timestamp: %w", err)
		}
		filters.To = &t
	}
	filters.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filters.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return filters, nil
}

// List returns activity entries, newest first, with filters.
func (h *ActivityHandler) List(c *gin.Context) {
	filters, err := parseFilters(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}

	result, err := h.activityService.List(c.Request.Context(), filters)
	if err != nil {
		response.FromError(c, "failed to list activities", err)
		return
	}

	response.Success(c, http.StatusOK, "activities retrieved", result)
}

// ListByRider returns one rider's activity history.
func (h *ActivityHandler) ListByRider(c *gin.Context) {
	riderID, err := strconv.ParseInt(c.Param("riderId"), 10, 64)
	if err != nil || riderID < 1 {
		response.Error(c, http.StatusBadRequest, "invalid rider ID", err)
		return
	}

	filters, err := parseFilters(c)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid query parameters", err)
		return
	}
	filters.RiderID = &riderID

	result, err := h.activityService.List(c.Request.Context(), filters)
	if err != nil {
		response.FromError(c, "failed to list rider activities", err)
		return
	}

	response.Success(c, http.StatusOK, "rider activities retrieved", result)
}

// ListByOrder returns the activity trail of a single order.
func (h *ActivityHandler) ListByOrder(c *gin.Context) {
	orderID := c.Param("orderId")
	if orderID == "" {
		response.Error(c, http.StatusBadRequest, "order ID is required", nil)
		return
	}

	result, err := h.activityService.List(c.Request.Context(), &domainactivity.ListFilters{OrderID: orderID, Limit: 100})
	if err != nil {
		response.FromError(c, "failed to list order activities", err)
		return
	}

	response.Success(c, http.StatusOK, "order activities retrieved", result)
}

// Stats returns aggregate activity counters.
func (h *ActivityHandler) Stats(c *gin.Context) {
	stats, err := h.activityService.Stats(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to get activity stats", err)
		return
	}

	response.Success(c, http.StatusOK, "activity stats retrieved", stats)
}

// RiderEarnings summarizes a rider's delivery earnings from the log alone.
func (h *ActivityHandler) RiderEarnings(c *gin.Context) {
	riderID, err := strconv.ParseInt(c.Param("riderId"), 10, 64)
	if err != nil || riderID < 1 {
		response.Error(c, http.StatusBadRequest, "invalid rider ID", err)
		return
	}

	report, err := h.activityService.RiderEarnings(c.Request.Context(), riderID)
	if err != nil {
		response.FromError(c, "failed to build earnings report", err)
		return
	}

	response.Success(c, http.StatusOK, "earnings report retrieved", report)
}

type logRequest struct {
	RiderID     *int64                 `json:"rider_id"`
	Type        domainactivity.Type    `json:"type" binding:"required"`
	OrderID     string                 `json:"order_id"`
	Description string                 `json:"description" binding:"required"`
	Amount      *decimal.Decimal       `json:"amount"`
	Commission  *decimal.Decimal       `json:"commission"`
	NetEarning  *decimal.Decimal       `json:"net_earning"`
	Location    string                 `json:"location"`
	Metadata    map[string]interface{} `json:"metadata"`
}

func (r *logRequest) toEntry() *domainactivity.Entry {
	e := &domainactivity.Entry{
		Type:        r.Type,
		Description: r.Description,
		Metadata:    r.Metadata,
	}
	if r.RiderID != nil {
		e.RiderID.Int64 = *r.RiderID
		e.RiderID.Valid = true
	}
	if r.OrderID != "" {
		e.OrderID.String = r.OrderID
		e.OrderID.Valid = true
	}
	if r.Amount != nil {
		e.Amount.Decimal = *r.Amount
		e.Amount.Valid = true
	}
	if r.Commission != nil {
		e.Commission.Decimal = *r.Commission
		e.Commission.Valid = true
	}
	if r.NetEarning != nil {
		e.NetEarning.Decimal = *r.NetEarning
		e.NetEarning.Valid = true
	}
	if r.Location != "" {
		e.Location.String = r.Location
		e.Location.Valid = true
	}
	return e
}

// Log appends a manual activity entry.
func (h *ActivityHandler) Log(c *gin.Context) {
	var req logRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	entry, err := h.activityService.Log(c.Request.Context(), req.toEntry())
	if err != nil {
		response.FromError(c, "failed to log activity", err)
		return
	}

	response.Success(c, http.StatusCreated, "activity logged", entry)
}

// Delete removes one entry for admin correction.
func (h *ActivityHandler) Delete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		response.Error(c, http.StatusBadRequest, "invalid activity ID", err)
		return
	}

	if err := h.activityService.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, "failed to delete activity", err)
		return
	}

	response.Success(c, http.StatusOK, "activity deleted", nil)
}

// Import replaces the activity log with the uploaded entries.
func (h *ActivityHandler) Import(c *gin.Context) {
	var req struct {
		Activities []domainactivity.Entry `json:"activities" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	if err := h.activityService.Import(c.Request.Context(), req.Activities); err != nil {
		response.FromError(c, "failed to import activities", err)
		return
	}

	response.Success(c, http.StatusOK, "activities imported", gin.H{"imported": len(req.Activities)})
}

// Export streams the log as json, csv, or xlsx.
func (h *ActivityHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	data, contentType, filename, err := h.activityService.Export(c.Request.Context(), format)
	if err != nil {
		response.FromError(c, "failed to export activities", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}
