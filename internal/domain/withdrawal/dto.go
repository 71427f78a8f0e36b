// internal/domain/withdrawal/dto.go
package withdrawal

import "github.com/shopspring/decimal"

type CreateRequestInput struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Notes  string          `json:"notes"`
}

type CreateRequestResponse struct {
	Request   *Request        `json:"withdrawal_request"`
	Fee       decimal.Decimal `json:"fee"`
	NetAmount decimal.Decimal `json:"net_amount"`
}

type UpdateStatusInput struct {
	Status     Status `json:"status" binding:"required"`
	AdminNotes string `json:"admin_notes"`
}

type ListFilters struct {
	Status  Status
	RiderID *int64
	Limit   int
	Offset  int
}

type Stats struct {
	TotalRequests  int64           `json:"total_requests"`
	Pending        int64           `json:"pending"`
	Approved       int64           `json:"approved"`
	Rejected       int64           `json:"rejected"`
	TotalRequested decimal.Decimal `json:"total_requested"`
	TotalApproved  decimal.Decimal `json:"total_approved"`
	TotalFees      decimal.Decimal `json:"total_fees"`
}

type ListResponse struct {
	Requests []Request `json:"requests"`
	Total    int64     `json:"total"`
	Stats    *Stats    `json:"stats,omitempty"`
}
