package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apprecovery "github.com/arcollect/backend/internal/application/recovery"
	"github.com/arcollect/backend/internal/domain/recovery"
	"github.com/arcollect/backend/internal/interfaces/http/middleware"
)

const dateLayout = "2006-01-02"

// RecoveryHandler exposes the receivables recovery operations over HTTP
type RecoveryHandler struct {
	BaseHandler
	service *apprecovery.RecoveryService
	engine  *recovery.Engine
}

// NewRecoveryHandler creates a new recovery handler
func NewRecoveryHandler(service *apprecovery.RecoveryService, engine *recovery.Engine) *RecoveryHandler {
	return &RecoveryHandler{
		service: service,
		engine:  engine,
	}
}

// RegisterRoutes registers recovery routes
func (h *RecoveryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	recoveryGroup := rg.Group("/recovery")
	{
		recoveryGroup.POST("/allocations/preview", h.PreviewAllocation)
		recoveryGroup.GET("/invoices/:id/interest", h.InvoiceInterest)
		recoveryGroup.GET("/customers/:id/recommendation", h.CustomerRecommendation)
		recoveryGroup.POST("/recommendations/recalculate", h.RecalculateRecommendations)
		recoveryGroup.POST("/categories/apply", h.ApplyCategories)
		recoveryGroup.GET("/customers/:id/category-history", h.CategoryHistory)
	}
}

// InvoiceInput is an invoice supplied inline for an allocation preview
type InvoiceInput struct {
	ID               string  `json:"id" binding:"required,uuid"`
	CustomerID       string  `json:"customer_id" binding:"required,uuid"`
	InvoiceNumber    string  `json:"invoice_number" binding:"required"`
	InvoiceDate      string  `json:"invoice_date" binding:"required,datetime=2006-01-02"`
	Amount           string  `json:"amount" binding:"required"`
	PaymentTermsDays *int    `json:"payment_terms_days"`
	InterestRate     string  `json:"interest_rate"`
	InterestFrom     *string `json:"interest_from" binding:"omitempty,datetime=2006-01-02"`
}

// ReceiptInput is a receipt supplied inline for an allocation preview
type ReceiptInput struct {
	ID            string `json:"id" binding:"required,uuid"`
	CustomerID    string `json:"customer_id" binding:"required,uuid"`
	VoucherNumber string `json:"voucher_number" binding:"required"`
	ReceiptDate   string `json:"receipt_date" binding:"required,datetime=2006-01-02"`
	Amount        string `json:"amount" binding:"required"`
}

// PreviewAllocationRequest runs a FIFO allocation either over inline
// invoices and receipts or over a customer's stored snapshot
type PreviewAllocationRequest struct {
	CustomerID string         `json:"customer_id" binding:"omitempty,uuid"`
	Invoices   []InvoiceInput `json:"invoices" binding:"omitempty,dive"`
	Receipts   []ReceiptInput `json:"receipts" binding:"omitempty,dive"`
}

// ApplyCategoryItem requests one category transition. When category is
// empty the classifier's recommendation is applied instead.
type ApplyCategoryItem struct {
	CustomerID  string `json:"customer_id" binding:"required,uuid"`
	Category    string `json:"category" binding:"omitempty,category"`
	Reason      string `json:"reason" binding:"omitempty,max=500"`
	DaysOverdue int    `json:"days_overdue" binding:"omitempty,min=0"`
}

// ApplyCategoriesRequest applies a batch of category transitions
type ApplyCategoriesRequest struct {
	Changes []ApplyCategoryItem `json:"changes" binding:"required,min=1,dive"`
	AsOf    string              `json:"as_of" binding:"omitempty,datetime=2006-01-02"`
}

// RecalculateRequest triggers a bulk recommendation recompute
type RecalculateRequest struct {
	AsOf string `json:"as_of" binding:"omitempty,datetime=2006-01-02"`
}

// PreviewAllocation handles POST /recovery/allocations/preview
func (h *RecoveryHandler) PreviewAllocation(c *gin.Context) {
	var req PreviewAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	if len(req.Invoices) == 0 && req.CustomerID == "" {
		h.BadRequest(c, "either customer_id or inline invoices must be provided")
		return
	}

	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "invalid tenant ID")
		return
	}

	if len(req.Invoices) > 0 {
		invoices, receipts, err := parsePreviewInput(req)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		run, err := h.engine.Allocate(invoices, receipts)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, run)
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		h.BadRequest(c, "invalid customer ID")
		return
	}
	run, err := h.service.PreviewAllocation(c.Request.Context(), tenantID, customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, run)
}

// InvoiceInterest handles GET /recovery/invoices/:id/interest
func (h *RecoveryHandler) InvoiceInterest(c *gin.Context) {
	invoiceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid invoice ID")
		return
	}
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "invalid tenant ID")
		return
	}
	asOf, err := parseAsOf(c)
	if err != nil {
		h.BadRequest(c, "as_of must be formatted as YYYY-MM-DD")
		return
	}

	breakdown, err := h.service.InterestForInvoice(c.Request.Context(), tenantID, invoiceID, asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, breakdown)
}

// CustomerRecommendation handles GET /recovery/customers/:id/recommendation
func (h *RecoveryHandler) CustomerRecommendation(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid customer ID")
		return
	}
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "invalid tenant ID")
		return
	}
	asOf, err := parseAsOf(c)
	if err != nil {
		h.BadRequest(c, "as_of must be formatted as YYYY-MM-DD")
		return
	}

	rec, err := h.service.Recommendation(c.Request.Context(), tenantID, customerID, asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rec)
}

// RecalculateRecommendations handles POST /recovery/recommendations/recalculate
func (h *RecoveryHandler) RecalculateRecommendations(c *gin.Context) {
	var req RecalculateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "invalid tenant ID")
		return
	}
	asOf := time.Now()
	if req.AsOf != "" {
		asOf, _ = time.Parse(dateLayout, req.AsOf)
	}

	result, err := h.service.RecalculateAll(c.Request.Context(), tenantID, asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ApplyCategories handles POST /recovery/categories/apply
func (h *RecoveryHandler) ApplyCategories(c *gin.Context) {
	var req ApplyCategoriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "invalid tenant ID")
		return
	}
	asOf := time.Now()
	if req.AsOf != "" {
		asOf, _ = time.Parse(dateLayout, req.AsOf)
	}

	result := &apprecovery.ApplyResult{
		AsOf:    recovery.DateOnly(asOf),
		Changes: make([]apprecovery.AppliedChange, 0, len(req.Changes)),
	}
	recommended := make([]uuid.UUID, 0, len(req.Changes))

	for _, item := range req.Changes {
		customerID, err := uuid.Parse(item.CustomerID)
		if err != nil {
			h.BadRequest(c, "invalid customer ID in changes")
			return
		}
		if item.Category == "" {
			recommended = append(recommended, customerID)
			continue
		}

		change, err := h.service.ApplyManualCategory(c.Request.Context(), tenantID, customerID,
			recovery.CustomerCategory(item.Category), item.Reason, item.DaysOverdue)
		entry := apprecovery.AppliedChange{CustomerID: customerID}
		if err != nil {
			entry.Error = err.Error()
			result.Failed++
		} else {
			entry.FromCategory = change.FromCategory
			entry.ToCategory = change.ToCategory
			result.Applied++
		}
		result.Changes = append(result.Changes, entry)
	}

	if len(recommended) > 0 {
		batch, err := h.service.ApplyCategoryChanges(c.Request.Context(), tenantID, recommended, asOf)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		result.Applied += batch.Applied
		result.Skipped += batch.Skipped
		result.Failed += batch.Failed
		result.Changes = append(result.Changes, batch.Changes...)
	}

	h.Success(c, result)
}

// CategoryHistory handles GET /recovery/customers/:id/category-history
func (h *RecoveryHandler) CategoryHistory(c *gin.Context) {
	customerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid customer ID")
		return
	}
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "invalid tenant ID")
		return
	}

	history, err := h.service.CategoryHistory(c.Request.Context(), tenantID, customerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, history)
}

// parseAsOf reads the optional as_of query parameter (YYYY-MM-DD),
// defaulting to the current day
func parseAsOf(c *gin.Context) (time.Time, error) {
	raw := c.Query("as_of")
	if raw == "" {
		return time.Now(), nil
	}
	return time.Parse(dateLayout, raw)
}

func parsePreviewInput(req PreviewAllocationRequest) ([]recovery.Invoice, []recovery.Receipt, error) {
	invoices := make([]recovery.Invoice, 0, len(req.Invoices))
	for _, in := range req.Invoices {
		amount, err := decimal.NewFromString(in.Amount)
		if err != nil {
			return nil, nil, recovery.NewValidationError("invoice %s: invalid amount %q", in.InvoiceNumber, in.Amount)
		}
		rate := decimal.Zero
		if in.InterestRate != "" {
			rate, err = decimal.NewFromString(in.InterestRate)
			if err != nil {
				return nil, nil, recovery.NewValidationError("invoice %s: invalid interest rate %q", in.InvoiceNumber, in.InterestRate)
			}
		}
		invoiceDate, _ := time.Parse(dateLayout, in.InvoiceDate)
		inv := recovery.Invoice{
			ID:               uuid.MustParse(in.ID),
			CustomerID:       uuid.MustParse(in.CustomerID),
			InvoiceNumber:    in.InvoiceNumber,
			InvoiceDate:      invoiceDate,
			Amount:           amount,
			PaymentTermsDays: in.PaymentTermsDays,
			InterestRate:     rate,
		}
		if in.InterestFrom != nil {
			from, _ := time.Parse(dateLayout, *in.InterestFrom)
			inv.InterestFrom = &from
		}
		invoices = append(invoices, inv)
	}

	receipts := make([]recovery.Receipt, 0, len(req.Receipts))
	for _, in := range req.Receipts {
		amount, err := decimal.NewFromString(in.Amount)
		if err != nil {
			return nil, nil, recovery.NewValidationError("receipt %s: invalid amount %q", in.VoucherNumber, in.Amount)
		}
		receiptDate, _ := time.Parse(dateLayout, in.ReceiptDate)
		receipts = append(receipts, recovery.Receipt{
			ID:            uuid.MustParse(in.ID),
			CustomerID:    uuid.MustParse(in.CustomerID),
			VoucherNumber: in.VoucherNumber,
			ReceiptDate:   receiptDate,
			Amount:        amount,
		})
	}

	return invoices, receipts, nil
}
