package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apprecovery "github.com/arcollect/backend/internal/application/recovery"
	"github.com/arcollect/backend/internal/domain/recovery"
	"github.com/arcollect/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// In-memory repositories backing the handler tests. The handlers only
// see the service, so plain map fakes are enough here.

type stubInvoiceRepo struct {
	invoices []recovery.Invoice
}

func (r *stubInvoiceRepo) FindByID(_ context.Context, _ uuid.UUID, id uuid.UUID) (*recovery.Invoice, error) {
	for i := range r.invoices {
		if r.invoices[i].ID == id {
			inv := r.invoices[i]
			return &inv, nil
		}
	}
	return nil, nil
}

func (r *stubInvoiceRepo) FindByCustomer(_ context.Context, _ uuid.UUID, customerID uuid.UUID) ([]recovery.Invoice, error) {
	var out []recovery.Invoice
	for _, inv := range r.invoices {
		if inv.CustomerID == customerID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *stubInvoiceRepo) Save(_ context.Context, _ uuid.UUID, invoice *recovery.Invoice) error {
	r.invoices = append(r.invoices, *invoice)
	return nil
}

type stubReceiptRepo struct {
	receipts []recovery.Receipt
}

func (r *stubReceiptRepo) FindByCustomer(_ context.Context, _ uuid.UUID, customerID uuid.UUID) ([]recovery.Receipt, error) {
	var out []recovery.Receipt
	for _, rc := range r.receipts {
		if rc.CustomerID == customerID {
			out = append(out, rc)
		}
	}
	return out, nil
}

func (r *stubReceiptRepo) Save(_ context.Context, _ uuid.UUID, receipt *recovery.Receipt) error {
	r.receipts = append(r.receipts, *receipt)
	return nil
}

type stubAccountRepo struct {
	accounts map[uuid.UUID]*recovery.CustomerAccount
}

func (r *stubAccountRepo) FindByCustomerID(_ context.Context, _ uuid.UUID, customerID uuid.UUID) (*recovery.CustomerAccount, error) {
	return r.accounts[customerID], nil
}

func (r *stubAccountRepo) FindAll(_ context.Context, _ uuid.UUID) ([]recovery.CustomerAccount, error) {
	var out []recovery.CustomerAccount
	for _, a := range r.accounts {
		out = append(out, *a)
	}
	return out, nil
}

func (r *stubAccountRepo) Save(_ context.Context, account *recovery.CustomerAccount) error {
	r.accounts[account.CustomerID] = account
	return nil
}

func (r *stubAccountRepo) Update(_ context.Context, account *recovery.CustomerAccount) error {
	r.accounts[account.CustomerID] = account
	return nil
}

type stubChangeRepo struct {
	changes []recovery.CategoryChange
}

func (r *stubChangeRepo) Append(_ context.Context, change *recovery.CategoryChange) error {
	r.changes = append(r.changes, *change)
	return nil
}

func (r *stubChangeRepo) FindByCustomer(_ context.Context, _ uuid.UUID, customerID uuid.UUID) ([]recovery.CategoryChange, error) {
	var out []recovery.CategoryChange
	for _, ch := range r.changes {
		if ch.CustomerID == customerID {
			out = append(out, ch)
		}
	}
	return out, nil
}

type handlerFixture struct {
	router   *gin.Engine
	invoices *stubInvoiceRepo
	receipts *stubReceiptRepo
	accounts *stubAccountRepo
	changes  *stubChangeRepo
}

func setupRecoveryRouter(t *testing.T) *handlerFixture {
	t.Helper()
	require.NoError(t, middleware.SetupValidator())

	engine, err := recovery.NewEngine(recovery.DefaultEngineConfig())
	require.NoError(t, err)

	fx := &handlerFixture{
		invoices: &stubInvoiceRepo{},
		receipts: &stubReceiptRepo{},
		accounts: &stubAccountRepo{accounts: make(map[uuid.UUID]*recovery.CustomerAccount)},
		changes:  &stubChangeRepo{},
	}

	service := apprecovery.NewRecoveryService(fx.invoices, fx.receipts, fx.accounts, fx.changes, engine)
	h := NewRecoveryHandler(service, engine)

	r := gin.New()
	api := r.Group("/api/v1")
	h.RegisterRoutes(api)
	fx.router = r
	return fx
}

func (fx *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	fx.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func TestPreviewAllocationInline(t *testing.T) {
	fx := setupRecoveryRouter(t)
	customerID := uuid.New()

	body := map[string]any{
		"invoices": []map[string]any{
			{
				"id":             uuid.New().String(),
				"customer_id":    customerID.String(),
				"invoice_number": "INV-001",
				"invoice_date":   "2024-01-10",
				"amount":         "1500",
			},
			{
				"id":             uuid.New().String(),
				"customer_id":    customerID.String(),
				"invoice_number": "INV-002",
				"invoice_date":   "2024-02-10",
				"amount":         "500",
			},
		},
		"receipts": []map[string]any{
			{
				"id":             uuid.New().String(),
				"customer_id":    customerID.String(),
				"voucher_number": "RCT-001",
				"receipt_date":   "2024-02-15",
				"amount":         "1600",
			},
		},
	}

	w := fx.do(t, http.MethodPost, "/api/v1/recovery/allocations/preview", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decodeData(t, w)
	assert.Equal(t, "1600", data["total_allocated"])
	assert.Equal(t, "0", data["unapplied_credit"])

	invoices, ok := data["invoices"].([]any)
	require.True(t, ok)
	require.Len(t, invoices, 2)

	first := invoices[0].(map[string]any)
	assert.Equal(t, "INV-001", first["invoice_number"])
	assert.Equal(t, "1500", first["paid"])
	second := invoices[1].(map[string]any)
	assert.Equal(t, "100", second["paid"])
	assert.Equal(t, "400", second["outstanding"])
}

func TestPreviewAllocationRejectsEmptyBody(t *testing.T) {
	fx := setupRecoveryRouter(t)

	w := fx.do(t, http.MethodPost, "/api/v1/recovery/allocations/preview", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreviewAllocationRejectsNegativeAmount(t *testing.T) {
	fx := setupRecoveryRouter(t)
	customerID := uuid.New()

	body := map[string]any{
		"invoices": []map[string]any{
			{
				"id":             uuid.New().String(),
				"customer_id":    customerID.String(),
				"invoice_number": "INV-001",
				"invoice_date":   "2024-01-10",
				"amount":         "-10",
			},
		},
	}

	w := fx.do(t, http.MethodPost, "/api/v1/recovery/allocations/preview", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func TestInvoiceInterestEndpoint(t *testing.T) {
	fx := setupRecoveryRouter(t)
	customerID := uuid.New()
	invoiceID := uuid.New()

	terms := 30
	fx.invoices.invoices = []recovery.Invoice{{
		ID:               invoiceID,
		CustomerID:       customerID,
		InvoiceNumber:    "INV-100",
		InvoiceDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Amount:           decimal.NewFromInt(1000),
		PaymentTermsDays: &terms,
		InterestRate:     decimal.NewFromInt(18),
	}}

	path := fmt.Sprintf("/api/v1/recovery/invoices/%s/interest?as_of=2024-03-01", invoiceID)
	w := fx.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decodeData(t, w)
	assert.Equal(t, "INV-100", data["invoice_number"])
	// 1000 * 18% * 30d / 365 from Jan 31 due date to Mar 1
	assert.Equal(t, "14.79", data["total_interest"])

	periods, ok := data["periods"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, periods)
}

func TestInvoiceInterestNotFound(t *testing.T) {
	fx := setupRecoveryRouter(t)

	path := fmt.Sprintf("/api/v1/recovery/invoices/%s/interest", uuid.New())
	w := fx.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvoiceInterestRejectsBadAsOf(t *testing.T) {
	fx := setupRecoveryRouter(t)

	path := fmt.Sprintf("/api/v1/recovery/invoices/%s/interest?as_of=March", uuid.New())
	w := fx.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCustomerRecommendationEndpoint(t *testing.T) {
	fx := setupRecoveryRouter(t)
	customerID := uuid.New()

	terms := 30
	fx.invoices.invoices = []recovery.Invoice{{
		ID:               uuid.New(),
		CustomerID:       customerID,
		InvoiceNumber:    "INV-200",
		InvoiceDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Amount:           decimal.NewFromInt(1000),
		PaymentTermsDays: &terms,
		InterestRate:     decimal.NewFromInt(18),
	}}
	fx.receipts.receipts = []recovery.Receipt{{
		ID:            uuid.New(),
		CustomerID:    customerID,
		VoucherNumber: "RCT-200",
		ReceiptDate:   time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		Amount:        decimal.NewFromInt(1000),
	}}

	path := fmt.Sprintf("/api/v1/recovery/customers/%s/recommendation?as_of=2024-06-01", customerID)
	w := fx.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decodeData(t, w)
	assert.Equal(t, "ALPHA", data["recommended_category"])
	assert.Equal(t, "NEW", data["current_category"])
	assert.Equal(t, true, data["will_change"])
}

func TestApplyCategoriesManual(t *testing.T) {
	fx := setupRecoveryRouter(t)
	tenantID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	customerID := uuid.New()

	account, err := recovery.NewCustomerAccount(tenantID, customerID, "Acme Corp")
	require.NoError(t, err)
	fx.accounts.accounts[customerID] = account

	body := map[string]any{
		"changes": []map[string]any{
			{
				"customer_id":  customerID.String(),
				"category":     "BETA",
				"reason":       "manual review",
				"days_overdue": 40,
			},
		},
	}

	w := fx.do(t, http.MethodPost, "/api/v1/recovery/categories/apply", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decodeData(t, w)
	assert.Equal(t, float64(1), data["applied"])
	assert.Equal(t, recovery.CategoryBeta, fx.accounts.accounts[customerID].Category)
	require.Len(t, fx.changes.changes, 1)
	assert.Equal(t, "manual review", fx.changes.changes[0].Reason)
}

func TestApplyCategoriesRejectsInvalidCategory(t *testing.T) {
	fx := setupRecoveryRouter(t)

	body := map[string]any{
		"changes": []map[string]any{
			{
				"customer_id": uuid.New().String(),
				"category":    "NEW",
			},
		},
	}

	w := fx.do(t, http.MethodPost, "/api/v1/recovery/categories/apply", body)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestCategoryHistoryEndpoint(t *testing.T) {
	fx := setupRecoveryRouter(t)
	tenantID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	customerID := uuid.New()

	account, err := recovery.NewCustomerAccount(tenantID, customerID, "Acme Corp")
	require.NoError(t, err)
	change, err := account.ApplyCategory(recovery.CategoryGamma, "late payments", 60)
	require.NoError(t, err)
	fx.changes.changes = []recovery.CategoryChange{*change}

	path := fmt.Sprintf("/api/v1/recovery/customers/%s/category-history", customerID)
	w := fx.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var envelope struct {
		Success bool             `json:"success"`
		Data    []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "GAMMA", envelope.Data[0]["to_category"])
}

func TestRecalculateEndpoint(t *testing.T) {
	fx := setupRecoveryRouter(t)
	tenantID := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	customerID := uuid.New()

	account, err := recovery.NewCustomerAccount(tenantID, customerID, "Acme Corp")
	require.NoError(t, err)
	fx.accounts.accounts[customerID] = account

	terms := 30
	fx.invoices.invoices = []recovery.Invoice{{
		ID:               uuid.New(),
		CustomerID:       customerID,
		InvoiceNumber:    "INV-300",
		InvoiceDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Amount:           decimal.NewFromInt(1000),
		PaymentTermsDays: &terms,
		InterestRate:     decimal.NewFromInt(18),
	}}
	fx.receipts.receipts = []recovery.Receipt{{
		ID:            uuid.New(),
		CustomerID:    customerID,
		VoucherNumber: "RCT-300",
		ReceiptDate:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Amount:        decimal.NewFromInt(1000),
	}}

	w := fx.do(t, http.MethodPost, "/api/v1/recovery/recommendations/recalculate", map[string]any{"as_of": "2024-06-01"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decodeData(t, w)
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(1), data["succeeded"])
	assert.Equal(t, float64(1), data["will_change"])
}
