package recovery

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arcollect/backend/internal/domain/recovery"
	"github.com/arcollect/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecommendationCache caches computed category recommendations keyed by
// tenant, customer and as-of date. A nil result from Get means miss.
type RecommendationCache interface {
	Get(ctx context.Context, tenantID, customerID uuid.UUID, asOf time.Time) (*recovery.CategoryRecommendation, error)
	Set(ctx context.Context, tenantID, customerID uuid.UUID, asOf time.Time, rec *recovery.CategoryRecommendation) error
	Invalidate(ctx context.Context, tenantID, customerID uuid.UUID) error
}

const defaultWorkerCount = 8

// RecoveryService provides application-level recovery operations:
// allocation previews, interest breakdowns, category recommendations
// and audited category transitions.
type RecoveryService struct {
	invoiceRepo recovery.InvoiceRepository
	receiptRepo recovery.ReceiptRepository
	accountRepo recovery.CustomerAccountRepository
	changeRepo  recovery.CategoryChangeRepository
	engine      *recovery.Engine
	cache       RecommendationCache
	logger      *zap.Logger
	workers     int

	// one apply per customer at a time
	applying sync.Map // map[uuid.UUID]struct{}
}

// RecoveryServiceOption is a functional option for configuring RecoveryService
type RecoveryServiceOption func(*RecoveryService)

// WithRecommendationCache sets the recommendation cache
func WithRecommendationCache(cache RecommendationCache) RecoveryServiceOption {
	return func(s *RecoveryService) {
		s.cache = cache
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) RecoveryServiceOption {
	return func(s *RecoveryService) {
		s.logger = logger
	}
}

// WithWorkerCount bounds the concurrency of batch recalculation
func WithWorkerCount(n int) RecoveryServiceOption {
	return func(s *RecoveryService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewRecoveryService creates a new RecoveryService
func NewRecoveryService(
	invoiceRepo recovery.InvoiceRepository,
	receiptRepo recovery.ReceiptRepository,
	accountRepo recovery.CustomerAccountRepository,
	changeRepo recovery.CategoryChangeRepository,
	engine *recovery.Engine,
	opts ...RecoveryServiceOption,
) *RecoveryService {
	s := &RecoveryService{
		invoiceRepo: invoiceRepo,
		receiptRepo: receiptRepo,
		accountRepo: accountRepo,
		changeRepo:  changeRepo,
		engine:      engine,
		logger:      zap.NewNop(),
		workers:     defaultWorkerCount,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// snapshot loads the invoice and receipt snapshot for one customer
func (s *RecoveryService) snapshot(ctx context.Context, tenantID, customerID uuid.UUID) ([]recovery.Invoice, []recovery.Receipt, error) {
	invoices, err := s.invoiceRepo.FindByCustomer(ctx, tenantID, customerID)
	if err != nil {
		return nil, nil, err
	}
	receipts, err := s.receiptRepo.FindByCustomer(ctx, tenantID, customerID)
	if err != nil {
		return nil, nil, err
	}
	return invoices, receipts, nil
}

// currentCategory returns the customer's current category, New when no
// account exists yet
func (s *RecoveryService) currentCategory(ctx context.Context, tenantID, customerID uuid.UUID) (recovery.CustomerCategory, error) {
	account, err := s.accountRepo.FindByCustomerID(ctx, tenantID, customerID)
	if err != nil {
		return "", err
	}
	if account == nil {
		return recovery.CategoryNew, nil
	}
	return account.Category, nil
}

// PreviewAllocation runs FIFO allocation against the customer's current
// snapshot without persisting anything
func (s *RecoveryService) PreviewAllocation(ctx context.Context, tenantID, customerID uuid.UUID) (*recovery.AllocationRun, error) {
	invoices, receipts, err := s.snapshot(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	return s.engine.Allocate(invoices, receipts)
}

// InterestForInvoice computes the interest breakdown for one invoice as
// of the given date. Allocation context comes from the owning customer's
// full snapshot so earlier invoices absorb receipts first.
func (s *RecoveryService) InterestForInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID, asOf time.Time) (*recovery.InterestBreakdown, error) {
	invoice, err := s.invoiceRepo.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "Invoice not found")
	}

	invoices, receipts, err := s.snapshot(ctx, tenantID, invoice.CustomerID)
	if err != nil {
		return nil, err
	}
	run, err := s.engine.Allocate(invoices, receipts)
	if err != nil {
		return nil, err
	}
	return s.engine.InterestFor(*invoice, run, asOf)
}

// Recommendation returns the category recommendation for one customer,
// serving from cache when possible
func (s *RecoveryService) Recommendation(ctx context.Context, tenantID, customerID uuid.UUID, asOf time.Time) (*recovery.CategoryRecommendation, error) {
	asOf = recovery.DateOnly(asOf)

	if s.cache != nil {
		rec, err := s.cache.Get(ctx, tenantID, customerID, asOf)
		if err != nil {
			s.logger.Warn("recommendation cache read failed",
				zap.String("customer_id", customerID.String()),
				zap.Error(err))
		} else if rec != nil {
			return rec, nil
		}
	}

	assessment, err := s.AssessCustomer(ctx, tenantID, customerID, asOf)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, customerID, asOf, assessment.Recommendation); err != nil {
			s.logger.Warn("recommendation cache write failed",
				zap.String("customer_id", customerID.String()),
				zap.Error(err))
		}
	}
	return assessment.Recommendation, nil
}

// AssessCustomer runs the full recovery pipeline for one customer
func (s *RecoveryService) AssessCustomer(ctx context.Context, tenantID, customerID uuid.UUID, asOf time.Time) (*recovery.CustomerAssessment, error) {
	current, err := s.currentCategory(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	invoices, receipts, err := s.snapshot(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	return s.engine.EvaluateCustomer(customerID, current, invoices, receipts, asOf)
}

// CustomerRecalculation is the per-customer result of a batch
// recalculation
type CustomerRecalculation struct {
	CustomerID     uuid.UUID                        `json:"customer_id"`
	Recommendation *recovery.CategoryRecommendation `json:"recommendation,omitempty"`
	RecordErrors   []recovery.RecordError           `json:"record_errors,omitempty"`
	Error          string                           `json:"error,omitempty"`
}

// RecalculationResult summarizes a batch recalculation across all
// customers of a tenant
type RecalculationResult struct {
	AsOf       time.Time                         `json:"as_of"`
	Total      int                               `json:"total"`
	Succeeded  int                               `json:"succeeded"`
	Failed     int                               `json:"failed"`
	WillChange int                               `json:"will_change"`
	ByCategory map[recovery.CustomerCategory]int `json:"by_category"` // recommended category counts
	Customers  []CustomerRecalculation           `json:"customers"`
}

// RecalculateAll recomputes recommendations for every customer account
// of the tenant using a bounded worker pool. Customers are independent,
// so one customer's failure never aborts the batch.
func (s *RecoveryService) RecalculateAll(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (*RecalculationResult, error) {
	asOf = recovery.DateOnly(asOf)
	accounts, err := s.accountRepo.FindAll(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	result := &RecalculationResult{
		AsOf:       asOf,
		Total:      len(accounts),
		ByCategory: make(map[recovery.CustomerCategory]int),
		Customers:  make([]CustomerRecalculation, len(accounts)),
	}

	workers := s.workers
	if workers > len(accounts) {
		workers = len(accounts)
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				account := &accounts[i]
				entry := CustomerRecalculation{CustomerID: account.CustomerID}

				invoices, receipts, err := s.snapshot(ctx, tenantID, account.CustomerID)
				if err == nil {
					var assessment *recovery.CustomerAssessment
					assessment, err = s.engine.EvaluateCustomer(account.CustomerID, account.Category, invoices, receipts, asOf)
					if err == nil {
						entry.Recommendation = assessment.Recommendation
						entry.RecordErrors = assessment.RecordErrors
						if s.cache != nil {
							if cacheErr := s.cache.Set(ctx, tenantID, account.CustomerID, asOf, assessment.Recommendation); cacheErr != nil {
								s.logger.Warn("recommendation cache write failed",
									zap.String("customer_id", account.CustomerID.String()),
									zap.Error(cacheErr))
							}
						}
					}
				}
				if err != nil {
					entry.Error = err.Error()
					s.logger.Warn("customer recalculation failed",
						zap.String("customer_id", account.CustomerID.String()),
						zap.Error(err))
				}
				result.Customers[i] = entry
			}
		}()
	}
	for i := range accounts {
		select {
		case jobs <- i:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	for _, c := range result.Customers {
		switch {
		case c.Error != "":
			result.Failed++
		default:
			result.Succeeded++
			if c.Recommendation != nil {
				result.ByCategory[c.Recommendation.RecommendedCategory]++
				if c.Recommendation.WillChange {
					result.WillChange++
				}
			}
		}
	}
	return result, nil
}

// AppliedChange reports one customer processed by ApplyCategoryChanges
type AppliedChange struct {
	CustomerID   uuid.UUID                 `json:"customer_id"`
	FromCategory recovery.CustomerCategory `json:"from_category,omitempty"`
	ToCategory   recovery.CustomerCategory `json:"to_category,omitempty"`
	Skipped      bool                      `json:"skipped"`
	SkipReason   string                    `json:"skip_reason,omitempty"`
	Error        string                    `json:"error,omitempty"`
}

// ApplyResult summarizes an apply run
type ApplyResult struct {
	AsOf    time.Time       `json:"as_of"`
	Applied int             `json:"applied"`
	Skipped int             `json:"skipped"`
	Failed  int             `json:"failed"`
	Changes []AppliedChange `json:"changes"`
}

// ApplyCategoryChanges recomputes recommendations for the given
// customers (all of the tenant's accounts when none are given) and
// persists the transitions that the classifier recommends, writing one
// audit trail entry per transition. At most one apply runs per customer
// at a time; concurrent attempts for the same customer are skipped.
func (s *RecoveryService) ApplyCategoryChanges(ctx context.Context, tenantID uuid.UUID, customerIDs []uuid.UUID, asOf time.Time) (*ApplyResult, error) {
	asOf = recovery.DateOnly(asOf)

	if len(customerIDs) == 0 {
		accounts, err := s.accountRepo.FindAll(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		customerIDs = make([]uuid.UUID, len(accounts))
		for i := range accounts {
			customerIDs[i] = accounts[i].CustomerID
		}
	}

	result := &ApplyResult{AsOf: asOf, Changes: make([]AppliedChange, 0, len(customerIDs))}
	for _, customerID := range customerIDs {
		change := s.applyOne(ctx, tenantID, customerID, asOf)
		switch {
		case change.Error != "":
			result.Failed++
		case change.Skipped:
			result.Skipped++
		default:
			result.Applied++
		}
		result.Changes = append(result.Changes, change)
	}
	return result, nil
}

func (s *RecoveryService) applyOne(ctx context.Context, tenantID, customerID uuid.UUID, asOf time.Time) AppliedChange {
	entry := AppliedChange{CustomerID: customerID}

	if _, busy := s.applying.LoadOrStore(customerID, struct{}{}); busy {
		entry.Skipped = true
		entry.SkipReason = "apply already in progress for this customer"
		return entry
	}
	defer s.applying.Delete(customerID)

	account, err := s.accountRepo.FindByCustomerID(ctx, tenantID, customerID)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	if account == nil {
		entry.Skipped = true
		entry.SkipReason = "no customer account"
		return entry
	}

	invoices, receipts, err := s.snapshot(ctx, tenantID, customerID)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	assessment, err := s.engine.EvaluateCustomer(customerID, account.Category, invoices, receipts, asOf)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}

	rec := assessment.Recommendation
	if !rec.RecommendedCategory.IsAssignable() {
		entry.Skipped = true
		entry.SkipReason = "no qualifying payment history"
		return entry
	}
	if !rec.WillChange {
		entry.Skipped = true
		entry.SkipReason = "category unchanged"
		return entry
	}

	auditEntry, err := account.ApplyCategory(rec.RecommendedCategory, rec.ChangeReason, rec.MaxDaysOverdue)
	if err != nil {
		entry.Error = err.Error()
		return entry
	}
	if err := s.accountRepo.Update(ctx, account); err != nil {
		entry.Error = err.Error()
		return entry
	}
	if err := s.changeRepo.Append(ctx, auditEntry); err != nil {
		entry.Error = err.Error()
		return entry
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, tenantID, customerID); err != nil {
			s.logger.Warn("recommendation cache invalidation failed",
				zap.String("customer_id", customerID.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("customer category changed",
		zap.String("customer_id", customerID.String()),
		zap.String("from", auditEntry.FromCategory.String()),
		zap.String("to", auditEntry.ToCategory.String()),
		zap.String("reason", auditEntry.Reason))

	entry.FromCategory = auditEntry.FromCategory
	entry.ToCategory = auditEntry.ToCategory
	return entry
}

// ApplyManualCategory assigns an explicitly chosen category to a
// customer account, bypassing the classifier. The same per-customer
// serialization as the recommended-change path applies.
func (s *RecoveryService) ApplyManualCategory(ctx context.Context, tenantID, customerID uuid.UUID, to recovery.CustomerCategory, reason string, daysOverdue int) (*recovery.CategoryChange, error) {
	if _, busy := s.applying.LoadOrStore(customerID, struct{}{}); busy {
		return nil, shared.NewDomainError("CONCURRENCY_CONFLICT", "a category change for this customer is already in progress")
	}
	defer s.applying.Delete(customerID)

	account, err := s.accountRepo.FindByCustomerID(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, shared.NewDomainError("NOT_FOUND", "customer account not found")
	}

	auditEntry, err := account.ApplyCategory(to, reason, daysOverdue)
	if err != nil {
		return nil, err
	}
	if err := s.accountRepo.Update(ctx, account); err != nil {
		return nil, err
	}
	if err := s.changeRepo.Append(ctx, auditEntry); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, tenantID, customerID); err != nil {
			s.logger.Warn("recommendation cache invalidation failed",
				zap.String("customer_id", customerID.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("customer category changed",
		zap.String("customer_id", customerID.String()),
		zap.String("from", auditEntry.FromCategory.String()),
		zap.String("to", auditEntry.ToCategory.String()),
		zap.String("reason", auditEntry.Reason))

	return auditEntry, nil
}

// CategoryHistory returns the audit trail of category transitions for a
// customer, most recent first
func (s *RecoveryService) CategoryHistory(ctx context.Context, tenantID, customerID uuid.UUID) ([]recovery.CategoryChange, error) {
	changes, err := s.changeRepo.FindByCustomer(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].ChangedAt.After(changes[j].ChangedAt)
	})
	return changes, nil
}
