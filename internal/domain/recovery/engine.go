package recovery

import (
	"time"

	"github.com/google/uuid"
)

// Engine runs the full recovery pipeline for one customer: FIFO
// allocation, per-invoice interest accrual and category
// classification. It is pure computation: no clock reads, no I/O and
// no shared mutable state, so identical inputs always produce identical
// output and customers may be evaluated concurrently.
type Engine struct {
	cfg EngineConfig
}

// NewEngine creates an engine, rejecting invalid configuration before
// any customer data is processed
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine configuration
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Allocate runs FIFO allocation for the given snapshot
func (e *Engine) Allocate(invoices []Invoice, receipts []Receipt) (*AllocationRun, error) {
	return Allocate(invoices, receipts)
}

// InterestFor computes the interest breakdown for one invoice using the
// allocations of a prior run
func (e *Engine) InterestFor(inv Invoice, run *AllocationRun, asOf time.Time) (*InterestBreakdown, error) {
	return ComputeInterest(inv, run.AllocationsFor(inv.ID), asOf)
}

// CustomerAssessment bundles everything the engine derives for one
// customer in a single pass
type CustomerAssessment struct {
	CustomerID     uuid.UUID               `json:"customer_id"`
	AsOf           time.Time               `json:"as_of"`
	Run            *AllocationRun          `json:"allocation"`
	Interest       []InterestBreakdown     `json:"interest"`
	Recommendation *CategoryRecommendation `json:"recommendation"`
	RecordErrors   []RecordError           `json:"record_errors,omitempty"`
}

// EvaluateCustomer runs the full pipeline for one customer's snapshot.
// Hard validation failures abort with an error; invoices lacking data
// for interest accrual are skipped with a record error and the rest of
// the assessment completes.
func (e *Engine) EvaluateCustomer(customerID uuid.UUID, current CustomerCategory, invoices []Invoice, receipts []Receipt, asOf time.Time) (*CustomerAssessment, error) {
	run, err := Allocate(invoices, receipts)
	if err != nil {
		return nil, err
	}

	assessment := &CustomerAssessment{
		CustomerID: customerID,
		AsOf:       DateOnly(asOf),
		Run:        run,
		Interest:   make([]InterestBreakdown, 0, len(invoices)),
	}

	for i := range invoices {
		inv := &invoices[i]
		bd, err := ComputeInterest(*inv, run.AllocationsFor(inv.ID), asOf)
		if err != nil {
			if IsIncompleteDataError(err) {
				assessment.RecordErrors = append(assessment.RecordErrors,
					NewRecordError("invoice", inv.ID, inv.InvoiceNumber, err))
				continue
			}
			return nil, err
		}
		assessment.Interest = append(assessment.Interest, *bd)
	}

	assessment.Recommendation = e.cfg.Classify(customerID, current, invoices, run, asOf)
	return assessment, nil
}
