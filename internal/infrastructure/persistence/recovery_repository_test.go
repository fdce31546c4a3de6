package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/arcollect/backend/internal/domain/recovery"
	"github.com/arcollect/backend/internal/domain/shared"
	"github.com/arcollect/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupRecoveryTestDB creates an in-memory SQLite database with the
// recovery tables migrated
func setupRecoveryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.AllModels()...))
	return db
}

func newInvoice(customerID uuid.UUID, number string, invoiceDate time.Time, amount int64, termsDays int) *recovery.Invoice {
	terms := termsDays
	return &recovery.Invoice{
		ID:               uuid.New(),
		CustomerID:       customerID,
		InvoiceNumber:    number,
		InvoiceDate:      invoiceDate,
		Amount:           decimal.NewFromInt(amount),
		PaymentTermsDays: &terms,
		InterestRate:     decimal.NewFromInt(18),
	}
}

func TestGormInvoiceRepository(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	customerID := uuid.New()

	t.Run("save and find by ID", func(t *testing.T) {
		db := setupRecoveryTestDB(t)
		repo := NewGormInvoiceRepository(db)

		inv := newInvoice(customerID, "INV-001", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 1000, 30)
		require.NoError(t, repo.Save(ctx, tenantID, inv))

		found, err := repo.FindByID(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "INV-001", found.InvoiceNumber)
		assert.True(t, found.Amount.Equal(inv.Amount))
		require.NotNil(t, found.PaymentTermsDays)
		assert.Equal(t, 30, *found.PaymentTermsDays)
	})

	t.Run("missing invoice returns nil without error", func(t *testing.T) {
		db := setupRecoveryTestDB(t)
		repo := NewGormInvoiceRepository(db)

		found, err := repo.FindByID(ctx, tenantID, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("find by customer is ordered and tenant scoped", func(t *testing.T) {
		db := setupRecoveryTestDB(t)
		repo := NewGormInvoiceRepository(db)

		newer := newInvoice(customerID, "INV-002", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), 500, 30)
		older := newInvoice(customerID, "INV-001", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 1000, 30)
		otherTenant := newInvoice(customerID, "INV-003", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), 750, 30)
		require.NoError(t, repo.Save(ctx, tenantID, newer))
		require.NoError(t, repo.Save(ctx, tenantID, older))
		require.NoError(t, repo.Save(ctx, uuid.New(), otherTenant))

		invoices, err := repo.FindByCustomer(ctx, tenantID, customerID)
		require.NoError(t, err)
		require.Len(t, invoices, 2)
		assert.Equal(t, "INV-001", invoices[0].InvoiceNumber)
		assert.Equal(t, "INV-002", invoices[1].InvoiceNumber)
	})

	t.Run("save updates an existing invoice", func(t *testing.T) {
		db := setupRecoveryTestDB(t)
		repo := NewGormInvoiceRepository(db)

		inv := newInvoice(customerID, "INV-001", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 1000, 30)
		require.NoError(t, repo.Save(ctx, tenantID, inv))
		inv.Amount = decimal.NewFromInt(1500)
		require.NoError(t, repo.Save(ctx, tenantID, inv))

		found, err := repo.FindByID(ctx, tenantID, inv.ID)
		require.NoError(t, err)
		assert.True(t, found.Amount.Equal(decimal.NewFromInt(1500)))
	})
}

func TestGormReceiptRepository(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	customerID := uuid.New()

	t.Run("save and find by customer", func(t *testing.T) {
		db := setupRecoveryTestDB(t)
		repo := NewGormReceiptRepository(db)

		second := &recovery.Receipt{
			ID: uuid.New(), CustomerID: customerID, VoucherNumber: "RV-002",
			ReceiptDate: time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.NewFromInt(500),
		}
		first := &recovery.Receipt{
			ID: uuid.New(), CustomerID: customerID, VoucherNumber: "RV-001",
			ReceiptDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.NewFromInt(1000),
		}
		require.NoError(t, repo.Save(ctx, tenantID, second))
		require.NoError(t, repo.Save(ctx, tenantID, first))

		receipts, err := repo.FindByCustomer(ctx, tenantID, customerID)
		require.NoError(t, err)
		require.Len(t, receipts, 2)
		assert.Equal(t, "RV-001", receipts[0].VoucherNumber)
		assert.Equal(t, "RV-002", receipts[1].VoucherNumber)
	})
}

func TestGormCustomerAccountRepository(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("save and find by customer ID", func(t *testing.T) {
		db := setupRecoveryTestDB(t)
		repo := NewGormCustomerAccountRepository(db)

		account, err := recovery.NewCustomerAccount(tenantID, uuid.New(), "Acme Traders")
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, account))

		found, err := repo.FindByCustomerID(ctx, tenantID, account.CustomerID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "Acme Traders", found.CustomerName)
		assert.Equal(t, recovery.CategoryNew, found.Category)
		assert.Equal(t, 1, found.Version)
	})

	t.Run("missing account returns nil without error", func(t *testing.T) {
		db := setupRecoveryTestDB(t)
		repo := NewGormCustomerAccountRepository(db)

		found, err := repo.FindByCustomerID(ctx, tenantID, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("update persists a category transition", func(t *testing.T) {
		db := setupRecoveryTestDB(t)
		repo := NewGormCustomerAccountRepository(db)

		account, err := recovery.NewCustomerAccount(tenantID, uuid.New(), "Acme Traders")
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, account))

		_, err = account.ApplyCategory(recovery.CategoryBeta, "on-time 80.00%", 5)
		require.NoError(t, err)
		require.NoError(t, repo.Update(ctx, account))

		found, err := repo.FindByCustomerID(ctx, tenantID, account.CustomerID)
		require.NoError(t, err)
		assert.Equal(t, recovery.CategoryBeta, found.Category)
		assert.Equal(t, 2, found.Version)
		assert.NotNil(t, found.CategorizedAt)
	})

	t.Run("stale version is rejected", func(t *testing.T) {
		db := setupRecoveryTestDB(t)
		repo := NewGormCustomerAccountRepository(db)

		account, err := recovery.NewCustomerAccount(tenantID, uuid.New(), "Acme Traders")
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, account))

		stale := *account
		_, err = account.ApplyCategory(recovery.CategoryBeta, "first writer", 0)
		require.NoError(t, err)
		require.NoError(t, repo.Update(ctx, account))

		_, err = stale.ApplyCategory(recovery.CategoryGamma, "second writer", 0)
		require.NoError(t, err)
		err = repo.Update(ctx, &stale)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})

	t.Run("find all is tenant scoped", func(t *testing.T) {
		db := setupRecoveryTestDB(t)
		repo := NewGormCustomerAccountRepository(db)

		mine, err := recovery.NewCustomerAccount(tenantID, uuid.New(), "Mine")
		require.NoError(t, err)
		theirs, err := recovery.NewCustomerAccount(uuid.New(), uuid.New(), "Theirs")
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, mine))
		require.NoError(t, repo.Save(ctx, theirs))

		accounts, err := repo.FindAll(ctx, tenantID)
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, "Mine", accounts[0].CustomerName)
	})
}

func TestGormCategoryChangeRepository(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	customerID := uuid.New()

	t.Run("append and read back in order", func(t *testing.T) {
		db := setupRecoveryTestDB(t)
		repo := NewGormCategoryChangeRepository(db)

		first := &recovery.CategoryChange{
			ID: uuid.New(), TenantID: tenantID, CustomerID: customerID,
			FromCategory: recovery.CategoryNew, ToCategory: recovery.CategoryBeta,
			Reason: "initial", DaysOverdue: 0,
			ChangedAt: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		}
		second := &recovery.CategoryChange{
			ID: uuid.New(), TenantID: tenantID, CustomerID: customerID,
			FromCategory: recovery.CategoryBeta, ToCategory: recovery.CategoryGamma,
			Reason: "invoice overdue beyond 90 days", DaysOverdue: 95,
			ChangedAt: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
		}
		require.NoError(t, repo.Append(ctx, first))
		require.NoError(t, repo.Append(ctx, second))

		changes, err := repo.FindByCustomer(ctx, tenantID, customerID)
		require.NoError(t, err)
		require.Len(t, changes, 2)
		assert.Equal(t, recovery.CategoryBeta, changes[0].ToCategory)
		assert.Equal(t, recovery.CategoryGamma, changes[1].ToCategory)
		assert.Equal(t, 95, changes[1].DaysOverdue)
	})
}
