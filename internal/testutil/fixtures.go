//go:build integration

package testutil

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zayar/simplecashflow/internal/inventory"
	"github.com/zayar/simplecashflow/internal/ledger"
	"github.com/zayar/simplecashflow/internal/outbox"
	"github.com/zayar/simplecashflow/internal/tenant"
)

// Fixture bundles the services and bootstrapped company integration
// tests work against.
type Fixture struct {
	Pool      *pgxpool.Pool
	Ledger    *ledger.Service
	Inventory *inventory.Service
	Tenant    *tenant.Service
	Company   *tenant.Company
}

// SetupCompany boots the shared database and provisions a fresh company
// with the default chart of accounts.
func SetupCompany(t *testing.T) *Fixture {
	t.Helper()

	pool := GetTestContainer(t)

	outboxRepo := outbox.NewRepository(pool)
	ledgerService := ledger.NewService(pool, outboxRepo)
	inventoryService := inventory.NewService(pool, ledgerService)
	tenantService := tenant.NewService(pool, ledgerService, inventory.NewPostgresRepository(pool))

	company, err := tenantService.CreateCompany(context.Background(), &tenant.CreateCompanyRequest{
		Name: "Test Company " + t.Name(),
	})
	if err != nil {
		t.Fatalf("failed to bootstrap company: %v", err)
	}

	return &Fixture{
		Pool:      pool,
		Ledger:    ledgerService,
		Inventory: inventoryService,
		Tenant:    tenantService,
		Company:   company,
	}
}
