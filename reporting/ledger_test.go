package reporting_test

import (
	"testing"

	"certipanel/models"
	"certipanel/pricing"
	"certipanel/purchase"
	"certipanel/reporting"
	"certipanel/testsupport"
	"certipanel/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListLedgerRunningBalance(t *testing.T) {
	db := testsupport.OpenDB(t)
	users := testsupport.CreateChain(t, db, 1)
	root, a := users[0], users[1]

	store := wallet.NewStore(db)
	_, err := store.Topup(root, root.ID, 10000, "")
	require.NoError(t, err)
	_, err = store.TransferToChild(root, a.ID, 3000, "")
	require.NoError(t, err)
	_, err = store.TransferToChild(root, a.ID, 2000, "")
	require.NoError(t, err)

	svc := reporting.NewService(db)
	page, err := svc.ListLedger(root.ID, reporting.LedgerFilters{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, int64(3), page.Total)
	require.Len(t, page.Items, 3)

	// Newest first: 5000 after the second transfer, 7000 after the
	// first, 10000 after the mint.
	assert.Equal(t, int64(5000), page.Items[0].BalanceAfterCents)
	assert.Equal(t, int64(7000), page.Items[1].BalanceAfterCents)
	assert.Equal(t, int64(10000), page.Items[2].BalanceAfterCents)

	// Filtering by kind keeps the running balance of the full ledger.
	page, err = svc.ListLedger(root.ID, reporting.LedgerFilters{EntryKind: models.EntryTopup, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(10000), page.Items[0].BalanceAfterCents)
}

func TestDashboardSummary(t *testing.T) {
	db := testsupport.OpenDB(t)
	users := testsupport.CreateChain(t, db, 2)
	root, a, b := users[0], users[1], users[2]
	plan := testsupport.CreatePlan(t, db)

	resolver := pricing.NewResolver(db)
	_, err := resolver.UpsertBasePrice(root, plan.ID, 10000, "USD")
	require.NoError(t, err)
	_, err = resolver.UpsertEdge(root, root.ID, a.ID, plan.ID, 15000, "USD")
	require.NoError(t, err)
	_, err = resolver.UpsertEdge(a, a.ID, b.ID, plan.ID, 20000, "USD")
	require.NoError(t, err)

	store := wallet.NewStore(db)
	_, err = store.Topup(root, b.ID, 100000, "")
	require.NoError(t, err)

	orch := purchase.NewOrchestrator(db)
	_, err = orch.Purchase(b, plan.ID, 2, "")
	require.NoError(t, err)

	svc := reporting.NewService(db)

	// From a's vantage point the sale happened in its subtree and
	// buckets to its direct child b.
	summary, err := svc.DashboardSummary(a, reporting.PeriodOverall, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Totals.TotalOrders)
	assert.Equal(t, int64(40000), summary.Totals.TotalSalesCents)

	require.NotEmpty(t, summary.ByPlan)
	assert.Equal(t, plan.ID, summary.ByPlan[0].PlanID)

	require.NotEmpty(t, summary.ByChild)
	assert.Equal(t, b.ID, summary.ByChild[0].BucketUserID)
	assert.Equal(t, int64(40000), summary.ByChild[0].SalesCents)
}
