package reporting_test

import (
	"testing"

	"certipanel/pricing"
	"certipanel/purchase"
	"certipanel/reporting"
	"certipanel/testsupport"
	"certipanel/wallet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListOrdersSubtree(t *testing.T) {
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
	_, err = store.Topup(root, a.ID, 100000, "")
	require.NoError(t, err)
	_, err = store.Topup(root, b.ID, 100000, "")
	require.NoError(t, err)

	orch := purchase.NewOrchestrator(db)
	aResult, err := orch.Purchase(a, plan.ID, 1, "")
	require.NoError(t, err)
	bResult, err := orch.Purchase(b, plan.ID, 2, "")
	require.NoError(t, err)

	svc := reporting.NewService(db)

	// a sees both orders: its own, and its direct child b's, newest first.
	page, err := svc.ListOrdersSubtree(a, reporting.OrderFilters{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 2)

	newest := page.Items[0]
	assert.Equal(t, bResult.TxID, newest.TxID)
	assert.Equal(t, int64(40000), newest.TotalPaidCents)
	assert.Equal(t, "400.00", newest.TotalPaid)
	assert.Equal(t, plan.ID, newest.PlanID)
	require.NotNil(t, newest.BuyerBucketUserID)
	assert.Equal(t, b.ID, *newest.BuyerBucketUserID)
	assert.Equal(t, b.Username, newest.BuyerUsername)

	own := page.Items[1]
	assert.Equal(t, aResult.TxID, own.TxID)
	require.NotNil(t, own.BuyerBucketUserID)
	assert.Equal(t, a.ID, *own.BuyerBucketUserID)
	assert.Equal(t, a.Username, own.BuyerUsername)

	// Root sees the same orders, but b is a grandchild: its purchase rolls
	// up to a's bucket and its username stays hidden.
	page, err = svc.ListOrdersSubtree(root, reporting.OrderFilters{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, int64(2), page.Total)

	for _, item := range page.Items {
		require.NotNil(t, item.BuyerBucketUserID)
		assert.Equal(t, a.ID, *item.BuyerBucketUserID)
		if item.TxID == bResult.TxID {
			assert.Empty(t, item.BuyerUsername)
		} else {
			assert.Equal(t, a.Username, item.BuyerUsername)
		}
	}

	// b's own view holds only its own order.
	page, err = svc.ListOrdersSubtree(b, reporting.OrderFilters{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, bResult.TxID, page.Items[0].TxID)

	// Plan filtering works.
	other := testsupport.CreatePlan(t, db)
	page, err = svc.ListOrdersSubtree(a, reporting.OrderFilters{PlanID: &other.ID, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
}
