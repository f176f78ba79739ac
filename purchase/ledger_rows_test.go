package purchase

import (
	"testing"

	"certipanel/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestLedgerRowsZeroBasePrice(t *testing.T) {
	// Root gives the plan away at base 0 and sells to its child at 50.
	chain := []ChainLevel{
		{UserID: 1, IsRoot: true, SellPriceCents: 50, CostCents: 0},
	}
	dist, err := BuildDistribution(2, chain, 1)
	require.NoError(t, err)

	rootID := uint(1)
	buyer := models.User{Model: gorm.Model{ID: 2}, ParentID: &rootID}

	o := &Orchestrator{}
	rows := o.ledgerRows(buyer, 7, dist, "")

	// Even a zero base price keeps its own admin_base_credit row.
	var baseRows, profitRows []models.WalletLedger
	for _, row := range rows {
		switch row.EntryKind {
		case models.EntryAdminBaseCredit:
			baseRows = append(baseRows, row)
		case models.EntryProfitCredit:
			profitRows = append(profitRows, row)
		}
	}
	require.Len(t, baseRows, 1)
	assert.Equal(t, int64(0), baseRows[0].AmountCents)
	assert.Equal(t, rootID, baseRows[0].UserID)

	require.Len(t, profitRows, 1)
	assert.Equal(t, int64(50), profitRows[0].AmountCents)

	// The group still balances.
	var sum int64
	for _, row := range rows {
		sum += row.AmountCents
	}
	assert.Equal(t, int64(0), sum)
}
