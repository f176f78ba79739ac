package wallet_test

import (
	"sync"
	"testing"

	"certipanel/hierarchy"
	"certipanel/models"
	"certipanel/testsupport"
	"certipanel/wallet"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopup(t *testing.T) {
	db := testsupport.OpenDB(t)
	users := testsupport.CreateChain(t, db, 1)
	root, child := users[0], users[1]

	store := wallet.NewStore(db)

	row, err := store.Topup(root, root.ID, 50000, "initial float")
	require.NoError(t, err)
	assert.Equal(t, models.EntryTopup, row.EntryKind)
	assert.NotEmpty(t, row.TxID)

	acc, err := store.GetBalance(root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), acc.BalanceCents)

	// Re-reading without intervening writes changes nothing.
	again, err := store.GetBalance(root.ID)
	require.NoError(t, err)
	assert.Equal(t, acc.BalanceCents, again.BalanceCents)

	// Only root mints.
	_, err = store.Topup(child, child.ID, 1000, "")
	assert.ErrorIs(t, err, wallet.ErrForbiddenTransfer)

	// Mints are strictly positive.
	_, err = store.Topup(root, root.ID, -1, "")
	assert.ErrorIs(t, err, wallet.ErrWallet)
}

func TestTransferToChild(t *testing.T) {
	db := testsupport.OpenDB(t)
	users := testsupport.CreateChain(t, db, 2)
	root, a, b := users[0], users[1], users[2]

	store := wallet.NewStore(db)
	_, err := store.Topup(root, root.ID, 10000, "")
	require.NoError(t, err)

	rows, err := store.TransferToChild(root, a.ID, 4000, "float for a")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.EntryTransferOut, rows[0].EntryKind)
	assert.Equal(t, int64(-4000), rows[0].AmountCents)
	assert.Equal(t, models.EntryTransferIn, rows[1].EntryKind)
	assert.Equal(t, int64(4000), rows[1].AmountCents)
	assert.Equal(t, rows[0].TxID, rows[1].TxID)

	rootAcc, err := store.GetBalance(root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), rootAcc.BalanceCents)

	aAcc, err := store.GetBalance(a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), aAcc.BalanceCents)

	// b is root's grandchild, not a direct child.
	_, err = store.TransferToChild(root, b.ID, 100, "")
	assert.ErrorIs(t, err, wallet.ErrForbiddenTransfer)

	// More than the sender holds.
	_, err = store.TransferToChild(root, a.ID, 99999, "")
	assert.ErrorIs(t, err, wallet.ErrInsufficientBalance)
}

func TestLockAccountsCanonicalOrder(t *testing.T) {
	db := testsupport.OpenDB(t)
	users := testsupport.CreateChain(t, db, 2)
	root, a, b := users[0], users[1], users[2]

	store := wallet.NewStore(db)

	tx := db.Begin()
	require.NoError(t, tx.Error)
	defer tx.Rollback()

	// Shuffled and duplicated ids lock the same canonical set.
	accounts, err := store.LockAccounts(tx, []uint{b.ID, root.ID, a.ID, b.ID, root.ID})
	require.NoError(t, err)
	require.Len(t, accounts, 3)
	for _, id := range []uint{root.ID, a.ID, b.ID} {
		acc, ok := accounts[id]
		require.True(t, ok, "missing locked account for user %d", id)
		assert.Equal(t, id, acc.UserID)
		assert.Equal(t, int64(0), acc.BalanceCents)
	}

	// Unknown users fail before anything is locked.
	_, err = store.LockAccounts(tx, []uint{a.ID, 999999999})
	assert.ErrorIs(t, err, wallet.ErrUserNotFound)
}

func TestApplyLedgerGroupRejectsUnbalanced(t *testing.T) {
	db := testsupport.OpenDB(t)
	users := testsupport.CreateChain(t, db, 1)
	root, a := users[0], users[1]

	store := wallet.NewStore(db)
	_, err := store.Topup(root, root.ID, 10000, "")
	require.NoError(t, err)

	// A lone debit with no matching credit must be rejected.
	tx := db.Begin()
	require.NoError(t, tx.Error)
	_, err = store.LockAccounts(tx, []uint{root.ID})
	require.NoError(t, err)

	txID := uuid.NewString()
	err = store.ApplyLedgerGroup(tx, txID, []models.WalletLedger{
		{UserID: root.ID, EntryKind: models.EntryPurchaseDebit, AmountCents: -100},
	})
	assert.ErrorIs(t, err, wallet.ErrWallet)
	tx.Rollback()

	// A topup row only exempts groups that are mints throughout.
	tx = db.Begin()
	require.NoError(t, tx.Error)
	_, err = store.LockAccounts(tx, []uint{root.ID, a.ID})
	require.NoError(t, err)

	mixedID := uuid.NewString()
	err = store.ApplyLedgerGroup(tx, mixedID, []models.WalletLedger{
		{UserID: root.ID, EntryKind: models.EntryTopup, AmountCents: 100},
		{UserID: a.ID, EntryKind: models.EntryTransferIn, AmountCents: 50},
	})
	assert.ErrorIs(t, err, wallet.ErrWallet)
	tx.Rollback()

	// Neither attempt left a row or moved a balance.
	var count int64
	require.NoError(t, db.Model(&models.WalletLedger{}).
		Where("tx_id IN ?", []string{txID, mixedID}).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	acc, err := store.GetBalance(root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), acc.BalanceCents)
}

func TestConcurrentOverlappingTransfers(t *testing.T) {
	db := testsupport.OpenDB(t)
	users := testsupport.CreateChain(t, db, 2)
	root, a, b := users[0], users[1], users[2]

	// A second branch under root so the lock sets overlap without
	// being identical.
	dir := hierarchy.NewDirectory(db)
	rootID := root.ID
	c, err := dir.CreateUserUnderParent(hierarchy.NewUser{
		Username:     testsupport.UniqueName("sibling"),
		PasswordHash: "x",
		Role:         models.RoleReseller,
		ParentID:     &rootID,
	})
	require.NoError(t, err)

	store := wallet.NewStore(db)
	_, err = store.Topup(root, root.ID, 110000, "")
	require.NoError(t, err)
	_, err = store.TransferToChild(root, a.ID, 10000, "")
	require.NoError(t, err)

	const perWorker = 15
	errs := make(chan error, 3*perWorker)
	var wg sync.WaitGroup

	run := func(actor models.User, childID uint, amount int64) {
		defer wg.Done()
		for i := 0; i < perWorker; i++ {
			if _, err := store.TransferToChild(actor, childID, amount, ""); err != nil {
				errs <- err
			}
		}
	}

	wg.Add(3)
	go run(root, a.ID, 100)
	go run(root, c.ID, 100)
	go run(a, b.ID, 50)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	expected := map[uint]int64{
		root.ID: 100000 - 2*perWorker*100,
		a.ID:    10000 + perWorker*100 - perWorker*50,
		b.ID:    perWorker * 50,
		c.ID:    perWorker * 100,
	}
	for userID, want := range expected {
		acc, err := store.GetBalance(userID)
		require.NoError(t, err)
		assert.Equal(t, want, acc.BalanceCents, "balance for user %d", userID)

		rows, err := store.ListLedger(userID, 200, 0)
		require.NoError(t, err)
		var sum int64
		for _, row := range rows {
			sum += row.AmountCents
		}
		assert.Equal(t, want, sum, "ledger sum for user %d", userID)
	}
}

func TestLedgerMatchesBalance(t *testing.T) {
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

	for _, userID := range []uint{root.ID, a.ID} {
		rows, err := store.ListLedger(userID, 100, 0)
		require.NoError(t, err)

		var sum int64
		for _, row := range rows {
			sum += row.AmountCents
		}

		acc, err := store.GetBalance(userID)
		require.NoError(t, err)
		assert.Equal(t, sum, acc.BalanceCents, "cached balance must equal ledger sum for user %d", userID)
	}
}

func TestSetBalanceViaParent(t *testing.T) {
	db := testsupport.OpenDB(t)
	users := testsupport.CreateChain(t, db, 1)
	root, a := users[0], users[1]

	store := wallet.NewStore(db)
	_, err := store.Topup(root, root.ID, 10000, "")
	require.NoError(t, err)

	// Raise a's balance to 2500: the difference leaves root.
	rows, err := store.SetBalanceViaParent(root, a.ID, 2500, "initial allocation")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	aAcc, err := store.GetBalance(a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2500), aAcc.BalanceCents)

	rootAcc, err := store.GetBalance(root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7500), rootAcc.BalanceCents)

	// Lower it to 1000: the difference returns to root.
	_, err = store.SetBalanceViaParent(root, a.ID, 1000, "clawback")
	require.NoError(t, err)

	aAcc, err = store.GetBalance(a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), aAcc.BalanceCents)

	rootAcc, err = store.GetBalance(root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), rootAcc.BalanceCents)

	// No-op adjustments are rejected.
	_, err = store.SetBalanceViaParent(root, a.ID, 1000, "")
	assert.ErrorIs(t, err, wallet.ErrWallet)

	// Root has no parent to adjust against.
	_, err = store.SetBalanceViaParent(root, root.ID, 1, "")
	assert.Error(t, err)
}

func TestDeactivateSubtreeReturnBalance(t *testing.T) {
	db := testsupport.OpenDB(t)
	users := testsupport.CreateChain(t, db, 3)
	root, a, b, c := users[0], users[1], users[2], users[3]

	store := wallet.NewStore(db)
	_, err := store.Topup(root, root.ID, 10000, "")
	require.NoError(t, err)
	_, err = store.TransferToChild(root, a.ID, 5000, "")
	require.NoError(t, err)
	_, err = store.TransferToChild(a, b.ID, 3000, "")
	require.NoError(t, err)
	_, err = store.TransferToChild(b, c.ID, 1000, "")
	require.NoError(t, err)

	// Root deactivates a's subtree: a, b and c go inactive and their
	// combined 5000 lands on root.
	rollup, err := store.DeactivateSubtreeReturnBalance(root, a.ID, "offboarding")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), rollup.ReturnedCents)

	rootAcc, err := store.GetBalance(root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), rootAcc.BalanceCents)

	for _, u := range []models.User{a, b, c} {
		var reloaded models.User
		require.NoError(t, db.First(&reloaded, u.ID).Error)
		assert.False(t, reloaded.IsActive)

		acc, err := store.GetBalance(u.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), acc.BalanceCents)
	}

	// Self-deactivation is refused.
	_, err = store.DeactivateSubtreeReturnBalance(root, root.ID, "")
	assert.Error(t, err)
}
