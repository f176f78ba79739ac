package wallet

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"certipanel/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultCurrency = "USD"

// Store owns wallet accounts and the append-only ledger. Accounts cache the
// ledger sum and are only touched together with ledger inserts, inside the
// same transaction, under FOR UPDATE locks taken in ascending user-id order.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// EnsureAccount idempotently creates a zero-balance account for an existing
// user inside the given transaction.
func (s *Store) EnsureAccount(tx *gorm.DB, userID uint) error {
	var count int64
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: id=%d", ErrUserNotFound, userID)
	}

	var exists int64
	if err := tx.Model(&models.WalletAccount{}).Where("user_id = ?", userID).Count(&exists).Error; err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}

	acc := models.WalletAccount{UserID: userID, BalanceCents: 0, Currency: DefaultCurrency}
	return tx.Create(&acc).Error
}

// LockAccounts takes FOR UPDATE locks on every listed account, creating
// missing accounts first. The id set is deduplicated and locked in ascending
// order regardless of call-site ordering; this total ordering is the sole
// deadlock-avoidance mechanism for overlapping transactions.
func (s *Store) LockAccounts(tx *gorm.DB, userIDs []uint) (map[uint]models.WalletAccount, error) {
	seen := make(map[uint]struct{}, len(userIDs))
	ids := make([]uint, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := s.EnsureAccount(tx, id); err != nil {
			return nil, err
		}
	}

	var rows []models.WalletAccount
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id IN ?", ids).
		Order("user_id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	accounts := make(map[uint]models.WalletAccount, len(rows))
	for _, acc := range rows {
		accounts[acc.UserID] = acc
	}
	for _, id := range ids {
		if _, ok := accounts[id]; !ok {
			return nil, fmt.Errorf("%w: account missing after lock for user %d", ErrWallet, id)
		}
	}
	return accounts, nil
}

// ApplyLedgerGroup inserts one logical operation's ledger rows and updates
// every affected cached balance by its net delta, all inside the caller's
// transaction. The caller must hold locks on every touched account.
//
// A group must sum to zero unless every row is a topup mint. Any non-root
// balance that would go negative aborts with ErrInsufficientBalance.
func (s *Store) ApplyLedgerGroup(tx *gorm.DB, txID string, rows []models.WalletLedger) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: empty ledger group", ErrWallet)
	}

	var sum int64
	allMint := true
	deltas := make(map[uint]int64)
	for i := range rows {
		rows[i].TxID = txID
		if rows[i].Currency == "" {
			rows[i].Currency = DefaultCurrency
		}
		if rows[i].Meta == nil {
			rows[i].Meta = datatypes.JSONMap{}
		}
		sum += rows[i].AmountCents
		deltas[rows[i].UserID] += rows[i].AmountCents
		if rows[i].EntryKind != models.EntryTopup {
			allMint = false
		}
	}
	if sum != 0 && !allMint {
		return fmt.Errorf("%w: ledger group %s does not sum to zero (%d)", ErrWallet, txID, sum)
	}

	userIDs := make([]uint, 0, len(deltas))
	for id := range deltas {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	var accounts []models.WalletAccount
	if err := tx.Where("user_id IN ?", userIDs).Find(&accounts).Error; err != nil {
		return err
	}
	balances := make(map[uint]int64, len(accounts))
	for _, acc := range accounts {
		balances[acc.UserID] = acc.BalanceCents
	}

	now := time.Now().UTC()
	for _, id := range userIDs {
		balance, ok := balances[id]
		if !ok {
			return fmt.Errorf("%w: no account for user %d in group %s", ErrWallet, id, txID)
		}
		newBalance := balance + deltas[id]
		if newBalance < 0 && !allMint {
			var user models.User
			if err := tx.First(&user, id).Error; err != nil {
				return err
			}
			if !user.IsRoot() {
				return fmt.Errorf("%w: user %d would reach %d cents", ErrInsufficientBalance, id, newBalance)
			}
		}

		if err := tx.Model(&models.WalletAccount{}).
			Where("user_id = ?", id).
			Updates(map[string]interface{}{"balance_cents": newBalance, "updated_at": now}).Error; err != nil {
			return err
		}
	}

	return tx.Create(&rows).Error
}

// GetBalance returns the cached account, creating it when first asked about
// a valid user. Never fails for an existing user.
func (s *Store) GetBalance(userID uint) (models.WalletAccount, error) {
	if err := s.EnsureAccount(s.db, userID); err != nil {
		return models.WalletAccount{}, err
	}
	var acc models.WalletAccount
	if err := s.db.Where("user_id = ?", userID).First(&acc).Error; err != nil {
		return models.WalletAccount{}, err
	}
	return acc, nil
}

// ListLedger returns a user's ledger rows newest-first without scope checks;
// scoped access lives in the reporting service.
func (s *Store) ListLedger(userID uint, limit, offset int) ([]models.WalletLedger, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.WalletLedger
	err := s.db.Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	return rows, err
}

// Topup is the only unbalanced ledger operation: a pure mint, restricted to
// the root role.
func (s *Store) Topup(actor models.User, targetUserID uint, amountCents int64, note string) (models.WalletLedger, error) {
	if !actor.IsRoot() {
		return models.WalletLedger{}, fmt.Errorf("%w: only root can mint topups", ErrForbiddenTransfer)
	}
	if amountCents <= 0 {
		return models.WalletLedger{}, fmt.Errorf("%w: topup amount must be positive", ErrWallet)
	}

	txID := uuid.New().String()
	row := models.WalletLedger{
		UserID:        targetUserID,
		EntryKind:     models.EntryTopup,
		AmountCents:   amountCents,
		Currency:      DefaultCurrency,
		RelatedUserID: &actor.ID,
		Note:          note,
		Meta:          datatypes.JSONMap{"by_user_id": actor.ID},
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return models.WalletLedger{}, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if _, err := s.LockAccounts(tx, []uint{targetUserID}); err != nil {
		tx.Rollback()
		return models.WalletLedger{}, err
	}
	rows := []models.WalletLedger{row}
	if err := s.ApplyLedgerGroup(tx, txID, rows); err != nil {
		tx.Rollback()
		return models.WalletLedger{}, err
	}
	if err := tx.Commit().Error; err != nil {
		return models.WalletLedger{}, err
	}
	return rows[0], nil
}

// TransferToChild moves funds from the actor to one of its direct children
// as a balanced transfer pair.
func (s *Store) TransferToChild(actor models.User, childUserID uint, amountCents int64, note string) ([]models.WalletLedger, error) {
	if amountCents <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrWallet)
	}

	var child models.User
	if err := s.db.First(&child, childUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrUserNotFound, childUserID)
		}
		return nil, err
	}
	if child.ParentID == nil || *child.ParentID != actor.ID {
		return nil, fmt.Errorf("%w: %d is not a direct child of %d", ErrForbiddenTransfer, childUserID, actor.ID)
	}

	txID := uuid.New().String()
	rows := []models.WalletLedger{
		{
			UserID:        actor.ID,
			EntryKind:     models.EntryTransferOut,
			AmountCents:   -amountCents,
			Currency:      DefaultCurrency,
			RelatedUserID: &child.ID,
			Note:          note,
			Meta:          datatypes.JSONMap{"to_user_id": child.ID},
		},
		{
			UserID:        child.ID,
			EntryKind:     models.EntryTransferIn,
			AmountCents:   amountCents,
			Currency:      DefaultCurrency,
			RelatedUserID: &actor.ID,
			Note:          note,
			Meta:          datatypes.JSONMap{"from_user_id": actor.ID},
		},
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	accounts, err := s.LockAccounts(tx, []uint{actor.ID, child.ID})
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if accounts[actor.ID].BalanceCents < amountCents {
		tx.Rollback()
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, accounts[actor.ID].BalanceCents, amountCents)
	}

	if err := s.ApplyLedgerGroup(tx, txID, rows); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return rows, nil
}
