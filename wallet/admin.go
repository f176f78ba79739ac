package wallet

import (
	"errors"
	"fmt"

	"certipanel/hierarchy"
	"certipanel/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SetBalanceViaParent moves a direct child's balance to exactly
// desiredCents by transferring the delta between the child and its parent.
// Never a direct overwrite: both directions produce a balanced
// transfer_out/transfer_in pair so the audit trail stays intact.
func (s *Store) SetBalanceViaParent(actor models.User, targetUserID uint, desiredCents int64, note string) ([]models.WalletLedger, error) {
	if !actor.IsRoot() {
		return nil, fmt.Errorf("%w: only root can set balances", ErrForbiddenTransfer)
	}
	if desiredCents < 0 {
		return nil, fmt.Errorf("%w: target balance cannot be negative", ErrWallet)
	}

	var target models.User
	if err := s.db.First(&target, targetUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrUserNotFound, targetUserID)
		}
		return nil, err
	}
	if target.ParentID == nil {
		return nil, fmt.Errorf("%w: target %d has no parent to transfer via", hierarchy.ErrBrokenHierarchy, targetUserID)
	}
	parentID := *target.ParentID

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	accounts, err := s.LockAccounts(tx, []uint{target.ID, parentID})
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	current := accounts[target.ID].BalanceCents
	delta := desiredCents - current
	if delta == 0 {
		tx.Rollback()
		return nil, fmt.Errorf("%w: target balance equals current balance", ErrWallet)
	}

	txID := uuid.New().String()
	meta := datatypes.JSONMap{
		"kind":                 "admin_set_balance",
		"by_user_id":           actor.ID,
		"target_balance_cents": desiredCents,
	}

	var rows []models.WalletLedger
	if delta > 0 {
		// Parent funds the child.
		if accounts[parentID].BalanceCents < delta {
			tx.Rollback()
			return nil, fmt.Errorf("%w: parent has %d, needs %d", ErrInsufficientBalance, accounts[parentID].BalanceCents, delta)
		}
		rows = []models.WalletLedger{
			{
				UserID:        parentID,
				EntryKind:     models.EntryTransferOut,
				AmountCents:   -delta,
				Currency:      DefaultCurrency,
				RelatedUserID: &target.ID,
				Note:          note,
				Meta:          meta,
			},
			{
				UserID:        target.ID,
				EntryKind:     models.EntryTransferIn,
				AmountCents:   delta,
				Currency:      DefaultCurrency,
				RelatedUserID: &parentID,
				Note:          note,
				Meta:          meta,
			},
		}
	} else {
		// Child returns the excess to the parent.
		giveBack := -delta
		rows = []models.WalletLedger{
			{
				UserID:        target.ID,
				EntryKind:     models.EntryTransferOut,
				AmountCents:   -giveBack,
				Currency:      DefaultCurrency,
				RelatedUserID: &parentID,
				Note:          note,
				Meta:          meta,
			},
			{
				UserID:        parentID,
				EntryKind:     models.EntryTransferIn,
				AmountCents:   giveBack,
				Currency:      DefaultCurrency,
				RelatedUserID: &target.ID,
				Note:          note,
				Meta:          meta,
			},
		}
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

type SubtreeRollup struct {
	DeactivatedUserIDs []uint                `json:"deactivated_user_ids"`
	ReturnedCents      int64                 `json:"returned_cents"`
	Entries            []models.WalletLedger `json:"entries"`
}

// DeactivateSubtreeReturnBalance rolls every positive balance in the target's
// subtree up to the actor, then marks the whole subtree inactive. Users and
// their ledgers are never hard-deleted: history stays queryable forever.
// Each subtree member's rollup is its own balanced tx_id pair.
func (s *Store) DeactivateSubtreeReturnBalance(actor models.User, targetUserID uint, note string) (*SubtreeRollup, error) {
	var target models.User
	if err := s.db.First(&target, targetUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrUserNotFound, targetUserID)
		}
		return nil, err
	}

	if target.ID == actor.ID {
		return nil, fmt.Errorf("%w: cannot deactivate yourself", ErrForbiddenTransfer)
	}
	if !actor.IsRoot() && !hierarchy.IsDescendant(target.Path, actor.Path) {
		return nil, fmt.Errorf("%w: %d is outside your subtree", ErrForbiddenTransfer, targetUserID)
	}

	if note == "" {
		note = "Return balance to owner (deactivate user)"
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

	dir := hierarchy.NewDirectory(tx)
	members, err := dir.SubtreeUsers(target)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	lockIDs := make([]uint, 0, len(members)+1)
	lockIDs = append(lockIDs, actor.ID)
	for _, m := range members {
		lockIDs = append(lockIDs, m.ID)
	}
	accounts, err := s.LockAccounts(tx, lockIDs)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	result := &SubtreeRollup{}
	for _, m := range members {
		result.DeactivatedUserIDs = append(result.DeactivatedUserIDs, m.ID)

		balance := accounts[m.ID].BalanceCents
		if balance <= 0 {
			continue
		}

		memberID := m.ID
		txID := uuid.New().String()
		meta := datatypes.JSONMap{
			"kind":                 "deactivate_return_balance",
			"deactivated_user_id":  m.ID,
			"by_user_id":           actor.ID,
			"subtree_root_user_id": target.ID,
		}
		rows := []models.WalletLedger{
			{
				UserID:        m.ID,
				EntryKind:     models.EntryTransferOut,
				AmountCents:   -balance,
				Currency:      DefaultCurrency,
				RelatedUserID: &actor.ID,
				Note:          note,
				Meta:          meta,
			},
			{
				UserID:        actor.ID,
				EntryKind:     models.EntryTransferIn,
				AmountCents:   balance,
				Currency:      DefaultCurrency,
				RelatedUserID: &memberID,
				Note:          note,
				Meta:          meta,
			},
		}
		if err := s.ApplyLedgerGroup(tx, txID, rows); err != nil {
			tx.Rollback()
			return nil, err
		}
		result.ReturnedCents += balance
		result.Entries = append(result.Entries, rows...)
	}

	memberIDs := result.DeactivatedUserIDs
	if err := tx.Model(&models.User{}).Where("id IN ?", memberIDs).
		Update("is_active", false).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return result, nil
}
