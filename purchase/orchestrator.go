package purchase

import (
	"errors"
	"fmt"

	"certipanel/coupons"
	"certipanel/hierarchy"
	"certipanel/models"
	"certipanel/pricing"
	"certipanel/wallet"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrPlanUnavailable = errors.New("plan not found or inactive")

// Orchestrator runs a purchase as one all-or-nothing unit: distribution,
// ledger group, order, coupons and their events all commit under a single
// tx_id or not at all.
type Orchestrator struct {
	db       *gorm.DB
	store    *wallet.Store
	resolver *pricing.Resolver
}

func NewOrchestrator(db *gorm.DB) *Orchestrator {
	return &Orchestrator{
		db:       db,
		store:    wallet.NewStore(db),
		resolver: pricing.NewResolver(db),
	}
}

type Result struct {
	TxID           string   `json:"tx_id"`
	OrderID        uint     `json:"order_id"`
	PlanID         uint     `json:"plan_id"`
	BuyerUserID    uint     `json:"buyer_user_id"`
	Quantity       int      `json:"quantity"`
	UnitPriceCents int64    `json:"unit_price_cents"`
	TotalPaidCents int64    `json:"total_paid_cents"`
	Credits        []Credit `json:"credits"`
	CouponCodes    []string `json:"coupon_codes"`
}

// loadChain walks buyer -> root inside tx, resolving each ancestor's sell
// price to the level below and its own cost. Pricing reads take no locks;
// the tables are read-mostly and the arithmetic re-runs on retry.
func (o *Orchestrator) loadChain(tx *gorm.DB, buyer models.User, planID uint) ([]ChainLevel, error) {
	var chain []ChainLevel
	current := buyer

	for {
		if current.ParentID == nil {
			return nil, fmt.Errorf("%w: reached user %d without parent before root",
				hierarchy.ErrBrokenHierarchy, current.ID)
		}

		var parent models.User
		if err := tx.First(&parent, *current.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: parent %d missing", hierarchy.ErrBrokenHierarchy, *current.ParentID)
			}
			return nil, err
		}

		// What the parent charged this child.
		sell, err := o.resolver.ResolveCost(tx, current, planID)
		if err != nil {
			return nil, err
		}
		// What the parent itself pays.
		cost, err := o.resolver.ResolveCost(tx, parent, planID)
		if err != nil {
			return nil, err
		}

		chain = append(chain, ChainLevel{
			UserID:         parent.ID,
			IsRoot:         parent.IsRoot(),
			SellPriceCents: sell.Cents,
			CostCents:      cost.Cents,
		})

		if parent.IsRoot() {
			return chain, nil
		}
		current = parent
	}
}

// Purchase charges the buyer the contracted price, credits every ancestor
// its margin and root its base cost, then issues the order and its coupons.
// Any failure at any step rolls back everything, including already-inserted
// ledger rows.
func (o *Orchestrator) Purchase(buyer models.User, planID uint, quantity int, note string) (*Result, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be >= 1, got %d", quantity)
	}

	var plan models.Plan
	if err := o.db.First(&plan, planID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrPlanUnavailable, planID)
		}
		return nil, err
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("%w: plan %d is inactive", ErrPlanUnavailable, planID)
	}

	txID := uuid.New().String()

	tx := o.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	chain, err := o.loadChain(tx, buyer, planID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	dist, err := BuildDistribution(buyer.ID, chain, quantity)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// Lock buyer + every credited ancestor together; LockAccounts
	// canonicalizes the order.
	lockIDs := []uint{buyer.ID}
	for _, c := range dist.Credits {
		lockIDs = append(lockIDs, c.UserID)
	}
	accounts, err := o.store.LockAccounts(tx, lockIDs)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if accounts[buyer.ID].BalanceCents < dist.TotalDebitCents {
		tx.Rollback()
		return nil, fmt.Errorf("%w: have %d, need %d",
			wallet.ErrInsufficientBalance, accounts[buyer.ID].BalanceCents, dist.TotalDebitCents)
	}

	rows := o.ledgerRows(buyer, planID, dist, note)
	if err := o.store.ApplyLedgerGroup(tx, txID, rows); err != nil {
		tx.Rollback()
		return nil, err
	}

	order := models.Order{
		TxID:           txID,
		BuyerUserID:    buyer.ID,
		PlanID:         planID,
		Quantity:       quantity,
		UnitPriceCents: dist.UnitPriceCents,
		TotalPaidCents: dist.TotalDebitCents,
		Currency:       wallet.DefaultCurrency,
		Status:         models.OrderStatusPaid,
	}
	if err := tx.Create(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	issued, err := coupons.Issue(tx, buyer.ID, buyer.ID, planID, quantity, note, datatypes.JSONMap{
		"source":   "purchase",
		"order_id": order.ID,
		"tx_id":    txID,
		"plan_id":  planID,
		"quantity": quantity,
	})
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	codes := make([]string, 0, len(issued))
	for _, coupon := range issued {
		item := models.OrderItem{OrderID: order.ID, CouponCode: coupon.CouponCode}
		if err := tx.Create(&item).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		codes = append(codes, coupon.CouponCode)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &Result{
		TxID:           txID,
		OrderID:        order.ID,
		PlanID:         planID,
		BuyerUserID:    buyer.ID,
		Quantity:       quantity,
		UnitPriceCents: dist.UnitPriceCents,
		TotalPaidCents: dist.TotalDebitCents,
		Credits:        dist.Credits,
		CouponCodes:    codes,
	}, nil
}

// ledgerRows lays the distribution out as ledger rows: one purchase_debit,
// one profit_credit per ancestor with margin, and root's base portion as its
// own admin_base_credit row, never merged with root's profit.
func (o *Orchestrator) ledgerRows(buyer models.User, planID uint, dist *Distribution, note string) []models.WalletLedger {
	plan := planID
	buyerID := buyer.ID

	rows := []models.WalletLedger{
		{
			UserID:        buyer.ID,
			EntryKind:     models.EntryPurchaseDebit,
			AmountCents:   -dist.TotalDebitCents,
			Currency:      wallet.DefaultCurrency,
			RelatedUserID: buyer.ParentID,
			PlanID:        &plan,
			Note:          note,
			Meta: datatypes.JSONMap{
				"unit_price_cents": dist.UnitPriceCents,
				"quantity":         dist.Quantity,
				"total_paid_cents": dist.TotalDebitCents,
			},
		},
	}

	for _, c := range dist.Credits {
		// Root's base portion is always its own row, zero base included,
		// so per-entry-kind reporting never silently misses one.
		if c.IsRoot {
			rows = append(rows, models.WalletLedger{
				UserID:        c.UserID,
				EntryKind:     models.EntryAdminBaseCredit,
				AmountCents:   c.BaseCents,
				Currency:      wallet.DefaultCurrency,
				RelatedUserID: &buyerID,
				PlanID:        &plan,
				Note:          "Platform base cost credit",
				Meta:          datatypes.JSONMap{"quantity": dist.Quantity},
			})
		}
		if c.ProfitCents > 0 {
			rows = append(rows, models.WalletLedger{
				UserID:        c.UserID,
				EntryKind:     models.EntryProfitCredit,
				AmountCents:   c.ProfitCents,
				Currency:      wallet.DefaultCurrency,
				RelatedUserID: &buyerID,
				PlanID:        &plan,
				Note:          "Profit credit",
				Meta:          datatypes.JSONMap{"quantity": dist.Quantity},
			})
		}
	}
	return rows
}
