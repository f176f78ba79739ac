package reporting

import (
	"time"

	"certipanel/models"
	"certipanel/wallet"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service answers read-only, hierarchy-scoped reporting queries. It never
// mutates the ledger and never reveals identities below one hop: deep
// descendants are bucketed to the viewer's direct children.
type Service struct {
	db    *gorm.DB
	store *wallet.Store
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, store: wallet.NewStore(db)}
}

// CanViewUser scopes per-user reads: self, direct child, or root.
func CanViewUser(viewer, target models.User) bool {
	if viewer.IsRoot() || viewer.ID == target.ID {
		return true
	}
	return target.ParentID != nil && *target.ParentID == viewer.ID
}

// Money renders integer cents for display. Display-side only; nothing here
// feeds back into ledger math.
func Money(cents int64) string {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100)).StringFixed(2)
}

// UnitPriceCents derives a display unit price from an order total, rounded
// down.
func UnitPriceCents(totalCents int64, quantity int) int64 {
	if quantity < 1 {
		return 0
	}
	return decimal.NewFromInt(totalCents).
		Div(decimal.NewFromInt(int64(quantity))).
		Truncate(0).IntPart()
}

type LedgerFilters struct {
	DateFrom  *time.Time
	DateTo    *time.Time
	EntryKind string
	TxID      string
	Limit     int
	Offset    int
}

type LedgerItem struct {
	ID                uint              `json:"id"`
	CreatedAt         time.Time         `json:"created_at"`
	TxID              string            `json:"tx_id"`
	EntryKind         string            `json:"entry_kind"`
	AmountCents       int64             `json:"amount_cents"`
	BalanceAfterCents int64             `json:"balance_after_cents"`
	Currency          string            `json:"currency"`
	RelatedUserID     *uint             `json:"related_user_id"`
	RelatedUsername   string            `json:"related_username"`
	PlanID            *uint             `json:"plan_id"`
	PlanTitle         string            `json:"plan_title"`
	Note              string            `json:"note"`
	Meta              datatypes.JSONMap `json:"meta"`
}

type LedgerPage struct {
	Items  []LedgerItem `json:"items"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// ListLedger pages one user's balance history newest-first, each row carrying
// the running balance after it applied.
func (s *Service) ListLedger(userID uint, f LedgerFilters) (*LedgerPage, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	q := s.db.Model(&models.WalletLedger{}).Where("user_id = ?", userID)
	if f.DateFrom != nil {
		q = q.Where("created_at >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		q = q.Where("created_at <= ?", *f.DateTo)
	}
	if f.EntryKind != "" {
		q = q.Where("entry_kind = ?", f.EntryKind)
	}
	if f.TxID != "" {
		q = q.Where("tx_id = ?", f.TxID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	where := "user_id = ?"
	args := []interface{}{userID}
	if f.DateFrom != nil {
		where += " AND created_at >= ?"
		args = append(args, *f.DateFrom)
	}
	if f.DateTo != nil {
		where += " AND created_at <= ?"
		args = append(args, *f.DateTo)
	}
	if f.EntryKind != "" {
		where += " AND entry_kind = ?"
		args = append(args, f.EntryKind)
	}
	if f.TxID != "" {
		where += " AND tx_id = ?"
		args = append(args, f.TxID)
	}
	args = append(args, f.Limit, f.Offset)

	var items []LedgerItem
	err := s.db.Raw(`
		SELECT * FROM (
			SELECT id, created_at, tx_id, entry_kind, amount_cents, currency,
			       related_user_id, plan_id, note, meta,
			       SUM(amount_cents) OVER (
			           PARTITION BY user_id
			           ORDER BY created_at ASC, id ASC
			       ) AS balance_after_cents
			FROM wallet_ledgers
			WHERE `+where+`
		) ranked
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, args...).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	if err := s.decorate(items); err != nil {
		return nil, err
	}
	return &LedgerPage{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// TxDetails returns every row one tx_id produced for one user.
func (s *Service) TxDetails(userID uint, txID string) ([]LedgerItem, error) {
	var rows []models.WalletLedger
	if err := s.db.Where("user_id = ? AND tx_id = ?", userID, txID).
		Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]LedgerItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, LedgerItem{
			ID:            r.ID,
			CreatedAt:     r.CreatedAt,
			TxID:          r.TxID,
			EntryKind:     r.EntryKind,
			AmountCents:   r.AmountCents,
			Currency:      r.Currency,
			RelatedUserID: r.RelatedUserID,
			PlanID:        r.PlanID,
			Note:          r.Note,
			Meta:          r.Meta,
		})
	}
	if err := s.decorate(items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) decorate(items []LedgerItem) error {
	userIDs := make([]uint, 0, len(items))
	planIDs := make([]uint, 0, len(items))
	for _, it := range items {
		if it.RelatedUserID != nil {
			userIDs = append(userIDs, *it.RelatedUserID)
		}
		if it.PlanID != nil {
			planIDs = append(planIDs, *it.PlanID)
		}
	}

	usernames := make(map[uint]string)
	if len(userIDs) > 0 {
		var users []models.User
		if err := s.db.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
			return err
		}
		for _, u := range users {
			usernames[u.ID] = u.Username
		}
	}

	titles := make(map[uint]string)
	if len(planIDs) > 0 {
		var plans []models.Plan
		if err := s.db.Where("id IN ?", planIDs).Find(&plans).Error; err != nil {
			return err
		}
		for _, p := range plans {
			titles[p.ID] = p.Title
		}
	}

	for i := range items {
		if items[i].RelatedUserID != nil {
			items[i].RelatedUsername = usernames[*items[i].RelatedUserID]
		}
		if items[i].PlanID != nil {
			items[i].PlanTitle = titles[*items[i].PlanID]
		}
	}
	return nil
}
