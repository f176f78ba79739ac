package reporting

import (
	"time"

	"certipanel/hierarchy"
	"certipanel/models"

	"gorm.io/gorm"
)

type OrderFilters struct {
	PlanID   *uint
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

// OrderView is one order as a viewer may see it. The buyer is collapsed to
// the viewer's direct-child bucket; the username appears only when the buyer
// is the viewer itself or one of its direct children.
type OrderView struct {
	ID                uint      `json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	TxID              string    `json:"tx_id"`
	PlanID            uint      `json:"plan_id"`
	PlanTitle         string    `json:"plan_title"`
	Quantity          int       `json:"quantity"`
	UnitPriceCents    int64     `json:"unit_price_cents"`
	TotalPaidCents    int64     `json:"total_paid_cents"`
	TotalPaid         string    `json:"total_paid"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	BuyerBucketUserID *uint     `json:"buyer_bucket_user_id"`
	BuyerUsername     string    `json:"buyer_username"`
}

type OrderPage struct {
	Items  []OrderView `json:"items"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// ListOrdersSubtree pages every order placed inside the viewer's subtree,
// newest first. Buyers below one hop stay anonymous: only their direct-child
// bucket is named.
func (s *Service) ListOrdersSubtree(viewer models.User, f OrderFilters) (*OrderPage, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	base := func() *gorm.DB {
		q := s.db.Model(&models.Order{}).
			Joins("JOIN users ON users.id = orders.buyer_user_id").
			Joins("JOIN plans ON plans.id = orders.plan_id").
			Where("users.path = ? OR users.path LIKE ?", viewer.Path, viewer.Path+".%")
		if f.PlanID != nil {
			q = q.Where("orders.plan_id = ?", *f.PlanID)
		}
		if f.DateFrom != nil {
			q = q.Where("orders.created_at >= ?", *f.DateFrom)
		}
		if f.DateTo != nil {
			q = q.Where("orders.created_at <= ?", *f.DateTo)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		ID             uint
		CreatedAt      time.Time
		TxID           string
		PlanID         uint
		PlanTitle      string
		Quantity       int
		UnitPriceCents int64
		TotalPaidCents int64
		Currency       string
		Status         string
		BuyerUserID    uint
		BuyerPath      string
		BuyerUsername  string
	}
	err := base().Select(`orders.id, orders.created_at, orders.tx_id, orders.plan_id,
			plans.title AS plan_title, orders.quantity, orders.unit_price_cents,
			orders.total_paid_cents, orders.currency, orders.status,
			orders.buyer_user_id, users.path AS buyer_path, users.username AS buyer_username`).
		Order("orders.created_at DESC, orders.id DESC").
		Limit(f.Limit).Offset(f.Offset).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	items := make([]OrderView, 0, len(rows))
	for _, r := range rows {
		view := OrderView{
			ID:             r.ID,
			CreatedAt:      r.CreatedAt,
			TxID:           r.TxID,
			PlanID:         r.PlanID,
			PlanTitle:      r.PlanTitle,
			Quantity:       r.Quantity,
			UnitPriceCents: r.UnitPriceCents,
			TotalPaidCents: r.TotalPaidCents,
			TotalPaid:      Money(r.TotalPaidCents),
			Currency:       r.Currency,
			Status:         r.Status,
		}
		bucket, err := hierarchy.DirectChildBucket(viewer.ID, viewer.Path, r.BuyerUserID, r.BuyerPath)
		if err == nil {
			b := bucket
			view.BuyerBucketUserID = &b
			// The bucket equals the buyer only for the viewer itself and
			// its direct children; anyone deeper stays unnamed.
			if bucket == r.BuyerUserID {
				view.BuyerUsername = r.BuyerUsername
			}
		}
		items = append(items, view)
	}
	return &OrderPage{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}
