package reporting

import (
	"sort"
	"time"

	"certipanel/hierarchy"
	"certipanel/models"
)

const (
	PeriodOverall = "overall"
	PeriodToday   = "today"
	PeriodMonth   = "month"
)

type dateRange struct {
	Period string
	From   *time.Time
	To     *time.Time
}

// resolvePeriod turns a named period into a concrete UTC range. Explicit
// bounds win over the period name.
func resolvePeriod(period string, from, to *time.Time) dateRange {
	if from != nil || to != nil {
		return dateRange{Period: "custom", From: from, To: to}
	}

	now := time.Now().UTC()
	switch period {
	case PeriodOverall:
		return dateRange{Period: PeriodOverall}
	case PeriodMonth:
		start := now.AddDate(0, 0, -30)
		return dateRange{Period: PeriodMonth, From: &start, To: &now}
	default:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return dateRange{Period: PeriodToday, From: &start, To: &now}
	}
}

type SalesTotals struct {
	Period          string     `json:"period"`
	DateFrom        *time.Time `json:"date_from"`
	DateTo          *time.Time `json:"date_to"`
	TotalSalesCents int64      `json:"total_sales_cents"`
	TotalSales      string     `json:"total_sales"`
	TotalOrders     int64      `json:"total_orders"`
	TotalUnits      int64      `json:"total_units"`
}

// SalesTotalsSubtree sums purchases made by anyone in the viewer's subtree,
// viewer included.
func (s *Service) SalesTotalsSubtree(viewer models.User, period string, from, to *time.Time) (*SalesTotals, error) {
	r := resolvePeriod(period, from, to)

	q := s.db.Model(&models.Order{}).
		Joins("JOIN users ON users.id = orders.buyer_user_id").
		Where("users.path = ? OR users.path LIKE ?", viewer.Path, viewer.Path+".%")
	if r.From != nil {
		q = q.Where("orders.created_at >= ?", *r.From)
	}
	if r.To != nil {
		q = q.Where("orders.created_at <= ?", *r.To)
	}

	var row struct {
		SalesCents  int64
		OrdersCount int64
		Units       int64
	}
	err := q.Select(
		"COALESCE(SUM(orders.total_paid_cents), 0) AS sales_cents, COUNT(orders.id) AS orders_count, COALESCE(SUM(orders.quantity), 0) AS units",
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}

	return &SalesTotals{
		Period:          r.Period,
		DateFrom:        r.From,
		DateTo:          r.To,
		TotalSalesCents: row.SalesCents,
		TotalSales:      Money(row.SalesCents),
		TotalOrders:     row.OrdersCount,
		TotalUnits:      row.Units,
	}, nil
}

type PlanSales struct {
	PlanID      uint   `json:"plan_id"`
	PlanTitle   string `json:"plan_title"`
	SalesCents  int64  `json:"sales_cents"`
	Sales       string `json:"sales"`
	OrdersCount int64  `json:"orders_count"`
	Units       int64  `json:"units"`
}

// SalesByPlanSubtree groups subtree purchases by plan, best sellers first.
func (s *Service) SalesByPlanSubtree(viewer models.User, period string, from, to *time.Time, limit int) ([]PlanSales, error) {
	if limit <= 0 {
		limit = 50
	}
	r := resolvePeriod(period, from, to)

	q := s.db.Model(&models.Order{}).
		Joins("JOIN users ON users.id = orders.buyer_user_id").
		Joins("JOIN plans ON plans.id = orders.plan_id").
		Where("users.path = ? OR users.path LIKE ?", viewer.Path, viewer.Path+".%")
	if r.From != nil {
		q = q.Where("orders.created_at >= ?", *r.From)
	}
	if r.To != nil {
		q = q.Where("orders.created_at <= ?", *r.To)
	}

	var rows []struct {
		PlanID      uint
		PlanTitle   string
		SalesCents  int64
		OrdersCount int64
		Units       int64
	}
	err := q.Select(`plans.id AS plan_id, plans.title AS plan_title,
			COALESCE(SUM(orders.total_paid_cents), 0) AS sales_cents,
			COUNT(orders.id) AS orders_count,
			COALESCE(SUM(orders.quantity), 0) AS units`).
		Group("plans.id, plans.title").
		Order("sales_cents DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]PlanSales, 0, len(rows))
	for _, rr := range rows {
		out = append(out, PlanSales{
			PlanID:      rr.PlanID,
			PlanTitle:   rr.PlanTitle,
			SalesCents:  rr.SalesCents,
			Sales:       Money(rr.SalesCents),
			OrdersCount: rr.OrdersCount,
			Units:       rr.Units,
		})
	}
	return out, nil
}

type ChildBucketSales struct {
	BucketUserID   uint   `json:"bucket_user_id"`
	BucketUsername string `json:"bucket_username"`
	SalesCents     int64  `json:"sales_cents"`
	Sales          string `json:"sales"`
	OrdersCount    int64  `json:"orders_count"`
	Units          int64  `json:"units"`
}

// SalesByChildBucket rolls every subtree purchase up to the viewer's direct
// children (or the viewer itself). Grandchildren contribute to their
// subtree's bucket but are never named.
func (s *Service) SalesByChildBucket(viewer models.User, period string, from, to *time.Time) ([]ChildBucketSales, error) {
	r := resolvePeriod(period, from, to)

	q := s.db.Model(&models.Order{}).
		Joins("JOIN users ON users.id = orders.buyer_user_id").
		Where("users.path = ? OR users.path LIKE ?", viewer.Path, viewer.Path+".%")
	if r.From != nil {
		q = q.Where("orders.created_at >= ?", *r.From)
	}
	if r.To != nil {
		q = q.Where("orders.created_at <= ?", *r.To)
	}

	var rows []struct {
		BuyerUserID    uint
		BuyerPath      string
		TotalPaidCents int64
		Quantity       int64
	}
	err := q.Select("orders.buyer_user_id, users.path AS buyer_path, orders.total_paid_cents, orders.quantity").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byBucket := make(map[uint]*ChildBucketSales)
	for _, rr := range rows {
		bucket, err := hierarchy.DirectChildBucket(viewer.ID, viewer.Path, rr.BuyerUserID, rr.BuyerPath)
		if err != nil {
			continue
		}
		agg, ok := byBucket[bucket]
		if !ok {
			agg = &ChildBucketSales{BucketUserID: bucket}
			byBucket[bucket] = agg
		}
		agg.SalesCents += rr.TotalPaidCents
		agg.OrdersCount++
		agg.Units += rr.Quantity
	}

	bucketIDs := make([]uint, 0, len(byBucket))
	for id := range byBucket {
		bucketIDs = append(bucketIDs, id)
	}
	if len(bucketIDs) > 0 {
		var users []models.User
		if err := s.db.Where("id IN ?", bucketIDs).Find(&users).Error; err != nil {
			return nil, err
		}
		for _, u := range users {
			byBucket[u.ID].BucketUsername = u.Username
		}
	}

	out := make([]ChildBucketSales, 0, len(byBucket))
	for _, agg := range byBucket {
		agg.Sales = Money(agg.SalesCents)
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SalesCents > out[j].SalesCents })
	return out, nil
}

type DashboardSummary struct {
	BalanceCents int64              `json:"balance_cents"`
	Balance      string             `json:"balance"`
	Currency     string             `json:"currency"`
	Totals       *SalesTotals       `json:"totals"`
	ByPlan       []PlanSales        `json:"by_plan"`
	ByChild      []ChildBucketSales `json:"by_child"`
}

// DashboardSummary aggregates one viewer's dashboard in a single call.
func (s *Service) DashboardSummary(viewer models.User, period string, from, to *time.Time) (*DashboardSummary, error) {
	acc, err := s.store.GetBalance(viewer.ID)
	if err != nil {
		return nil, err
	}
	totals, err := s.SalesTotalsSubtree(viewer, period, from, to)
	if err != nil {
		return nil, err
	}
	byPlan, err := s.SalesByPlanSubtree(viewer, period, from, to, 10)
	if err != nil {
		return nil, err
	}
	byChild, err := s.SalesByChildBucket(viewer, period, from, to)
	if err != nil {
		return nil, err
	}

	return &DashboardSummary{
		BalanceCents: acc.BalanceCents,
		Balance:      Money(acc.BalanceCents),
		Currency:     acc.Currency,
		Totals:       totals,
		ByPlan:       byPlan,
		ByChild:      byChild,
	}, nil
}
