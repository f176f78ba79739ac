package coupons_test

import (
	"testing"

	"certipanel/coupons"
	"certipanel/models"
	"certipanel/testsupport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateForOwnerScope(t *testing.T) {
	db := testsupport.OpenDB(t)
	users := testsupport.CreateChain(t, db, 3)
	root, a, b, c := users[0], users[1], users[2], users[3]
	plan := testsupport.CreatePlan(t, db)

	svc := coupons.NewService(db)

	// Root may target anyone in the tree.
	issued, err := svc.GenerateForOwner(root, c.ID, plan.ID, 2, "promo")
	require.NoError(t, err)
	assert.Len(t, issued, 2)

	// A seller may target itself or a direct child.
	_, err = svc.GenerateForOwner(a, a.ID, plan.ID, 1, "")
	require.NoError(t, err)
	_, err = svc.GenerateForOwner(a, b.ID, plan.ID, 1, "")
	require.NoError(t, err)

	// But never its parent.
	_, err = svc.GenerateForOwner(a, root.ID, plan.ID, 1, "")
	assert.ErrorIs(t, err, coupons.ErrForbidden)

	// Or a grandchild.
	_, err = svc.GenerateForOwner(a, c.ID, plan.ID, 1, "")
	assert.ErrorIs(t, err, coupons.ErrForbidden)
}

func TestCouponLifecycle(t *testing.T) {
	db := testsupport.OpenDB(t)
	users := testsupport.CreateChain(t, db, 1)
	root, a := users[0], users[1]
	plan := testsupport.CreatePlan(t, db)

	svc := coupons.NewService(db)
	issued, err := svc.GenerateForOwner(root, a.ID, plan.ID, 1, "")
	require.NoError(t, err)
	code := issued[0].CouponCode

	// unused -> reserved
	coupon, err := svc.Reserve(a, code, "udid-123")
	require.NoError(t, err)
	assert.Equal(t, models.CouponReserved, coupon.Status)

	// A reserved coupon cannot be reserved again.
	_, err = svc.Reserve(a, code, "udid-456")
	assert.ErrorIs(t, err, coupons.ErrBadTransition)

	// Failures annotate without touching the status.
	_, err = svc.MarkFailed(a, code, "sign", "provider timeout")
	require.NoError(t, err)
	var reloaded models.Coupon
	require.NoError(t, db.Where("coupon_code = ?", code).First(&reloaded).Error)
	assert.Equal(t, models.CouponReserved, reloaded.Status)
	assert.Equal(t, "provider timeout", reloaded.LastFailureReason)

	// reserved -> unused -> reserved -> used
	coupon, err = svc.Unreserve(a, code)
	require.NoError(t, err)
	assert.Equal(t, models.CouponUnused, coupon.Status)

	_, err = svc.Reserve(a, code, "udid-123")
	require.NoError(t, err)
	coupon, err = svc.MarkUsed(a, code, "udid-123")
	require.NoError(t, err)
	assert.Equal(t, models.CouponUsed, coupon.Status)

	// Used is terminal.
	_, err = svc.Void(a, code)
	assert.ErrorIs(t, err, coupons.ErrBadTransition)
	_, err = svc.Unreserve(a, code)
	assert.ErrorIs(t, err, coupons.ErrBadTransition)

	// The event trail recorded every step in order.
	var events []models.CouponEvent
	require.NoError(t, db.Where("coupon_code = ?", code).Order("id asc").Find(&events).Error)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType)
	}
	assert.Equal(t, []string{
		models.CouponEventGenerated,
		models.CouponEventReserved,
		models.CouponEventFailed,
		models.CouponEventUnreserved,
		models.CouponEventReserved,
		models.CouponEventUsed,
	}, types)
}

func TestVoidCoupon(t *testing.T) {
	db := testsupport.OpenDB(t)
	users := testsupport.CreateChain(t, db, 1)
	root, a := users[0], users[1]
	plan := testsupport.CreatePlan(t, db)

	svc := coupons.NewService(db)
	issued, err := svc.GenerateForOwner(root, a.ID, plan.ID, 1, "")
	require.NoError(t, err)
	code := issued[0].CouponCode

	coupon, err := svc.Void(root, code)
	require.NoError(t, err)
	assert.Equal(t, models.CouponVoid, coupon.Status)

	// Void is terminal too.
	_, err = svc.Reserve(a, code, "udid-123")
	assert.ErrorIs(t, err, coupons.ErrBadTransition)
}

func TestEventsForCodeBucketsActors(t *testing.T) {
	db := testsupport.OpenDB(t)
	users := testsupport.CreateChain(t, db, 3)
	root, a, b, c := users[0], users[1], users[2], users[3]
	plan := testsupport.CreatePlan(t, db)

	svc := coupons.NewService(db)
	issued, err := svc.GenerateForOwner(root, c.ID, plan.ID, 1, "")
	require.NoError(t, err)
	code := issued[0].CouponCode

	// c, deep under a, acts on the coupon.
	_, err = svc.Reserve(c, code, "udid-1")
	require.NoError(t, err)

	// From a's vantage point the actor shows as b, its direct child on
	// the branch that contains c.
	events, err := svc.EventsForCode(a, code)
	require.NoError(t, err)
	require.Len(t, events, 2)

	reserved := events[len(events)-1]
	assert.Equal(t, models.CouponEventReserved, reserved.EventType)
	require.NotNil(t, reserved.BucketUserID)
	assert.Equal(t, b.ID, *reserved.BucketUserID)

	// The generation event was root's doing, outside a's subtree, so its
	// bucket stays empty.
	generated := events[0]
	assert.Equal(t, models.CouponEventGenerated, generated.EventType)
	assert.Nil(t, generated.BucketUserID)
}
