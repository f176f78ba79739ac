package purchase

import (
	"errors"
	"fmt"
)

// ErrNegativePricing means pricing data violates the margin floor somewhere
// along the chain. Fatal configuration error; never clamped, never retried.
var ErrNegativePricing = errors.New("negative profit in pricing chain")

// ErrConservation means the scaled credits do not equal the buyer's debit.
// That can only happen with corrupted pricing data; the whole transaction
// aborts.
var ErrConservation = errors.New("ledger conservation violated")

// ChainLevel is one ancestor in the buyer-to-root walk. Index 0 is the
// buyer's direct parent; the last level is root.
type ChainLevel struct {
	UserID uint
	IsRoot bool
	// Unit price this ancestor charged the level below it.
	SellPriceCents int64
	// This ancestor's own unit acquisition cost: the platform base price for
	// root, its incoming edge price otherwise.
	CostCents int64
}

// Credit is one ancestor's scaled take from a purchase. BaseCents belongs
// to root only and is always ledgered separately from profit so
// per-entry-kind reporting stays accurate, even when the base price is zero.
type Credit struct {
	UserID      uint
	IsRoot      bool
	ProfitCents int64
	BaseCents   int64
}

type Distribution struct {
	BuyerUserID     uint
	UnitPriceCents  int64
	Quantity        int
	TotalDebitCents int64
	// Ordered buyer's parent first, root last.
	Credits []Credit
}

// BuildDistribution turns a resolved pricing chain into per-ancestor
// credits. Pure integer arithmetic: unit margins are computed, accumulated,
// scaled by quantity, and the result is rejected unless the credits sum to
// exactly the buyer's debit.
func BuildDistribution(buyerUserID uint, chain []ChainLevel, quantity int) (*Distribution, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be >= 1, got %d", quantity)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: empty pricing chain", ErrConservation)
	}
	if !chain[len(chain)-1].IsRoot {
		return nil, fmt.Errorf("%w: chain does not end at root", ErrConservation)
	}

	unitPrice := chain[0].SellPriceCents
	qty := int64(quantity)

	dist := &Distribution{
		BuyerUserID:     buyerUserID,
		UnitPriceCents:  unitPrice,
		Quantity:        quantity,
		TotalDebitCents: unitPrice * qty,
	}

	for i, level := range chain {
		unitProfit := level.SellPriceCents - level.CostCents
		if unitProfit < 0 {
			return nil, fmt.Errorf("%w: user %d sells at %d, costs %d",
				ErrNegativePricing, level.UserID, level.SellPriceCents, level.CostCents)
		}

		credit := Credit{UserID: level.UserID, IsRoot: level.IsRoot, ProfitCents: unitProfit * qty}
		if level.IsRoot {
			// Root additionally keeps the base cost itself.
			credit.BaseCents = level.CostCents * qty
			if i != len(chain)-1 {
				return nil, fmt.Errorf("%w: root appears mid-chain", ErrConservation)
			}
		}
		dist.Credits = append(dist.Credits, credit)
	}

	var creditTotal int64
	for _, c := range dist.Credits {
		creditTotal += c.ProfitCents + c.BaseCents
	}
	if creditTotal != dist.TotalDebitCents {
		return nil, fmt.Errorf("%w: credits %d != debit %d", ErrConservation, creditTotal, dist.TotalDebitCents)
	}
	return dist, nil
}
