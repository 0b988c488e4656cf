// Package clearing registers executed trades and advances their
// settlement over the logical clock. Cash and fee effects land on
// accounts at settle time, decoupled from the matching hotpath.
package clearing

import (
	"log/slog"

	"marketsim/internal/domain"
	"marketsim/pkg/quant"
	"marketsim/pkg/safe"
)

// Accounts is the narrow account access the house needs at settle
// time. The exchange implements it; clearing never owns accounts.
type Accounts interface {
	Account(id int64) *domain.ParticipantAccount
}

type obligation struct {
	trade     domain.Trade
	buyerFee  int64
	sellerFee int64
	due       quant.TimeStamp
	settled   bool
}

// House is the clearing house for one simulation run.
type House struct {
	delay        quant.TimeStamp // T+N modeled as a logical-time lag
	seen         map[int64]*obligation
	queue        []*obligation // due in registration order; time never runs backwards
	settledCount int64
}

// New creates a clearing house settling delay nanoseconds after
// execution. Zero means same-tick settlement.
func New(delay quant.TimeStamp) *House {
	return &House{
		delay: delay,
		seen:  make(map[int64]*obligation),
	}
}

// RegisterTrade novates a trade into the settlement queue. Idempotent
// on trade id: re-registration is a no-op.
func (h *House) RegisterTrade(t *domain.Trade, inst *domain.Instrument) {
	if _, dup := h.seen[t.ID]; dup {
		return
	}
	notional := t.Notional()
	makerFee := feeOf(notional, inst.MakerFeeBps)
	takerFee := feeOf(notional, inst.TakerFeeBps)

	ob := &obligation{trade: *t, due: t.Timestamp + h.delay}
	switch {
	case t.AuctionTrade:
		// no aggressor in a call auction; both sides pay maker
		ob.buyerFee, ob.sellerFee = makerFee, makerFee
	case t.Aggressor == domain.Buy:
		ob.buyerFee, ob.sellerFee = takerFee, makerFee
	default:
		ob.buyerFee, ob.sellerFee = makerFee, takerFee
	}
	h.seen[t.ID] = ob
	h.queue = append(h.queue, ob)
}

// Step settles every obligation due at or before ts. Buyer pays
// notional plus fee, seller receives notional minus fee. Returns the
// number settled this call.
func (h *House) Step(ts quant.TimeStamp, accounts Accounts) int {
	settled := 0
	for len(h.queue) > 0 && h.queue[0].due <= ts {
		ob := h.queue[0]
		h.queue = h.queue[1:]
		h.apply(ob, accounts)
		ob.settled = true
		settled++
		h.settledCount++
	}
	return settled
}

func (h *House) apply(ob *obligation, accounts Accounts) {
	t := &ob.trade
	notional := t.Notional()

	if buyer := accounts.Account(t.BuyerID); buyer != nil {
		buyer.Debit(safe.SafeAdd(notional, ob.buyerFee))
		buyer.FeesPaidMicros = safe.SafeAdd(buyer.FeesPaidMicros, ob.buyerFee)
	} else {
		slog.Warn("settlement against unknown buyer", slog.Int64("trade", t.ID), slog.Int64("buyer", t.BuyerID))
	}
	if seller := accounts.Account(t.SellerID); seller != nil {
		seller.Credit(safe.SafeSub(notional, ob.sellerFee))
		seller.FeesPaidMicros = safe.SafeAdd(seller.FeesPaidMicros, ob.sellerFee)
	} else {
		slog.Warn("settlement against unknown seller", slog.Int64("trade", t.ID), slog.Int64("seller", t.SellerID))
	}
}

// Settled reports whether a trade id has settled. Unknown ids return
// false.
func (h *House) Settled(tradeID int64) bool {
	ob, ok := h.seen[tradeID]
	return ok && ob.settled
}

// Pending returns the count of unsettled obligations.
func (h *House) Pending() int { return len(h.queue) }

// SettledCount returns the total settled this run.
func (h *House) SettledCount() int64 { return h.settledCount }

func feeOf(notional, bps int64) int64 {
	if bps <= 0 {
		return 0
	}
	return safe.SafeDiv(safe.SafeMul(notional, bps), 10_000)
}
