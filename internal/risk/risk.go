// Package risk implements pre-trade order validation against
// per-participant limits and the post-trade drawdown checks that can
// fire the kill switch.
package risk

import (
	"fmt"
	"log/slog"

	"marketsim/internal/domain"
	"marketsim/internal/event"
	"marketsim/pkg/quant"
	"marketsim/pkg/safe"
)

// Engine is the risk engine. It holds only transient per-tick counters;
// limits live on the accounts and are installed at registration.
type Engine struct {
	ordersThisTick map[int64]int
	blocked        map[int64]bool // kill-switched participants, approvals blocked
}

// New creates a risk engine.
func New() *Engine {
	return &Engine{
		ordersThisTick: make(map[int64]int),
		blocked:        make(map[int64]bool),
	}
}

// DefaultLimits returns the limit set installed for a participant type
// at registration. Retail and noise flow gets tight limits; market
// makers and institutions run loose.
func DefaultLimits(t domain.ParticipantType) domain.RiskLimits {
	switch t {
	case domain.ParticipantMarketMaker:
		return domain.RiskLimits{
			MaxOrderQty: 50_000, MaxPositionQty: 500_000,
			MaxNotionalMicros: 500_000_000_000_000, MaxOrdersPerTick: 200,
			MaxOrderTradeRatio: 0, PriceCollarPct: 20,
			MaxDrawdownMicros: 100_000_000_000,
		}
	case domain.ParticipantHFT, domain.ParticipantSniperBot:
		return domain.RiskLimits{
			MaxOrderQty: 20_000, MaxPositionQty: 100_000,
			MaxNotionalMicros: 100_000_000_000_000, MaxOrdersPerTick: 100,
			MaxOrderTradeRatio: 500, PriceCollarPct: 10,
			MaxDrawdownMicros: 50_000_000_000,
		}
	case domain.ParticipantInstitutional, domain.ParticipantStatArb, domain.ParticipantMomentum:
		return domain.RiskLimits{
			MaxOrderQty: 100_000, MaxPositionQty: 1_000_000,
			MaxNotionalMicros: 1_000_000_000_000_000, MaxOrdersPerTick: 50,
			MaxOrderTradeRatio: 100, PriceCollarPct: 15,
			MaxDrawdownMicros: 200_000_000_000,
		}
	default: // noise and retail
		return domain.RiskLimits{
			MaxOrderQty: 1_000, MaxPositionQty: 10_000,
			MaxNotionalMicros: 1_000_000_000_000, MaxOrdersPerTick: 10,
			MaxOrderTradeRatio: 50, PriceCollarPct: 5,
			MaxDrawdownMicros: 5_000_000_000,
		}
	}
}

// OnTickStart resets the per-tick rate window.
func (e *Engine) OnTickStart() {
	clear(e.ordersThisTick)
}

// Blocked reports whether the kill switch removed a participant.
func (e *Engine) Blocked(participantID int64) bool {
	return e.blocked[participantID]
}

// minOrdersForRatio delays the order-to-trade check until a
// participant has a meaningful sample.
const minOrdersForRatio = 100

// CheckOrder runs every pre-trade check. ReasonNone means approved;
// approval also counts the order against the rate window.
func (e *Engine) CheckOrder(acct *domain.ParticipantAccount, o *domain.Order, inst *domain.Instrument, ref quant.PriceMicros) domain.RejectReason {
	if e.blocked[acct.ID] || acct.KillSwitched {
		return domain.ReasonKillSwitch
	}
	if !acct.IsActive {
		return domain.ReasonParticipantInactive
	}
	lim := acct.Limits

	if lim.MaxOrdersPerTick > 0 && e.ordersThisTick[acct.ID] >= lim.MaxOrdersPerTick {
		return domain.ReasonRateLimit
	}
	if lim.MaxOrderTradeRatio > 0 && acct.OrdersSubmitted >= minOrdersForRatio {
		trades := acct.TradesExecuted
		if trades == 0 {
			trades = 1
		}
		if acct.OrdersSubmitted/trades > lim.MaxOrderTradeRatio {
			return domain.ReasonOrderTradeRatio
		}
	}
	if lim.MaxOrderQty > 0 && o.TotalQty > lim.MaxOrderQty {
		return domain.ReasonInvalidQuantity
	}

	pos := acct.Position(o.Symbol)
	signed := int64(o.TotalQty)
	if o.Side == domain.Sell {
		signed = -signed
	}
	if lim.MaxPositionQty > 0 {
		projected := safe.SafeAdd(int64(pos.NetQty), signed)
		if projected > int64(lim.MaxPositionQty) || projected < -int64(lim.MaxPositionQty) {
			return domain.ReasonPositionLimit
		}
	}
	if !inst.ShortAllowed && o.Side == domain.Sell {
		if safe.SafeAdd(int64(pos.NetQty), signed) < 0 {
			return domain.ReasonShortSaleRestricted
		}
	}

	// fat-finger collar: limit prices sanity-checked against reference
	if o.Price > 0 && lim.PriceCollarPct > 0 && ref > 0 {
		delta := safe.SafeDiv(safe.SafeMul(int64(ref), lim.PriceCollarPct), 100)
		if int64(o.Price) > int64(ref)+delta || int64(o.Price) < int64(ref)-delta {
			return domain.ReasonPriceCollar
		}
	}

	if lim.MaxNotionalMicros > 0 {
		price := int64(o.Price)
		if price == 0 {
			price = int64(ref)
		}
		exposure := safe.SafeMul(abs(int64(pos.NetQty)), int64(ref))
		orderNotional := safe.SafeMul(int64(o.TotalQty), price)
		if safe.SafeAdd(exposure, orderNotional) > lim.MaxNotionalMicros {
			return domain.ReasonExposureLimit
		}
	}

	e.ordersThisTick[acct.ID]++
	return domain.ReasonNone
}

// CheckPostTrade inspects a participant's drawdown against limits and
// returns a KillSwitchTriggered event when breached. The exchange
// applies the event by deactivating the account and pulling its
// orders; from then on every approval for the participant fails.
func (e *Engine) CheckPostTrade(acct *domain.ParticipantAccount, prices map[string]quant.PriceMicros, ts quant.TimeStamp) *event.KillSwitchTriggered {
	if e.blocked[acct.ID] || !acct.IsActive {
		return nil
	}
	lim := acct.Limits
	if lim.MaxDrawdownMicros <= 0 {
		return nil
	}
	drawdown := safe.SafeSub(acct.StartCash, acct.Equity(prices))
	if drawdown <= lim.MaxDrawdownMicros {
		return nil
	}
	e.blocked[acct.ID] = true
	slog.Warn("kill switch triggered",
		slog.Int64("participant", acct.ID),
		slog.Int64("drawdown_micros", drawdown))
	return &event.KillSwitchTriggered{
		Base:           event.Base{Ts: ts},
		ParticipantID:  acct.ID,
		Reason:         fmt.Sprintf("drawdown %d exceeds limit %d", drawdown, lim.MaxDrawdownMicros),
		DrawdownMicros: drawdown,
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
