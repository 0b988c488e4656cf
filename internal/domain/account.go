package domain

import (
	"fmt"

	"marketsim/pkg/quant"
	"marketsim/pkg/safe"
)

// Position is one participant's net holding in one instrument.
// AvgPrice tracks the open cost basis; RealizedPnL accumulates on
// position-reducing fills.
type Position struct {
	Symbol        string            `json:"symbol"`
	NetQty        quant.Qty         `json:"net_qty"` // signed: + long, - short
	AvgPrice      quant.PriceMicros `json:"avg_price"`
	RealizedPnL   int64             `json:"realized_pnl"`   // quote micros
	UnrealizedPnL int64             `json:"unrealized_pnl"` // quote micros, marked by analytics
}

// ApplyFill folds a fill into the position using average-cost
// accounting and returns the realized PnL delta in quote micros.
func (p *Position) ApplyFill(side Side, qty quant.Qty, price quant.PriceMicros) int64 {
	signed := int64(qty)
	if side == Sell {
		signed = -signed
	}
	prev := int64(p.NetQty)
	next := safe.SafeAdd(prev, signed)

	var realized int64
	switch {
	case prev == 0 || (prev > 0) == (signed > 0):
		// opening or adding: blend the average price
		totalCost := safe.SafeAdd(safe.SafeMul(abs64(prev), int64(p.AvgPrice)), safe.SafeMul(abs64(signed), int64(price)))
		p.AvgPrice = quant.PriceMicros(safe.SafeDiv(totalCost, abs64(next)))
	case abs64(signed) <= abs64(prev):
		// reducing: realize on the closed quantity
		closed := abs64(signed)
		perUnit := safe.SafeSub(int64(price), int64(p.AvgPrice))
		if prev < 0 {
			perUnit = -perUnit
		}
		realized = safe.SafeMul(perUnit, closed)
		if next == 0 {
			p.AvgPrice = 0
		}
	default:
		// crossing through flat: realize the old side, open the rest at price
		closed := abs64(prev)
		perUnit := safe.SafeSub(int64(price), int64(p.AvgPrice))
		if prev < 0 {
			perUnit = -perUnit
		}
		realized = safe.SafeMul(perUnit, closed)
		p.AvgPrice = price
	}

	p.NetQty = quant.Qty(next)
	p.RealizedPnL = safe.SafeAdd(p.RealizedPnL, realized)
	return realized
}

// MarkToMarket refreshes UnrealizedPnL against a price.
func (p *Position) MarkToMarket(price quant.PriceMicros) {
	if p.NetQty == 0 {
		p.UnrealizedPnL = 0
		return
	}
	perUnit := safe.SafeSub(int64(price), int64(p.AvgPrice))
	p.UnrealizedPnL = safe.SafeMul(perUnit, int64(p.NetQty))
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// RiskLimits parameterize the risk engine per participant. Installed
// at registration from the participant type's defaults.
type RiskLimits struct {
	MaxOrderQty        quant.Qty `json:"max_order_qty"`
	MaxPositionQty     quant.Qty `json:"max_position_qty"`
	MaxNotionalMicros  int64     `json:"max_notional"` // gross exposure cap
	MaxOrdersPerTick   int       `json:"max_orders_per_tick"`
	MaxOrderTradeRatio int64     `json:"max_order_trade_ratio"` // 0 disables
	PriceCollarPct     int64     `json:"price_collar_pct"`      // fat-finger collar vs reference
	MaxDrawdownMicros  int64     `json:"max_drawdown"`          // kill switch threshold
}

// ParticipantAccount is the exchange's record for one participant.
// Mutated only by the exchange after engine and risk events.
type ParticipantAccount struct {
	ID           int64                `json:"id"`
	Name         string               `json:"name"`
	Type         ParticipantType      `json:"type"`
	CashMicros   int64                `json:"cash"` // quote currency micros
	StartCash    int64                `json:"start_cash"`
	Positions    map[string]*Position `json:"positions"`
	Tier         LatencyTier          `json:"latency_tier"`
	IsActive     bool                 `json:"is_active"`
	KillSwitched bool                 `json:"kill_switch_triggered"`
	Limits       RiskLimits           `json:"limits"`

	// Activity counters
	OrdersSubmitted int64 `json:"orders_submitted"`
	OrdersCancelled int64 `json:"orders_cancelled"`
	TradesExecuted  int64 `json:"trades_executed"`
	FeesPaidMicros  int64 `json:"fees_paid"`
}

// NewParticipantAccount creates an active account with the given
// starting cash.
func NewParticipantAccount(id int64, name string, ptype ParticipantType, cashMicros int64, tier LatencyTier) *ParticipantAccount {
	return &ParticipantAccount{
		ID:         id,
		Name:       name,
		Type:       ptype,
		CashMicros: cashMicros,
		StartCash:  cashMicros,
		Positions:  make(map[string]*Position),
		Tier:       tier,
		IsActive:   true,
	}
}

// Position returns the participant's position in symbol, creating an
// empty one on first touch.
func (a *ParticipantAccount) Position(symbol string) *Position {
	p, ok := a.Positions[symbol]
	if !ok {
		p = &Position{Symbol: symbol}
		a.Positions[symbol] = p
	}
	return p
}

// Credit adds cash. Panics on overflow.
func (a *ParticipantAccount) Credit(micros int64) {
	a.CashMicros = safe.SafeAdd(a.CashMicros, micros)
}

// Debit removes cash. Accounts may go negative (margin is implicit);
// solvency is the risk engine's concern, not the ledger's.
func (a *ParticipantAccount) Debit(micros int64) {
	a.CashMicros = safe.SafeSub(a.CashMicros, micros)
}

// Equity returns cash plus marked position value at the given prices.
func (a *ParticipantAccount) Equity(prices map[string]quant.PriceMicros) int64 {
	eq := a.CashMicros
	for sym, pos := range a.Positions {
		price, ok := prices[sym]
		if !ok || pos.NetQty == 0 {
			continue
		}
		eq = safe.SafeAdd(eq, safe.SafeMul(int64(pos.NetQty), int64(price)))
	}
	return eq
}

// TotalPnL is realized plus unrealized across all positions.
func (a *ParticipantAccount) TotalPnL() int64 {
	var pnl int64
	for _, p := range a.Positions {
		pnl = safe.SafeAdd(pnl, safe.SafeAdd(p.RealizedPnL, p.UnrealizedPnL))
	}
	return pnl
}

// VerifyInvariant checks account integrity after a state change.
func (a *ParticipantAccount) VerifyInvariant() {
	for sym, p := range a.Positions {
		if p.Symbol != sym {
			panic(fmt.Sprintf("ACCOUNT_POSITION_KEY_MISMATCH: %s vs %s", sym, p.Symbol))
		}
		if p.NetQty != 0 && p.AvgPrice < 0 {
			panic(fmt.Sprintf("ACCOUNT_NEGATIVE_AVG_PRICE: %s %d", sym, p.AvgPrice))
		}
	}
}
