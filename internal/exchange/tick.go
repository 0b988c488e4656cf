package exchange

import (
	"log/slog"
	"sort"

	"marketsim/internal/agent"
	"marketsim/internal/domain"
	"marketsim/internal/engine"
	"marketsim/internal/event"
	"marketsim/pkg/quant"
)

// pendingAction is one agent decision waiting in the arrival queue.
// arrival = decision time + the participant's drawn latency.
type pendingAction struct {
	arrival       quant.TimeStamp
	participantID int64
	seq           int // submission order, breaks remaining ties
	act           agent.Action
}

// Step advances the simulation by one tick. The sequence inside a tick
// is fixed: clock, risk window reset, phase machine, background
// prices, market data, agent polling, action processing in arrival
// order, post-trade risk, settlement, analytics. Returns
// ErrSessionEnded once every instrument has reached post-close.
func (ex *Exchange) Step() error {
	if ex.ended {
		return domain.ErrSessionEnded
	}
	ex.clock += ex.cfg.TickInterval
	ex.riskEng.OnTickStart()
	ex.updatePhases()
	ex.prices.Advance(ex.cfg.TickInterval)
	ex.refreshFeeds()

	ex.processActions(ex.pollAgents())
	ex.postTradeRisk()
	ex.house.Step(ex.clock, ex)
	ex.observeQuotes()

	if ex.scheduledPhase() == domain.PhasePostClose {
		ended := true
		for _, sym := range ex.symbols {
			if ex.phases[sym] != domain.PhasePostClose {
				ended = false
				break
			}
		}
		if ended {
			ex.ended = true
			slog.Info("session ended",
				slog.Int64("clock", int64(ex.clock)),
				slog.Int64("orders", ex.ordersTotal),
				slog.Uint64("events", ex.log.NextSeq()))
		}
	}
	return nil
}

// StepN advances n ticks, stopping at the first error.
func (ex *Exchange) StepN(n int) error {
	for i := 0; i < n; i++ {
		if err := ex.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RunToClose steps until the session ends.
func (ex *Exchange) RunToClose() error {
	for !ex.ended {
		if err := ex.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (ex *Exchange) refreshFeeds() {
	for _, sym := range ex.symbols {
		ex.feed.Refresh(ex.engine.Book(sym), ex.prices.RefPrice(sym), ex.phases[sym], ex.clock)
	}
}

// pollAgents gives every active agent one look at the market and
// collects its actions, each stamped with an arrival time drawn from
// the participant's latency tier. Polling order is registration order;
// the arrival sort below decides who actually trades first.
func (ex *Exchange) pollAgents() []pendingAction {
	var pending []pendingAction
	seq := 0
	for _, pid := range ex.agentOrder {
		acct := ex.accounts[pid]
		a := ex.agents[pid]
		if acct == nil || a == nil || !acct.IsActive {
			continue
		}
		v := agent.AcquireView()
		ex.fillView(v, acct)
		actions := a.OnTick(v, ex.agentRNG)
		agent.ReleaseView(v)
		for _, act := range actions {
			pending = append(pending, pendingAction{
				arrival:       ex.clock + ex.latency.Draw(acct.Tier),
				participantID: pid,
				seq:           seq,
				act:           act,
			})
			seq++
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return arrivesBefore(pending[i], pending[j])
	})
	return pending
}

// arrivesBefore orders the arrival queue: arrival time, then
// participant id, then submission order for same-participant ties so
// an agent's actions never reorder against each other.
func arrivesBefore(a, b pendingAction) bool {
	if a.arrival != b.arrival {
		return a.arrival < b.arrival
	}
	if a.participantID != b.participantID {
		return a.participantID < b.participantID
	}
	return a.seq < b.seq
}

// fillView projects current market and participant state into a pooled
// view. Everything is a copy; the agent can keep nothing.
func (ex *Exchange) fillView(v *agent.MarketView, acct *domain.ParticipantAccount) {
	v.Now = ex.clock
	v.ParticipantID = acct.ID
	v.Cash = acct.CashMicros
	for _, sym := range ex.symbols {
		v.Quotes[sym] = ex.feed.Quote(sym)
		v.Depths[sym] = ex.feed.Depth(sym)
		v.Halted[sym] = ex.halted(sym)
		if inst := ex.instruments[sym]; inst != nil {
			v.Instruments[sym] = *inst
		}
	}
	for sym, p := range acct.Positions {
		v.Positions[sym] = *p
	}
	for oid, sym := range ex.openOrders[acct.ID] {
		if o, ok := ex.engine.GetOrder(sym, oid); ok {
			v.OpenOrders = append(v.OpenOrders, *o)
		}
	}
	// map iteration above is unordered; sort for determinism
	sort.Slice(v.OpenOrders, func(i, j int) bool { return v.OpenOrders[i].ID < v.OpenOrders[j].ID })
	v.RecentTrades = append(v.RecentTrades, ex.recentTrades...)
}

func (ex *Exchange) processActions(pending []pendingAction) {
	for i := range pending {
		p := &pending[i]
		acct := ex.accounts[p.participantID]
		if acct == nil {
			continue
		}
		switch p.act.Type {
		case agent.ActionSubmit:
			ex.submitAction(acct, p.act)
		case agent.ActionCancel:
			ex.cancelAction(acct, p.act)
		case agent.ActionModify:
			ex.modifyAction(acct, p.act)
		}
	}
}

// submitAction builds an order from an agent action and routes it by
// the instrument's current phase.
func (ex *Exchange) submitAction(acct *domain.ParticipantAccount, act agent.Action) {
	o := &domain.Order{
		ID:            ex.engine.NextOrderID(),
		ParticipantID: acct.ID,
		Symbol:        act.Symbol,
		Side:          act.Side,
		Type:          act.OrderType,
		TIF:           act.TIF,
		Price:         act.Price,
		StopPrice:     act.StopPrice,
		TrailOffset:   act.TrailOffset,
		Peg:           act.Peg,
		PegOffset:     act.PegOffset,
		TotalQty:      act.Qty,
		DisplayQty:    act.DisplayQty,
		Remaining:     act.Qty,
		Status:        domain.StatusNew,
		CreatedAt:     ex.clock,
		UpdatedAt:     ex.clock,
	}
	acct.OrdersSubmitted++
	ex.ordersTotal++

	inst := ex.instruments[act.Symbol]
	if inst == nil {
		ex.reject(o, domain.ReasonUnknownInstrument)
		return
	}

	switch phase := ex.phases[act.Symbol]; {
	case phase == domain.PhaseHalted:
		ex.reject(o, domain.ReasonMarketHalted)

	case phase.IsAuction():
		// calls accept plain market and limit orders only
		if o.Type != domain.TypeMarket && o.Type != domain.TypeLimit {
			ex.reject(o, domain.ReasonWrongPhase)
			return
		}
		// same tick, lot and band checks as the continuous path
		if reason := ex.engine.Validate(o); reason != domain.ReasonNone {
			ex.reject(o, reason)
			return
		}
		if reason := ex.riskEng.CheckOrder(acct, o, inst, inst.RefPrice); reason != domain.ReasonNone {
			ex.reject(o, reason)
			return
		}
		ex.auctions.AddOrder(o)
		ex.log.Append(&event.OrderAccepted{Base: event.Base{Ts: ex.clock}, Order: *o})
		ex.trackOpen(acct.ID, o.ID, o.Symbol)
		ex.notifyAccepted(acct.ID, *o)

	case phase == domain.PhaseContinuous:
		if reason := ex.riskEng.CheckOrder(acct, o, inst, inst.RefPrice); reason != domain.ReasonNone {
			ex.reject(o, reason)
			return
		}
		res := ex.engine.Submit(o, ex.clock)
		ex.applyResult(res)
		if len(res.Trades) > 0 {
			ex.checkCircuitBreaker(o.Symbol)
		}

	default: // pre-open, post-close
		ex.reject(o, domain.ReasonWrongPhase)
	}
}

func (ex *Exchange) cancelAction(acct *domain.ParticipantAccount, act agent.Action) {
	sym := act.Symbol
	if sym == "" {
		sym = ex.openOrders[acct.ID][act.OrderID]
	}
	if sym == "" {
		return
	}
	res := ex.engine.Cancel(sym, act.OrderID, acct.ID, ex.clock)
	ex.applyResult(res)
}

func (ex *Exchange) modifyAction(acct *domain.ParticipantAccount, act agent.Action) {
	sym := act.Symbol
	if sym == "" {
		sym = ex.openOrders[acct.ID][act.OrderID]
	}
	if sym == "" || ex.phases[sym] != domain.PhaseContinuous {
		return
	}
	acct.OrdersSubmitted++
	ex.ordersTotal++
	res := ex.engine.Modify(sym, act.OrderID, acct.ID, act.NewPrice, act.NewQty, ex.clock)
	ex.applyResult(res)
	if len(res.Trades) > 0 {
		ex.checkCircuitBreaker(sym)
	}
}

func (ex *Exchange) reject(o *domain.Order, reason domain.RejectReason) {
	o.Status = domain.StatusRejected
	ex.log.Append(&event.OrderRejected{Base: event.Base{Ts: ex.clock}, Order: *o, Reason: reason})
}

// applyResult commits an engine result to the shared state: events to
// the log, trades to positions and clearing, open-order tracking and
// agent notifications.
func (ex *Exchange) applyResult(res *engine.Result) {
	for _, ev := range res.Events {
		ex.log.Append(ev)
		switch e := ev.(type) {
		case *event.OrderAccepted:
			// stop triggers and re-pegs accept fresh ids mid-result,
			// so tracking keys off the live engine state, not res.Order
			if o, ok := ex.engine.GetOrder(e.Order.Symbol, e.Order.ID); ok && o.IsOpen() {
				ex.trackOpen(o.ParticipantID, o.ID, o.Symbol)
			}
			ex.notifyAccepted(e.Order.ParticipantID, e.Order)
		case *event.OrderCancelled:
			ex.untrackOpen(e.ParticipantID, e.OrderID)
			if a := ex.accounts[e.ParticipantID]; a != nil {
				a.OrdersCancelled++
			}
			ex.notifyCancel(e.ParticipantID, e.OrderID, e.Remaining)
		case *event.OrderModified:
			ex.untrackOpen(e.NewOrder.ParticipantID, e.OldOrderID)
			if e.NewOrder.IsOpen() {
				ex.trackOpen(e.NewOrder.ParticipantID, e.NewOrder.ID, e.NewOrder.Symbol)
			}
		}
	}
	for _, t := range res.Trades {
		ex.applyTrade(t)
	}
}

// applyTrade books one execution into both participants' positions,
// registers the settlement obligation, and notifies both agents. Cash
// moves at settlement, positions move now.
func (ex *Exchange) applyTrade(t *domain.Trade) {
	inst := ex.instruments[t.Symbol]
	if buyer := ex.accounts[t.BuyerID]; buyer != nil {
		buyer.Position(t.Symbol).ApplyFill(domain.Buy, t.Qty, t.Price)
		buyer.TradesExecuted++
	}
	if seller := ex.accounts[t.SellerID]; seller != nil {
		seller.Position(t.Symbol).ApplyFill(domain.Sell, t.Qty, t.Price)
		seller.TradesExecuted++
	}
	ex.house.RegisterTrade(t, inst)
	ex.pushRecentTrade(*t)

	ex.notifyFill(t.BuyerID, agent.Fill{
		OrderID: t.BuyOrderID, Symbol: t.Symbol, Side: domain.Buy,
		Price: t.Price, Qty: t.Qty, Remaining: ex.remainingOf(t.Symbol, t.BuyOrderID),
	})
	ex.notifyFill(t.SellerID, agent.Fill{
		OrderID: t.SellOrderID, Symbol: t.Symbol, Side: domain.Sell,
		Price: t.Price, Qty: t.Qty, Remaining: ex.remainingOf(t.Symbol, t.SellOrderID),
	})

	if _, ok := ex.engine.GetOrder(t.Symbol, t.BuyOrderID); !ok {
		ex.untrackOpen(t.BuyerID, t.BuyOrderID)
	}
	if _, ok := ex.engine.GetOrder(t.Symbol, t.SellOrderID); !ok {
		ex.untrackOpen(t.SellerID, t.SellOrderID)
	}
}

func (ex *Exchange) remainingOf(symbol string, orderID int64) quant.Qty {
	if o, ok := ex.engine.GetOrder(symbol, orderID); ok {
		return o.Remaining
	}
	return 0
}

// postTradeRisk marks every account to market and fires the kill
// switch on drawdown breaches. Accounts process in id order so the
// event log stays deterministic.
func (ex *Exchange) postTradeRisk() {
	marks := ex.markPrices()

	ids := make([]int64, 0, len(ex.accounts))
	for id := range ex.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		acct := ex.accounts[id]
		for sym, pos := range acct.Positions {
			if mark, ok := marks[sym]; ok {
				pos.MarkToMarket(mark)
			}
		}
		acct.VerifyInvariant()
		if !acct.IsActive {
			continue
		}
		ev := ex.riskEng.CheckPostTrade(acct, marks, ex.clock)
		if ev == nil {
			continue
		}
		acct.IsActive = false
		acct.KillSwitched = true
		ex.log.Append(ev)
		ex.applyResult(ex.engine.CancelAllFor(acct.ID, ex.clock))
	}
}

// markPrices returns the per-symbol mark: last trade price, falling
// back to the background reference before any print exists.
func (ex *Exchange) markPrices() map[string]quant.PriceMicros {
	marks := make(map[string]quant.PriceMicros, len(ex.symbols))
	for _, sym := range ex.symbols {
		if last := ex.engine.Book(sym).LastPrice(); last > 0 {
			marks[sym] = last
		} else {
			marks[sym] = ex.prices.RefPrice(sym)
		}
	}
	return marks
}

func (ex *Exchange) observeQuotes() {
	for _, sym := range ex.symbols {
		q := ex.feed.Quote(sym)
		ex.tracker.ObserveQuote(sym, q.Spread(), q.BidQty+q.AskQty)
	}
}

func (ex *Exchange) notifyAccepted(pid int64, o domain.Order) {
	if a := ex.agents[pid]; a != nil {
		a.OnOrderAccepted(o)
	}
}

func (ex *Exchange) notifyFill(pid int64, f agent.Fill) {
	if a := ex.agents[pid]; a != nil {
		a.OnFill(f)
	}
}

func (ex *Exchange) notifyCancel(pid int64, orderID int64, remaining quant.Qty) {
	if a := ex.agents[pid]; a != nil {
		a.OnCancel(orderID, remaining)
	}
}
