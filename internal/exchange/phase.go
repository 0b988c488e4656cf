package exchange

import (
	"log/slog"

	"marketsim/internal/domain"
	"marketsim/internal/event"
	"marketsim/pkg/safe"
)

// scheduledPhase is where the session clock alone puts an instrument,
// ignoring halts.
func (ex *Exchange) scheduledPhase() domain.MarketPhase {
	c := ex.cfg
	switch {
	case ex.clock >= c.SessionClose:
		return domain.PhasePostClose
	case c.EnableAuctions && ex.clock >= c.SessionClose-c.ClosingAuctionDur:
		return domain.PhaseClosingAuction
	case ex.clock >= c.SessionOpen:
		return domain.PhaseContinuous
	case c.EnableAuctions && ex.clock >= c.SessionOpen-c.OpeningAuctionDur:
		return domain.PhaseOpeningAuction
	default:
		return domain.PhasePreOpen
	}
}

// updatePhases advances the per-instrument phase machine: halt expiry
// first, then clock-driven transitions, firing auctions on the way out
// of a call phase. Every transition is logged per instrument.
func (ex *Exchange) updatePhases() {
	scheduled := ex.scheduledPhase()
	for _, sym := range ex.symbols {
		current := ex.phases[sym]

		if current == domain.PhaseHalted {
			if ex.clock < ex.haltedUntil[sym] {
				continue
			}
			delete(ex.haltedUntil, sym)
			ex.transition(sym, domain.PhaseHalted, scheduled)
			ex.log.Append(&event.HaltLifted{Base: event.Base{Ts: ex.clock}, Symbol: sym})
			continue
		}

		if current == scheduled {
			continue
		}
		// fire the call auction when leaving a call phase
		if current.IsAuction() {
			ex.runAuction(sym, current)
		}
		ex.transition(sym, current, scheduled)
	}
}

func (ex *Exchange) transition(sym string, from, to domain.MarketPhase) {
	ex.phases[sym] = to
	ex.log.Append(&event.PhaseChange{Base: event.Base{Ts: ex.clock}, Symbol: sym, From: from, To: to})
	slog.Debug("phase change", slog.String("symbol", sym),
		slog.String("from", from.String()), slog.String("to", to.String()))
}

// runAuction uncrosses one instrument's call. All trades print at the
// single clearing price; the instrument reference price resets to it.
// Unfilled remainders are cancelled rather than carried, keeping the
// continuous book clean at the bell.
func (ex *Exchange) runAuction(sym string, phase domain.MarketPhase) {
	inst := ex.instruments[sym]
	out := ex.auctions.Execute(sym, inst.RefPrice, ex.clock)
	if out == nil {
		return
	}

	b := ex.engine.Book(sym)
	for _, t := range out.Trades {
		b.RecordTrade(t.Price, t.Qty)
		ex.applyTrade(t)
		ex.log.Append(&event.TradeExecuted{Base: event.Base{Ts: ex.clock}, Trade: *t})
	}
	for _, o := range out.Unfilled {
		o.Cancel(ex.clock)
		ex.untrackOpen(o.ParticipantID, o.ID)
		ex.log.Append(&event.OrderCancelled{
			Base: event.Base{Ts: ex.clock}, OrderID: o.ID,
			ParticipantID: o.ParticipantID, Symbol: sym, Remaining: o.Remaining,
		})
		ex.notifyCancel(o.ParticipantID, o.ID, o.Remaining)
	}

	if out.Volume > 0 {
		inst.RefPrice = out.Price
		ex.prices.SetRefPrice(sym, out.Price)
		ex.log.Append(&event.AuctionResult{
			Base: event.Base{Ts: ex.clock}, Symbol: sym, Phase: phase,
			Price: out.Price, Volume: out.Volume, Imbalance: out.Imbalance,
		})
		slog.Info("auction uncrossed", slog.String("symbol", sym),
			slog.String("price", out.Price.String()), slog.Int64("volume", int64(out.Volume)))

		// the print can ratchet trailing stops, fire resting triggers
		// and re-peg; auction trades never pass through Submit
		ex.applyResult(ex.engine.OnUncross(sym, out.Price, ex.clock))
	}
}

// checkCircuitBreaker halts an instrument when the last trade price
// moves beyond the configured band around the reference price.
func (ex *Exchange) checkCircuitBreaker(sym string) {
	if !ex.cfg.EnableCircuitBreakers || ex.phases[sym] != domain.PhaseContinuous {
		return
	}
	inst := ex.instruments[sym]
	last := ex.engine.Book(sym).LastPrice()
	if last == 0 || inst.RefPrice == 0 {
		return
	}
	limit := safe.SafeDiv(safe.SafeMul(int64(inst.RefPrice), ex.cfg.CircuitBreakerPct), 100)
	move := int64(last) - int64(inst.RefPrice)
	if move < 0 {
		move = -move
	}
	if move < limit {
		return
	}

	resume := ex.clock + ex.cfg.HaltDuration
	ex.haltedUntil[sym] = resume
	ex.transition(sym, ex.phases[sym], domain.PhaseHalted)
	ex.log.Append(&event.CircuitBreakerTriggered{
		Base: event.Base{Ts: ex.clock}, Symbol: sym,
		LastPrice: last, RefPrice: inst.RefPrice, ResumeAt: resume,
	})
	slog.Warn("circuit breaker triggered", slog.String("symbol", sym),
		slog.String("last", last.String()), slog.String("ref", inst.RefPrice.String()))
}

// halted reports whether a symbol is currently halted.
func (ex *Exchange) halted(sym string) bool {
	return ex.phases[sym] == domain.PhaseHalted
}

func (ex *Exchange) phaseOf(sym string) domain.MarketPhase {
	return ex.phases[sym]
}
