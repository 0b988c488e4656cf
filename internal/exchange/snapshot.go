package exchange

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"marketsim/internal/analytics"
	"marketsim/internal/domain"
	"marketsim/internal/marketdata"
	"marketsim/pkg/quant"
)

// InstrumentState is one symbol's slice of a snapshot.
type InstrumentState struct {
	Symbol string                    `json:"symbol"`
	Phase  domain.MarketPhase        `json:"phase"`
	Halted bool                      `json:"halted"`
	Quote  marketdata.Quote          `json:"quote"`
	Depth  marketdata.DepthSnapshot  `json:"depth"`
	Stats  analytics.InstrumentStats `json:"stats"`
}

// ParticipantState summarizes one account for reporting.
type ParticipantState struct {
	ID              int64                      `json:"id"`
	Name            string                     `json:"name"`
	Type            domain.ParticipantType     `json:"type"`
	CashMicros      int64                      `json:"cash"`
	EquityMicros    int64                      `json:"equity"`
	TotalPnLMicros  int64                      `json:"total_pnl"`
	FeesPaidMicros  int64                      `json:"fees_paid"`
	OrdersSubmitted int64                      `json:"orders_submitted"`
	OrdersCancelled int64                      `json:"orders_cancelled"`
	TradesExecuted  int64                      `json:"trades_executed"`
	Active          bool                       `json:"active"`
	Positions       map[string]domain.Position `json:"positions,omitempty"`
}

// Snapshot is the full point-in-time state of a run, taken between
// ticks. It is a pure read: taking one never mutates the simulation.
type Snapshot struct {
	Clock        quant.TimeStamp         `json:"clock"`
	Ended        bool                    `json:"ended"`
	Instruments  []InstrumentState       `json:"instruments"`
	Participants []ParticipantState      `json:"participants"`
	Messages     analytics.MessageCounts `json:"messages"`
	OrdersTotal  int64                   `json:"orders_total"`
	EventCount   uint64                  `json:"event_count"`
	Settled      int64                   `json:"trades_settled"`
	PendingObl   int                     `json:"pending_obligations"`
	RecentTrades []domain.Trade          `json:"recent_trades,omitempty"`
}

// Snapshot captures the current run state.
func (ex *Exchange) Snapshot() Snapshot {
	snap := Snapshot{
		Clock:       ex.clock,
		Ended:       ex.ended,
		Messages:    ex.tracker.Messages(),
		OrdersTotal: ex.ordersTotal,
		EventCount:  ex.log.NextSeq(),
		Settled:     ex.house.SettledCount(),
		PendingObl:  ex.house.Pending(),
	}
	snap.RecentTrades = append(snap.RecentTrades, ex.recentTrades...)

	for _, sym := range ex.symbols {
		snap.Instruments = append(snap.Instruments, InstrumentState{
			Symbol: sym,
			Phase:  ex.phases[sym],
			Halted: ex.halted(sym),
			Quote:  ex.feed.Quote(sym),
			Depth:  ex.feed.Depth(sym),
			Stats:  ex.tracker.Instrument(sym),
		})
	}

	marks := ex.markPrices()
	ids := make([]int64, 0, len(ex.accounts))
	for id := range ex.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		a := ex.accounts[id]
		ps := ParticipantState{
			ID:              a.ID,
			Name:            a.Name,
			Type:            a.Type,
			CashMicros:      a.CashMicros,
			EquityMicros:    a.Equity(marks),
			TotalPnLMicros:  a.TotalPnL(),
			FeesPaidMicros:  a.FeesPaidMicros,
			OrdersSubmitted: a.OrdersSubmitted,
			OrdersCancelled: a.OrdersCancelled,
			TradesExecuted:  a.TradesExecuted,
			Active:          a.IsActive,
		}
		for sym, p := range a.Positions {
			if p.NetQty == 0 && p.RealizedPnL == 0 {
				continue
			}
			if ps.Positions == nil {
				ps.Positions = make(map[string]domain.Position)
			}
			ps.Positions[sym] = *p
		}
		snap.Participants = append(snap.Participants, ps)
	}
	return snap
}

// DumpState writes the current snapshot to path as indented JSON.
func (ex *Exchange) DumpState(path string) error {
	data, err := json.MarshalIndent(ex.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	slog.Info("state dumped", slog.String("path", path), slog.Int("bytes", len(data)))
	return nil
}
