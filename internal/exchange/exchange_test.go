package exchange

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketsim/internal/agent"
	"marketsim/internal/domain"
	"marketsim/internal/event"
	"marketsim/internal/price"
	"marketsim/pkg/quant"
)

const (
	cent = quant.PriceMicros(10_000)
	px   = quant.PriceMicros(1_000_000)
	ms   = quant.TimeStamp(1_000_000)
	cash = 1_000_000 * int64(px)
)

func testConfig() Config {
	return Config{
		Instruments: []InstrumentSpec{{
			Instrument: domain.Instrument{
				Symbol: "SIMA", Name: "Sim Alpha",
				TickSize: cent, LotSize: 1, MinQty: 1,
				RefPrice: 100 * px, PriceBandPct: 50,
				MakerFeeBps: 1, TakerFeeBps: 3, ShortAllowed: true,
			},
			Process: price.ProcessParams{Start: 100 * px}, // flat background
		}},
		TickInterval:      100 * ms,
		SessionOpen:       1_000 * ms,
		SessionClose:      3_000 * ms,
		OpeningAuctionDur: 500 * ms,
		ClosingAuctionDur: 500 * ms,
		CircuitBreakerPct: 10,
		HaltDuration:      300 * ms,
		SettlementDelay:   200 * ms,
		Seed:              42,
		DepthLevels:       5,
		RecentTradeWindow: 10,
	}
}

// scriptAgent plays a fixed schedule of actions keyed by tick number
// and records every notification it receives.
type scriptAgent struct {
	script  map[int][]agent.Action
	tick    int
	fills   []agent.Fill
	cancels []int64
}

func (s *scriptAgent) OnTick(*agent.MarketView, *rand.Rand) []agent.Action {
	s.tick++
	return s.script[s.tick]
}
func (s *scriptAgent) OnFill(f agent.Fill)            { s.fills = append(s.fills, f) }
func (s *scriptAgent) OnOrderAccepted(domain.Order)   {}
func (s *scriptAgent) OnCancel(id int64, _ quant.Qty) { s.cancels = append(s.cancels, id) }

func limitAt(side domain.Side, price quant.PriceMicros, qty quant.Qty) agent.Action {
	return agent.Action{
		Type: agent.ActionSubmit, Symbol: "SIMA",
		Side: side, OrderType: domain.TypeLimit, TIF: domain.GTC,
		Price: price, Qty: qty,
	}
}

func attach(t *testing.T, ex *Exchange, a agent.Agent) int64 {
	t.Helper()
	id := ex.RegisterParticipant("tester", domain.ParticipantMarketMaker, cash, domain.TierColocated)
	require.NoError(t, ex.AttachAgent(id, a))
	return id
}

func eventsOfType(ex *Exchange, typ event.Type) []event.SimEvent {
	var out []event.SimEvent
	for _, ev := range ex.EventLog().Events() {
		if ev.GetType() == typ {
			out = append(out, ev)
		}
	}
	return out
}

func TestSessionLifecycle(t *testing.T) {
	cfg := testConfig()
	cfg.EnableAuctions = true
	ex, err := New(cfg)
	require.NoError(t, err)
	attach(t, ex, &scriptAgent{})

	require.NoError(t, ex.RunToClose())
	assert.True(t, ex.Ended())
	assert.ErrorIs(t, ex.Step(), domain.ErrSessionEnded)

	var seen []domain.MarketPhase
	for _, ev := range eventsOfType(ex, event.TypePhaseChange) {
		seen = append(seen, ev.(*event.PhaseChange).To)
	}
	want := []domain.MarketPhase{
		domain.PhaseOpeningAuction, domain.PhaseContinuous,
		domain.PhaseClosingAuction, domain.PhasePostClose,
	}
	assert.Equal(t, want, seen, "phases must advance in session order")
}

func TestAuctionsDisabledSkipCallPhases(t *testing.T) {
	ex, err := New(testConfig())
	require.NoError(t, err)
	require.NoError(t, ex.RunToClose())

	for _, ev := range eventsOfType(ex, event.TypePhaseChange) {
		to := ev.(*event.PhaseChange).To
		assert.False(t, to.IsAuction(), "auction phase with auctions disabled")
	}
	assert.Empty(t, eventsOfType(ex, event.TypeAuctionResult))
}

func TestOpeningAuctionUncrosses(t *testing.T) {
	cfg := testConfig()
	cfg.EnableAuctions = true
	ex, err := New(cfg)
	require.NoError(t, err)

	// ticks 6..9 are the opening call; both sides arrive during it
	buyer := &scriptAgent{script: map[int][]agent.Action{
		7: {limitAt(domain.Buy, 101*px, 100)},
	}}
	seller := &scriptAgent{script: map[int][]agent.Action{
		7: {limitAt(domain.Sell, 100*px, 60)},
	}}
	attach(t, ex, buyer)
	attach(t, ex, seller)

	require.NoError(t, ex.StepN(11)) // through the open at tick 10

	results := eventsOfType(ex, event.TypeAuctionResult)
	require.Len(t, results, 1)
	res := results[0].(*event.AuctionResult)
	assert.Equal(t, domain.PhaseOpeningAuction, res.Phase)
	assert.Equal(t, quant.Qty(60), res.Volume)

	trades := eventsOfType(ex, event.TypeTradeExecuted)
	require.NotEmpty(t, trades)
	for _, ev := range trades {
		tr := ev.(*event.TradeExecuted).Trade
		assert.True(t, tr.AuctionTrade)
		assert.Equal(t, res.Price, tr.Price, "all auction trades print at the clearing price")
	}

	// the buyer's 40 leftover is cancelled, not carried into continuous
	require.Len(t, buyer.cancels, 1)
	assert.Len(t, buyer.fills, 1)
	assert.Len(t, seller.fills, 1)
}

// viewRecorder captures what the exchange projects into agent views.
type viewRecorder struct {
	scriptAgent
	insts []domain.Instrument
}

func (p *viewRecorder) OnTick(v *agent.MarketView, _ *rand.Rand) []agent.Action {
	if inst, ok := v.Instruments["SIMA"]; ok {
		p.insts = append(p.insts, inst)
	}
	return nil
}

func TestViewCarriesInstrumentRules(t *testing.T) {
	ex, err := New(testConfig())
	require.NoError(t, err)
	a := &viewRecorder{}
	attach(t, ex, a)

	require.NoError(t, ex.StepN(1))
	require.NotEmpty(t, a.insts, "agents need tick and lot rules to quote on-grid")
	assert.Equal(t, cent, a.insts[0].TickSize)
	assert.Equal(t, quant.Qty(1), a.insts[0].LotSize)
	assert.Equal(t, 100*px, a.insts[0].RefPrice)
}

func TestArrivalOrderBreaksTiesBySubmission(t *testing.T) {
	cancelFirst := []pendingAction{
		{arrival: 100, participantID: 1, seq: 0, act: agent.Action{Type: agent.ActionCancel}},
		{arrival: 100, participantID: 1, seq: 1, act: agent.Action{Type: agent.ActionSubmit}},
	}
	assert.True(t, arrivesBefore(cancelFirst[0], cancelFirst[1]))
	assert.False(t, arrivesBefore(cancelFirst[1], cancelFirst[0]))

	// arrival time dominates, then participant id
	assert.True(t, arrivesBefore(pendingAction{arrival: 99, seq: 9}, pendingAction{arrival: 100, seq: 0}))
	assert.True(t, arrivesBefore(
		pendingAction{arrival: 100, participantID: 1, seq: 9},
		pendingAction{arrival: 100, participantID: 2, seq: 0},
	))
}

func TestAuctionRejectsOffGridLimit(t *testing.T) {
	cfg := testConfig()
	cfg.EnableAuctions = true
	ex, err := New(cfg)
	require.NoError(t, err)

	// half a tick off the grid during the opening call
	attach(t, ex, &scriptAgent{script: map[int][]agent.Action{
		7: {limitAt(domain.Buy, 100*px+cent/2, 100)},
	}})
	require.NoError(t, ex.StepN(8))

	rejects := eventsOfType(ex, event.TypeOrderRejected)
	require.Len(t, rejects, 1)
	assert.Equal(t, domain.ReasonTickViolation, rejects[0].(*event.OrderRejected).Reason)
	assert.Empty(t, eventsOfType(ex, event.TypeOrderAccepted))
}

func TestContinuousTradeSettlesWithDelay(t *testing.T) {
	ex, err := New(testConfig())
	require.NoError(t, err)

	maker := &scriptAgent{script: map[int][]agent.Action{
		11: {limitAt(domain.Sell, 100*px, 50)},
	}}
	taker := &scriptAgent{script: map[int][]agent.Action{
		12: {limitAt(domain.Buy, 100*px, 50)},
	}}
	makerID := attach(t, ex, maker)
	takerID := attach(t, ex, taker)

	require.NoError(t, ex.StepN(12))
	require.Len(t, taker.fills, 1)
	assert.Equal(t, quant.Qty(50), taker.fills[0].Qty)

	// positions move at execution, cash only at settlement
	assert.Equal(t, quant.Qty(50), ex.Account(takerID).Position("SIMA").NetQty)
	assert.Equal(t, cash, ex.Account(takerID).CashMicros)

	require.NoError(t, ex.StepN(2)) // past the T+200ms due time
	notional := int64(100*px) * 50
	assert.Equal(t, cash-notional-notional*3/10_000, ex.Account(takerID).CashMicros)
	assert.Equal(t, cash+notional-notional*1/10_000, ex.Account(makerID).CashMicros)
}

func TestCircuitBreakerHaltsAndLifts(t *testing.T) {
	cfg := testConfig()
	cfg.EnableCircuitBreakers = true
	ex, err := New(cfg)
	require.NoError(t, err)

	// a print at 110.00 is a 10% move off the 100.00 reference
	seller := &scriptAgent{script: map[int][]agent.Action{
		11: {limitAt(domain.Sell, 110*px, 10)},
		13: {limitAt(domain.Buy, 100*px, 10)}, // rejected while halted
	}}
	buyer := &scriptAgent{script: map[int][]agent.Action{
		12: {limitAt(domain.Buy, 110*px, 10)},
	}}
	attach(t, ex, seller)
	attach(t, ex, buyer)

	require.NoError(t, ex.StepN(12))
	require.Len(t, eventsOfType(ex, event.TypeCircuitBreaker), 1)

	require.NoError(t, ex.Step())
	rejects := eventsOfType(ex, event.TypeOrderRejected)
	require.NotEmpty(t, rejects)
	last := rejects[len(rejects)-1].(*event.OrderRejected)
	assert.Equal(t, domain.ReasonMarketHalted, last.Reason)

	// halt expires after 300ms, trading resumes
	require.NoError(t, ex.StepN(3))
	require.Len(t, eventsOfType(ex, event.TypeHaltLifted), 1)
}

func TestKillSwitchPullsOrders(t *testing.T) {
	cfg := testConfig()
	ex, err := New(cfg)
	require.NoError(t, err)

	loser := &scriptAgent{script: map[int][]agent.Action{
		11: {limitAt(domain.Buy, 110*px, 10), limitAt(domain.Buy, 85*px, 500)},
		12: {limitAt(domain.Sell, 90*px, 10)},
	}}
	seller := &scriptAgent{script: map[int][]agent.Action{
		11: {limitAt(domain.Sell, 110*px, 10)},
		12: {limitAt(domain.Buy, 90*px, 10)},
	}}
	loserID := ex.RegisterParticipant("loser", domain.ParticipantMarketMaker, cash, domain.TierColocated)
	ex.Account(loserID).Limits.MaxDrawdownMicros = 100 * int64(px)
	require.NoError(t, ex.AttachAgent(loserID, loser))
	attach(t, ex, seller)

	// buy at 110, sell at 90: a 200.00 realized loss against a 100.00
	// cap, visible to the drawdown check as the legs settle
	require.NoError(t, ex.StepN(14))

	kills := eventsOfType(ex, event.TypeKillSwitch)
	require.Len(t, kills, 1)
	assert.Equal(t, loserID, kills[0].(*event.KillSwitchTriggered).ParticipantID)

	acct := ex.Account(loserID)
	assert.False(t, acct.IsActive)
	assert.True(t, acct.KillSwitched)
	// the resting 99.00 bid was pulled when the switch fired
	assert.NotEmpty(t, loser.cancels)
	assert.Empty(t, ex.openOrders[loserID])
}

func TestSeedDeterminism(t *testing.T) {
	build := func() *Exchange {
		cfg := testConfig()
		cfg.EnableAuctions = true
		cfg.EnableCircuitBreakers = true
		ex, err := New(cfg)
		require.NoError(t, err)
		for i := 0; i < 2; i++ {
			id := ex.RegisterParticipant(fmt.Sprintf("mm-%d", i), domain.ParticipantMarketMaker, cash, domain.TierColocated)
			require.NoError(t, ex.AttachAgent(id, agent.NewMarketMaker("SIMA", 2*cent, 100, 2000)))
		}
		for i := 0; i < 5; i++ {
			id := ex.RegisterParticipant(fmt.Sprintf("noise-%d", i), domain.ParticipantNoiseTrader, cash, domain.TierRetail)
			require.NoError(t, ex.AttachAgent(id, agent.NewNoiseTrader([]string{"SIMA"}, 0.5, 20)))
		}
		return ex
	}

	a, b := build(), build()
	require.NoError(t, a.RunToClose())
	require.NoError(t, b.RunToClose())

	evA, evB := a.EventLog().Events(), b.EventLog().Events()
	require.Equal(t, len(evA), len(evB), "event counts diverged")
	for i := range evA {
		require.Equal(t, evA[i].GetType(), evB[i].GetType(), "event %d type", i)
		require.Equal(t, evA[i].GetTs(), evB[i].GetTs(), "event %d ts", i)
	}

	sa, sb := a.Snapshot(), b.Snapshot()
	assert.Equal(t, sa.OrdersTotal, sb.OrdersTotal)
	assert.Equal(t, sa.Settled, sb.Settled)
	for i := range sa.Participants {
		assert.Equal(t, sa.Participants[i].CashMicros, sb.Participants[i].CashMicros,
			"participant %d cash diverged", sa.Participants[i].ID)
	}
}

func TestOrdersRejectedPreOpen(t *testing.T) {
	ex, err := New(testConfig())
	require.NoError(t, err)
	early := &scriptAgent{script: map[int][]agent.Action{
		1: {limitAt(domain.Buy, 100*px, 10)},
	}}
	attach(t, ex, early)

	require.NoError(t, ex.Step())
	rejects := eventsOfType(ex, event.TypeOrderRejected)
	require.Len(t, rejects, 1)
	assert.Equal(t, domain.ReasonWrongPhase, rejects[0].(*event.OrderRejected).Reason)
}

func TestNewsInjectionMovesReference(t *testing.T) {
	ex, err := New(testConfig())
	require.NoError(t, err)

	require.NoError(t, ex.Step())
	before := ex.prices.RefPrice("SIMA")
	ex.InjectNews("guidance raised", 1.0, 1.0, []string{"SIMA"})
	require.NoError(t, ex.Step())

	assert.Greater(t, ex.prices.RefPrice("SIMA"), before)
	require.Len(t, eventsOfType(ex, event.TypeNewsInjection), 1)
}

func TestSnapshotShape(t *testing.T) {
	ex, err := New(testConfig())
	require.NoError(t, err)
	id := attach(t, ex, &scriptAgent{})
	require.NoError(t, ex.StepN(5))

	s := ex.Snapshot()
	assert.Equal(t, 500*ms, s.Clock)
	assert.False(t, s.Ended)
	require.Len(t, s.Instruments, 1)
	assert.Equal(t, "SIMA", s.Instruments[0].Symbol)
	require.Len(t, s.Participants, 1)
	assert.Equal(t, id, s.Participants[0].ID)
	assert.Equal(t, cash, s.Participants[0].CashMicros)
}
