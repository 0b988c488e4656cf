// Package exchange is the orchestrator: it owns the tick loop, the
// market-phase state machine, circuit breakers, participant accounts
// and agent scheduling, and is the only writer of shared state. Every
// mutation happens inside one tick in a fixed sequence, which gives
// the run a total order over all state changes.
package exchange

import (
	"log/slog"
	"math/rand"

	"marketsim/internal/agent"
	"marketsim/internal/analytics"
	"marketsim/internal/auction"
	"marketsim/internal/clearing"
	"marketsim/internal/domain"
	"marketsim/internal/engine"
	"marketsim/internal/event"
	"marketsim/internal/marketdata"
	"marketsim/internal/price"
	"marketsim/internal/risk"
	"marketsim/pkg/idgen"
	"marketsim/pkg/quant"
)

// Exchange drives the simulation. Single-threaded by design: callers
// advance it via Step and read via Snapshot/Events only.
type Exchange struct {
	cfg   Config
	clock quant.TimeStamp

	engine   *engine.MatchingEngine
	riskEng  *risk.Engine
	house    *clearing.House
	auctions *auction.Engine
	feed     *marketdata.Feed
	prices   *price.Generator
	latency  *price.LatencyModel
	log      *event.Log
	tracker  *analytics.Tracker

	accounts       map[int64]*domain.ParticipantAccount
	agents         map[int64]agent.Agent
	agentOrder     []int64 // registration order, fixes polling determinism
	participantIDs *idgen.Generator
	agentRNG       *rand.Rand

	instruments map[string]*domain.Instrument
	phases      map[string]domain.MarketPhase
	haltedUntil map[string]quant.TimeStamp
	symbols     []string // registration order

	openOrders   map[int64]map[int64]string // participant -> order id -> symbol
	recentTrades []domain.Trade

	ordersTotal int64
	ended       bool
}

// New builds an exchange from a validated configuration. A malformed
// configuration is the one unrecoverable error in the system, surfaced
// here and never later.
func New(cfg Config) (*Exchange, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RecentTradeWindow <= 0 {
		cfg.RecentTradeWindow = 50
	}

	ex := &Exchange{
		cfg:            cfg,
		engine:         engine.New(),
		riskEng:        risk.New(),
		house:          clearing.New(cfg.SettlementDelay),
		feed:           marketdata.NewFeed(cfg.DepthLevels),
		prices:         price.NewGenerator(cfg.Seed),
		latency:        price.NewLatencyModel(cfg.Seed + 1),
		log:            event.NewLog(cfg.EventLogCapacity),
		tracker:        analytics.NewTracker(),
		accounts:       make(map[int64]*domain.ParticipantAccount),
		agents:         make(map[int64]agent.Agent),
		participantIDs: idgen.New(),
		agentRNG:       rand.New(rand.NewSource(cfg.Seed + 2)),
		instruments:    make(map[string]*domain.Instrument),
		phases:         make(map[string]domain.MarketPhase),
		haltedUntil:    make(map[string]quant.TimeStamp),
		openOrders:     make(map[int64]map[int64]string),
	}
	ex.auctions = auction.New(ex.engine.NextTradeID)
	ex.log.Observe(ex.tracker.OnEvent)

	for _, spec := range cfg.Instruments {
		inst := spec.Instrument
		if err := ex.engine.RegisterInstrument(&inst); err != nil {
			return nil, err
		}
		ex.instruments[inst.Symbol] = ex.engine.Instrument(inst.Symbol)
		ex.prices.Register(inst.Symbol, spec.Process)
		ex.phases[inst.Symbol] = domain.PhasePreOpen
		ex.symbols = append(ex.symbols, inst.Symbol)
	}

	slog.Info("exchange constructed",
		slog.Int("instruments", len(cfg.Instruments)),
		slog.Int64("seed", cfg.Seed))
	return ex, nil
}

// EventLog exposes the append-only event log for replay and audit.
func (ex *Exchange) EventLog() *event.Log { return ex.log }

// Clock returns the current logical time.
func (ex *Exchange) Clock() quant.TimeStamp { return ex.clock }

// Ended reports whether the session has reached post-close.
func (ex *Exchange) Ended() bool { return ex.ended }

// Account implements clearing.Accounts; unknown ids return nil.
func (ex *Exchange) Account(id int64) *domain.ParticipantAccount {
	return ex.accounts[id]
}

// RegisterParticipant creates an account with type-appropriate default
// risk limits installed and returns its id.
func (ex *Exchange) RegisterParticipant(name string, ptype domain.ParticipantType, startCashMicros int64, tier domain.LatencyTier) int64 {
	id := ex.participantIDs.Next()
	acct := domain.NewParticipantAccount(id, name, ptype, startCashMicros, tier)
	acct.Limits = risk.DefaultLimits(ptype)
	ex.accounts[id] = acct
	ex.openOrders[id] = make(map[int64]string)
	slog.Debug("participant registered",
		slog.Int64("id", id), slog.String("name", name), slog.String("type", ptype.String()))
	return id
}

// AttachAgent binds a strategy to a registered participant. One agent
// per participant; re-attachment replaces the previous agent.
func (ex *Exchange) AttachAgent(participantID int64, a agent.Agent) error {
	if _, ok := ex.accounts[participantID]; !ok {
		return domain.ErrUnknownParticipant
	}
	if _, exists := ex.agents[participantID]; !exists {
		ex.agentOrder = append(ex.agentOrder, participantID)
	}
	ex.agents[participantID] = a
	return nil
}

// SetEventSink attaches a spill target for event-log externalization.
func (ex *Exchange) SetEventSink(s event.Sink) { ex.log.SetSink(s) }

// InjectNews perturbs the background price process with a news shock
// and records the injection as an event.
func (ex *Exchange) InjectNews(headline string, sentiment, magnitude float64, symbols []string) {
	ex.prices.ApplyShock(symbols, sentiment, magnitude)
	ex.log.Append(&event.NewsInjection{
		Base:      event.Base{Ts: ex.clock},
		Headline:  headline,
		Sentiment: sentiment,
		Magnitude: magnitude,
		Symbols:   symbols,
	})
	slog.Info("news injected", slog.String("headline", headline),
		slog.Float64("sentiment", sentiment), slog.Float64("magnitude", magnitude))
}

func (ex *Exchange) trackOpen(participantID, orderID int64, symbol string) {
	if m, ok := ex.openOrders[participantID]; ok {
		m[orderID] = symbol
	}
}

func (ex *Exchange) untrackOpen(participantID, orderID int64) {
	if m, ok := ex.openOrders[participantID]; ok {
		delete(m, orderID)
	}
}

func (ex *Exchange) pushRecentTrade(t domain.Trade) {
	ex.recentTrades = append(ex.recentTrades, t)
	if over := len(ex.recentTrades) - ex.cfg.RecentTradeWindow; over > 0 {
		ex.recentTrades = append(ex.recentTrades[:0:0], ex.recentTrades[over:]...)
	}
}
