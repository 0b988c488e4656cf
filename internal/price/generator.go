// Package price supplies the seeded background price process driving
// instrument reference prices, plus the latency model that orders
// participant actions within a tick.
package price

import (
	"math"
	"math/rand"

	"marketsim/pkg/quant"
)

// ProcessParams configure one instrument's background process.
// Drift and Vol are annualized-style rates applied per logical second;
// jumps model discrete shocks on top of the diffusion.
type ProcessParams struct {
	Start    quant.PriceMicros
	Drift    float64 // per-second log drift
	Vol      float64 // per-second log volatility
	JumpProb float64 // probability of a jump per step
	JumpVol  float64 // log stddev of a jump
}

type proc struct {
	params ProcessParams
	price  float64 // log-space walks happen on the float mirror
	shock  float64 // decaying news-driven drift component
}

// Generator advances every instrument's reference price process from
// one seeded RNG, so identical seeds give identical price paths.
type Generator struct {
	rng   *rand.Rand
	procs map[string]*proc
	order []string // advance order fixed at registration for determinism
}

// NewGenerator creates a generator from a seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		rng:   rand.New(rand.NewSource(seed)),
		procs: make(map[string]*proc),
	}
}

// Register installs a process for a symbol. Registration order fixes
// the RNG consumption order across the run.
func (g *Generator) Register(symbol string, p ProcessParams) {
	if _, ok := g.procs[symbol]; ok {
		return
	}
	g.procs[symbol] = &proc{params: p, price: float64(p.Start)}
	g.order = append(g.order, symbol)
}

// shockDecay drains the news component ~exponentially per step.
const shockDecay = 0.85

// Advance steps every process by dt logical nanoseconds.
func (g *Generator) Advance(dt quant.TimeStamp) {
	dtSec := float64(dt) / 1e9
	sqrtDt := math.Sqrt(dtSec)
	for _, sym := range g.order {
		p := g.procs[sym]
		ret := p.params.Drift*dtSec + p.params.Vol*sqrtDt*g.rng.NormFloat64() + p.shock
		if p.params.JumpProb > 0 && g.rng.Float64() < p.params.JumpProb {
			ret += p.params.JumpVol * g.rng.NormFloat64()
		}
		p.price *= math.Exp(ret)
		p.shock *= shockDecay
	}
}

// ApplyShock perturbs the named symbols with a news impulse. Sentiment
// in [-1,1] sets direction, magnitude in [0,1] scales the move; the
// effect enters as an immediate jump plus a decaying drift.
func (g *Generator) ApplyShock(symbols []string, sentiment, magnitude float64) {
	impulse := sentiment * magnitude
	for _, sym := range symbols {
		p, ok := g.procs[sym]
		if !ok {
			continue
		}
		p.price *= math.Exp(impulse * 0.05)
		p.shock += impulse * 0.01
	}
}

// RefPrice returns the current background price for a symbol, zero
// when unregistered.
func (g *Generator) RefPrice(symbol string) quant.PriceMicros {
	p, ok := g.procs[symbol]
	if !ok {
		return 0
	}
	return quant.PriceMicros(math.Round(p.price))
}

// SetRefPrice pins a process to a price, used when an auction result
// resets the instrument reference.
func (g *Generator) SetRefPrice(symbol string, price quant.PriceMicros) {
	if p, ok := g.procs[symbol]; ok {
		p.price = float64(price)
	}
}
