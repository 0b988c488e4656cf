package price

import (
	"math/rand"

	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

// Tier base latencies in logical nanoseconds. Co-located flow arrives
// three orders of magnitude ahead of retail.
var tierBase = map[domain.LatencyTier]quant.TimeStamp{
	domain.TierColocated:     5_000,      // 5us
	domain.TierInstitutional: 250_000,    // 250us
	domain.TierProfessional:  2_000_000,  // 2ms
	domain.TierRetail:        25_000_000, // 25ms
}

// LatencyModel draws per-action latencies by participant tier from its
// own seeded RNG, keeping the price path independent of the
// participant population.
type LatencyModel struct {
	rng *rand.Rand
}

// NewLatencyModel creates a model from a seed.
func NewLatencyModel(seed int64) *LatencyModel {
	return &LatencyModel{rng: rand.New(rand.NewSource(seed))}
}

// Base returns the deterministic base latency of a tier.
func (m *LatencyModel) Base(tier domain.LatencyTier) quant.TimeStamp {
	return tierBase[tier]
}

// Draw returns base latency plus up to 20% uniform jitter. Jitter
// breaks ties between same-tier participants without reordering tiers.
func (m *LatencyModel) Draw(tier domain.LatencyTier) quant.TimeStamp {
	base := tierBase[tier]
	jitter := quant.TimeStamp(m.rng.Int63n(int64(base)/5 + 1))
	return base + jitter
}
