package llmprovider

import "github.com/redlance/redlance/pkg/models"

// Tiers bundles the two required provider implementations the spec calls
// for (fast, low-latency/low-cost; deep, higher-capability/higher-cost).
// A third, locally-hosted implementation can be added here without the
// agent loop needing to change — it is only ever handed a Provider.
type Tiers struct {
	Fast Provider
	Deep Provider
}

// NewTiers dials both configured endpoints. Closing is the caller's
// responsibility via CloseAll.
func NewTiers(fast, deep EndpointConfig) (*Tiers, error) {
	fastProvider, err := NewGRPCProvider(string(models.TierFast), fast)
	if err != nil {
		return nil, err
	}
	deepProvider, err := NewGRPCProvider(string(models.TierDeep), deep)
	if err != nil {
		return nil, err
	}
	return &Tiers{Fast: fastProvider, Deep: deepProvider}, nil
}

// Select returns the provider for the requested tier.
func (t *Tiers) Select(tier models.ModelTier) Provider {
	if tier == models.TierDeep {
		return t.Deep
	}
	return t.Fast
}

// CloseAll closes both underlying gRPC connections if they support it.
func (t *Tiers) CloseAll() {
	for _, p := range []Provider{t.Fast, t.Deep} {
		if closer, ok := p.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
}
