// Package overlay reparametrizes the round simulator to model ASIC, MEV,
// network-latency, multi-chain and pool-cooperation attacks.
package overlay

import (
	"fmt"
	"runtime"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/simulation"
)

// Default overlay parameters.
const (
	DefaultDelayScale   = 1000.0 // ms per second of block time
	DefaultCostPerChain = 0.01
	DefaultCostPerPool  = 0.02
)

// Config holds the overlay tuning table.
type Config struct {
	ThreatLadder ThreatLadder `yaml:"threat_ladder"`
	DelayScale   float64      `yaml:"latency_delay_scale"`
	CostPerChain float64      `yaml:"cross_chain_cost_per_chain"`
	CostPerPool  float64      `yaml:"pool_cost_per_pool"`
	Workers      int          `yaml:"workers"` // parallel chains; <= 0 means GOMAXPROCS
}

// DefaultConfig returns the default overlay configuration.
func DefaultConfig() Config {
	return Config{
		ThreatLadder: DefaultThreatLadder(),
		DelayScale:   DefaultDelayScale,
		CostPerChain: DefaultCostPerChain,
		CostPerPool:  DefaultCostPerPool,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.ThreatLadder.Validate(); err != nil {
		return err
	}
	if !(c.DelayScale > 0) {
		return fmt.Errorf("latency delay scale %v must be positive: %w", c.DelayScale, domain.ErrInvalidParameter)
	}
	if !(c.CostPerChain >= 0 && c.CostPerChain < 1) {
		return fmt.Errorf("cross-chain cost %v not in [0,1): %w", c.CostPerChain, domain.ErrInvalidParameter)
	}
	if !(c.CostPerPool >= 0 && c.CostPerPool < 1) {
		return fmt.Errorf("pool cost %v not in [0,1): %w", c.CostPerPool, domain.ErrInvalidParameter)
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// Engine runs attack overlays on top of a Simulator.
type Engine struct {
	sim *simulation.Simulator
	cfg Config
}

// NewEngine creates an overlay engine. A nil sim uses the default reward
// schedule.
func NewEngine(sim *simulation.Simulator, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sim == nil {
		sim = simulation.NewDefaultSimulator()
	}
	return &Engine{sim: sim, cfg: cfg}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}
