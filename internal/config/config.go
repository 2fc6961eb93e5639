// Package config loads the model configuration: reward schedule, overlay
// tuning, defense presets and the analysis grids used by the orchestrator.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"selfish-mining-lab/internal/defense"
	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/overlay"
	"selfish-mining-lab/internal/simulation"
)

// Defaults.
const (
	DefaultRounds          = 50_000
	DefaultAnalysisAlpha   = 0.25
	DefaultAnalysisRounds  = 100_000
	DefaultAnalysisSeed    = 2025
	DefaultGammaAttack     = 0.9
	DefaultGammaDefense    = 0.5
	DefaultAvgMEVPerBlock  = 2.5
	DefaultBlockTimeSec    = 600.0
	DefaultComparisonSeed  = 2025
	DefaultComparisonGamma = 0.9
)

// ModelConfig is the full model configuration.
type ModelConfig struct {
	Economics simulation.Economics     `yaml:"economics"`
	Rounds    int                      `yaml:"rounds"`
	MaxAlpha  float64                  `yaml:"max_alpha"` // selfish races above this share are rejected
	Workers   int                      `yaml:"workers"`
	Overlay   overlay.Config           `yaml:"overlay"`
	Defenses  []domain.DefenseStrategy `yaml:"defenses"`

	DefenseComparisonSeed  uint64  `yaml:"defense_comparison_seed"`
	DefenseComparisonGamma float64 `yaml:"defense_comparison_gamma"`

	Analysis AnalysisConfig `yaml:"analysis"`
}

// AnalysisConfig holds the parameter grids for a full analysis run.
type AnalysisConfig struct {
	Alpha        float64 `yaml:"alpha"`
	Rounds       int     `yaml:"rounds"`
	Seed         uint64  `yaml:"seed"`
	GammaAttack  float64 `yaml:"gamma_attack"`
	GammaDefense float64 `yaml:"gamma_defense"`

	Sweep SweepGrid `yaml:"sweep"`

	ASICMultipliers  []float64 `yaml:"asic_multipliers"`
	MEVProbabilities []float64 `yaml:"mev_probabilities"`
	AvgMEVPerBlock   float64   `yaml:"avg_mev_per_block"`
	LatencyDelaysMs  []float64 `yaml:"latency_delays_ms"`
	BlockTimeSec     float64   `yaml:"block_time_sec"`
	ChainCounts      []int     `yaml:"chain_counts"`
	PoolCounts       []int     `yaml:"pool_counts"`

	Combined CombinedScenario `yaml:"combined"`
}

// CombinedScenario selects the per-vector settings multiplied into the
// combined advantage.
type CombinedScenario struct {
	ASICMultiplier float64 `yaml:"asic_multiplier"`
	DelayMs        float64 `yaml:"network_delay_ms"`
	MEVProbability float64 `yaml:"mev_extract_probability"`
	NumChains      int     `yaml:"num_chains"`
}

// SweepGrid is the alpha range swept during analysis.
type SweepGrid struct {
	AlphaMin   float64 `yaml:"alpha_min"`
	AlphaMax   float64 `yaml:"alpha_max"`
	AlphaSteps int     `yaml:"alpha_steps"`
	Rounds     int     `yaml:"rounds"`
}

// Default returns the built-in configuration.
func Default() ModelConfig {
	return ModelConfig{
		Economics:              simulation.DefaultEconomics(),
		Rounds:                 DefaultRounds,
		MaxAlpha:               simulation.DefaultMaxAlpha,
		Overlay:                overlay.DefaultConfig(),
		Defenses:               defense.DefaultStrategies(),
		DefenseComparisonSeed:  DefaultComparisonSeed,
		DefenseComparisonGamma: DefaultComparisonGamma,
		Analysis: AnalysisConfig{
			Alpha:        DefaultAnalysisAlpha,
			Rounds:       DefaultAnalysisRounds,
			Seed:         DefaultAnalysisSeed,
			GammaAttack:  DefaultGammaAttack,
			GammaDefense: DefaultGammaDefense,
			Sweep: SweepGrid{
				AlphaMin:   0.1,
				AlphaMax:   0.4,
				AlphaSteps: 7,
				Rounds:     DefaultRounds,
			},
			ASICMultipliers:  []float64{1.5, 3, 5, 10},
			MEVProbabilities: []float64{0.1, 0.3, 0.5},
			AvgMEVPerBlock:   DefaultAvgMEVPerBlock,
			LatencyDelaysMs:  []float64{10, 50, 100, 200, 500},
			BlockTimeSec:     DefaultBlockTimeSec,
			ChainCounts:      []int{1, 2, 3, 5},
			PoolCounts:       []int{1, 2, 4},
			Combined: CombinedScenario{
				ASICMultiplier: 5,
				DelayMs:        50,
				MEVProbability: 0.3,
				NumChains:      3,
			},
		},
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default values. An empty path returns the defaults.
func Load(path string) (ModelConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := Parse(data, &cfg); err != nil {
		return ModelConfig{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML into cfg and validates the result. Unknown keys are
// rejected.
func Parse(data []byte, cfg *ModelConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode yaml: %w", err)
	}
	return cfg.Validate()
}

// Validate checks every section.
func (c ModelConfig) Validate() error {
	if err := simulation.ValidateEconomics(c.Economics); err != nil {
		return fmt.Errorf("economics: %w", err)
	}
	if err := simulation.ValidateRounds(c.Rounds); err != nil {
		return fmt.Errorf("rounds: %w", err)
	}
	if !(c.MaxAlpha > 0 && c.MaxAlpha <= simulation.DefaultMaxAlpha) {
		return fmt.Errorf("max alpha %v not in (0,%v]: %w", c.MaxAlpha, simulation.DefaultMaxAlpha, domain.ErrInvalidParameter)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers %d negative: %w", c.Workers, domain.ErrInvalidParameter)
	}
	if err := c.Overlay.Validate(); err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	if err := defense.Validate(c.Defenses); err != nil {
		return fmt.Errorf("defenses: %w", err)
	}
	if err := simulation.ValidateGamma(c.DefenseComparisonGamma); err != nil {
		return fmt.Errorf("defense comparison gamma: %w", err)
	}
	return c.Analysis.Validate()
}

// Validate checks the analysis grids.
func (a AnalysisConfig) Validate() error {
	if err := simulation.ValidateAlpha(a.Alpha); err != nil {
		return fmt.Errorf("analysis alpha: %w", err)
	}
	if err := simulation.ValidateRounds(a.Rounds); err != nil {
		return fmt.Errorf("analysis rounds: %w", err)
	}
	if err := simulation.ValidateGamma(a.GammaAttack); err != nil {
		return fmt.Errorf("analysis gamma attack: %w", err)
	}
	if err := simulation.ValidateGamma(a.GammaDefense); err != nil {
		return fmt.Errorf("analysis gamma defense: %w", err)
	}
	if a.Sweep.AlphaSteps < 1 || a.Sweep.AlphaMin > a.Sweep.AlphaMax {
		return fmt.Errorf("analysis sweep [%v, %v] x %d: %w",
			a.Sweep.AlphaMin, a.Sweep.AlphaMax, a.Sweep.AlphaSteps, domain.ErrInvalidParameter)
	}
	if err := simulation.ValidateRounds(a.Sweep.Rounds); err != nil {
		return fmt.Errorf("analysis sweep rounds: %w", err)
	}
	for _, m := range a.ASICMultipliers {
		if !(m > 0) {
			return fmt.Errorf("asic multiplier %v: %w", m, domain.ErrInvalidParameter)
		}
	}
	for _, p := range a.MEVProbabilities {
		if !(p >= 0 && p <= 1) {
			return fmt.Errorf("mev probability %v: %w", p, domain.ErrInvalidParameter)
		}
	}
	if a.AvgMEVPerBlock < 0 {
		return fmt.Errorf("avg mev per block %v: %w", a.AvgMEVPerBlock, domain.ErrInvalidParameter)
	}
	for _, d := range a.LatencyDelaysMs {
		if d < 0 {
			return fmt.Errorf("latency delay %v: %w", d, domain.ErrInvalidParameter)
		}
	}
	if !(a.BlockTimeSec > 0) {
		return fmt.Errorf("block time %v: %w", a.BlockTimeSec, domain.ErrInvalidParameter)
	}
	for _, n := range a.ChainCounts {
		if n < 1 {
			return fmt.Errorf("chain count %d: %w", n, domain.ErrInvalidParameter)
		}
	}
	for _, n := range a.PoolCounts {
		if n < 1 {
			return fmt.Errorf("pool count %d: %w", n, domain.ErrInvalidParameter)
		}
	}
	c := a.Combined
	if !(c.ASICMultiplier > 0) || c.DelayMs < 0 || !(c.MEVProbability >= 0 && c.MEVProbability <= 1) || c.NumChains < 1 {
		return fmt.Errorf("combined scenario %+v: %w", c, domain.ErrInvalidParameter)
	}
	return nil
}

// Simulator builds a simulator from the configured economics and alpha
// limit.
func (c ModelConfig) Simulator() (*simulation.Simulator, error) {
	sim, err := simulation.NewSimulator(c.Economics)
	if err != nil {
		return nil, err
	}
	return sim.WithMaxAlpha(c.MaxAlpha)
}
