package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfish-mining-lab/internal/domain"
	"selfish-mining-lab/internal/simulation"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.InDelta(t, 6.25, cfg.Economics.BlockReward, 1e-12)
	assert.InDelta(t, 0.5, cfg.Economics.AvgTxFeePerBlock, 1e-12)
	assert.Equal(t, uint64(2025), cfg.DefenseComparisonSeed)
	assert.Len(t, cfg.Defenses, 4)
	assert.Equal(t, 7, cfg.Analysis.Sweep.AlphaSteps)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	content := `
economics:
  block_reward: 3.125
rounds: 20000
overlay:
  pool_cost_per_pool: 0.05
analysis:
  chain_counts: [1, 4]
defenses:
  - key: custom
    name: Custom
    gamma_defense: 0.1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 3.125, cfg.Economics.BlockReward, 1e-12)
	assert.InDelta(t, 0.5, cfg.Economics.AvgTxFeePerBlock, 1e-12, "unset key keeps default")
	assert.Equal(t, 20000, cfg.Rounds)
	assert.InDelta(t, 0.05, cfg.Overlay.CostPerPool, 1e-12)
	assert.InDelta(t, 0.01, cfg.Overlay.CostPerChain, 1e-12)
	assert.Equal(t, []int{1, 4}, cfg.Analysis.ChainCounts)
	require.Len(t, cfg.Defenses, 1)
	assert.Equal(t, "custom", cfg.Defenses[0].Key)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{"unknown key", "bogus: 1\n", false},
		{"negative reward", "economics:\n  block_reward: -1\n", true},
		{"zero rounds", "rounds: 0\n", true},
		{"max alpha above limit", "max_alpha: 0.9999\n", true},
		{"zero max alpha", "max_alpha: 0\n", true},
		{"duplicate defenses", "defenses:\n  - {key: a, gamma_defense: 0.2}\n  - {key: a, gamma_defense: 0.3}\n", true},
		{"bad chain count", "analysis:\n  chain_counts: [0]\n", true},
		{"bad mev probability", "analysis:\n  mev_probabilities: [1.5]\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "model.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			_, err := Load(path)
			require.Error(t, err)
			if tt.invalid {
				assert.True(t, errors.Is(err, domain.ErrInvalidParameter), "got %v", err)
			}
		})
	}
}

func TestModelConfig_Simulator(t *testing.T) {
	cfg := Default()
	cfg.Economics.AvgTxFeePerBlock = 1

	sim, err := cfg.Simulator()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim.Economics().AvgTxFeePerBlock, 1e-12)
	assert.Equal(t, simulation.DefaultMaxAlpha, sim.MaxAlpha())

	cfg.MaxAlpha = 0.45
	sim, err = cfg.Simulator()
	require.NoError(t, err)
	_, err = sim.Selfish(0.46, 0.5, 100, simulation.SeedPtr(1))
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}
