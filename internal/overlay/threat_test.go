package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"selfish-mining-lab/internal/domain"
)

func TestThreatLadder_Classify(t *testing.T) {
	l := DefaultThreatLadder()

	tests := []struct {
		eff  float64
		want domain.ThreatLevel
	}{
		{0.8, domain.ThreatLow},
		{1.0999, domain.ThreatLow},
		{1.1, domain.ThreatModerate},
		{1.4999, domain.ThreatModerate},
		{1.5, domain.ThreatHigh},
		{2.4999, domain.ThreatHigh},
		{2.5, domain.ThreatExtreme},
		{10, domain.ThreatExtreme},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, l.Classify(tt.eff), "efficiency %v", tt.eff)
	}
}

func TestThreatLadder_Validate(t *testing.T) {
	assert.NoError(t, DefaultThreatLadder().Validate())

	unordered := ThreatLadder{
		Bands: []ThreatBand{{Below: 1.5, Level: domain.ThreatLow}, {Below: 1.1, Level: domain.ThreatHigh}},
		Top:   domain.ThreatExtreme,
	}
	assert.ErrorIs(t, unordered.Validate(), domain.ErrInvalidParameter)

	noTop := ThreatLadder{Bands: []ThreatBand{{Below: 1.1, Level: domain.ThreatLow}}}
	assert.ErrorIs(t, noTop.Validate(), domain.ErrInvalidParameter)
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.DelayScale = 0
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidParameter)

	cfg = DefaultConfig()
	cfg.CostPerChain = 1
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidParameter)

	cfg = DefaultConfig()
	cfg.CostPerPool = -0.1
	_, err := NewEngine(nil, cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}
