package overlay

import (
	"fmt"

	"selfish-mining-lab/internal/domain"
)

// ThreatBand classifies efficiencies strictly below Below as Level.
type ThreatBand struct {
	Below float64            `yaml:"below" json:"below"`
	Level domain.ThreatLevel `yaml:"level" json:"level"`
}

// ThreatLadder maps an efficiency advantage to a threat level. Bands are
// checked in ascending order; anything above the last band is Top.
type ThreatLadder struct {
	Bands []ThreatBand       `yaml:"bands" json:"bands"`
	Top   domain.ThreatLevel `yaml:"top" json:"top"`
}

// DefaultThreatLadder is <1.1 low, <1.5 moderate, <2.5 high, else extreme.
func DefaultThreatLadder() ThreatLadder {
	return ThreatLadder{
		Bands: []ThreatBand{
			{Below: 1.1, Level: domain.ThreatLow},
			{Below: 1.5, Level: domain.ThreatModerate},
			{Below: 2.5, Level: domain.ThreatHigh},
		},
		Top: domain.ThreatExtreme,
	}
}

// Validate requires strictly ascending bounds and a top level.
func (l ThreatLadder) Validate() error {
	if l.Top == "" {
		return fmt.Errorf("threat ladder missing top level: %w", domain.ErrInvalidParameter)
	}
	for i := 1; i < len(l.Bands); i++ {
		if !(l.Bands[i].Below > l.Bands[i-1].Below) {
			return fmt.Errorf("threat ladder bound %v not above %v: %w",
				l.Bands[i].Below, l.Bands[i-1].Below, domain.ErrInvalidParameter)
		}
	}
	return nil
}

// Classify returns the level for an efficiency advantage.
func (l ThreatLadder) Classify(efficiency float64) domain.ThreatLevel {
	for _, b := range l.Bands {
		if efficiency < b.Below {
			return b.Level
		}
	}
	return l.Top
}
