package domain

// RunKind identifies what produced a persisted run.
type RunKind string

const (
	RunKindBaseline   RunKind = "baseline"
	RunKindSelfish    RunKind = "selfish"
	RunKindDefended   RunKind = "defended"
	RunKindASIC       RunKind = "asic"
	RunKindMEV        RunKind = "mev"
	RunKindLatency    RunKind = "latency"
	RunKindCrossChain RunKind = "crosschain"
	RunKindPool       RunKind = "pool"
	RunKindSweep      RunKind = "sweep"
	RunKindDefense    RunKind = "defense"
)

// IsValid reports whether k is a known run kind.
func (k RunKind) IsValid() bool {
	switch k {
	case RunKindBaseline, RunKindSelfish, RunKindDefended, RunKindASIC, RunKindMEV,
		RunKindLatency, RunKindCrossChain, RunKindPool, RunKindSweep, RunKindDefense:
		return true
	}
	return false
}

// RunRecord is a persisted simulation run.
// Seed is the seed the simulation actually consumed; every stored run is
// reproducible from (Kind, Result.Alpha, Result.Gamma, Result.Rounds, Seed).
type RunRecord struct {
	RunID     string           `json:"run_id"` // PK, deterministic hash
	Kind      RunKind          `json:"kind"`
	Label     string           `json:"label"` // free-form, e.g. defense key
	Seed      uint64           `json:"seed"`
	CreatedAt int64            `json:"created_at"` // Unix ms
	Result    SimulationResult `json:"result"`
}

// SweepPointRecord is a persisted sweep grid point.
type SweepPointRecord struct {
	SweepID string     `json:"sweep_id"`
	Point   SweepPoint `json:"point"`
}
