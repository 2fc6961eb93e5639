package idhash

import (
	"fmt"
	"strconv"

	"github.com/mr-tron/base58"
	"lukechampine.com/blake3"

	"selfish-mining-lab/internal/domain"
)

// ComputeRunID computes a deterministic run_id using BLAKE3.
// Formula: BLAKE3(kind|label|alpha|gamma|rounds|seed)
// Floats are formatted with the shortest round-trip representation.
// Returns base58-encoded hash.
func ComputeRunID(
	kind domain.RunKind,
	label string,
	alpha float64,
	gamma float64,
	rounds int,
	seed uint64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d|%d",
		string(kind),
		label,
		formatFloat(alpha),
		formatFloat(gamma),
		rounds,
		seed,
	)

	hash := blake3.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

// ComputeSweepID computes a deterministic sweep_id.
// Formula: BLAKE3(sweep|alpha_min|alpha_max|steps|gamma_attack|gamma_defense|rounds|seed)
// An unseeded sweep hashes its seed as "-".
func ComputeSweepID(p domain.SweepParams) string {
	seedStr := "-"
	if p.Seed != nil {
		seedStr = strconv.FormatUint(*p.Seed, 10)
	}

	data := fmt.Sprintf("sweep|%s|%s|%d|%s|%s|%d|%s",
		formatFloat(p.AlphaMin),
		formatFloat(p.AlphaMax),
		p.AlphaSteps,
		formatFloat(p.GammaAttack),
		formatFloat(p.GammaDefense),
		p.Rounds,
		seedStr,
	)

	hash := blake3.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
