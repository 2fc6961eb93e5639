package domain

// Defense strategy keys
const (
	DefenseForkChoiceRandomization = "fork_choice_randomization"
	DefenseRelayNetwork            = "relay_network_improvement"
	DefenseFeeMarketReform         = "fee_market_reform"
	DefenseFairOrdering            = "fair_ordering"
)

// Predefined network-level mitigations.
var (
	DefenseStrategyForkChoiceRandomization = DefenseStrategy{
		Key:          DefenseForkChoiceRandomization,
		Name:         "Fork-choice randomization",
		GammaDefense: 0.5,
		Rationale:    "Nodes pick uniformly between equal-length branches, so the attacker wins half of all ties.",
	}

	DefenseStrategyRelayNetwork = DefenseStrategy{
		Key:          DefenseRelayNetwork,
		Name:         "Relay-network improvement",
		GammaDefense: 0.4,
		Rationale:    "Fast block relay lets honest blocks reach most nodes before a withheld block is released.",
	}

	DefenseStrategyFeeMarketReform = DefenseStrategy{
		Key:          DefenseFeeMarketReform,
		Name:         "Fee-market reform",
		GammaDefense: 0.3,
		Rationale:    "Fee rules that reward first-seen blocks give honest nodes an incentive to ignore late competing blocks.",
	}

	DefenseStrategyFairOrdering = DefenseStrategy{
		Key:          DefenseFairOrdering,
		Name:         "Fair ordering",
		GammaDefense: 0.2,
		Rationale:    "Timestamp-ordered fork choice penalizes blocks that were mined earlier but published late.",
	}
)
