package simulation

// ExpectedRelativeReward is the closed-form Eyal–Sirer long-run share of
// main-chain blocks earned by a selfish miner with share alpha and tie
// advantage gamma. Valid for alpha < 0.5.
//
//	R = [α(1−α)²(4α+γ(1−2α)) − α³] / [1 − α(1+(2−α)α)]
func ExpectedRelativeReward(alpha, gamma float64) float64 {
	a := alpha
	num := a*(1-a)*(1-a)*(4*a+gamma*(1-2*a)) - a*a*a
	den := 1 - a*(1+(2-a)*a)
	return num / den
}

// ExpectedEfficiency is ExpectedRelativeReward / alpha. Returns 0 at alpha 0.
func ExpectedEfficiency(alpha, gamma float64) float64 {
	if alpha == 0 {
		return 0
	}
	return ExpectedRelativeReward(alpha, gamma) / alpha
}

// ProfitabilityThreshold is the smallest alpha at which selfish mining
// out-earns honest mining for a given gamma: (1−γ)/(3−2γ).
func ProfitabilityThreshold(gamma float64) float64 {
	return (1 - gamma) / (3 - 2*gamma)
}
