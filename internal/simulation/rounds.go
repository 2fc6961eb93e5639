package simulation

import "math/rand/v2"

// Counts is the raw outcome of a block race over settled heights.
type Counts struct {
	Attacker int
	Honest   int
	Stale    int
}

// forkState is the attacker's position relative to the public chain.
type forkState int

const (
	stateIdle     forkState = iota // no private branch
	stateLeadOne                   // one withheld block
	stateTie                       // two public branches of equal length
	stateLeadMany                  // two or more withheld blocks
)

// HonestRounds draws one block winner per round. The tracked party wins
// with probability alpha.
func HonestRounds(rng *rand.Rand, alpha float64, rounds int) Counts {
	var c Counts
	for i := 0; i < rounds; i++ {
		if rng.Float64() < alpha {
			c.Attacker++
		} else {
			c.Honest++
		}
	}
	return c
}

// SelfishRounds runs the selfish-mining fork state machine until rounds
// main-chain heights have settled.
//
// Each block discovery consumes one draw (attacker wins with probability
// alpha). An honest block found during a tie consumes one extra draw that
// decides which branch it extends: the attacker's with probability gamma.
// Heights are credited in chain order, attacker first; the last credit is
// truncated so that Attacker + Honest == rounds exactly. Orphaned blocks
// are counted in Stale.
func SelfishRounds(rng *rand.Rand, alpha, gamma float64, rounds int) Counts {
	var (
		c       Counts
		settled int
		state   = stateIdle
		lead    int
	)

	credit := func(attacker, honest int) {
		for ; attacker > 0 && settled < rounds; attacker-- {
			c.Attacker++
			settled++
		}
		for ; honest > 0 && settled < rounds; honest-- {
			c.Honest++
			settled++
		}
	}

	for settled < rounds {
		attackerFound := rng.Float64() < alpha

		switch state {
		case stateIdle:
			if attackerFound {
				state, lead = stateLeadOne, 1
			} else {
				credit(0, 1)
			}

		case stateLeadOne:
			if attackerFound {
				state, lead = stateLeadMany, 2
			} else {
				// Attacker publishes its block and races.
				state = stateTie
			}

		case stateTie:
			switch {
			case attackerFound:
				credit(2, 0)
			case rng.Float64() < gamma:
				credit(1, 1)
			default:
				credit(0, 2)
			}
			c.Stale++
			state, lead = stateIdle, 0

		case stateLeadMany:
			switch {
			case attackerFound:
				lead++
			case lead == 2:
				// Publish the whole branch, orphaning the honest block.
				credit(2, 0)
				c.Stale++
				state, lead = stateIdle, 0
			default:
				credit(1, 0)
				c.Stale++
				lead--
			}
		}
	}

	return c
}
