// Package policy provides baseline action sources for driving episodes
// without a learned model.
package policy

import (
	"math/rand"

	"github.com/rustyeddy/mtsim/env"
)

// Policy produces the next raw action from the latest observation.
type Policy interface {
	Act(obs env.Observation) env.Action
}

// Shape describes the action space a policy has to fill.
type Shape struct {
	Mode            env.ActionMode
	Symbols         int
	SymbolMaxOrders int
	DiscreteActions int
}

// Noop holds every symbol on every step and never closes anything.
type Noop struct {
	shape Shape
}

func NewNoop(shape Shape) *Noop {
	return &Noop{shape: shape}
}

func (p *Noop) Act(env.Observation) env.Action {
	switch p.shape.Mode {
	case env.ActionDiscrete:
		// the midpoint of the fuzzy table is the exact zero, i.e. hold
		return env.Action{Discrete: (p.shape.DiscreteActions - 1) / 2}
	case env.ActionStructured:
		sa := make([]env.StructuredAction, p.shape.Symbols)
		for i := range sa {
			sa[i] = env.StructuredAction{Hold: true}
		}
		return env.Action{Structured: sa}
	default:
		k := p.shape.SymbolMaxOrders + 2
		vec := make([]float64, p.shape.Symbols*k)
		for i := 0; i < p.shape.Symbols; i++ {
			for j := 0; j < p.shape.SymbolMaxOrders; j++ {
				vec[i*k+j] = -10 // close probability ~0
			}
			vec[i*k+p.shape.SymbolMaxOrders] = 10 // hold probability ~1
		}
		return env.Action{Continuous: vec}
	}
}

// Random samples uniform actions, the usual smoke-test driver.
type Random struct {
	shape Shape
	rng   *rand.Rand

	// MaxVolume bounds the raw volume magnitude in continuous and
	// structured modes.
	MaxVolume float64
}

func NewRandom(shape Shape, seed int64) *Random {
	return &Random{
		shape:     shape,
		rng:       rand.New(rand.NewSource(seed)),
		MaxVolume: 2,
	}
}

func (p *Random) Act(env.Observation) env.Action {
	switch p.shape.Mode {
	case env.ActionDiscrete:
		return env.Action{Discrete: p.rng.Intn(p.shape.Symbols * p.shape.DiscreteActions)}
	case env.ActionStructured:
		sa := make([]env.StructuredAction, p.shape.Symbols)
		for i := range sa {
			mask := make([]bool, p.shape.SymbolMaxOrders)
			for j := range mask {
				mask[j] = p.rng.Float64() < 0.5
			}
			sa[i] = env.StructuredAction{
				Close:  mask,
				Hold:   p.rng.Float64() < 0.5,
				Volume: (p.rng.Float64()*2 - 1) * p.MaxVolume,
			}
		}
		return env.Action{Structured: sa}
	default:
		k := p.shape.SymbolMaxOrders + 2
		vec := make([]float64, p.shape.Symbols*k)
		for i := 0; i < p.shape.Symbols; i++ {
			for j := 0; j <= p.shape.SymbolMaxOrders; j++ {
				vec[i*k+j] = p.rng.NormFloat64()
			}
			vec[i*k+p.shape.SymbolMaxOrders+1] = (p.rng.Float64()*2 - 1) * p.MaxVolume
		}
		return env.Action{Continuous: vec}
	}
}
