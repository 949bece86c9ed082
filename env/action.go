package env

import (
	"fmt"
	"math"
)

// ActionMode selects how raw actions are encoded, fixed at construction.
type ActionMode int

const (
	// ActionContinuous: a flat vector; each symbol owns a slice of
	// max-orders+2 values: [close logits..., hold logit, volume].
	ActionContinuous ActionMode = iota

	// ActionDiscrete: a single index mapped through a symmetric fuzzy table.
	// Only valid for one trading symbol with hedging off.
	ActionDiscrete

	// ActionStructured: per-symbol (close mask, hold flag, volume) tuples
	// supplied directly, no probability transform.
	ActionStructured
)

// Action is the tagged raw value for Step. Exactly one field is read
// depending on the env's ActionMode.
type Action struct {
	Continuous []float64
	Discrete   int
	Structured []StructuredAction
}

// StructuredAction is one symbol's slot in structured mode.
type StructuredAction struct {
	Close  []bool
	Hold   bool
	Volume float64
}

// symbolIntent is the decoded per-symbol trade intent.
type symbolIntent struct {
	symbol          string
	hold            bool
	holdProbability float64
	volume          float64

	// closeProbabilities aligns to the symbol's order slots; slot i applies
	// to the i-th currently open order when it exists.
	closeProbabilities []float64
}

// actionDecoder turns a raw Action into per-symbol intents. One decoder arm
// is picked at construction per ActionMode.
type actionDecoder interface {
	decode(a Action) ([]symbolIntent, error)
}

// FuzzyTerms builds the symmetric discrete-action table: n odd values evenly
// spaced over [-1, 1] with an exact 0 at the midpoint.
func FuzzyTerms(n int) ([]float64, error) {
	if n%2 == 0 {
		return nil, fmt.Errorf("discrete actions count must be odd, got %d", n)
	}
	if n == 1 {
		return []float64{0}, nil
	}
	step := 2 / float64(n-1)
	terms := make([]float64, n)
	for i := range terms {
		terms[i] = float64(i)*step - 1
	}
	return terms, nil
}

// expit is the logistic function mapping a logit into (0, 1).
func expit(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

type continuousDecoder struct {
	symbols       []string
	maxOrders     int
	holdThreshold float64
}

func (d *continuousDecoder) decode(a Action) ([]symbolIntent, error) {
	k := d.maxOrders + 2
	want := len(d.symbols) * k
	if len(a.Continuous) != want {
		return nil, fmt.Errorf("continuous action must have %d values, got %d", want, len(a.Continuous))
	}
	intents := make([]symbolIntent, len(d.symbols))
	for i, symbol := range d.symbols {
		part := a.Continuous[k*i : k*(i+1)]
		closeLogits := part[:d.maxOrders]
		holdLogit := part[d.maxOrders]
		volume := part[d.maxOrders+1]

		probs := make([]float64, len(closeLogits))
		for j, l := range closeLogits {
			probs[j] = expit(l)
		}
		holdProb := expit(holdLogit)

		intents[i] = symbolIntent{
			symbol:             symbol,
			hold:               holdProb > d.holdThreshold,
			holdProbability:    holdProb,
			volume:             volume,
			closeProbabilities: probs,
		}
	}
	return intents, nil
}

type discreteDecoder struct {
	symbols []string
	terms   []float64

	// size converts a fuzzy value into a raw volume from account capital.
	size func(symbol string, fuzzy float64) (float64, error)
}

func (d *discreteDecoder) decode(a Action) ([]symbolIntent, error) {
	n := len(d.terms)
	if a.Discrete < 0 || a.Discrete >= len(d.symbols)*n {
		return nil, fmt.Errorf("discrete action %d out of range [0, %d)", a.Discrete, len(d.symbols)*n)
	}
	intents := make([]symbolIntent, len(d.symbols))
	for i, symbol := range d.symbols {
		fuzzy := d.terms[a.Discrete%n]
		hold := fuzzy == 0
		volume := 0.0
		if !hold {
			v, err := d.size(symbol, fuzzy)
			if err != nil {
				return nil, err
			}
			volume = v
		}
		holdProb := 0.0
		if hold {
			holdProb = 1
		}
		intents[i] = symbolIntent{
			symbol:          symbol,
			hold:            hold,
			holdProbability: holdProb,
			volume:          volume,
			// closing is driven purely by stop/take triggers in this mode
		}
	}
	return intents, nil
}

type structuredDecoder struct {
	symbols   []string
	maxOrders int
}

func (d *structuredDecoder) decode(a Action) ([]symbolIntent, error) {
	if len(a.Structured) != len(d.symbols) {
		return nil, fmt.Errorf("structured action must have %d entries, got %d", len(d.symbols), len(a.Structured))
	}
	intents := make([]symbolIntent, len(d.symbols))
	for i, symbol := range d.symbols {
		sa := a.Structured[i]
		if len(sa.Close) > d.maxOrders {
			return nil, fmt.Errorf("close mask for %s has %d slots, max %d", symbol, len(sa.Close), d.maxOrders)
		}
		probs := make([]float64, len(sa.Close))
		for j, c := range sa.Close {
			if c {
				probs[j] = 1
			}
		}
		holdProb := 0.0
		if sa.Hold {
			holdProb = 1
		}
		intents[i] = symbolIntent{
			symbol:             symbol,
			hold:               sa.Hold,
			holdProbability:    holdProb,
			volume:             sa.Volume,
			closeProbabilities: probs,
		}
	}
	return intents, nil
}
