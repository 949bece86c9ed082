package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuzzyTerms(t *testing.T) {
	t.Parallel()

	terms, err := FuzzyTerms(1)
	assert.NoError(t, err)
	assert.Equal(t, []float64{0}, terms)

	terms, err = FuzzyTerms(3)
	assert.NoError(t, err)
	assert.Equal(t, []float64{-1, 0, 1}, terms)

	terms, err = FuzzyTerms(5)
	assert.NoError(t, err)
	assert.Equal(t, []float64{-1, -0.5, 0, 0.5, 1}, terms)

	_, err = FuzzyTerms(4)
	assert.Error(t, err)
}

func TestContinuousDecoderShape(t *testing.T) {
	t.Parallel()

	d := &continuousDecoder{symbols: []string{"EURUSD"}, maxOrders: 2, holdThreshold: 0.5}

	_, err := d.decode(Action{Continuous: []float64{1, 2, 3}})
	assert.Error(t, err)

	intents, err := d.decode(Action{Continuous: []float64{0, 0, 0, 1.5}})
	assert.NoError(t, err)
	assert.Len(t, intents, 1)
	assert.Equal(t, "EURUSD", intents[0].symbol)
	assert.Equal(t, 1.5, intents[0].volume)
	assert.Len(t, intents[0].closeProbabilities, 2)
	assert.Equal(t, 0.5, intents[0].closeProbabilities[0])
}

func TestContinuousDecoderHoldIsStrict(t *testing.T) {
	t.Parallel()

	d := &continuousDecoder{symbols: []string{"EURUSD"}, maxOrders: 1, holdThreshold: 0.5}

	// logit 0 gives probability exactly 0.5: not above the threshold
	intents, err := d.decode(Action{Continuous: []float64{0, 0, 1}})
	assert.NoError(t, err)
	assert.False(t, intents[0].hold)
	assert.Equal(t, 0.5, intents[0].holdProbability)

	intents, err = d.decode(Action{Continuous: []float64{0, 1, 1}})
	assert.NoError(t, err)
	assert.True(t, intents[0].hold)
}

func TestContinuousDecoderMultiSymbol(t *testing.T) {
	t.Parallel()

	d := &continuousDecoder{symbols: []string{"EURUSD", "GBPUSD"}, maxOrders: 1, holdThreshold: 0.5}
	intents, err := d.decode(Action{Continuous: []float64{0, -5, 1, 0, 5, -2}})
	assert.NoError(t, err)
	assert.Len(t, intents, 2)
	assert.False(t, intents[0].hold)
	assert.True(t, intents[1].hold)
	assert.Equal(t, -2.0, intents[1].volume)
}

func TestDiscreteDecoder(t *testing.T) {
	t.Parallel()

	terms, _ := FuzzyTerms(3)
	var gotFuzzy float64
	d := &discreteDecoder{
		symbols: []string{"EURUSD"},
		terms:   terms,
		size: func(symbol string, fuzzy float64) (float64, error) {
			gotFuzzy = fuzzy
			return fuzzy * 10, nil
		},
	}

	intents, err := d.decode(Action{Discrete: 1})
	assert.NoError(t, err)
	assert.True(t, intents[0].hold)
	assert.Equal(t, 1.0, intents[0].holdProbability)
	assert.Equal(t, 0.0, intents[0].volume)
	assert.Empty(t, intents[0].closeProbabilities)

	intents, err = d.decode(Action{Discrete: 2})
	assert.NoError(t, err)
	assert.False(t, intents[0].hold)
	assert.Equal(t, 1.0, gotFuzzy)
	assert.Equal(t, 10.0, intents[0].volume)

	intents, err = d.decode(Action{Discrete: 0})
	assert.NoError(t, err)
	assert.Equal(t, -10.0, intents[0].volume)

	_, err = d.decode(Action{Discrete: 3})
	assert.Error(t, err)
	_, err = d.decode(Action{Discrete: -1})
	assert.Error(t, err)
}

func TestStructuredDecoder(t *testing.T) {
	t.Parallel()

	d := &structuredDecoder{symbols: []string{"EURUSD"}, maxOrders: 2}

	_, err := d.decode(Action{Structured: nil})
	assert.Error(t, err)

	_, err = d.decode(Action{Structured: []StructuredAction{
		{Close: []bool{true, false, true}},
	}})
	assert.Error(t, err)

	intents, err := d.decode(Action{Structured: []StructuredAction{
		{Close: []bool{true, false}, Hold: false, Volume: 0.5},
	}})
	assert.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, intents[0].closeProbabilities)
	assert.False(t, intents[0].hold)
	assert.Equal(t, 0.0, intents[0].holdProbability)
	assert.Equal(t, 0.5, intents[0].volume)
}

func TestExpit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.5, expit(0))
	assert.InDelta(t, 1.0, expit(20), 1e-8)
	assert.InDelta(t, 0.0, expit(-20), 1e-8)
}
