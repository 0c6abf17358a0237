package vad

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func sine(n int, freq, amp float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amp * math.Sin(2*math.Pi*freq*float64(i)/8000))
	}
	return out
}

func TestEnergyClassifier(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	noise := make([]int16, 240)
	for i := range noise {
		noise[i] = int16(r.NormFloat64() * 3000)
	}

	tests := []struct {
		name   string
		window []int16
		mode   int
		want   bool
	}{
		{"silence", make([]int16, 240), 3, false},
		{"empty window", nil, 0, false},
		{"voiced tone", sine(240, 300, 5000), 3, true},
		{"quiet tone under aggressive mode", sine(240, 300, 500), 3, false},
		{"quiet tone under permissive mode", sine(240, 300, 500), 0, true},
		{"broadband noise", noise, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewEnergyClassifier(tt.mode)
			assert.Equal(t, tt.want, c.IsSpeech(tt.window, 8000))
		})
	}
}

func TestNewEnergyClassifier_ClampsMode(t *testing.T) {
	assert.Equal(t, NewEnergyClassifier(0).Threshold(), NewEnergyClassifier(-4).Threshold())
	assert.Equal(t, NewEnergyClassifier(3).Threshold(), NewEnergyClassifier(9).Threshold())
	assert.Equal(t, 1000.0, NewEnergyClassifierWithThreshold(1000).Threshold())
}

func TestRMSAndZCR(t *testing.T) {
	assert.Zero(t, RMS(nil))
	assert.InDelta(t, 100, RMS([]int16{100, -100, 100, -100}), 1e-9)
	assert.InDelta(t, 1.0, ZeroCrossingRate([]int16{1, -1, 1, -1}), 1e-9)
	assert.Zero(t, ZeroCrossingRate([]int16{5}))
}

func TestProperty_SpeechAlwaysResetsCounter(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("a speech frame resets the idle counter", prop.ForAll(
		func(silent int, cut int) bool {
			d := NewDetectorWithCut(DefaultConfig(), nil, cut)
			for i := 0; i < silent; i++ {
				d.Step(false)
			}
			return d.Step(true) == Speaking && d.Counter() == 0
		},
		gen.IntRange(0, 200),
		gen.IntRange(1, 50),
	))

	properties.Property("louder windows never stop being speech", prop.ForAll(
		func(amp float64, mode int) bool {
			c := NewEnergyClassifier(mode)
			if !c.IsSpeech(sine(240, 250, amp), 8000) {
				return true
			}
			return c.IsSpeech(sine(240, 250, math.Min(amp*2, 30000)), 8000)
		},
		gen.Float64Range(50, 15000),
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}
