package model

import (
	"math/rand"

	"github.com/spigell/scoreit/internal/features"
)

const (
	MinBootstrapSamples     = 30
	DefaultBootstrapSamples = 100
	DefaultBootstrapSeed    = 42
)

// syntheticLabel is the rule used to label bootstrap samples.
func syntheticLabel(x [features.Size]float64) int {
	if 1.5*x[0]-0.8*x[1]+2*x[2] > 5 {
		return 1
	}
	return 0
}

// syntheticSamples draws n samples with skill overlap and experience gap in [0,10]
// and qualification match in {0,1}. The same seed always yields the same set.
func syntheticSamples(n int, seed int64) []Sample {
	if n < MinBootstrapSamples {
		n = MinBootstrapSamples
	}

	rng := rand.New(rand.NewSource(seed))
	samples := make([]Sample, n)
	for i := range samples {
		x := [features.Size]float64{
			float64(rng.Intn(11)),
			float64(rng.Intn(11)),
			float64(rng.Intn(2)),
		}
		samples[i] = Sample{Features: x, Label: syntheticLabel(x)}
	}

	ensureBothClasses(samples)
	return samples
}

// ensureBothClasses pins the first two samples to a clear positive and a clear
// negative when the draw happened to produce a single class.
func ensureBothClasses(samples []Sample) {
	var pos, neg bool
	for _, s := range samples {
		if s.Label == 1 {
			pos = true
		} else {
			neg = true
		}
	}
	if pos && neg {
		return
	}
	samples[0] = Sample{Features: [features.Size]float64{10, 0, 1}, Label: 1}
	samples[1] = Sample{Features: [features.Size]float64{0, 10, 0}, Label: 0}
}
