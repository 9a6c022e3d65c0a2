package model

import (
	"math"

	"github.com/spigell/scoreit/internal/features"
)

// params is a fitted logistic regression over standardized features:
//
//	z = Bias + sum(Weights[i] * (x[i] - Mean[i]) / Scale[i])
//	p = 1 / (1 + exp(-z))
type params struct {
	Weights [features.Size]float64 `json:"weights"`
	Bias    float64                `json:"bias"`
	Mean    [features.Size]float64 `json:"mean"`
	Scale   [features.Size]float64 `json:"scale"`
}

// TrainOptions controls gradient descent.
type TrainOptions struct {
	LearningRate float64
	Iterations   int
	// C is the inverse L2 regularization strength.
	C float64
}

func (o TrainOptions) withDefaults() TrainOptions {
	if o.LearningRate <= 0 {
		o.LearningRate = 0.5
	}
	if o.Iterations <= 0 {
		o.Iterations = 2000
	}
	if o.C <= 0 {
		o.C = 1.0
	}
	return o
}

func (p *params) valid() bool {
	if p == nil {
		return false
	}
	for i := range p.Scale {
		if p.Scale[i] <= 0 || math.IsNaN(p.Weights[i]) {
			return false
		}
	}
	return !math.IsNaN(p.Bias)
}

func (p *params) predict(x [features.Size]float64) float64 {
	z := p.Bias
	for i := range x {
		z += p.Weights[i] * (x[i] - p.Mean[i]) / p.Scale[i]
	}
	return sigmoid(z)
}

// fit runs full-batch gradient descent on the mean log loss with an L2 penalty on the weights.
func fit(X [][features.Size]float64, y []int, opts TrainOptions) *params {
	opts = opts.withDefaults()
	n := float64(len(X))

	p := &params{}
	for i := 0; i < features.Size; i++ {
		var sum float64
		for _, x := range X {
			sum += x[i]
		}
		p.Mean[i] = sum / n

		var sq float64
		for _, x := range X {
			d := x[i] - p.Mean[i]
			sq += d * d
		}
		p.Scale[i] = math.Sqrt(sq / n)
		if p.Scale[i] < 1e-12 {
			p.Scale[i] = 1
		}
	}

	scaled := make([][features.Size]float64, len(X))
	for j, x := range X {
		for i := range x {
			scaled[j][i] = (x[i] - p.Mean[i]) / p.Scale[i]
		}
	}

	penalty := 1 / (opts.C * n)
	for it := 0; it < opts.Iterations; it++ {
		var gradW [features.Size]float64
		var gradB float64

		for j, x := range scaled {
			z := p.Bias
			for i := range x {
				z += p.Weights[i] * x[i]
			}
			diff := sigmoid(z) - float64(y[j])
			gradB += diff
			for i := range x {
				gradW[i] += diff * x[i]
			}
		}

		p.Bias -= opts.LearningRate * gradB / n
		for i := range p.Weights {
			p.Weights[i] -= opts.LearningRate * (gradW[i]/n + penalty*p.Weights[i])
		}
	}

	return p
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
