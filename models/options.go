package models

import (
	"math/rand"

	"go-soundimage/nn"
)

// Option configures model construction.
type Option func(*options)

type options struct {
	rng *rand.Rand
}

// WithSeed makes the initial weights reproducible.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.rng = rand.New(rand.NewSource(seed))
	}
}

// WithRand draws the initial weights from rng.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	o.rng = nn.NewRand(o.rng)
	return o
}
