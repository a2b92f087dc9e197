package nn

import (
	"math"
	"math/rand"
	"time"

	"go-soundimage/tensor"
)

// NewRand returns rng, or a time-seeded source when rng is nil.
func NewRand(rng *rand.Rand) *rand.Rand {
	if rng != nil {
		return rng
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// uniformTensor fills a new tensor with values drawn uniformly from [-bound, bound).
func uniformTensor(rng *rand.Rand, bound float64, shape ...int) (*tensor.Tensor, error) {
	t, err := tensor.Zeros(shape...)
	if err != nil {
		return nil, err
	}
	data := t.GetData()
	for i := range data {
		data[i] = (2*rng.Float64() - 1) * bound
	}
	return t, nil
}

// fanInBound is torch's default bound for both weights (kaiming_uniform with a=sqrt(5))
// and biases: 1/sqrt(fan_in).
func fanInBound(fanIn int) float64 {
	return 1 / math.Sqrt(float64(fanIn))
}
