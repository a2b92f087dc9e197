package nn

import (
	"math"

	"github.com/pkg/errors"

	"go-soundimage/tensor"
)

// you definitely know RELU if you're reading this: out = max(0, t)
func RELU(t *tensor.Tensor) (*tensor.Tensor, error) {
	r := tensor.CloneTensor(t)
	data := r.GetData()
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}
	return r, nil
}

// we apply element wise sigmoid : out = 1 / (1 + exp(-t)). the result is always in [0, 1].
func Sigmoid(t *tensor.Tensor) (*tensor.Tensor, error) {
	r := tensor.CloneTensor(t)
	data := r.GetData()
	for i, v := range data {
		data[i] = 1.0 / (1.0 + math.Exp(-v))
	}
	return r, nil
}

// --- Activation Layers ---

type RELUActivation struct{ stateless }

func (r *RELUActivation) Forward(input *tensor.Tensor) (*tensor.Tensor, error) { return RELU(input) }
func (r *RELUActivation) Name() string { return "ReLU" }

func NewRELU() *RELUActivation {
	return &RELUActivation{}
}

type SigmoidActivation struct{ stateless }

func (s *SigmoidActivation) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return Sigmoid(input)
}
func (s *SigmoidActivation) Name() string { return "Sigmoid" }

func NewSigmoid() *SigmoidActivation {
	return &SigmoidActivation{}
}

// PReLU is a leaky ReLU whose negative slope is learned: out = t if t > 0 else a*t.
// a single slope is shared by all channels.
type PReLU struct {
	Weight *tensor.Tensor // [1]
}

const defaultPReLUSlope = 0.25

func NewPReLU() (*PReLU, error) {
	weight, err := tensor.Full(defaultPReLUSlope, 1)
	if err != nil {
		return nil, errors.Wrap(err, "prelu failed to create weight tensor")
	}
	return &PReLU{Weight: weight}, nil
}

func (p *PReLU) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if tensor.Numel(p.Weight) != 1 {
		return nil, errors.Errorf("prelu expects a single slope, got weight %v", p.Weight.GetShape())
	}
	slope := p.Weight.GetData()[0]
	r := tensor.CloneTensor(input)
	data := r.GetData()
	for i, v := range data {
		if v < 0 {
			data[i] = slope * v
		}
	}
	return r, nil
}

func (p *PReLU) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{p.Weight}
}

func (p *PReLU) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{"weight": p.Weight}
}

func (p *PReLU) SetTraining(bool) {}

func (p *PReLU) Name() string {
	return "PReLU"
}
