package nn

import (
	"math/rand"

	"github.com/pkg/errors"

	"go-soundimage/tensor"
)

// Conv2D Struct implements a 2D convolutional layer with square kernels.
type Conv2D struct {
	Weight  *tensor.Tensor // Shape: [OutChannels, InChannels, KernelHeight, KernelWidth]
	Bias    *tensor.Tensor // Shape: [OutChannels]
	Stride  int
	Padding int
}

// creates a new Conv2D layer, initialized like torch.nn.Conv2d.
func NewConv2D(inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand) (*Conv2D, error) {
	if inChannels <= 0 || outChannels <= 0 || kernelSize <= 0 || stride <= 0 || padding < 0 {
		return nil, errors.Errorf("invalid conv2d configuration in=%d out=%d kernel=%d stride=%d padding=%d",
			inChannels, outChannels, kernelSize, stride, padding)
	}
	rng = NewRand(rng)
	bound := fanInBound(inChannels * kernelSize * kernelSize)

	weight, err := uniformTensor(rng, bound, outChannels, inChannels, kernelSize, kernelSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create weight tensor")
	}
	bias, err := uniformTensor(rng, bound, outChannels)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bias tensor")
	}

	return &Conv2D{
		Weight:  weight,
		Bias:    bias,
		Stride:  stride,
		Padding: padding,
	}, nil
}

func (c *Conv2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := tensor.Conv2D(input, c.Weight, c.Bias, c.Stride, c.Padding)
	if err != nil {
		return nil, errors.Wrap(err, "conv forward failed")
	}
	return out, nil
}

func (c *Conv2D) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{c.Weight, c.Bias}
}

func (c *Conv2D) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{"weight": c.Weight, "bias": c.Bias}
}

func (c *Conv2D) SetTraining(bool) {}

func (c *Conv2D) Name() string {
	return "Conv2D"
}
