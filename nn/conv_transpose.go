package nn

import (
	"math/rand"

	"github.com/pkg/errors"

	"go-soundimage/tensor"
)

// ConvTranspose2D is a learned upsampling layer. with kernel 4, stride 2 and padding 1 it
// doubles the spatial size.
type ConvTranspose2D struct {
	Weight  *tensor.Tensor // Shape: [InChannels, OutChannels, KernelHeight, KernelWidth]
	Bias    *tensor.Tensor // Shape: [OutChannels]
	Stride  int
	Padding int
}

// NewConvTranspose2D initializes like torch.nn.ConvTranspose2d, whose fan-in is computed
// from weight dimension 1, i.e. outChannels * kernelSize^2.
func NewConvTranspose2D(inChannels, outChannels, kernelSize, stride, padding int, rng *rand.Rand) (*ConvTranspose2D, error) {
	if inChannels <= 0 || outChannels <= 0 || kernelSize <= 0 || stride <= 0 || padding < 0 {
		return nil, errors.Errorf("invalid conv_transpose2d configuration in=%d out=%d kernel=%d stride=%d padding=%d",
			inChannels, outChannels, kernelSize, stride, padding)
	}
	rng = NewRand(rng)
	bound := fanInBound(outChannels * kernelSize * kernelSize)

	weight, err := uniformTensor(rng, bound, inChannels, outChannels, kernelSize, kernelSize)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create weight tensor")
	}
	bias, err := uniformTensor(rng, bound, outChannels)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create bias tensor")
	}

	return &ConvTranspose2D{
		Weight:  weight,
		Bias:    bias,
		Stride:  stride,
		Padding: padding,
	}, nil
}

func (c *ConvTranspose2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := tensor.ConvTranspose2D(input, c.Weight, c.Bias, c.Stride, c.Padding)
	if err != nil {
		return nil, errors.Wrap(err, "conv transpose forward failed")
	}
	return out, nil
}

func (c *ConvTranspose2D) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{c.Weight, c.Bias}
}

func (c *ConvTranspose2D) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{"weight": c.Weight, "bias": c.Bias}
}

func (c *ConvTranspose2D) SetTraining(bool) {}

func (c *ConvTranspose2D) Name() string {
	return "ConvTranspose2D"
}
