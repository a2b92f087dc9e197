package models

import (
	"math/rand"
	"strconv"

	"github.com/pkg/errors"

	"go-soundimage/nn"
	"go-soundimage/tensor"
)

const (
	// RefinedImageSize is the fixed height and width of ResidualUpsampleNet outputs.
	RefinedImageSize = 128

	featureChannels = 64
	residualBlocks  = 5
	upsampleStages  = 3
	upsampleFactor  = 2
	imageChannels   = 3
	wideKernel      = 9
	wideKernelPad   = 4
	narrowKernel    = 3
	narrowKernelPad = 1
)

// ResidualUpsampleNet refines and upscales an image: a wide input convolution, five
// conv/batchnorm blocks, a global skip connection around them, three pixel-shuffle stages
// (8x), a bilinear resize to 128x128 and a wide output convolution.
//
// the blocks are stacked without a shortcut of their own; only the global skip adds the
// input convolution back.
type ResidualUpsampleNet struct {
	inputConv  *nn.Conv2D
	resBlock   *nn.Sequential
	midConv    *nn.Conv2D
	upsample   [upsampleStages]*nn.Sequential
	resize     *nn.Upsample
	outputConv *nn.Conv2D
}

// UNet is the name the network was published under, although it has no contracting path.
type UNet = ResidualUpsampleNet

var _ nn.Layer = (*ResidualUpsampleNet)(nil)

func NewResidualUpsampleNet(opts ...Option) (*ResidualUpsampleNet, error) {
	o := buildOptions(opts)
	m := &ResidualUpsampleNet{
		resBlock: nn.NewSequential(),
		resize:   nn.NewUpsample(RefinedImageSize, RefinedImageSize),
	}

	var err error
	if m.inputConv, err = nn.NewConv2D(imageChannels, featureChannels, wideKernel, 1, wideKernelPad, o.rng); err != nil {
		return nil, err
	}
	for i := 0; i < residualBlocks; i++ {
		block, err := newResidualBlock(o.rng)
		if err != nil {
			return nil, errors.Wrapf(err, "residual block %d", i)
		}
		m.resBlock.Add(block)
	}
	if m.midConv, err = nn.NewConv2D(featureChannels, featureChannels, narrowKernel, 1, narrowKernelPad, o.rng); err != nil {
		return nil, err
	}
	for i := range m.upsample {
		conv, err := nn.NewConv2D(featureChannels, featureChannels*upsampleFactor*upsampleFactor, narrowKernel, 1, narrowKernelPad, o.rng)
		if err != nil {
			return nil, errors.Wrapf(err, "upsample stage %d", i+1)
		}
		m.upsample[i] = nn.NewSequential(conv, nn.NewPixelShuffle(upsampleFactor), nn.NewRELU())
	}
	if m.outputConv, err = nn.NewConv2D(featureChannels, imageChannels, wideKernel, 1, wideKernelPad, o.rng); err != nil {
		return nil, err
	}
	return m, nil
}

// NewUNet is NewResidualUpsampleNet under its published name.
func NewUNet(opts ...Option) (*UNet, error) {
	return NewResidualUpsampleNet(opts...)
}

// conv -> batchnorm -> prelu -> conv -> batchnorm
func newResidualBlock(rng *rand.Rand) (*nn.Sequential, error) {
	block := nn.NewSequential()
	for i := 0; i < 2; i++ {
		conv, err := nn.NewConv2D(featureChannels, featureChannels, narrowKernel, 1, narrowKernelPad, rng)
		if err != nil {
			return nil, err
		}
		bn, err := nn.NewBatchNorm2D(featureChannels)
		if err != nil {
			return nil, err
		}
		block.Add(conv)
		block.Add(bn)
		if i == 0 {
			prelu, err := nn.NewPReLU()
			if err != nil {
				return nil, err
			}
			block.Add(prelu)
		}
	}
	return block, nil
}

// Forward maps [N, 3, H, W] images to [N, 3, 128, 128].
func (m *ResidualUpsampleNet) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := m.features(x)
	if err != nil {
		return nil, err
	}
	for i, stage := range m.upsample {
		if out, err = stage.Forward(out); err != nil {
			return nil, errors.Wrapf(err, "upsample%d", i+1)
		}
	}
	if out, err = m.resize.Forward(out); err != nil {
		return nil, errors.Wrap(err, "resize")
	}
	if out, err = m.outputConv.Forward(out); err != nil {
		return nil, errors.Wrap(err, "output_conv")
	}
	return out, nil
}

// features runs everything up to and including the global skip connection; the result
// stays at the input resolution with 64 channels.
func (m *ResidualUpsampleNet) features(x *tensor.Tensor) (*tensor.Tensor, error) {
	skip, mid, err := m.skipBranches(x)
	if err != nil {
		return nil, err
	}
	out, err := tensor.AddTensor(mid, skip)
	if err != nil {
		return nil, errors.Wrap(err, "global skip connection")
	}
	return out, nil
}

// skipBranches returns the two operands of the global skip connection: the input
// convolution output and the mid convolution output.
func (m *ResidualUpsampleNet) skipBranches(x *tensor.Tensor) (skip, mid *tensor.Tensor, err error) {
	if skip, err = m.inputConv.Forward(x); err != nil {
		return nil, nil, errors.Wrap(err, "input_conv")
	}
	if mid, err = m.resBlock.Forward(skip); err != nil {
		return nil, nil, errors.Wrap(err, "res_block")
	}
	if mid, err = m.midConv.Forward(mid); err != nil {
		return nil, nil, errors.Wrap(err, "mid_conv")
	}
	return skip, mid, nil
}

func (m *ResidualUpsampleNet) Parameters() []*tensor.Tensor {
	params := append([]*tensor.Tensor{}, m.inputConv.Parameters()...)
	params = append(params, m.resBlock.Parameters()...)
	params = append(params, m.midConv.Parameters()...)
	for _, stage := range m.upsample {
		params = append(params, stage.Parameters()...)
	}
	return append(params, m.outputConv.Parameters()...)
}

func (m *ResidualUpsampleNet) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	nn.MergeStateDict(sd, "input_conv", m.inputConv)
	nn.MergeStateDict(sd, "res_block", m.resBlock)
	nn.MergeStateDict(sd, "mid_conv", m.midConv)
	for i, stage := range m.upsample {
		nn.MergeStateDict(sd, "upsample"+strconv.Itoa(i+1), stage)
	}
	nn.MergeStateDict(sd, "output_conv", m.outputConv)
	return sd
}

func (m *ResidualUpsampleNet) SetTraining(training bool) {
	m.resBlock.SetTraining(training)
}

func (m *ResidualUpsampleNet) Name() string {
	return "ResidualUpsampleNet"
}
