package models

import (
	"github.com/pkg/errors"

	"go-soundimage/nn"
	"go-soundimage/tensor"
)

const (
	// SoundFeatures is the length of the input feature vector.
	SoundFeatures = 4
	// GeneratedImageSize is the height and width of a generated image.
	GeneratedImageSize = 32

	latentChannels = 64
	latentSize     = 8
	hiddenUnits    = 128
)

// SoundToImage decodes a 4-dimensional feature vector into a 3x32x32 image with values in
// [0, 1]: two dense layers expand the features into an 8x8x64 latent, two transposed
// convolutions upsample it.
type SoundToImage struct {
	fc      *nn.Sequential
	view    *nn.View
	decoder *nn.Sequential
}

var _ nn.Layer = (*SoundToImage)(nil)

func NewSoundToImage(opts ...Option) (*SoundToImage, error) {
	o := buildOptions(opts)

	fc1, err := nn.NewLinear(SoundFeatures, hiddenUnits, o.rng)
	if err != nil {
		return nil, err
	}
	fc2, err := nn.NewLinear(hiddenUnits, latentChannels*latentSize*latentSize, o.rng)
	if err != nil {
		return nil, err
	}
	deconv1, err := nn.NewConvTranspose2D(latentChannels, 32, 4, 2, 1, o.rng)
	if err != nil {
		return nil, err
	}
	deconv2, err := nn.NewConvTranspose2D(32, 3, 4, 2, 1, o.rng)
	if err != nil {
		return nil, err
	}

	return &SoundToImage{
		fc:      nn.NewSequential(fc1, nn.NewRELU(), fc2, nn.NewRELU()),
		view:    nn.NewView(-1, latentChannels, latentSize, latentSize),
		decoder: nn.NewSequential(deconv1, nn.NewRELU(), deconv2, nn.NewSigmoid()),
	}, nil
}

// Forward maps [N, 4] features to [N, 3, 32, 32] images.
func (m *SoundToImage) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	x, err := m.fc.Forward(x)
	if err != nil {
		return nil, errors.Wrap(err, "fc")
	}
	x, err = m.view.Forward(x)
	if err != nil {
		return nil, err
	}
	x, err = m.decoder.Forward(x)
	if err != nil {
		return nil, errors.Wrap(err, "decoder")
	}
	return x, nil
}

func (m *SoundToImage) Parameters() []*tensor.Tensor {
	return append(m.fc.Parameters(), m.decoder.Parameters()...)
}

func (m *SoundToImage) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	nn.MergeStateDict(sd, "fc", m.fc)
	nn.MergeStateDict(sd, "decoder", m.decoder)
	return sd
}

func (m *SoundToImage) SetTraining(training bool) {
	m.fc.SetTraining(training)
	m.decoder.SetTraining(training)
}

func (m *SoundToImage) Name() string {
	return "SoundToImage"
}
