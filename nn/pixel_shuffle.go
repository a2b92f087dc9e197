package nn

import "go-soundimage/tensor"

// PixelShuffle trades channels for resolution: [B, C*r*r, H, W] -> [B, C, H*r, W*r].
type PixelShuffle struct {
	stateless
	Factor int
}

func NewPixelShuffle(factor int) *PixelShuffle {
	return &PixelShuffle{Factor: factor}
}

func (p *PixelShuffle) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.PixelShuffle(input, p.Factor)
}

func (p *PixelShuffle) Name() string {
	return "PixelShuffle"
}
