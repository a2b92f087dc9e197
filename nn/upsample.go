package nn

import "go-soundimage/tensor"

// Upsample resizes [B, C, H, W] to a fixed [B, C, Height, Width] with bilinear
// interpolation (align_corners=false), whatever the input size.
type Upsample struct {
	stateless
	Height, Width int
}

func NewUpsample(height, width int) *Upsample {
	return &Upsample{Height: height, Width: width}
}

func (u *Upsample) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.ResizeBilinear(input, u.Height, u.Width)
}

func (u *Upsample) Name() string {
	return "Upsample"
}
