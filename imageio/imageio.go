// Package imageio converts images back and forth from NCHW tensors, and reads/writes them
// as files.
package imageio

import (
	"fmt"
	"image"
	"math"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"go-soundimage/tensor"
)

const channels = 3

// FromImages converts images of identical size into a [N, 3, H, W] tensor with values in
// [0, 1]. alpha is dropped without compositing.
func FromImages(images []image.Image) (*tensor.Tensor, error) {
	if len(images) == 0 {
		return nil, errors.New("no images to convert")
	}
	size := images[0].Bounds().Size()
	if size.X == 0 || size.Y == 0 {
		return nil, errors.Errorf("image[0] is empty")
	}
	plane := size.X * size.Y
	data := make([]float64, len(images)*channels*plane)
	for i, img := range images {
		if !img.Bounds().Size().Eq(size) {
			return nil, errors.Errorf("image[%d] has size %s, but image[0] has size %s -- they must all be the same",
				i, img.Bounds().Size(), size)
		}
		nrgba := imaging.Clone(img)
		base := i * channels * plane
		for y := 0; y < size.Y; y++ {
			row := nrgba.Pix[y*nrgba.Stride:]
			for x := 0; x < size.X; x++ {
				for c := 0; c < channels; c++ {
					data[base+c*plane+y*size.X+x] = float64(row[x*4+c]) / 255
				}
			}
		}
	}
	return tensor.NewTensor([]int{len(images), channels, size.Y, size.X}, data)
}

// ToImages converts a [N, 3, H, W] tensor into N opaque images. values are clamped to
// [0, 1] before quantization.
func ToImages(t *tensor.Tensor) ([]*image.NRGBA, error) {
	shape := t.GetShape()
	if len(shape) != 4 || shape[1] != channels {
		return nil, errors.Errorf("expected a [N, %d, H, W] tensor, got %v", channels, shape)
	}
	n, height, width := shape[0], shape[2], shape[3]
	plane := height * width
	data := t.GetData()

	images := make([]*image.NRGBA, n)
	for i := range images {
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		base := i * channels * plane
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				px := img.Pix[y*img.Stride+x*4:]
				for c := 0; c < channels; c++ {
					px[c] = quantize(data[base+c*plane+y*width+x])
				}
				px[3] = 255
			}
		}
		images[i] = img
	}
	return images, nil
}

func quantize(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(v * 255))
}

// ReadFiles decodes image files (PNG, JPEG, GIF, BMP, TIFF), honoring EXIF orientation.
func ReadFiles(paths ...string) ([]image.Image, error) {
	images := make([]image.Image, len(paths))
	for i, p := range paths {
		img, err := imaging.Open(p, imaging.AutoOrientation(true))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read image %q", p)
		}
		images[i] = img
	}
	return images, nil
}

// WriteFiles saves images as dir/<prefix>_<i>.png and returns the paths written.
func WriteFiles(dir, prefix string, images []*image.NRGBA) ([]string, error) {
	paths := make([]string, len(images))
	for i, img := range images {
		p := filepath.Join(dir, fmt.Sprintf("%s_%d.png", prefix, i))
		if err := imaging.Save(img, p); err != nil {
			return nil, errors.Wrapf(err, "failed to save image %q", p)
		}
		paths[i] = p
	}
	return paths, nil
}
