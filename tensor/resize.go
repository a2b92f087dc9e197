package tensor

import (
	"math"

	"github.com/pkg/errors"
)

// PixelShuffle rearranges [B, C*r*r, H, W] into [B, C, H*r, W*r]:
//
//	out[b, c, h*r+i, w*r+j] = in[b, c*r*r + i*r + j, h, w]
func PixelShuffle(input *Tensor, factor int) (*Tensor, error) {
	if len(input.shape) != 4 {
		return nil, errors.Errorf("pixel shuffle expects a 4D input, got %v", input.shape)
	}
	if factor <= 0 {
		return nil, errors.Errorf("pixel shuffle factor must be positive, got %d", factor)
	}
	batchSize, channels, height, width := input.shape[0], input.shape[1], input.shape[2], input.shape[3]
	if channels%(factor*factor) != 0 {
		return nil, errors.Errorf("pixel shuffle: %d channels is not divisible by factor^2 = %d", channels, factor*factor)
	}
	outChannels := channels / (factor * factor)
	outHeight, outWidth := height*factor, width*factor
	plane := height * width
	outData := make([]float64, len(input.data))

	// one job per output plane
	err := ParallelFor(batchSize*outChannels, func(job int) error {
		b, c := job/outChannels, job%outChannels
		dst := outData[job*outHeight*outWidth : (job+1)*outHeight*outWidth]
		for i := 0; i < factor; i++ {
			for j := 0; j < factor; j++ {
				srcChannel := b*channels + c*factor*factor + i*factor + j
				src := input.data[srcChannel*plane : (srcChannel+1)*plane]
				for h := 0; h < height; h++ {
					row := dst[(h*factor+i)*outWidth:]
					for w := 0; w < width; w++ {
						row[w*factor+j] = src[h*width+w]
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wrap([]int{batchSize, outChannels, outHeight, outWidth}, outData), nil
}

// linearTaps holds, for each output coordinate along one axis, the two source indices and
// the weight of the second one.
type linearTaps struct {
	lo, hi []int
	lambda []float64
}

// bilinearTaps follows the half-pixel convention of align_corners=false: the source
// coordinate is (dst+0.5)*in/out - 0.5, clamped below at 0.
func bilinearTaps(inSize, outSize int) linearTaps {
	taps := linearTaps{
		lo:     make([]int, outSize),
		hi:     make([]int, outSize),
		lambda: make([]float64, outSize),
	}
	scale := float64(inSize) / float64(outSize)
	for dst := 0; dst < outSize; dst++ {
		src := math.Max((float64(dst)+0.5)*scale-0.5, 0)
		lo := min(int(src), inSize-1)
		taps.lo[dst] = lo
		taps.hi[dst] = min(lo+1, inSize-1)
		taps.lambda[dst] = src - float64(lo)
	}
	return taps
}

// ResizeBilinear resizes the spatial dimensions of [B, C, H, W] to [B, C, outHeight, outWidth]
// with bilinear interpolation and no corner alignment.
func ResizeBilinear(input *Tensor, outHeight, outWidth int) (*Tensor, error) {
	if len(input.shape) != 4 {
		return nil, errors.Errorf("bilinear resize expects a 4D input, got %v", input.shape)
	}
	if outHeight <= 0 || outWidth <= 0 {
		return nil, errors.Errorf("bilinear resize target %dx%d is invalid", outHeight, outWidth)
	}
	batchSize, channels, height, width := input.shape[0], input.shape[1], input.shape[2], input.shape[3]
	rows := bilinearTaps(height, outHeight)
	cols := bilinearTaps(width, outWidth)

	outData := make([]float64, batchSize*channels*outHeight*outWidth)
	err := ParallelFor(batchSize*channels, func(p int) error {
		src := input.data[p*height*width : (p+1)*height*width]
		dst := outData[p*outHeight*outWidth : (p+1)*outHeight*outWidth]
		for oh := 0; oh < outHeight; oh++ {
			top := src[rows.lo[oh]*width : (rows.lo[oh]+1)*width]
			bottom := src[rows.hi[oh]*width : (rows.hi[oh]+1)*width]
			dy := rows.lambda[oh]
			for ow := 0; ow < outWidth; ow++ {
				x0, x1, dx := cols.lo[ow], cols.hi[ow], cols.lambda[ow]
				upper := (1-dx)*top[x0] + dx*top[x1]
				lower := (1-dx)*bottom[x0] + dx*bottom[x1]
				dst[oh*outWidth+ow] = (1-dy)*upper + dy*lower
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return wrap([]int{batchSize, channels, outHeight, outWidth}, outData), nil
}
