package tensor

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// maxColElements bounds the im2col buffer of a single sample (8MB of float64). larger
// outputs are unfolded in bands of output rows.
const maxColElements = 1 << 20

// ConvGeometry describes a square-stride, symmetric-padding 2D convolution over a single
// [Channels, Height, Width] image.
type ConvGeometry struct {
	Channels, Height, Width int
	KernelHeight            int
	KernelWidth             int
	Stride, Padding         int
}

func (g ConvGeometry) OutHeight() int {
	return (g.Height+2*g.Padding-g.KernelHeight)/g.Stride + 1
}

func (g ConvGeometry) OutWidth() int {
	return (g.Width+2*g.Padding-g.KernelWidth)/g.Stride + 1
}

// ColRows is the number of rows of the column matrix: one per (channel, kh, kw).
func (g ConvGeometry) ColRows() int {
	return g.Channels * g.KernelHeight * g.KernelWidth
}

func (g ConvGeometry) validate() error {
	if g.Stride <= 0 || g.Padding < 0 {
		return errors.Errorf("invalid stride %d / padding %d", g.Stride, g.Padding)
	}
	if g.Height+2*g.Padding < g.KernelHeight || g.Width+2*g.Padding < g.KernelWidth {
		return errors.Errorf("convolution produces invalid output size for %dx%d input, kernel %dx%d, padding %d",
			g.Height, g.Width, g.KernelHeight, g.KernelWidth, g.Padding)
	}
	return nil
}

// Im2Col unfolds output rows [rowStart, rowEnd) of a convolution over one sample into dst,
// laid out as [ColRows, (rowEnd-rowStart)*OutWidth]. every element of dst is written, padding
// positions as zero, so dst can be reused between bands.
func Im2Col(src []float64, g ConvGeometry, rowStart, rowEnd int, dst []float64) {
	outWidth := g.OutWidth()
	cols := (rowEnd - rowStart) * outWidth
	for c := 0; c < g.Channels; c++ {
		channel := src[c*g.Height*g.Width : (c+1)*g.Height*g.Width]
		for kh := 0; kh < g.KernelHeight; kh++ {
			for kw := 0; kw < g.KernelWidth; kw++ {
				colRow := c*(g.KernelHeight*g.KernelWidth) + kh*g.KernelWidth + kw
				row := dst[colRow*cols : (colRow+1)*cols]
				for oh := rowStart; oh < rowEnd; oh++ {
					inputRow := kh - g.Padding + oh*g.Stride
					line := row[(oh-rowStart)*outWidth : (oh-rowStart+1)*outWidth]
					if inputRow < 0 || inputRow >= g.Height {
						clear(line)
						continue
					}
					for ow := range line {
						inputCol := kw - g.Padding + ow*g.Stride
						if inputCol >= 0 && inputCol < g.Width {
							line[ow] = channel[inputRow*g.Width+inputCol]
						} else {
							line[ow] = 0
						}
					}
				}
			}
		}
	}
}

// Col2Im is the adjoint of Im2Col over all output rows: it scatter-adds a column matrix
// [ColRows, OutHeight*OutWidth] back into the image dst [Channels, Height, Width].
// dst is accumulated into, not overwritten.
func Col2Im(cols []float64, g ConvGeometry, dst []float64) {
	outHeight, outWidth := g.OutHeight(), g.OutWidth()
	numCols := outHeight * outWidth
	for c := 0; c < g.Channels; c++ {
		channel := dst[c*g.Height*g.Width : (c+1)*g.Height*g.Width]
		for kh := 0; kh < g.KernelHeight; kh++ {
			for kw := 0; kw < g.KernelWidth; kw++ {
				colRow := c*(g.KernelHeight*g.KernelWidth) + kh*g.KernelWidth + kw
				row := cols[colRow*numCols : (colRow+1)*numCols]
				for oh := 0; oh < outHeight; oh++ {
					inputRow := kh - g.Padding + oh*g.Stride
					if inputRow < 0 || inputRow >= g.Height {
						continue
					}
					for ow := 0; ow < outWidth; ow++ {
						inputCol := kw - g.Padding + ow*g.Stride
						if inputCol >= 0 && inputCol < g.Width {
							channel[inputRow*g.Width+inputCol] += row[oh*outWidth+ow]
						}
					}
				}
			}
		}
	}
}

// Conv2D computes a 2D cross-correlation.
//
//	input:  [B, InChannels, H, W]
//	weight: [OutChannels, InChannels, KH, KW]
//	bias:   [OutChannels] or nil
//
// each sample is unfolded with Im2Col and multiplied against the flattened kernel; samples
// run in parallel.
func Conv2D(input, weight, bias *Tensor, stride, padding int) (*Tensor, error) {
	if len(input.shape) != 4 {
		return nil, errors.Errorf("conv2d expects a 4D input tensor, but got %dD (%v)", len(input.shape), input.shape)
	}
	if len(weight.shape) != 4 {
		return nil, errors.Errorf("conv2d expects a 4D weight tensor, but got %v", weight.shape)
	}
	batchSize, inChannels, height, width := input.shape[0], input.shape[1], input.shape[2], input.shape[3]
	outChannels := weight.shape[0]
	if weight.shape[1] != inChannels {
		return nil, errors.Errorf("conv2d input has %d channels, weight %v expects %d", inChannels, weight.shape, weight.shape[1])
	}
	if bias != nil && (len(bias.shape) != 1 || bias.shape[0] != outChannels) {
		return nil, errors.Errorf("conv2d bias shape %v does not match %d output channels", bias.shape, outChannels)
	}

	g := ConvGeometry{
		Channels: inChannels, Height: height, Width: width,
		KernelHeight: weight.shape[2], KernelWidth: weight.shape[3],
		Stride: stride, Padding: padding,
	}
	if err := g.validate(); err != nil {
		return nil, errors.Wrap(err, "conv2d")
	}
	outHeight, outWidth := g.OutHeight(), g.OutWidth()
	colRows := g.ColRows()

	bandRows := max(1, min(outHeight, maxColElements/(colRows*outWidth)))
	kernelMatrix := mat.NewDense(outChannels, colRows, weight.data)

	sampleIn := inChannels * height * width
	sampleOut := outChannels * outHeight * outWidth
	outData := make([]float64, batchSize*sampleOut)

	err := ParallelFor(batchSize, func(b int) error {
		src := input.data[b*sampleIn : (b+1)*sampleIn]
		dst := mat.NewDense(outChannels, outHeight*outWidth, outData[b*sampleOut:(b+1)*sampleOut])
		cols := make([]float64, colRows*bandRows*outWidth)
		for rowStart := 0; rowStart < outHeight; rowStart += bandRows {
			rowEnd := min(rowStart+bandRows, outHeight)
			numCols := (rowEnd - rowStart) * outWidth
			band := cols[:colRows*numCols]
			Im2Col(src, g, rowStart, rowEnd, band)
			view := dst.Slice(0, outChannels, rowStart*outWidth, rowEnd*outWidth).(*mat.Dense)
			view.Mul(kernelMatrix, mat.NewDense(colRows, numCols, band))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if bias != nil {
		addChannelBiasInPlace(outData, bias.data, batchSize, outChannels, outHeight*outWidth)
	}
	return wrap([]int{batchSize, outChannels, outHeight, outWidth}, outData), nil
}

// ConvTranspose2D computes the transposed convolution (the gradient of Conv2D with respect
// to its input), used for learned upsampling.
//
//	input:  [B, InChannels, H, W]
//	weight: [InChannels, OutChannels, KH, KW]
//	bias:   [OutChannels] or nil
//	output: [B, OutChannels, (H-1)*stride - 2*padding + KH, ...]
func ConvTranspose2D(input, weight, bias *Tensor, stride, padding int) (*Tensor, error) {
	if len(input.shape) != 4 {
		return nil, errors.Errorf("conv_transpose2d expects a 4D input tensor, but got %dD (%v)", len(input.shape), input.shape)
	}
	if len(weight.shape) != 4 {
		return nil, errors.Errorf("conv_transpose2d expects a 4D weight tensor, but got %v", weight.shape)
	}
	batchSize, inChannels, height, width := input.shape[0], input.shape[1], input.shape[2], input.shape[3]
	if weight.shape[0] != inChannels {
		return nil, errors.Errorf("conv_transpose2d input has %d channels, weight %v expects %d", inChannels, weight.shape, weight.shape[0])
	}
	outChannels, kernelHeight, kernelWidth := weight.shape[1], weight.shape[2], weight.shape[3]
	if bias != nil && (len(bias.shape) != 1 || bias.shape[0] != outChannels) {
		return nil, errors.Errorf("conv_transpose2d bias shape %v does not match %d output channels", bias.shape, outChannels)
	}
	if stride <= 0 || padding < 0 {
		return nil, errors.Errorf("conv_transpose2d: invalid stride %d / padding %d", stride, padding)
	}

	outHeight := (height-1)*stride - 2*padding + kernelHeight
	outWidth := (width-1)*stride - 2*padding + kernelWidth
	if outHeight <= 0 || outWidth <= 0 {
		return nil, errors.Errorf("conv_transpose2d produces invalid output size: %dx%d", outHeight, outWidth)
	}

	// the output image plays the role of the convolution input, the transposed-conv input
	// is the convolution output.
	g := ConvGeometry{
		Channels: outChannels, Height: outHeight, Width: outWidth,
		KernelHeight: kernelHeight, KernelWidth: kernelWidth,
		Stride: stride, Padding: padding,
	}
	colRows := g.ColRows()
	kernelMatrix := mat.NewDense(inChannels, colRows, weight.data)

	sampleIn := inChannels * height * width
	sampleOut := outChannels * outHeight * outWidth
	outData := make([]float64, batchSize*sampleOut)

	err := ParallelFor(batchSize, func(b int) error {
		x := mat.NewDense(inChannels, height*width, input.data[b*sampleIn:(b+1)*sampleIn])
		colData := make([]float64, colRows*height*width)
		cols := mat.NewDense(colRows, height*width, colData)
		cols.Mul(kernelMatrix.T(), x)
		Col2Im(colData, g, outData[b*sampleOut:(b+1)*sampleOut])
		return nil
	})
	if err != nil {
		return nil, err
	}

	if bias != nil {
		addChannelBiasInPlace(outData, bias.data, batchSize, outChannels, outHeight*outWidth)
	}
	return wrap([]int{batchSize, outChannels, outHeight, outWidth}, outData), nil
}
