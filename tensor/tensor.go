package tensor

import (
	"math"

	"github.com/pkg/errors"
)

// NOTE: most of the functions here are self-explanatory. everything is forward-only,
// float64, row-major, and image tensors use the NCHW layout.

// simple Tensor struct
type Tensor struct {
	shape []int
	data  []float64
}

// utility function to check if two tensors have the same shape
func IsSameSize(a, b *Tensor) bool {
	return sameShape(a.shape, b.shape)
}

func sameShape(aShape, bShape []int) bool {
	if len(aShape) != len(bShape) {
		return false
	}
	for i := range aShape {
		if aShape[i] != bShape[i] {
			return false
		}
	}
	return true
}

// builds a new tensor with the given shape and data. data is copied and must hold exactly
// one value per element. a zero-rank shape holds a single element.
func NewTensor(shape []int, data []float64) (*Tensor, error) {
	total, err := ShapeSize(shape)
	if err != nil {
		return nil, err
	}
	if total != len(data) {
		return nil, errors.Errorf("shape %v implies %d elements but data has length %d", shape, total, len(data))
	}
	buf := make([]float64, total)
	copy(buf, data)
	return wrap(shape, buf), nil
}

// Zeros returns a zero-filled tensor.
func Zeros(shape ...int) (*Tensor, error) {
	total, err := ShapeSize(shape)
	if err != nil {
		return nil, err
	}
	return wrap(shape, make([]float64, total)), nil
}

// Full returns a tensor with every element set to value.
func Full(value float64, shape ...int) (*Tensor, error) {
	t, err := Zeros(shape...)
	if err != nil {
		return nil, err
	}
	for i := range t.data {
		t.data[i] = value
	}
	return t, nil
}

// wrap takes ownership of data without copying. callers guarantee len(data) matches shape.
func wrap(shape []int, data []float64) *Tensor {
	return &Tensor{
		shape: append([]int{}, shape...),
		data:  data,
	}
}

// ShapeSize returns the number of elements of shape. every dimension must be positive and
// the product must fit in an int.
func ShapeSize(shape []int) (int, error) {
	total := 1
	for _, dim := range shape {
		if dim <= 0 {
			return 0, errors.Errorf("shape %v contains non-positive dimension", shape)
		}
		if total > math.MaxInt/dim {
			return 0, errors.Errorf("shape %v has too many elements", shape)
		}
		total *= dim
	}
	return total, nil
}

// clones a tensor
func CloneTensor(t *Tensor) *Tensor {
	clonedData := make([]float64, len(t.data))
	copy(clonedData, t.data)
	return wrap(t.shape, clonedData)
}

// adds two tensors of the same shape
func AddTensor(t1 *Tensor, t2 *Tensor) (*Tensor, error) {
	if !IsSameSize(t1, t2) {
		return nil, errors.Errorf("tensors of shapes %v and %v have different sizes for addition", t1.shape, t2.shape)
	}

	outData := make([]float64, len(t1.data))
	for i := range t1.data {
		outData[i] = t1.data[i] + t2.data[i]
	}
	return wrap(t1.shape, outData), nil
}

// AddChannelBias adds bias[c] to every element of channel c, where the channel axis is 1.
// works for [B, C] as well as [B, C, H, W].
func AddChannelBias(t *Tensor, bias *Tensor) (*Tensor, error) {
	if len(t.shape) < 2 {
		return nil, errors.Errorf("bias add expects a tensor with at least 2 dimensions, got %v", t.shape)
	}
	channels := t.shape[1]
	if len(bias.shape) != 1 || bias.shape[0] != channels {
		return nil, errors.Errorf("bias shape %v does not match %d channels of %v", bias.shape, channels, t.shape)
	}
	out := CloneTensor(t)
	addChannelBiasInPlace(out.data, bias.data, t.shape[0], channels, Numel(t)/(t.shape[0]*channels))
	return out, nil
}

func addChannelBiasInPlace(data, bias []float64, batch, channels, inner int) {
	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			plane := data[(b*channels+c)*inner : (b*channels+c+1)*inner]
			for i := range plane {
				plane[i] += bias[c]
			}
		}
	}
}

// returns the number of elements in a tensor
func Numel(t *Tensor) int {
	if t == nil {
		return 0
	}
	return len(t.data)
}

// reshapes the given tensor to the given shape. a single -1 entry is inferred from the
// remaining dimensions.
func Reshape(t *Tensor, newShape []int) (*Tensor, error) {
	originalNumel := Numel(t)
	resolved := append([]int{}, newShape...)

	inferred := -1
	known := 1
	for i, dim := range resolved {
		switch {
		case dim == -1 && inferred == -1:
			inferred = i
		case dim == -1:
			return nil, errors.Errorf("newShape %v has more than one inferred dimension", newShape)
		case dim <= 0:
			return nil, errors.Errorf("newShape %v contains non-positive dimension", newShape)
		case known > originalNumel/dim:
			return nil, errors.Errorf("cannot reshape tensor with %d elements to shape %v", originalNumel, newShape)
		default:
			known *= dim
		}
	}
	if inferred >= 0 {
		if originalNumel%known != 0 {
			return nil, errors.Errorf("cannot reshape tensor with %d elements to shape %v", originalNumel, newShape)
		}
		resolved[inferred] = originalNumel / known
		known = originalNumel
	}

	if originalNumel != known {
		return nil, errors.Errorf("cannot reshape tensor with %d elements to shape %v (requires %d elements)", originalNumel, newShape, known)
	}

	outData := make([]float64, len(t.data))
	copy(outData, t.data)
	return wrap(resolved, outData), nil
}

// MinMax returns the smallest and largest element of t.
func MinMax(t *Tensor) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range t.data {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// this defines the GetData() and GetShape() accessors. GetData returns the backing slice,
// so writes through it are visible to the tensor.
func (t *Tensor) GetData() []float64 {
	return t.data
}

func (t *Tensor) GetShape() []int {
	return t.shape
}
