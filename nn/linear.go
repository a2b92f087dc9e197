package nn

import (
	"math/rand"

	"github.com/pkg/errors"

	"go-soundimage/tensor"
)

// linear dense layer: output = input @ weight^T + bias
type Linear struct {
	Weight *tensor.Tensor // Shape: [outputDimensions, inputDimensions]
	Bias   *tensor.Tensor // Shape: [outputDimensions]
}

// NewLinear creates a new Linear layer initialized like torch.nn.Linear. a nil rng uses a
// time-seeded source.
func NewLinear(inputDimensions, outputDimensions int, rng *rand.Rand) (*Linear, error) {
	if inputDimensions <= 0 || outputDimensions <= 0 {
		return nil, errors.Errorf("linear layer dimensions must be positive, got input %d, output %d", inputDimensions, outputDimensions)
	}
	rng = NewRand(rng)
	bound := fanInBound(inputDimensions)

	weight, err := uniformTensor(rng, bound, outputDimensions, inputDimensions)
	if err != nil {
		return nil, errors.Wrap(err, "linear layer failed to create weight tensor")
	}
	bias, err := uniformTensor(rng, bound, outputDimensions)
	if err != nil {
		return nil, errors.Wrap(err, "linear layer failed to create bias tensor")
	}
	return &Linear{Weight: weight, Bias: bias}, nil
}

// Forward performs the forward pass of the Linear layer, with input of shape
// [batch_size, input_dimensions] and output of shape [batch_size, output_dimensions].
func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	inputShape := input.GetShape()
	if len(inputShape) != 2 {
		return nil, errors.Errorf("linear layer expects 2D input tensor [batch_size, input_dimensions], got shape %v", inputShape)
	}
	weightShape := l.Weight.GetShape()
	if inputShape[1] != weightShape[1] {
		return nil, errors.Errorf("linear layer input dimension mismatch: input %d, weight expected %d", inputShape[1], weightShape[1])
	}

	step, err := tensor.MatMulTransposed(input, l.Weight)
	if err != nil {
		return nil, errors.Wrap(err, "linear layer matmul failed")
	}
	output, err := tensor.AddChannelBias(step, l.Bias)
	if err != nil {
		return nil, errors.Wrap(err, "linear layer bias addition failed")
	}
	return output, nil
}

func (l *Linear) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{l.Weight, l.Bias}
}

func (l *Linear) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{"weight": l.Weight, "bias": l.Bias}
}

func (l *Linear) SetTraining(bool) {}

func (l *Linear) Name() string {
	return "Linear"
}
