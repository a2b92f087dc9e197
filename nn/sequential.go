package nn

import (
	"strconv"

	"github.com/pkg/errors"

	"go-soundimage/tensor"
)

// Sequential is a container for layers arranged in a sequential order.
type Sequential struct {
	layers []Layer
}

func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{
		layers: append(make([]Layer, 0, len(layers)), layers...),
	}
}

// Add adds a new layer to the sequential model.
func (s *Sequential) Add(layer Layer) {
	s.layers = append(s.layers, layer)
}

// Forward performs the forward pass for the entire sequence of layers.
func (s *Sequential) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	var err error
	for i, layer := range s.layers {
		x, err = layer.Forward(x)
		if err != nil {
			return nil, errors.Wrapf(err, "layer %d (%s)", i, layer.Name())
		}
	}
	return x, nil
}

// Parameters returns a slice of all parameters from all layers in the model.
func (s *Sequential) Parameters() []*tensor.Tensor {
	params := []*tensor.Tensor{}
	for _, layer := range s.layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}

// StateDict names children by their index, as torch.nn.Sequential does.
func (s *Sequential) StateDict() map[string]*tensor.Tensor {
	sd := make(map[string]*tensor.Tensor)
	for i, layer := range s.layers {
		MergeStateDict(sd, strconv.Itoa(i), layer)
	}
	return sd
}

func (s *Sequential) SetTraining(training bool) {
	for _, layer := range s.layers {
		layer.SetTraining(training)
	}
}

func (s *Sequential) Name() string {
	return "Sequential"
}

func (s *Sequential) Layers() []Layer {
	return s.layers
}
