package nn

import "go-soundimage/tensor"

// Layer defines the interface that all neural network layers must implement.
type Layer interface {
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
	// Parameters returns the learnable tensors of the layer.
	Parameters() []*tensor.Tensor
	// StateDict returns parameters and buffers keyed by their torch state_dict names,
	// relative to the layer ("weight", "running_mean", "0.bias", ...). The tensors are the
	// layer's own, so writing into them updates the layer.
	StateDict() map[string]*tensor.Tensor
	// SetTraining switches between batch statistics (true) and running statistics (false).
	// only normalization layers care.
	SetTraining(training bool)
	Name() string
}

// MergeStateDict copies layer's state dict into dst, with every key prefixed by prefix + ".".
func MergeStateDict(dst map[string]*tensor.Tensor, prefix string, layer Layer) {
	for name, t := range layer.StateDict() {
		dst[prefix+"."+name] = t
	}
}

// stateless is embedded by layers without parameters or buffers.
type stateless struct{}

func (stateless) Parameters() []*tensor.Tensor { return []*tensor.Tensor{} }
func (stateless) StateDict() map[string]*tensor.Tensor { return map[string]*tensor.Tensor{} }
func (stateless) SetTraining(bool) {}
