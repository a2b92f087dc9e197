package nn

import (
	"github.com/pkg/errors"

	"go-soundimage/tensor"
)

// View reshapes its input to a fixed shape, like torch's x.view(...). one dimension,
// usually the batch, may be -1 and is inferred.
type View struct {
	stateless
	shape []int
}

func NewView(shape ...int) *View {
	return &View{shape: append([]int{}, shape...)}
}

func (v *View) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := tensor.Reshape(input, v.shape)
	if err != nil {
		return nil, errors.Wrapf(err, "view %v", v.shape)
	}
	return out, nil
}

func (v *View) Name() string {
	return "View"
}
