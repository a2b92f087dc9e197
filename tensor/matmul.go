package tensor

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MatMulTransposed performs [M, K] @ [N, K]^T -> [M, N]. this is the layout of torch
// Linear weights ([out, in]), so they can be used without materializing the transpose.
func MatMulTransposed(t1 *Tensor, t2 *Tensor) (*Tensor, error) {
	if len(t1.shape) != 2 || len(t2.shape) != 2 {
		return nil, errors.Errorf("matmul only supports 2D tensors ([M, K] @ [N, K]^T), got %v and %v", t1.shape, t2.shape)
	}
	m, k := t1.shape[0], t1.shape[1]
	n, kWeight := t2.shape[0], t2.shape[1]
	if k != kWeight {
		return nil, errors.Errorf("matmul incompatible shapes: inner dimensions mismatch %v and %v^T (%d != %d)", t1.shape, t2.shape, k, kWeight)
	}

	outData := make([]float64, m*n)
	out := mat.NewDense(m, n, outData)
	out.Mul(mat.NewDense(m, k, t1.data), mat.NewDense(n, k, t2.data).T())
	return wrap([]int{m, n}, outData), nil
}
