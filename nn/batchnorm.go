package nn

import (
	"math"

	"github.com/pkg/errors"

	"go-soundimage/tensor"
)

const (
	defaultBatchNormEpsilon  = 1e-5
	defaultBatchNormMomentum = 0.1
)

// BatchNorm2D normalizes each channel of a [B, C, H, W] input.
//
// in inference mode (the default) it uses the running statistics. in training mode it uses
// the biased statistics of the current batch and folds the unbiased variance into the
// running statistics with Momentum.
type BatchNorm2D struct {
	Weight            *tensor.Tensor // gamma, [C]
	Bias              *tensor.Tensor // beta, [C]
	RunningMean       *tensor.Tensor // [C]
	RunningVar        *tensor.Tensor // [C]
	NumBatchesTracked *tensor.Tensor // scalar
	Epsilon           float64
	Momentum          float64

	training bool
}

func NewBatchNorm2D(numFeatures int) (*BatchNorm2D, error) {
	if numFeatures <= 0 {
		return nil, errors.Errorf("batchnorm needs a positive number of features, got %d", numFeatures)
	}
	ones := func() (*tensor.Tensor, error) { return tensor.Full(1, numFeatures) }

	weight, err := ones()
	if err != nil {
		return nil, err
	}
	bias, err := tensor.Zeros(numFeatures)
	if err != nil {
		return nil, err
	}
	runningMean, err := tensor.Zeros(numFeatures)
	if err != nil {
		return nil, err
	}
	runningVar, err := ones()
	if err != nil {
		return nil, err
	}
	tracked, err := tensor.Zeros()
	if err != nil {
		return nil, err
	}

	return &BatchNorm2D{
		Weight:            weight,
		Bias:              bias,
		RunningMean:       runningMean,
		RunningVar:        runningVar,
		NumBatchesTracked: tracked,
		Epsilon:           defaultBatchNormEpsilon,
		Momentum:          defaultBatchNormMomentum,
	}, nil
}

func (bn *BatchNorm2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	shape := input.GetShape()
	if len(shape) != 4 {
		return nil, errors.Errorf("batchnorm expects a 4D input, got %v", shape)
	}
	batchSize, channels, plane := shape[0], shape[1], shape[2]*shape[3]
	if channels != tensor.Numel(bn.Weight) {
		return nil, errors.Errorf("batchnorm has %d features, input %v has %d channels", tensor.Numel(bn.Weight), shape, channels)
	}

	mean := bn.RunningMean.GetData()
	variance := bn.RunningVar.GetData()
	if bn.training {
		count := batchSize * plane
		if count <= 1 {
			return nil, errors.Errorf("batchnorm expects more than 1 value per channel when training, got input %v", shape)
		}
		mean, variance = channelStatistics(input.GetData(), batchSize, channels, plane)
		bn.updateRunningStatistics(mean, variance, count)
	}

	gamma, beta := bn.Weight.GetData(), bn.Bias.GetData()
	out := tensor.CloneTensor(input)
	data := out.GetData()
	for c := 0; c < channels; c++ {
		scale := gamma[c] / math.Sqrt(variance[c]+bn.Epsilon)
		shift := beta[c] - mean[c]*scale
		for b := 0; b < batchSize; b++ {
			values := data[(b*channels+c)*plane : (b*channels+c+1)*plane]
			for i, v := range values {
				values[i] = v*scale + shift
			}
		}
	}
	return out, nil
}

// channelStatistics returns the per-channel mean and biased variance.
func channelStatistics(data []float64, batchSize, channels, plane int) (mean, variance []float64) {
	mean = make([]float64, channels)
	variance = make([]float64, channels)
	count := float64(batchSize * plane)
	for c := 0; c < channels; c++ {
		var sum float64
		for b := 0; b < batchSize; b++ {
			for _, v := range data[(b*channels+c)*plane : (b*channels+c+1)*plane] {
				sum += v
			}
		}
		mean[c] = sum / count
		var squares float64
		for b := 0; b < batchSize; b++ {
			for _, v := range data[(b*channels+c)*plane : (b*channels+c+1)*plane] {
				d := v - mean[c]
				squares += d * d
			}
		}
		variance[c] = squares / count
	}
	return mean, variance
}

func (bn *BatchNorm2D) updateRunningStatistics(mean, variance []float64, count int) {
	runningMean, runningVar := bn.RunningMean.GetData(), bn.RunningVar.GetData()
	unbias := float64(count) / float64(count-1)
	for c := range runningMean {
		runningMean[c] = (1-bn.Momentum)*runningMean[c] + bn.Momentum*mean[c]
		runningVar[c] = (1-bn.Momentum)*runningVar[c] + bn.Momentum*variance[c]*unbias
	}
	bn.NumBatchesTracked.GetData()[0]++
}

func (bn *BatchNorm2D) Parameters() []*tensor.Tensor {
	return []*tensor.Tensor{bn.Weight, bn.Bias}
}

func (bn *BatchNorm2D) StateDict() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		"weight":              bn.Weight,
		"bias":                bn.Bias,
		"running_mean":        bn.RunningMean,
		"running_var":         bn.RunningVar,
		"num_batches_tracked": bn.NumBatchesTracked,
	}
}

func (bn *BatchNorm2D) SetTraining(training bool) {
	bn.training = training
}

func (bn *BatchNorm2D) Training() bool {
	return bn.training
}

func (bn *BatchNorm2D) Name() string {
	return "BatchNorm2D"
}
