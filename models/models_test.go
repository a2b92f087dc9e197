package models

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-soundimage/nn"
	"go-soundimage/tensor"
)

func randomInput(seed int64, shape ...int) *tensor.Tensor {
	rng := rand.New(rand.NewSource(seed))
	x := must.M1(tensor.Zeros(shape...))
	for i := range x.GetData() {
		x.GetData()[i] = rng.Float64()
	}
	return x
}

func countParameters(m nn.Layer) int {
	total := 0
	for _, p := range m.Parameters() {
		total += tensor.Numel(p)
	}
	return total
}

func sortedKeys(sd map[string]*tensor.Tensor) []string {
	out := make([]string, 0, len(sd))
	for k := range sd {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestSoundToImageShapeAndRange(t *testing.T) {
	m := must.M1(NewSoundToImage(WithSeed(1)))
	for _, batch := range []int{1, 3} {
		x := randomInput(int64(batch), batch, SoundFeatures)
		// spread the features beyond [0, 1) to push the sigmoid
		for i := range x.GetData() {
			x.GetData()[i] = (x.GetData()[i] - 0.5) * 20
		}
		y, err := m.Forward(x)
		require.NoError(t, err)
		assert.Equal(t, []int{batch, 3, GeneratedImageSize, GeneratedImageSize}, y.GetShape())
		lo, hi := tensor.MinMax(y)
		assert.GreaterOrEqual(t, lo, 0.0)
		assert.LessOrEqual(t, hi, 1.0)
	}
}

func TestSoundToImageZeroInput(t *testing.T) {
	m := must.M1(NewSoundToImage())
	y, err := m.Forward(must.M1(tensor.Zeros(1, 4)))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 32, 32}, y.GetShape())
	lo, hi := tensor.MinMax(y)
	assert.GreaterOrEqual(t, lo, 0.0)
	assert.LessOrEqual(t, hi, 1.0)
}

func TestSoundToImageRejectsWrongWidth(t *testing.T) {
	m := must.M1(NewSoundToImage(WithSeed(1)))
	_, err := m.Forward(must.M1(tensor.Zeros(2, 5)))
	require.Error(t, err)
	_, err = m.Forward(must.M1(tensor.Zeros(4)))
	require.Error(t, err)
}

func TestSoundToImageStateDict(t *testing.T) {
	m := must.M1(NewSoundToImage(WithSeed(1)))
	sd := m.StateDict()
	assert.Equal(t, []string{
		"decoder.0.bias", "decoder.0.weight",
		"decoder.2.bias", "decoder.2.weight",
		"fc.0.bias", "fc.0.weight",
		"fc.2.bias", "fc.2.weight",
	}, sortedKeys(sd))
	assert.Equal(t, []int{128, 4}, sd["fc.0.weight"].GetShape())
	assert.Equal(t, []int{4096, 128}, sd["fc.2.weight"].GetShape())
	assert.Equal(t, []int{64, 32, 4, 4}, sd["decoder.0.weight"].GetShape())
	assert.Equal(t, []int{32, 3, 4, 4}, sd["decoder.2.weight"].GetShape())
	assert.Equal(t, 563363, countParameters(m))
}

func TestResidualUpsampleNetShape(t *testing.T) {
	m := must.M1(NewResidualUpsampleNet(WithSeed(2)))
	// 8x8 upsamples to 64x64 and is then stretched to 128x128; 20x12 reaches 160x96.
	for _, size := range [][2]int{{8, 8}, {20, 12}} {
		x := randomInput(3, 1, 3, size[0], size[1])
		y, err := m.Forward(x)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 3, RefinedImageSize, RefinedImageSize}, y.GetShape())
	}
}

func TestResidualUpsampleNetEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("full-size forward pass is slow")
	}
	m := must.M1(NewUNet(WithSeed(3)))
	y, err := m.Forward(randomInput(4, 2, 3, 64, 64))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 128, 128}, y.GetShape())
}

func TestSkipConnectionShapes(t *testing.T) {
	m := must.M1(NewResidualUpsampleNet(WithSeed(4)))
	x := randomInput(5, 2, 3, 6, 10)
	skip, mid, err := m.skipBranches(x)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 64, 6, 10}, skip.GetShape())
	assert.Equal(t, skip.GetShape(), mid.GetShape())

	features, err := m.features(x)
	require.NoError(t, err)
	want := must.M1(tensor.AddTensor(mid, skip))
	assert.Equal(t, want.GetData(), features.GetData())
}

func TestResidualUpsampleNetStateDict(t *testing.T) {
	m := must.M1(NewResidualUpsampleNet(WithSeed(5)))
	sd := m.StateDict()
	for _, key := range []string{
		"input_conv.weight", "input_conv.bias",
		"res_block.0.0.weight", "res_block.0.1.running_mean", "res_block.0.1.num_batches_tracked",
		"res_block.0.2.weight", "res_block.0.3.weight", "res_block.4.4.running_var",
		"mid_conv.weight",
		"upsample1.0.weight", "upsample2.0.bias", "upsample3.0.weight",
		"output_conv.weight", "output_conv.bias",
	} {
		assert.Contains(t, sd, key)
	}
	assert.NotContains(t, sd, "res_block.5.0.weight")
	assert.NotContains(t, sd, "upsample1.1.weight", "pixel shuffle has no state")
	assert.Equal(t, []int{64, 3, 9, 9}, sd["input_conv.weight"].GetShape())
	assert.Equal(t, []int{256, 64, 3, 3}, sd["upsample2.0.weight"].GetShape())
	assert.Equal(t, []int{3, 64, 9, 9}, sd["output_conv.weight"].GetShape())
	// 4 conv/linear-like tensors + 10 batchnorm tensors + 1 prelu per block
	assert.Len(t, sd, 2+5*(4+10+1)+2+3*2+2)
	assert.Equal(t, 881800, countParameters(m))
}

func TestDeterministicForward(t *testing.T) {
	a := must.M1(NewResidualUpsampleNet(WithSeed(6)))
	b := must.M1(NewResidualUpsampleNet(WithSeed(6)))
	x := randomInput(7, 1, 3, 5, 7)
	ya := must.M1(a.Forward(x))
	yb := must.M1(b.Forward(x))
	again := must.M1(a.Forward(x))
	assert.Equal(t, ya.GetData(), yb.GetData())
	assert.Equal(t, ya.GetData(), again.GetData())

	s := must.M1(NewSoundToImage(WithSeed(8)))
	features := randomInput(9, 2, 4)
	assert.Equal(t, must.M1(s.Forward(features)).GetData(), must.M1(s.Forward(features)).GetData())
}

func TestTrainingModeUsesBatchStatistics(t *testing.T) {
	m := must.M1(NewResidualUpsampleNet(WithSeed(10)))
	x := randomInput(11, 2, 3, 4, 4)
	inference := must.M1(m.Forward(x))

	m.SetTraining(true)
	training := must.M1(m.Forward(x))
	assert.NotEqual(t, inference.GetData(), training.GetData())
	tracked := m.StateDict()["res_block.2.1.num_batches_tracked"]
	assert.Equal(t, 1.0, tracked.GetData()[0])

	m.SetTraining(false)
	again := must.M1(m.Forward(x))
	assert.NotEqual(t, inference.GetData(), again.GetData(), "running statistics moved during training")
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{NameSoundToImage, NameUNet}, Names())

	m, err := New(NameUNet, WithSeed(1))
	require.NoError(t, err)
	assert.Equal(t, "ResidualUpsampleNet", m.Name())

	m, err = New(NameSoundToImage)
	require.NoError(t, err)
	assert.Equal(t, "SoundToImage", m.Name())

	_, err = New("vae")
	require.Error(t, err)
}
