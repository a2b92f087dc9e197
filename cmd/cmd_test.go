package cmd

import (
	"bytes"
	"context"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-soundimage/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewCLI()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseFeatures(t *testing.T) {
	x, err := parseFeatures([]string{"0.1,0.2,0.3,0.4", " 1, 2 ,3,4"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, x.GetShape())
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4, 1, 2, 3, 4}, x.GetData())

	for _, bad := range [][]string{nil, {"1,2,3"}, {"1,2,3,x"}} {
		_, err := parseFeatures(bad)
		assert.Error(t, err, bad)
	}
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "generate", "--seed", "1", "--out", dir,
		"--features", "0,0,0,0", "--features", "0.5,0.1,0.9,0.3")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, ".png"))

	img, err := imaging.Open(filepath.Join(dir, "image_1.png"))
	require.NoError(t, err)
	assert.Equal(t, models.GeneratedImageSize, img.Bounds().Dx())
	assert.Equal(t, models.GeneratedImageSize, img.Bounds().Dy())

	_, err = execute(t, "generate", "--features", "1,2")
	require.Error(t, err)
}

func TestExportInspectAndReload(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "s2i.safetensors")
	_, err := execute(t, "export", models.NameSoundToImage, "--seed", "3", "--out", file, "--dtype", "f16")
	require.NoError(t, err)
	_, err = os.Stat(file)
	require.NoError(t, err)

	out, err := execute(t, "inspect", models.NameSoundToImage, "--weights", file)
	require.NoError(t, err)
	assert.Contains(t, out, "decoder.2.weight")
	assert.Contains(t, out, "563,363")

	// the same seed and precision reproduce the same images
	a, b := filepath.Join(dir, "a"), filepath.Join(dir, "b")
	_, err = execute(t, "generate", "--weights", file, "--out", a, "--features", "0.2,0.4,0.6,0.8")
	require.NoError(t, err)
	_, err = execute(t, "generate", "--weights", file, "--out", b, "--features", "0.2,0.4,0.6,0.8")
	require.NoError(t, err)
	pa, err := os.ReadFile(filepath.Join(a, "image_0.png"))
	require.NoError(t, err)
	pb, err := os.ReadFile(filepath.Join(b, "image_0.png"))
	require.NoError(t, err)
	assert.Equal(t, pa, pb)

	// weights of one model do not fit the other
	_, err = execute(t, "inspect", models.NameUNet, "--weights", file)
	require.Error(t, err)

	_, err = execute(t, "inspect", "vae")
	require.Error(t, err)
	_, err = execute(t, "export", models.NameUNet, "--out", filepath.Join(dir, "u.safetensors"), "--dtype", "q8")
	require.Error(t, err)
}

func TestUpscale(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	require.NoError(t, imaging.Save(imaging.New(6, 4, color.NRGBA{R: 0x33, G: 0x66, B: 0xcc, A: 0xff}), src))

	// refining with untrained weights is refused
	_, err := execute(t, "upscale", "--out", dir, src)
	require.Error(t, err)

	unet := filepath.Join(dir, "unet.gob")
	_, err = execute(t, "export", models.NameUNet, "--seed", "2", "--out", unet)
	require.NoError(t, err)
	out, err := execute(t, "upscale", "--weights", unet, "--out", dir, src)
	require.NoError(t, err)
	assert.Contains(t, out, "upscaled_0.png")

	img, err := imaging.Open(filepath.Join(dir, "upscaled_0.png"))
	require.NoError(t, err)
	assert.Equal(t, models.RefinedImageSize, img.Bounds().Dx())
	assert.Equal(t, models.RefinedImageSize, img.Bounds().Dy())

	_, err = execute(t, "upscale", "--weights", unet, filepath.Join(dir, "missing.png"))
	require.Error(t, err)
}

func TestModelFlagsRandomSource(t *testing.T) {
	draw := func(args ...string) (*modelFlags, *cobra.Command) {
		cmd := &cobra.Command{Use: "test"}
		cmd.SetContext(context.Background())
		mf := &modelFlags{}
		mf.register(cmd)
		require.NoError(t, cmd.ParseFlags(args))
		return mf, cmd
	}

	// the model and the bench input come from the same seeded source
	inputs := make([][]float64, 2)
	for i := range inputs {
		mf, cmd := draw("--seed", "5")
		_, err := mf.build(cmd, models.NameSoundToImage)
		require.NoError(t, err)
		x, err := benchInput(models.NameSoundToImage, 2, 0, mf.rng(cmd))
		require.NoError(t, err)
		inputs[i] = x.GetData()
	}
	assert.Equal(t, inputs[0], inputs[1])

	// without --seed the input is not drawn from seed 0
	mf, cmd := draw()
	rng := mf.rng(cmd)
	assert.Same(t, rng, mf.rng(cmd))
	x, err := benchInput(models.NameSoundToImage, 2, 0, rng)
	require.NoError(t, err)
	unseeded, err := benchInput(models.NameSoundToImage, 2, 0, rand.New(rand.NewSource(0)))
	require.NoError(t, err)
	assert.NotEqual(t, unseeded.GetData(), x.GetData())
}

func TestBench(t *testing.T) {
	out, err := execute(t, "bench", models.NameSoundToImage, "--iterations", "2", "--batch", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Model: SoundToImage, input [3 4], 2 iterations")
	assert.Contains(t, out, "Mean forward:")

	out, err = execute(t, "bench", models.NameUNet, "--iterations", "1", "--size", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "input [1 3 4 4]")

	_, err = execute(t, "bench", models.NameUNet, "--iterations", "0")
	require.Error(t, err)
}
