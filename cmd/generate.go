package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"go-soundimage/imageio"
	"go-soundimage/models"
	"go-soundimage/tensor"
)

const defaultOutputDir = "."

func newGenerateCmd() *cobra.Command {
	var (
		mf       modelFlags
		features []string
		outDir   string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate 32x32 images from sound feature vectors",
		Long: "Generate one 32x32 image per --features vector of " + strconv.Itoa(models.SoundFeatures) +
			" comma separated values, written as <out>/image_<i>.png.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := parseFeatures(features)
			if err != nil {
				return err
			}
			m, err := mf.build(cmd, models.NameSoundToImage)
			if err != nil {
				return err
			}
			y, err := m.Forward(x)
			if err != nil {
				return errors.WithMessage(err, "generating images")
			}
			return writeImages(cmd, y, outDir, "image")
		},
	}
	mf.register(cmd)
	cmd.Flags().StringArrayVar(&features, "features", nil, "Feature vector, e.g. 0.1,0.5,0.2,0.9 (repeat for a batch)")
	cmd.Flags().StringVar(&outDir, "out", defaultOutputDir, "Output directory")
	_ = cmd.MarkFlagRequired("features")
	return cmd
}

// parseFeatures turns each "a,b,c,d" vector into one row of a [N, 4] tensor.
func parseFeatures(vectors []string) (*tensor.Tensor, error) {
	if len(vectors) == 0 {
		return nil, errors.New("at least one feature vector is required")
	}
	data := make([]float64, 0, len(vectors)*models.SoundFeatures)
	for i, v := range vectors {
		fields := strings.Split(v, ",")
		if len(fields) != models.SoundFeatures {
			return nil, errors.Errorf("feature vector %d has %d values, expected %d", i, len(fields), models.SoundFeatures)
		}
		for _, field := range fields {
			f, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "feature vector %d", i)
			}
			data = append(data, f)
		}
	}
	return tensor.NewTensor([]int{len(vectors), models.SoundFeatures}, data)
}

func writeImages(cmd *cobra.Command, t *tensor.Tensor, outDir, prefix string) error {
	log := klog.FromContext(cmd.Context())
	images, err := imageio.ToImages(t)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating output directory %q", outDir)
	}
	paths, err := imageio.WriteFiles(outDir, prefix, images)
	if err != nil {
		return err
	}
	for _, p := range paths {
		log.Info("wrote image", "path", p)
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}
