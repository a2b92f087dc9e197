package cmd

import (
	"image"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"go-soundimage/imageio"
	"go-soundimage/models"
	"go-soundimage/tensor"
)

func newUpscaleCmd() *cobra.Command {
	var (
		mf     modelFlags
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "upscale IMAGE...",
		Short: "Refine and upscale images to 128x128",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := klog.FromContext(cmd.Context())
			images, err := imageio.ReadFiles(args...)
			if err != nil {
				return err
			}
			m, err := mf.build(cmd, models.NameUNet)
			if err != nil {
				return err
			}

			// inputs may differ in size, so each one is a batch of its own
			data := make([]float64, 0, len(images)*3*models.RefinedImageSize*models.RefinedImageSize)
			for i, img := range images {
				x, err := imageio.FromImages([]image.Image{img})
				if err != nil {
					return errors.WithMessagef(err, "converting %q", args[i])
				}
				y, err := m.Forward(x)
				if err != nil {
					return errors.WithMessagef(err, "upscaling %q", args[i])
				}
				log.V(1).Info("upscaled image", "source", args[i], "from", x.GetShape(), "to", y.GetShape())
				data = append(data, y.GetData()...)
			}
			out, err := tensor.NewTensor([]int{len(images), 3, models.RefinedImageSize, models.RefinedImageSize}, data)
			if err != nil {
				return err
			}
			return writeImages(cmd, out, outDir, "upscaled")
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVar(&outDir, "out", defaultOutputDir, "Output directory")
	_ = cmd.MarkFlagRequired("weights")
	return cmd
}
