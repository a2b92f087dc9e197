package cmd

import (
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"go-soundimage/weights"
)

func newExportCmd() *cobra.Command {
	var (
		mf    modelFlags
		out   string
		dtype string
	)
	cmd := &cobra.Command{
		Use:   "export MODEL",
		Short: "Write the state dict of a model to a .safetensors or .gob file",
		Long: "Write the state dict of a model, with torch compatible names. Combined with --weights this " +
			"converts between formats and precisions.",
		Args: modelNameArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := weights.ParseDType(dtype)
			if err != nil {
				return err
			}
			m, err := mf.build(cmd, args[0])
			if err != nil {
				return err
			}
			if err := weights.WriteFile(out, m.StateDict(), d); err != nil {
				return err
			}
			klog.FromContext(cmd.Context()).Info("exported weights", "model", m.Name(), "path", out, "dtype", d)
			return nil
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVar(&out, "out", "", "Output file (.safetensors or .gob)")
	cmd.Flags().StringVar(&dtype, "dtype", "f32", "Safetensors precision: f32, f64 or f16")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
