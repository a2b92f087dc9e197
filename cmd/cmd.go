package cmd

import (
	"flag"
	"math/rand"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"go-soundimage/models"
	"go-soundimage/nn"
	"go-soundimage/weights"
)

func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "soundimage",
		Short: "Generate and upscale images from sound features",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
		},
	}

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(
		newGenerateCmd(),
		newUpscaleCmd(),
		newInspectCmd(),
		newExportCmd(),
		newBenchCmd(),
	)
	return rootCmd
}

// modelFlags are shared by every command that builds a model.
type modelFlags struct {
	weights string
	seed    int64
	strict  bool

	source *rand.Rand
}

func (f *modelFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.weights, "weights", "", "State dict to load (.safetensors or .gob, local path or gs://bucket/object)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Seed for the default initialization (time based when unset)")
	cmd.Flags().BoolVar(&f.strict, "strict", true, "Fail when the weights do not cover the model exactly")
}

// rng returns the random source of the command, created on first use. it is seeded with
// --seed when given and from the clock otherwise.
func (f *modelFlags) rng(cmd *cobra.Command) *rand.Rand {
	if f.source == nil {
		if cmd.Flags().Changed("seed") {
			f.source = rand.New(rand.NewSource(f.seed))
		} else {
			f.source = nn.NewRand(nil)
		}
	}
	return f.source
}

// build constructs the named model and loads its weights, if any were given.
func (f *modelFlags) build(cmd *cobra.Command, name string) (nn.Layer, error) {
	ctx := cmd.Context()
	log := klog.FromContext(ctx)

	m, err := models.New(name, models.WithRand(f.rng(cmd)))
	if err != nil {
		return nil, err
	}
	if f.weights == "" {
		log.V(1).Info("using initial weights", "model", m.Name(), "seeded", cmd.Flags().Changed("seed"))
		return m, nil
	}
	if err := weights.LoadFile(ctx, m, f.weights, f.strict); err != nil {
		return nil, err
	}
	return m, nil
}

func modelNameArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	for _, name := range models.Names() {
		if args[0] == name {
			return nil
		}
	}
	return errors.Errorf("unknown model %q, available: %s", args[0], strings.Join(models.Names(), ", "))
}
