package cmd

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"go-soundimage/models"
	"go-soundimage/tensor"
)

// bench params
const (
	defaultBenchIterations = 10
	defaultBenchBatch      = 1
	defaultBenchSize       = 32
)

func newBenchCmd() *cobra.Command {
	var (
		mf         modelFlags
		batch      int
		size       int
		iterations int
	)
	cmd := &cobra.Command{
		Use:   "bench MODEL",
		Short: "Time forward passes of a model on random inputs",
		Args:  modelNameArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			if batch <= 0 || size <= 0 || iterations <= 0 {
				return errors.Errorf("--batch, --size and --iterations must be positive")
			}
			m, err := mf.build(cmd, args[0])
			if err != nil {
				return err
			}
			x, err := benchInput(args[0], batch, size, mf.rng(cmd))
			if err != nil {
				return err
			}

			bar := progressbar.NewOptions(iterations,
				progressbar.OptionSetDescription(m.Name()),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("passes"),
				progressbar.OptionSetTheme(progressbar.ThemeASCII),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(cmd.ErrOrStderr()) }),
			)
			result := benchResult{min: time.Duration(1<<63 - 1)}
			for i := 0; i < iterations; i++ {
				start := time.Now()
				if _, err := m.Forward(x); err != nil {
					return errors.WithMessagef(err, "forward pass %d", i)
				}
				result.add(time.Since(start))
				_ = bar.Add(1)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Model: %s, input %v, %d iterations\n", m.Name(), x.GetShape(), iterations)
			fmt.Fprintf(out, "Mean forward: %v\n", result.mean())
			fmt.Fprintf(out, "Min forward: %v\n", result.min)
			fmt.Fprintf(out, "Throughput: %.2f samples/s\n", float64(batch)/result.mean().Seconds())
			return nil
		},
	}
	mf.register(cmd)
	cmd.Flags().IntVar(&batch, "batch", defaultBenchBatch, "Batch size")
	cmd.Flags().IntVar(&size, "size", defaultBenchSize, "Input height and width (unet only)")
	cmd.Flags().IntVar(&iterations, "iterations", defaultBenchIterations, "Number of timed forward passes")
	return cmd
}

type benchResult struct {
	total time.Duration
	min   time.Duration
	count int
}

func (r *benchResult) add(d time.Duration) {
	r.total += d
	r.count++
	if d < r.min {
		r.min = d
	}
}

func (r *benchResult) mean() time.Duration {
	if r.count == 0 {
		return 0
	}
	return r.total / time.Duration(r.count)
}

// benchInput draws a uniform [0, 1) input of the shape the model expects.
func benchInput(name string, batch, size int, rng *rand.Rand) (*tensor.Tensor, error) {
	shape := []int{batch, models.SoundFeatures}
	if name == models.NameUNet {
		shape = []int{batch, 3, size, size}
	}
	x, err := tensor.Zeros(shape...)
	if err != nil {
		return nil, err
	}
	for i := range x.GetData() {
		x.GetData()[i] = rng.Float64()
	}
	return x, nil
}
