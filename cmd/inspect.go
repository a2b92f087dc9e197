package cmd

import (
	"github.com/spf13/cobra"

	"go-soundimage/utility"
)

func newInspectCmd() *cobra.Command {
	var mf modelFlags
	cmd := &cobra.Command{
		Use:   "inspect MODEL",
		Short: "Print the parameters, buffers and memory footprint of a model",
		Args:  modelNameArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := mf.build(cmd, args[0])
			if err != nil {
				return err
			}
			utility.NewModelInspector(m).Summary(cmd.OutOrStdout())
			return nil
		},
	}
	mf.register(cmd)
	return cmd
}
