package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"indcore/internal/indicator"
)

// setFlags selects an indicator set: a YAML file wins over specs.
type setFlags struct {
	file  string
	specs string
	tfs   []int
}

func (f *setFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "YAML indicator set file")
	cmd.Flags().StringVarP(&f.specs, "specs", "s", "", `indicator specs, e.g. "SMA:20,RSI:14:ema" (default set when empty)`)
	cmd.Flags().IntSliceVar(&f.tfs, "tf", []int{60}, "timeframes in seconds")
}

func (f *setFlags) configs() ([]indicator.TFConfig, error) {
	if f.file != "" {
		r, err := os.Open(f.file)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return indicator.ParseSetFile(r, f.tfs)
	}
	specs, err := indicator.ParseSpecs(f.specs)
	if err != nil {
		return nil, err
	}
	configs := indicator.ExpandTFs(specs, f.tfs)
	if err := indicator.ValidateConfigs(configs); err != nil {
		return nil, err
	}
	return configs, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "indctl",
		Short: "Inspect and replay streaming indicator sets",
		Long: `indctl works with the indicator engine offline.

It can:
  - replay stored TF candles through an indicator set
  - validate an indicator set file
  - print an indicator set as YAML`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newReplayCmd(),
		newValidateCmd(),
		newShowCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "indctl:", err)
		return err
	}
	return nil
}
