package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"indcore/internal/indicator"
)

func newValidateCmd() *cobra.Command {
	var tfs []int

	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Check an indicator set file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			configs, err := indicator.ParseSetFile(f, tfs)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, tc := range configs {
				labels := make([]string, len(tc.Indicators))
				for i, c := range tc.Indicators {
					labels[i] = c.Label()
				}
				fmt.Fprintf(out, "%ds: %s\n", tc.TF, strings.Join(labels, " "))
			}
			fmt.Fprintf(out, "ok, max lookback %d bars\n", indicator.MaxLookback(configs))
			return nil
		},
	}
	cmd.Flags().IntSliceVar(&tfs, "tf", []int{60}, "timeframes the top-level list applies to")
	return cmd
}
