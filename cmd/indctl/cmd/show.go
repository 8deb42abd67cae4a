package cmd

import (
	"github.com/spf13/cobra"

	"indcore/internal/indicator"
)

func newShowCmd() *cobra.Command {
	var set setFlags

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved indicator set as YAML",
		Long:  "Print the resolved indicator set as YAML. With no flags it prints the default set.",
		RunE: func(cmd *cobra.Command, args []string) error {
			configs, err := set.configs()
			if err != nil {
				return err
			}
			b, err := indicator.MarshalSetFile(configs)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	set.register(cmd)
	return cmd
}
