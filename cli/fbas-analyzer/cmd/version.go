package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marfl/fbas-analyzer/internal/debug"
)

func newVersionCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Prints version of the binary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				consoleWriter.Println(debug.ReadBuildInfo().String())
				return nil
			}
			if err := checkOutputFormat(output); err != nil {
				return err
			}
			return printOutput(output, debug.ReadBuildInfo())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format, one of: json, yaml (default is plain text)")
	return cmd
}
