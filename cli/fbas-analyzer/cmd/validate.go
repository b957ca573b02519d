package cmd

import (
	"context"
	"encoding/hex"

	"github.com/spf13/cobra"

	"github.com/marfl/fbas-analyzer/loader"
	"github.com/marfl/fbas-analyzer/logger"
)

type validateConfig struct {
	Base *baseConfiguration

	NodesFile    string
	OrgsFile     string
	AllowUnknown bool
	Output       string
}

type validationSummary struct {
	Nodes              int      `json:"nodes" yaml:"nodes"`
	NodesWithQuorumSet int      `json:"nodesWithQuorumSet" yaml:"nodesWithQuorumSet"`
	QuorumSetClasses   int      `json:"quorumSetClasses" yaml:"quorumSetClasses"`
	SatisfiableNodes   int      `json:"satisfiableNodes" yaml:"satisfiableNodes"`
	UnsatisfiableNodes []string `json:"unsatisfiableNodes" yaml:"unsatisfiableNodes"`
	Organizations      int      `json:"organizations" yaml:"organizations"`
	Fingerprint        string   `json:"fingerprint" yaml:"fingerprint"`
}

func newValidateCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &validateConfig{Base: baseConfig}
	var cmd = &cobra.Command{
		Use:   "validate <nodes-file>",
		Short: "Checks that the FBAS (and organizations) can be loaded and summarizes it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config.NodesFile = args[0]
			return validateRunFunc(cmd.Context(), config)
		},
	}
	cmd.Flags().StringVar(&config.OrgsFile, "organizations", "", "organizations file (JSON or YAML)")
	cmd.Flags().BoolVar(&config.AllowUnknown, "allow-unknown-validators", false, "add validators missing from the node list as nodes without quorum set")
	cmd.Flags().StringVarP(&config.Output, "output", "o", outputJSON, "output format, one of: json, yaml")
	return cmd
}

func validateRunFunc(_ context.Context, config *validateConfig) error {
	if err := checkOutputFormat(config.Output); err != nil {
		return err
	}
	ac := &analyzeConfig{NodesFile: config.NodesFile, OrgsFile: config.OrgsFile, AllowUnknown: config.AllowUnknown}
	f, orgs, err := ac.loadFbas(logger.Create("validate"))
	if err != nil {
		return err
	}
	sat := f.SatisfiableNodes()
	summary := validationSummary{
		Nodes:              f.NodeCount(),
		NodesWithQuorumSet: f.NodesWithQuorumSet().Len(),
		QuorumSetClasses:   f.QuorumSetClasses(),
		SatisfiableNodes:   sat.Len(),
		UnsatisfiableNodes: loader.NewLabeler(f, false).Set(f.AllNodes().Difference(sat)),
		Fingerprint:        hex.EncodeToString(f.Fingerprint()),
	}
	if orgs != nil {
		summary.Organizations = orgs.Len()
	}
	return printOutput(config.Output, summary)
}
