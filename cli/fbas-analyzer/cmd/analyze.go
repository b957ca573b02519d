package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"

	"github.com/marfl/fbas-analyzer/analysis"
	"github.com/marfl/fbas-analyzer/fbas"
	"github.com/marfl/fbas-analyzer/internal/debug"
	"github.com/marfl/fbas-analyzer/loader"
	"github.com/marfl/fbas-analyzer/logger"
)

type analyzeConfig struct {
	Base *baseConfiguration

	NodesFile    string
	OrgsFile     string
	MergeByOrgs  bool
	AllowUnknown bool
	Queries      []string
	Describe     bool
	Pretty       bool
	UseNames     bool
	ShowStats    bool
	Output       string
	Workers      int
	Timeout      time.Duration
	CacheDB      string
	MetricsFile  string
}

type analyzeOutput struct {
	Results           any                                    `json:"results" yaml:"results"`
	SymmetricClusters any                                    `json:"symmetricClusters,omitempty" yaml:"symmetricClusters,omitempty"`
	Description       *analysis.Description                  `json:"description,omitempty" yaml:"description,omitempty"`
	Stats             map[analysis.Query]analysis.QueryStats `json:"stats,omitempty" yaml:"stats,omitempty"`
}

func newAnalyzeCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &analyzeConfig{Base: baseConfig}
	var cmd = &cobra.Command{
		Use:   "analyze <nodes-file>",
		Short: "Analyzes quorum structure of the FBAS",
		Long: `Loads FBAS from JSON or YAML node list and runs the requested queries:
  intersection - does every two quorums intersect (and witness when not)
  quorums      - minimal quorums
  blocking     - minimal blocking sets
  splitting    - minimal splitting sets
  top-tier     - union of the minimal quorums
  symmetric    - symmetric clusters`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config.NodesFile = args[0]
			return analyzeRunFunc(cmd.Context(), config)
		},
	}
	cmd.Flags().StringVar(&config.OrgsFile, "organizations", "", "organizations file (JSON or YAML)")
	cmd.Flags().BoolVar(&config.MergeByOrgs, "merge-by-organizations", false, "treat every organization as a single node, requires --organizations")
	cmd.Flags().BoolVar(&config.AllowUnknown, "allow-unknown-validators", false, "add validators missing from the node list as nodes without quorum set")
	cmd.Flags().StringSliceVarP(&config.Queries, "queries", "q", []string{string(analysis.QueryIntersection)}, "queries to run")
	cmd.Flags().BoolVar(&config.Describe, "describe", false, "run all queries and output summary of the results")
	cmd.Flags().BoolVarP(&config.Pretty, "pretty", "p", false, "identify nodes by public key instead of index")
	cmd.Flags().BoolVar(&config.UseNames, "names", false, "with --pretty, identify nodes by name when the node has one")
	cmd.Flags().BoolVar(&config.ShowStats, "stats", false, "output search statistics of the queries")
	cmd.Flags().StringVarP(&config.Output, "output", "o", outputJSON, "output format, one of: json, yaml")
	cmd.Flags().IntVar(&config.Workers, "workers", 0, "number of search workers (default is number of CPUs)")
	cmd.Flags().DurationVar(&config.Timeout, "timeout", 0, "give up when the analysis takes longer, 0 means no limit")
	cmd.Flags().StringVar(&config.CacheDB, "cache-db", "", "result cache DB file, results are not cached when not set")
	cmd.Flags().StringVar(&config.MetricsFile, "metrics-file", "", "write query metrics in Prometheus text format into the file")
	return cmd
}

func (c *analyzeConfig) queries() ([]analysis.Query, error) {
	res := make([]analysis.Query, 0, len(c.Queries))
	for _, s := range c.Queries {
		q, err := analysis.ParseQuery(s)
		if err != nil {
			return nil, err
		}
		res = append(res, q)
	}
	return res, nil
}

func (c *analyzeConfig) loadFbas(log logger.Logger) (*fbas.Fbas, *fbas.Organizations, error) {
	opts := []loader.Option{loader.WithLogger(log)}
	if c.AllowUnknown {
		opts = append(opts, loader.AddUnknownValidators())
	}
	f, err := loader.LoadFbasFile(c.NodesFile, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("loading FBAS: %w", err)
	}
	if c.OrgsFile == "" {
		return f, nil, nil
	}
	orgs, err := loader.LoadOrganizationsFile(c.OrgsFile, f)
	if err != nil {
		return nil, nil, fmt.Errorf("loading organizations: %w", err)
	}
	return f, orgs, nil
}

func analyzeRunFunc(ctx context.Context, config *analyzeConfig) (err error) {
	log := logger.Create("analyze")
	if err := checkOutputFormat(config.Output); err != nil {
		return err
	}
	queries, err := config.queries()
	if err != nil {
		return err
	}
	if config.MergeByOrgs && config.OrgsFile == "" {
		return errors.New("--merge-by-organizations requires --organizations")
	}
	log.Debug("fbas-analyzer %s", debug.ReadBuildInfo())
	f, orgs, err := config.loadFbas(log)
	if err != nil {
		return err
	}

	opts := []analysis.Option{analysis.WithLogger(log)}
	if config.MergeByOrgs {
		opts = append(opts, analysis.WithOrganizations(orgs))
	}
	if config.Workers > 0 {
		opts = append(opts, analysis.WithWorkers(config.Workers))
	}
	if config.CacheDB != "" {
		cache, closeDB, cerr := openResultCache(config.CacheDB)
		if cerr != nil {
			return cerr
		}
		defer func() { err = errors.Join(err, closeDB()) }()
		opts = append(opts, analysis.WithCache(cache))
	}
	a, err := analysis.New(f, opts...)
	if err != nil {
		return err
	}

	if config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Timeout)
		defer cancel()
	}

	out := analyzeOutput{}
	if config.Describe {
		if out.Description, err = a.Describe(ctx); err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
	} else if err := a.Run(ctx, queries...); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if config.Pretty {
		out.Results = prettify(f, a.Results(), config.UseNames)
	} else {
		out.Results = a.Results()
	}
	if slices.Contains(queries, analysis.QuerySymmetricClusters) && !config.Describe {
		clusters := a.SymmetricClusters()
		if config.Pretty {
			out.SymmetricClusters = prettifyClusters(f, clusters, config.UseNames)
		} else {
			out.SymmetricClusters = clusters
		}
	}
	if config.ShowStats {
		out.Stats = a.QueryStats()
	}

	if config.MetricsFile != "" {
		if err := writeMetrics(config.MetricsFile, a); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return printOutput(config.Output, out)
}
