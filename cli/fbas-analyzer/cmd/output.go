package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/marfl/fbas-analyzer/analysis"
	"github.com/marfl/fbas-analyzer/fbas"
	"github.com/marfl/fbas-analyzer/loader"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

func checkOutputFormat(format string) error {
	if format != outputJSON && format != outputYAML {
		return fmt.Errorf("unsupported output format %q, expected %q or %q", format, outputJSON, outputYAML)
	}
	return nil
}

func encodeOutput(format string, v any) ([]byte, error) {
	switch format {
	case outputJSON:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case outputYAML:
		return yaml.Marshal(v)
	default:
		return nil, checkOutputFormat(format)
	}
}

func printOutput(format string, v any) error {
	data, err := encodeOutput(format, v)
	if err != nil {
		return err
	}
	consoleWriter.Print(string(data))
	return nil
}

// prettyResults is analysis.Results with nodes identified by public key (or name).
type prettyResults struct {
	QuorumIntersection   analysis.Result[bool]       `json:"quorumIntersection" yaml:"quorumIntersection"`
	IntersectionWitness  analysis.Result[[][]string] `json:"intersectionWitness" yaml:"intersectionWitness"`
	MinimalQuorums       analysis.Result[[][]string] `json:"minimalQuorums" yaml:"minimalQuorums"`
	MinimalBlockingSets  analysis.Result[[][]string] `json:"minimalBlockingSets" yaml:"minimalBlockingSets"`
	MinimalSplittingSets analysis.Result[[][]string] `json:"minimalSplittingSets" yaml:"minimalSplittingSets"`
	TopTier              analysis.Result[[]string]   `json:"topTier" yaml:"topTier"`
}

type prettyCluster struct {
	Members   []string          `json:"members" yaml:"members"`
	QuorumSet *loader.QuorumSet `json:"quorumSet" yaml:"quorumSet"`
}

func labelSets(l loader.Labeler, r analysis.Result[fbas.NodeIDSets]) analysis.Result[[][]string] {
	if v, ok := r.Get(); ok {
		return analysis.Known(l.Sets(v))
	}
	return analysis.Unknown[[][]string]()
}

func prettify(f *fbas.Fbas, res analysis.Results, useNames bool) prettyResults {
	l := loader.NewLabeler(f, useNames)
	pr := prettyResults{
		QuorumIntersection:   res.QuorumIntersection,
		IntersectionWitness:  labelSets(l, res.IntersectionWitness),
		MinimalQuorums:       labelSets(l, res.MinimalQuorums),
		MinimalBlockingSets:  labelSets(l, res.MinimalBlockingSets),
		MinimalSplittingSets: labelSets(l, res.MinimalSplittingSets),
		TopTier:              analysis.Unknown[[]string](),
	}
	if tt, ok := res.TopTier.Get(); ok {
		pr.TopTier = analysis.Known(l.Set(tt))
	}
	return pr
}

func prettifyClusters(f *fbas.Fbas, clusters []analysis.SymmetricCluster, useNames bool) []prettyCluster {
	l := loader.NewLabeler(f, useNames)
	res := make([]prettyCluster, len(clusters))
	for i, c := range clusters {
		res[i] = prettyCluster{Members: l.Set(c.Members), QuorumSet: loader.ExportQuorumSet(f, c.QuorumSet)}
	}
	return res
}
