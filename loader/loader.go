/*
Package loader reads network descriptions (stellarbeat style node lists) and
organization lists in JSON or YAML format.
*/
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marfl/fbas-analyzer/fbas"
	"github.com/marfl/fbas-analyzer/logger"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	ErrUnknownValidator   = errors.New("unknown validator")
	ErrDuplicatePublicKey = errors.New("duplicate public key")
)

type (
	QuorumSet struct {
		Threshold       int         `json:"threshold" yaml:"threshold"`
		Validators      []string    `json:"validators" yaml:"validators"`
		InnerQuorumSets []QuorumSet `json:"innerQuorumSets,omitempty" yaml:"innerQuorumSets,omitempty"`
	}

	Node struct {
		PublicKey string     `json:"publicKey" yaml:"publicKey"`
		Name      string     `json:"name,omitempty" yaml:"name,omitempty"`
		QuorumSet *QuorumSet `json:"quorumSet,omitempty" yaml:"quorumSet,omitempty"`
	}

	Organization struct {
		ID         string   `json:"id" yaml:"id"`
		Name       string   `json:"name" yaml:"name"`
		Validators []string `json:"validators" yaml:"validators"`
	}

	Option func(*config)

	config struct {
		addUnknown bool
		log        logger.Logger
	}
)

// AddUnknownValidators adds validators referenced by quorum sets but missing from
// the node list as nodes without quorum set, instead of failing.
func AddUnknownValidators() Option {
	return func(c *config) { c.addUnknown = true }
}

func WithLogger(l logger.Logger) Option {
	return func(c *config) { c.log = l }
}

// FormatFromFilename returns YAML for ".yaml" and ".yml" files, JSON otherwise.
func FormatFromFilename(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

func decode(r io.Reader, format Format, v any) error {
	switch format {
	case FormatJSON:
		return json.NewDecoder(r).Decode(v)
	case FormatYAML:
		return yaml.NewDecoder(r).Decode(v)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

func readFile(path string, read func(r io.Reader, format Format) error) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer f.Close()
	if err := read(f, FormatFromFilename(path)); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// LoadFbasFile loads FBAS from file, format is determined by the file extension.
func LoadFbasFile(path string, opts ...Option) (f *fbas.Fbas, err error) {
	err = readFile(path, func(r io.Reader, format Format) error {
		f, err = LoadFbas(r, format, opts...)
		return err
	})
	return f, err
}

/*
LoadFbas decodes node list and builds FBAS out of it. Node IDs are assigned in the
order of the list. Nodes without quorum set or with empty quorum set (threshold 0
and no members) are observers.
*/
func LoadFbas(r io.Reader, format Format, opts ...Option) (*fbas.Fbas, error) {
	var nodes []Node
	if err := decode(r, format, &nodes); err != nil {
		return nil, fmt.Errorf("decoding node list: %w", err)
	}
	return BuildFbas(nodes, opts...)
}

// BuildFbas converts node descriptions into FBAS.
func BuildFbas(nodes []Node, opts ...Option) (*fbas.Fbas, error) {
	cfg := config{log: logger.Nop()}
	for _, o := range opts {
		o(&cfg)
	}

	ids := make(map[string]fbas.NodeID, len(nodes))
	res := make([]fbas.Node, len(nodes))
	for i, n := range nodes {
		if _, ok := ids[n.PublicKey]; ok {
			return nil, fmt.Errorf("%w %q", ErrDuplicatePublicKey, n.PublicKey)
		}
		ids[n.PublicKey] = fbas.NodeID(i)
		res[i] = fbas.Node{PublicKey: n.PublicKey, Name: n.Name}
	}

	var errs []error
	resolve := func(pk string) (fbas.NodeID, error) {
		if id, ok := ids[pk]; ok {
			return id, nil
		}
		if !cfg.addUnknown {
			return 0, fmt.Errorf("%w %q", ErrUnknownValidator, pk)
		}
		id := fbas.NodeID(len(res))
		ids[pk] = id
		res = append(res, fbas.Node{PublicKey: pk})
		cfg.log.Debug("added unknown validator %s as node %d", pk, id)
		return id, nil
	}
	for i, n := range nodes {
		if n.QuorumSet == nil || n.QuorumSet.isEmpty() {
			continue
		}
		qs, err := n.QuorumSet.convert(resolve)
		if err != nil {
			errs = append(errs, fmt.Errorf("node %s: %w", n.PublicKey, err))
			continue
		}
		res[i].QuorumSet = qs
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	f, err := fbas.New(res)
	if err != nil {
		return nil, err
	}
	cfg.log.Debug("loaded FBAS of %d nodes (%d with quorum set)", f.NodeCount(), f.NodesWithQuorumSet().Len())
	return f, nil
}

func (qs *QuorumSet) isEmpty() bool {
	return qs.Threshold == 0 && len(qs.Validators) == 0 && len(qs.InnerQuorumSets) == 0
}

func (qs *QuorumSet) convert(resolve func(pk string) (fbas.NodeID, error)) (*fbas.QuorumSet, error) {
	res := &fbas.QuorumSet{Threshold: qs.Threshold}
	for _, pk := range qs.Validators {
		id, err := resolve(pk)
		if err != nil {
			return nil, err
		}
		res.Validators = append(res.Validators, id)
	}
	for i := range qs.InnerQuorumSets {
		iqs, err := qs.InnerQuorumSets[i].convert(resolve)
		if err != nil {
			return nil, err
		}
		res.InnerQuorumSets = append(res.InnerQuorumSets, iqs)
	}
	return res, nil
}

// LoadOrganizationsFile loads organizations of the FBAS from file.
func LoadOrganizationsFile(path string, f *fbas.Fbas) (orgs *fbas.Organizations, err error) {
	err = readFile(path, func(r io.Reader, format Format) error {
		orgs, err = LoadOrganizations(r, format, f)
		return err
	})
	return orgs, err
}

// LoadOrganizations decodes organization list, validators are matched with the
// nodes of the FBAS by public key.
func LoadOrganizations(r io.Reader, format Format, f *fbas.Fbas) (*fbas.Organizations, error) {
	var raw []Organization
	if err := decode(r, format, &raw); err != nil {
		return nil, fmt.Errorf("decoding organization list: %w", err)
	}
	ids := make(map[string]fbas.NodeID, f.NodeCount())
	for i := 0; i < f.NodeCount(); i++ {
		ids[f.PublicKey(fbas.NodeID(i))] = fbas.NodeID(i)
	}
	orgs := make([]fbas.Organization, len(raw))
	for i, o := range raw {
		orgs[i] = fbas.Organization{ID: o.ID, Name: o.Name, Members: fbas.NewNodeIDSet(f.NodeCount())}
		for _, pk := range o.Validators {
			id, ok := ids[pk]
			if !ok {
				return nil, fmt.Errorf("organization %q: %w: validator %q", o.ID, fbas.ErrUnknownNode, pk)
			}
			orgs[i].Members = orgs[i].Members.With(id)
		}
	}
	return fbas.NewOrganizations(f, orgs)
}

// ExportFbas converts FBAS back into node descriptions.
func ExportFbas(f *fbas.Fbas) []Node {
	res := make([]Node, f.NodeCount())
	for i, n := range f.Nodes() {
		res[i] = Node{PublicKey: n.PublicKey, Name: n.Name}
		if n.QuorumSet != nil {
			qs := ExportQuorumSet(f, n.QuorumSet)
			res[i].QuorumSet = qs
		}
	}
	return res
}

// ExportQuorumSet converts quorum set of the FBAS into description where validators
// are identified by public key.
func ExportQuorumSet(f *fbas.Fbas, qs *fbas.QuorumSet) *QuorumSet {
	res := &QuorumSet{Threshold: qs.Threshold, Validators: make([]string, len(qs.Validators))}
	for i, v := range qs.Validators {
		res.Validators[i] = f.PublicKey(v)
	}
	for _, iqs := range qs.InnerQuorumSets {
		res.InnerQuorumSets = append(res.InnerQuorumSets, *ExportQuorumSet(f, iqs))
	}
	return res
}
