package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/marfl/fbas-analyzer/keyvaluedb/boltdb"
	"github.com/marfl/fbas-analyzer/loader"
	"github.com/marfl/fbas-analyzer/resultcache"
)

type cacheConfig struct {
	Base *baseConfiguration

	DBFile string
	// restrict to results of the network described by the file
	NodesFile string
}

func newCacheCmd(baseConfig *baseConfiguration) *cobra.Command {
	config := &cacheConfig{Base: baseConfig}
	var cmd = &cobra.Command{
		Use:   "cache",
		Short: "Manages the analysis result cache",
	}
	cmd.PersistentFlags().StringVar(&config.DBFile, "cache-db", "", fmt.Sprintf("result cache DB file (default is $FBAS_HOME/%s)", defaultCacheFile))
	cmd.PersistentFlags().StringVar(&config.NodesFile, "network", "", "only results of the FBAS described by the nodes file")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Lists keys of the cached results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.withCache(func(c *resultcache.Cache, prefix string) error {
				keys, err := c.Keys(prefix)
				if err != nil {
					return err
				}
				for _, k := range keys {
					consoleWriter.Println(k)
				}
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Deletes cached results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.withCache(func(c *resultcache.Cache, prefix string) error {
				n, err := c.Purge(prefix)
				if err != nil {
					return err
				}
				consoleWriter.Println(fmt.Sprintf("Deleted %d cached results", n))
				return nil
			})
		},
	})
	return cmd
}

func (c *cacheConfig) withCache(f func(c *resultcache.Cache, prefix string) error) (err error) {
	var prefix string
	if c.NodesFile != "" {
		fb, err := loader.LoadFbasFile(c.NodesFile, loader.AddUnknownValidators())
		if err != nil {
			return fmt.Errorf("loading FBAS: %w", err)
		}
		prefix = hex.EncodeToString(fb.Fingerprint()) + "/"
	}
	dbFile := c.DBFile
	if dbFile == "" {
		dbFile = c.Base.defaultCacheDB()
	}
	cache, closeDB, err := openResultCache(dbFile)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeDB()) }()
	return f(cache, prefix)
}

func openResultCache(dbFile string) (*resultcache.Cache, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(dbFile), 0700); err != nil {
		return nil, nil, fmt.Errorf("creating result cache directory: %w", err)
	}
	db, err := boltdb.New(dbFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening result cache: %w", err)
	}
	cache, err := resultcache.New(db)
	if err != nil {
		return nil, nil, errors.Join(err, db.Close())
	}
	return cache, db.Close, nil
}
