package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marfl/fbas-analyzer/logger"
)

type baseConfiguration struct {
	// The fbas-analyzer home directory
	HomeDir string
	// Configuration file URL. If it's relative, then it's relative from the HomeDir.
	CfgFile string
	// Logger configuration file URL.
	LogCfgFile string
}

const (
	// The prefix for configuration keys inside environment.
	envPrefix = "FBAS"
	// The default name for config file.
	defaultConfigFile = "config.props"
	// the default fbas-analyzer directory.
	defaultAnalyzerDir = ".fbas-analyzer"
	// The default logger configuration file name.
	defaultLoggerConfigFile = "logger-config.yaml"
	// The default result cache file name.
	defaultCacheFile = "cache.db"
	// The configuration key for home directory.
	keyHome = "home"
	// The configuration key for config file name.
	keyConfig = "config"

	flagNameLoggerCfgFile = "logger-config"
	flagNameLogLevel      = "log-level"
)

func (r *baseConfiguration) addConfigurationFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&r.HomeDir, keyHome, "", fmt.Sprintf("set the FBAS_HOME for this invocation (default is %s)", analyzerHomeDir()))
	cmd.PersistentFlags().StringVar(&r.CfgFile, keyConfig, "", fmt.Sprintf("config file URL (default is $FBAS_HOME/%s)", defaultConfigFile))
	cmd.PersistentFlags().StringVar(&r.LogCfgFile, flagNameLoggerCfgFile, defaultLoggerConfigFile, "logger config file URL. Considered absolute if starts with '/'. Otherwise relative from $FBAS_HOME.")
	// no default value, level from the logger config file is used when not set
	cmd.PersistentFlags().String(flagNameLogLevel, "", "logging level, one of: NONE, ERROR, WARNING, INFO, DEBUG, TRACE")
}

func (r *baseConfiguration) initConfigFileLocation() {
	// Home directory and config file are handled manually, before other configuration loaded with Viper.
	if r.HomeDir == "" {
		r.HomeDir = os.Getenv(envKey(keyHome))
		if r.HomeDir == "" {
			r.HomeDir = analyzerHomeDir()
		}
	}

	if r.CfgFile == "" {
		r.CfgFile = os.Getenv(envKey(keyConfig))
		if r.CfgFile == "" {
			r.CfgFile = defaultConfigFile
		}
	}
	if !filepath.IsAbs(r.CfgFile) {
		r.CfgFile = filepath.Join(r.HomeDir, r.CfgFile)
	}
}

/*
LoggerCfgFilename always returns non-empty filename - either the value
of the flag set by user or default cfg location.
*/
func (r *baseConfiguration) LoggerCfgFilename() string {
	if !filepath.IsAbs(r.LogCfgFile) {
		return filepath.Join(r.HomeDir, r.LogCfgFile)
	}
	return r.LogCfgFile
}

func (r *baseConfiguration) configFileExists() bool {
	_, err := os.Stat(r.CfgFile)
	return err == nil
}

func (r *baseConfiguration) defaultCacheDB() string {
	return filepath.Join(r.HomeDir, defaultCacheFile)
}

/*
initLogger updates the global logger configuration from the logger config file (the
default file may be missing) and the log level flag, the flag wins.
*/
func (r *baseConfiguration) initLogger(cmd *cobra.Command) error {
	loggerCfgFile := filepath.Clean(r.LoggerCfgFilename())
	if err := logger.UpdateGlobalConfigFromFile(loggerCfgFile); err != nil {
		defaultLoggerCfg := filepath.Join(r.HomeDir, defaultLoggerConfigFile)
		if !(errors.Is(err, os.ErrNotExist) && loggerCfgFile == defaultLoggerCfg) {
			return fmt.Errorf("loading logger configuration: %w", err)
		}
	}

	if cmd.Flags().Changed(flagNameLogLevel) {
		value, err := cmd.Flags().GetString(flagNameLogLevel)
		if err != nil {
			return fmt.Errorf("failed to read %s flag value: %w", flagNameLogLevel, err)
		}
		level, err := logger.ParseLevel(value)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
	}
	return nil
}

func envKey(key string) string {
	return strings.ToUpper(envPrefix + "_" + key)
}

func analyzerHomeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		panic("default user home dir not defined: " + err.Error())
	}
	return filepath.Join(dir, defaultAnalyzerDir)
}
