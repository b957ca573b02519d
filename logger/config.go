package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

// GlobalConfig is the configuration of all loggers created by the package.
type GlobalConfig struct {
	DefaultLevel  LogLevel
	PackageLevels map[string]LogLevel
	Writer        io.Writer
	// human readable output instead of JSON
	ConsoleFormat bool
	ShowCaller    bool
	TimeLocation  string
}

const defaultTimeLocation = "Local"

// defaultConfiguration logs INFO and above to stderr, console format when stderr
// is terminal.
func defaultConfiguration() GlobalConfig {
	return GlobalConfig{
		DefaultLevel:  INFO,
		PackageLevels: map[string]LogLevel{},
		Writer:        os.Stderr,
		ConsoleFormat: term.IsTerminal(int(os.Stderr.Fd())),
		TimeLocation:  defaultTimeLocation,
	}
}

func loadGlobalConfigFromFile(fileName string) (GlobalConfig, error) {
	type loggerConfiguration struct {
		DefaultLevel  string            `yaml:"defaultLevel"`
		PackageLevels map[string]string `yaml:"packageLevels"`
		OutputPath    string            `yaml:"outputPath"`
		ConsoleFormat *bool             `yaml:"consoleFormat"`
		ShowCaller    bool              `yaml:"showCaller"`
		TimeLocation  string            `yaml:"timeLocation"`
	}

	yamlFile, err := os.ReadFile(filepath.Clean(fileName))
	if err != nil {
		return GlobalConfig{}, fmt.Errorf("failed to read logger config file: %w", err)
	}
	config := &loggerConfiguration{}
	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return GlobalConfig{}, fmt.Errorf("failed to unmarshal logger config: %w", err)
	}

	globalConfig := defaultConfiguration()
	if config.DefaultLevel != "" {
		if globalConfig.DefaultLevel, err = ParseLevel(config.DefaultLevel); err != nil {
			return GlobalConfig{}, fmt.Errorf("invalid default level: %w", err)
		}
	}
	globalConfig.ShowCaller = config.ShowCaller
	if config.TimeLocation != "" {
		globalConfig.TimeLocation = config.TimeLocation
	}
	if config.ConsoleFormat != nil {
		globalConfig.ConsoleFormat = *config.ConsoleFormat
	}
	if config.OutputPath != "" {
		file, err := os.OpenFile(config.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // -rw-------
		if err != nil {
			return GlobalConfig{}, fmt.Errorf("failed to open log file: %w", err)
		}
		globalConfig.Writer = file
		globalConfig.ConsoleFormat = config.ConsoleFormat != nil && *config.ConsoleFormat
	}
	for k, v := range config.PackageLevels {
		lvl, err := ParseLevel(v)
		if err != nil {
			return GlobalConfig{}, fmt.Errorf("invalid level for package %q: %w", k, err)
		}
		globalConfig.PackageLevels[k] = lvl
	}
	return globalConfig, nil
}
