package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type fbasAnalyzerApp struct {
	baseCmd    *cobra.Command
	baseConfig *baseConfiguration
}

// New creates a new fbas-analyzer application
func New() *fbasAnalyzerApp {
	baseCmd, baseConfig := newBaseCmd()
	return &fbasAnalyzerApp{baseCmd, baseConfig}
}

// Execute adds all child commands and runs the application
func (a *fbasAnalyzerApp) Execute(ctx context.Context) error {
	a.baseCmd.AddCommand(newAnalyzeCmd(a.baseConfig))
	a.baseCmd.AddCommand(newValidateCmd(a.baseConfig))
	a.baseCmd.AddCommand(newCacheCmd(a.baseConfig))
	a.baseCmd.AddCommand(newVersionCmd())
	return a.baseCmd.ExecuteContext(ctx)
}

// PrintError writes the error of the command execution to the console.
func PrintError(err error) {
	consoleWriter.Errorln("Error:", err)
}

func newBaseCmd() (*cobra.Command, *baseConfiguration) {
	config := &baseConfiguration{}
	// baseCmd represents the base command when called without any subcommands
	var baseCmd = &cobra.Command{
		Use:           "fbas-analyzer",
		Short:         "Quorum structure analysis of federated byzantine agreement systems",
		Long:          `Finds minimal quorums, minimal blocking sets and minimal splitting sets of an FBAS and checks whether it enjoys quorum intersection.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// If subcommand does not define PersistentPreRunE, the one from base cmd is used.
			if err := initializeConfig(cmd, config); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			return nil
		},
	}
	config.addConfigurationFlags(baseCmd)

	return baseCmd, config
}

func initializeConfig(cmd *cobra.Command, config *baseConfiguration) error {
	var errs []error

	if err := config.initializeConfig(cmd); err != nil {
		errs = append(errs, fmt.Errorf("reading configuration: %w", err))
	}

	if err := config.initLogger(cmd); err != nil {
		errs = append(errs, fmt.Errorf("initializing logger: %w", err))
	}

	return errors.Join(errs...)
}

// initializeConfig reads in config file and ENV variables if set.
func (config *baseConfiguration) initializeConfig(cmd *cobra.Command) error {
	v := viper.New()

	config.initConfigFileLocation()

	if config.configFileExists() {
		v.SetConfigFile(config.CfgFile)
	}

	// It's okay if there isn't a config file, parse errors are reported.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	// flag like --cache-db binds to environment variable FBAS_CACHE_DB
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := bindFlags(cmd, v); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	return nil
}

// Bind each cobra flag to its associated viper configuration (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var bindFlagErr []error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == keyHome || f.Name == keyConfig {
			// "home" and "config" are special configuration values, handled separately.
			return
		}

		// Environment variables can't have dashes in them
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name, fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				bindFlagErr = append(bindFlagErr, fmt.Errorf("binding env to flag %q: %w", f.Name, err))
				return
			}
		}

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := fmt.Sprintf("%v", v.Get(f.Name))
			if strings.HasSuffix(f.Value.Type(), "Slice") {
				val = strings.Join(v.GetStringSlice(f.Name), ",")
			}
			if err := cmd.Flags().Set(f.Name, val); err != nil {
				bindFlagErr = append(bindFlagErr, fmt.Errorf("setting flag %q value: %w", f.Name, err))
				return
			}
		}
	})

	return errors.Join(bindFlagErr...)
}
