// Package cli implements the logwindow CLI commands.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coffersTech/logwindow/internal/config"
)

type rootOptions struct {
	cfgFile string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "logwindow",
		Short: "Keep a bounded window of recent log events and query it",
		Long: `logwindow captures log events into a fixed-size in-memory window and
serves them over a small management API.

Events can be filtered by level, time range and free text. Once the window
is full the oldest events are evicted.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./logwindow.yaml or $HOME/.logwindow/logwindow.yaml)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newQueryCmd(opts))
	rootCmd.AddCommand(newIngestCmd(opts))
	rootCmd.AddCommand(newHashTokenCmd())
	rootCmd.AddCommand(newConfigCmd(opts))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadViper reads the configuration and binds the command's flags to
// their config keys. Flags win over the environment and the file.
func (o *rootOptions) loadViper(cmd *cobra.Command, bindings map[string]string) (*viper.Viper, error) {
	v, err := config.NewViper(o.cfgFile)
	if err != nil {
		return nil, err
	}
	for key, flag := range bindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

// loadConfig is loadViper followed by config.Load.
func (o *rootOptions) loadConfig(cmd *cobra.Command, bindings map[string]string) (config.Config, error) {
	v, err := o.loadViper(cmd, bindings)
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(v)
}
