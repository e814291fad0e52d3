// Package cmd provides the command-line interface for taskctl.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/geoffjay/taskfabricd/internal/config"
	"github.com/geoffjay/taskfabricd/internal/protocol"
)

// clientConfig is the on-disk/env-overridable configuration for
// taskctl, loaded the same way every fabric binary loads its config.
type clientConfig struct {
	Dispatcher struct {
		Address string        `yaml:"address" mapstructure:"address"`
		Retries int           `yaml:"retries" mapstructure:"retries"`
		Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	} `yaml:"dispatcher" mapstructure:"dispatcher"`
}

var (
	cfgFile        string
	dispatcherFlag string
	cfg            clientConfig

	rootCmd = &cobra.Command{
		Use:   "taskctl",
		Short: "Submit tasks to the dispatcher and query their results",
		Long:  "taskctl is the operator CLI for the task fabric: submit tasks, poll for results, and run a canned simulation.",
	}
)

// Execute runs the root command, exiting nonzero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path; accepted but not read: taskctl.yaml is always loaded from $HOME/.config/taskfabricd or the working directory")
	rootCmd.PersistentFlags().StringVar(&dispatcherFlag, "dispatcher", "", "dispatcher address, e.g. 127.0.0.1:4000 (overrides config and DISPATCHER_IP)")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(resultCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	defaults := map[string]interface{}{
		"dispatcher.address": fmt.Sprintf("127.0.0.1:%d", protocol.DispatcherPort),
		"dispatcher.retries": 5,
		"dispatcher.timeout": time.Second,
	}

	if err := config.LoadConfigWithDefaults("taskctl", &cfg, defaults); err != nil {
		fmt.Fprintln(os.Stderr, "warning: failed to load taskctl config:", err)
	}
}

// dispatcherAddress resolves the Dispatcher address in order of
// precedence: --dispatcher flag, DISPATCHER_IP env var, config file,
// built-in default.
func dispatcherAddress() string {
	if dispatcherFlag != "" {
		return dispatcherFlag
	}
	if host := os.Getenv("DISPATCHER_IP"); host != "" {
		return fmt.Sprintf("%s:%d", host, protocol.DispatcherPort)
	}
	if cfg.Dispatcher.Address != "" {
		return cfg.Dispatcher.Address
	}
	return fmt.Sprintf("127.0.0.1:%d", protocol.DispatcherPort)
}
