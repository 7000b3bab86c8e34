// Command vercon is the command-line front end of the version-control
// engine. It is a thin wrapper: argument parsing and logger setup live
// here, everything else is internal/repo.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"vercon/internal/repo"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vercon",
		Short:         "Simple single-user version control",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	viper.SetEnvPrefix("vercon")
	viper.AutomaticEnv()
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("filter", ".*")

	root.AddCommand(newCommitCmd(), newListCmd(), newRestoreCmd())
	return root
}

// openRepo opens (or creates) the repository for the current directory
// with a logger built from the configured level.
func openRepo() (*repo.Repository, error) {
	log, err := newLogger(viper.GetString("log_level"))
	if err != nil {
		return nil, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return repo.Open(cwd, repo.WithLogger(log))
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("bad log level %q: %w", level, err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	return cfg.Build()
}
