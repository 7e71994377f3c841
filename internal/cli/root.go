// Package cli provides the command-line interface for Constela.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/yuuichieguchi/constela/internal/cli/commands"
	"github.com/yuuichieguchi/constela/internal/cli/output"
	"github.com/yuuichieguchi/constela/internal/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "constela",
		Short: "Constela - Declarative UI Compiler",
		Long: `Constela compiles JSON-defined pages with reactive state, actions and
data sources into a static site, and serves them in development with
live reload.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			root := config.FindProjectRoot(cwd)
			if root == "" {
				root = cwd
			}

			cfg, err := config.Load(root, cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			ctx := commands.WithProject(cmd.Context(), &commands.Project{
				Root:   root,
				Cfg:    cfg,
				Logger: newLogger(cfg.Verbose),
			})
			renderer := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ModeAuto)
			ctx = commands.WithRenderer(ctx, renderer)
			cmd.SetContext(ctx)

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Declarative UI compiler and static site builder
`)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./constela.yaml)")
	pf.String("pages_dir", "", "Path to pages directory")
	pf.String("layouts_dir", "", "Path to layouts directory")
	pf.String("public_dir", "", "Path to public assets directory")
	pf.String("out_dir", "", "Path to build output directory")
	pf.String("client_entry", "", "Client bundle entry point")
	pf.String("cache_path", "", "Path to the build cache database")
	pf.Int("port", 0, "Dev server port")
	pf.Bool("minify", false, "Minify the client bundle")
	pf.BoolP("verbose", "v", false, "Verbose output")
	// Flag names mirror the config keys; dashes are accepted on the
	// command line and normalized to underscores.
	pf.SetNormalizeFunc(normalizeFlagName)

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewBuildCommand())
	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewDevCommand())

	return rootCmd
}

func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "-", "_"))
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Execute runs the root command with the given context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
