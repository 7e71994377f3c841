package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuuichieguchi/constela/internal/build"
)

// BuildOptions holds options for the build command.
type BuildOptions struct {
	Force bool // Rebuild pages even when unchanged
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &BuildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the project into a static site",
		Long: `Compile every page under the pages directory, render it to HTML and
write the result to the output directory along with public assets and
the client bundle.

Unchanged pages are skipped using a content-hash cache; use --force to
rebuild everything.`,
		Example: `  # Build the project
  constela build

  # Rebuild everything, ignoring the cache
  constela build --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "Rebuild all pages, ignoring the cache")

	return cmd
}

func runBuild(cmd *cobra.Command, opts *BuildOptions) error {
	p := GetProject(cmd)
	r := GetRenderer(cmd)

	builder, err := newBuilder(p, opts.Force)
	if err != nil {
		return err
	}
	defer func() { _ = builder.Close() }()

	result, err := builder.Build(cmd.Context())
	if err != nil {
		var diagErr *build.DiagnosticsError
		if errors.As(err, &diagErr) {
			renderDiagnostics(r, []fileDiagnostics{{File: diagErr.File, Diags: diagErr.Diags}})
			return fmt.Errorf("build failed: %s has analysis errors", diagErr.File)
		}
		return err
	}

	skipped := 0
	for _, pg := range result.Pages {
		if pg.Skipped {
			skipped++
		}
	}
	r.Success(fmt.Sprintf("Built %d pages (%d skipped, %d files) in %s",
		len(result.Pages), skipped, result.Outputs(), result.Duration.Round(time.Millisecond)))
	return nil
}
