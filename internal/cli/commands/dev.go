package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/yuuichieguchi/constela/internal/devserver"
)

// NewDevCommand creates the dev command.
func NewDevCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dev",
		Short: "Run the development server",
		Long: `Build the project, serve the output over HTTP and rebuild on source
changes. Connected browsers reload automatically after each successful
rebuild.`,
		Example: `  # Serve on the configured port (default 3000)
  constela dev

  # Serve on a different port
  constela dev --port 8080`,
		Args: cobra.NoArgs,
		RunE: runDev,
	}
}

func runDev(cmd *cobra.Command, _ []string) error {
	p := GetProject(cmd)

	if err := p.Cfg.ValidateDirectories(p.Root); err != nil {
		return err
	}

	builder, err := newBuilder(p, false)
	if err != nil {
		return err
	}
	defer func() { _ = builder.Close() }()

	watchDirs := []string{
		filepath.Join(p.Root, p.Cfg.PagesDir),
		filepath.Join(p.Root, p.Cfg.LayoutsDir),
		filepath.Join(p.Root, p.Cfg.PublicDir),
	}

	srv := devserver.NewServer(devserver.Config{
		Builder:   builder,
		OutDir:    filepath.Join(p.Root, p.Cfg.OutDir),
		WatchDirs: watchDirs,
		Port:      p.Cfg.Port,
		Logger:    p.Logger,
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://localhost:%d\n", p.Root, p.Cfg.Port)
	return srv.Serve(cmd.Context())
}
