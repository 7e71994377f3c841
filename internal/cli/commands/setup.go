package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/yuuichieguchi/constela/internal/build"
	"github.com/yuuichieguchi/constela/internal/cli/output"
	"github.com/yuuichieguchi/constela/internal/config"
)

// Project holds the resolved project settings shared by commands.
type Project struct {
	Root   string
	Cfg    *config.ProjectConfig
	Logger *slog.Logger
}

type projectKey struct{}

type rendererKey struct{}

// WithProject stores the project in the context.
func WithProject(ctx context.Context, p *Project) context.Context {
	return context.WithValue(ctx, projectKey{}, p)
}

// WithRenderer stores the renderer in the context.
func WithRenderer(ctx context.Context, r *output.Renderer) context.Context {
	return context.WithValue(ctx, rendererKey{}, r)
}

// GetProject retrieves the project from the command context, falling
// back to defaults rooted at the current directory.
func GetProject(cmd *cobra.Command) *Project {
	if p, ok := cmd.Context().Value(projectKey{}).(*Project); ok {
		return p
	}
	cwd, _ := os.Getwd()
	cfg := &config.ProjectConfig{}
	cfg.ApplyDefaults()
	return &Project{
		Root:   cwd,
		Cfg:    cfg,
		Logger: slog.New(slog.DiscardHandler),
	}
}

// GetRenderer retrieves the renderer from the command context.
func GetRenderer(cmd *cobra.Command) *output.Renderer {
	if r, ok := cmd.Context().Value(rendererKey{}).(*output.Renderer); ok {
		return r
	}
	return output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.ModeAuto)
}

// newBuilder constructs a builder from the project settings.
func newBuilder(p *Project, force bool) (*build.Builder, error) {
	cachePath := p.Cfg.CachePath
	if cachePath != "" && cachePath != ":memory:" {
		if !filepath.IsAbs(cachePath) {
			cachePath = filepath.Join(p.Root, cachePath)
		}
		if dir := filepath.Dir(cachePath); dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("create cache directory: %w", err)
			}
		}
	}
	return build.New(build.Options{
		Root:        p.Root,
		PagesDir:    p.Cfg.PagesDir,
		LayoutsDir:  p.Cfg.LayoutsDir,
		PublicDir:   p.Cfg.PublicDir,
		OutDir:      p.Cfg.OutDir,
		ClientEntry: p.Cfg.ClientEntry,
		Minify:      p.Cfg.Minify,
		CachePath:   cachePath,
		Force:       force,
		Logger:      p.Logger,
	})
}
