// Package config loads project configuration for Constela tools.
// Precedence (highest to lowest): flags > env vars > config file >
// defaults.
package config

import (
	"fmt"
	"os"
)

// Config file names, looked up in the project root.
const (
	ConfigFileName    = "constela.yaml"
	ConfigFileNameAlt = "constela.yml"
)

// Default configuration values.
const (
	DefaultPagesDir   = "pages"
	DefaultLayoutsDir = "layouts"
	DefaultPublicDir  = "public"
	DefaultOutDir     = "dist"
	DefaultCachePath  = ".constela/cache.db"
	DefaultPort       = 3000
)

// ProjectConfig holds the project-level settings shared by every
// command.
type ProjectConfig struct {
	PagesDir    string `koanf:"pages_dir"`
	LayoutsDir  string `koanf:"layouts_dir"`
	PublicDir   string `koanf:"public_dir"`
	OutDir      string `koanf:"out_dir"`
	ClientEntry string `koanf:"client_entry"`
	Minify      bool   `koanf:"minify"`
	CachePath   string `koanf:"cache_path"`
	Port        int    `koanf:"port"`
	Verbose     bool   `koanf:"verbose"`
}

// ApplyDefaults fills unset fields with their defaults.
func (c *ProjectConfig) ApplyDefaults() {
	if c.PagesDir == "" {
		c.PagesDir = DefaultPagesDir
	}
	if c.LayoutsDir == "" {
		c.LayoutsDir = DefaultLayoutsDir
	}
	if c.PublicDir == "" {
		c.PublicDir = DefaultPublicDir
	}
	if c.OutDir == "" {
		c.OutDir = DefaultOutDir
	}
	if c.CachePath == "" {
		c.CachePath = DefaultCachePath
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
}

// Validate checks the configuration is usable.
func (c *ProjectConfig) Validate() error {
	if c.PagesDir == "" {
		return fmt.Errorf("pages_dir is required")
	}
	if c.OutDir == "" {
		return fmt.Errorf("out_dir is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Port)
	}
	return nil
}

// ValidateDirectories checks that the pages directory exists. Separate
// from Validate so help commands work outside a project.
func (c *ProjectConfig) ValidateDirectories(root string) error {
	dir := c.PagesDir
	if root != "" {
		dir = root + string(os.PathSeparator) + dir
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("pages directory does not exist: %s\nHint: create the directory or set pages_dir in %s", dir, ConfigFileName)
	}
	return nil
}
