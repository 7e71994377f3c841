// Package loader reads authored program files and resolves their
// external data bindings: page and layout JSON, build-time data
// sources and data imports.
package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yuuichieguchi/constela/pkg/program"
)

// LoadProgram reads and decodes a page program from path.
func LoadProgram(path string) (*program.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}
	p, err := program.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// LoadLayout reads and decodes a layout program from path.
func LoadLayout(path string) (*program.LayoutProgram, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout: %w", err)
	}
	l, err := program.DecodeLayout(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// ResolveImports loads each imported data file relative to baseDir.
// Import files follow the same transform-by-extension rules as file
// data sources.
func ResolveImports(baseDir string, imports map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(imports))
	for name, rel := range imports {
		path := filepath.Join(baseDir, rel)
		v, err := loadFile(path, "")
		if err != nil {
			return nil, fmt.Errorf("import %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}
