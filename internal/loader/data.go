package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/yuuichieguchi/constela/pkg/program"
	"gopkg.in/yaml.v3"
)

// httpClient is the client api data sources are fetched with. A var so
// tests can swap it.
var httpClient = &http.Client{Timeout: 30 * time.Second}

// ResolveData resolves every declared data source relative to baseDir.
// Glob sources yield one entry per matched file in lexical path order;
// file sources yield the parsed file; api sources fetch the URL.
func ResolveData(ctx context.Context, baseDir string, sources map[string]*program.DataSource) (map[string]any, error) {
	out := make(map[string]any, len(sources))
	for name, src := range sources {
		v, err := resolveSource(ctx, baseDir, src)
		if err != nil {
			return nil, fmt.Errorf("data source %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func resolveSource(ctx context.Context, baseDir string, src *program.DataSource) (any, error) {
	switch src.Type {
	case program.DataGlob:
		return resolveGlob(baseDir, src)
	case program.DataFile:
		return loadFile(filepath.Join(baseDir, src.Path), src.Transform)
	case program.DataAPI:
		return fetchAPI(ctx, src)
	default:
		return nil, fmt.Errorf("unknown data source type %q", src.Type)
	}
}

func resolveGlob(baseDir string, src *program.DataSource) (any, error) {
	matches, err := filepath.Glob(filepath.Join(baseDir, src.Pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", src.Pattern, err)
	}
	sort.Strings(matches)

	entries := make([]any, 0, len(matches))
	for _, path := range matches {
		v, err := loadFile(path, src.Transform)
		if err != nil {
			return nil, err
		}
		entry, ok := v.(map[string]any)
		if !ok {
			entry = map[string]any{"content": v}
		}
		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			rel = path
		}
		entry["_path"] = filepath.ToSlash(rel)
		entry["_slug"] = slugFromPath(rel)
		entries = append(entries, entry)
	}
	return entries, nil
}

// slugFromPath derives an identifier from a matched file: the base
// name without its extension.
func slugFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func fetchAPI(ctx context.Context, src *program.DataSource) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", src.URL, err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", src.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %q: unexpected status %d", src.URL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w", src.URL, err)
	}

	transform := src.Transform
	if transform == "" {
		transform = "json"
	}
	return transformContent(body, transform)
}

// loadFile reads and transforms one file. An empty transform picks a
// parser from the file extension.
func loadFile(path, transform string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if transform == "" {
		transform = transformForExt(filepath.Ext(path))
	}
	v, err := transformContent(data, transform)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func transformForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".md", ".markdown":
		return "frontmatter"
	default:
		return "raw"
	}
}

func transformContent(data []byte, transform string) (any, error) {
	switch transform {
	case "raw":
		return string(data), nil
	case "json":
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		return v, nil
	case "yaml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		return normalizeYAML(v), nil
	case "frontmatter":
		return parseFrontmatter(data)
	default:
		return nil, fmt.Errorf("unknown transform %q", transform)
	}
}

// normalizeYAML rewrites yaml.v3's map[string]any values recursively so
// downstream traversal sees the same shapes JSON decoding produces.
// Numeric scalars become float64.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}
