package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuuichieguchi/constela/pkg/program"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadProgram(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "index.json", `{
		"version": "1.0",
		"state": {"count": {"type": "number", "initial": 0}},
		"view": {"kind": "element", "tag": "div"}
	}`)

	p, err := LoadProgram(path)
	require.NoError(t, err)
	assert.Equal(t, "1.0", p.Version)
	require.Contains(t, p.State, "count")
	assert.Equal(t, float64(0), p.State["count"].Initial)
}

func TestLoadProgram_BadJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.json", `{"version": `)

	_, err := LoadProgram(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.json")
}

func TestLoadLayout_RejectsRoute(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "layout.json", `{
		"version": "1.0",
		"view": {"kind": "slot"},
		"route": {"path": "/x"}
	}`)

	_, err := LoadLayout(path)
	require.Error(t, err)
}

func TestResolveData_File(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "site.json", `{"title": "My Site", "version": 2}`)

	data, err := ResolveData(context.Background(), dir, map[string]*program.DataSource{
		"site": {Type: program.DataFile, Path: "site.json"},
	})
	require.NoError(t, err)

	site, ok := data["site"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "My Site", site["title"])
	assert.Equal(t, float64(2), site["version"])
}

func TestResolveData_FileYAMLNormalized(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "nav.yaml", "items:\n  - label: Home\n    order: 1\n")

	data, err := ResolveData(context.Background(), dir, map[string]*program.DataSource{
		"nav": {Type: program.DataFile, Path: "nav.yaml"},
	})
	require.NoError(t, err)

	nav := data["nav"].(map[string]any)
	items := nav["items"].([]any)
	first := items[0].(map[string]any)
	assert.Equal(t, "Home", first["label"])
	assert.Equal(t, float64(1), first["order"])
}

func TestResolveData_GlobOrderAndSlug(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "posts/b-second.md", "---\ntitle: Second\n---\nbody two\n")
	writeFile(t, dir, "posts/a-first.md", "---\ntitle: First\ndraft: false\n---\nbody one\n")

	data, err := ResolveData(context.Background(), dir, map[string]*program.DataSource{
		"posts": {Type: program.DataGlob, Pattern: "posts/*.md"},
	})
	require.NoError(t, err)

	posts, ok := data["posts"].([]any)
	require.True(t, ok)
	require.Len(t, posts, 2)

	first := posts[0].(map[string]any)
	assert.Equal(t, "First", first["title"])
	assert.Equal(t, "a-first", first["_slug"])
	assert.Equal(t, "posts/a-first.md", first["_path"])
	assert.Equal(t, "body one\n", first["content"])

	second := posts[1].(map[string]any)
	assert.Equal(t, "Second", second["title"])
}

func TestResolveData_GlobRawTransform(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "snippets/hello.txt", "plain text")

	data, err := ResolveData(context.Background(), dir, map[string]*program.DataSource{
		"snippets": {Type: program.DataGlob, Pattern: "snippets/*.txt", Transform: "raw"},
	})
	require.NoError(t, err)

	snippets := data["snippets"].([]any)
	require.Len(t, snippets, 1)
	entry := snippets[0].(map[string]any)
	assert.Equal(t, "plain text", entry["content"])
	assert.Equal(t, "hello", entry["_slug"])
}

func TestResolveData_API(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": 1}, {"id": 2}]`))
	}))
	defer srv.Close()

	data, err := ResolveData(context.Background(), t.TempDir(), map[string]*program.DataSource{
		"api": {Type: program.DataAPI, URL: srv.URL},
	})
	require.NoError(t, err)

	list, ok := data["api"].([]any)
	require.True(t, ok)
	assert.Len(t, list, 2)
}

func TestResolveData_APIErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := ResolveData(context.Background(), t.TempDir(), map[string]*program.DataSource{
		"api": {Type: program.DataAPI, URL: srv.URL},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestResolveImports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "i18n/en.json", `{"greeting": "Hello"}`)

	imports, err := ResolveImports(dir, map[string]string{"i18n": "i18n/en.json"})
	require.NoError(t, err)

	i18n := imports["i18n"].(map[string]any)
	assert.Equal(t, "Hello", i18n["greeting"])
}

func TestParseFrontmatter_NoBlock(t *testing.T) {
	out, err := parseFrontmatter([]byte("just markdown\n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"content": "just markdown\n"}, out)
}

func TestParseFrontmatter_BadYAML(t *testing.T) {
	_, err := parseFrontmatter([]byte("---\n: : :\n---\nbody"))
	require.Error(t, err)
}
