package build

import (
	"fmt"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
)

// bundleClient compiles the client entry into a single browser bundle
// under outDir/assets.
func bundleClient(entry, outDir string, minify bool) error {
	opts := api.BuildOptions{
		EntryPoints: []string{entry},
		Bundle:      true,
		Write:       true,
		Outdir:      filepath.Join(outDir, "assets"),

		Platform:    api.PlatformBrowser,
		Format:      api.FormatESModule,
		Target:      api.ES2020,
		TreeShaking: api.TreeShakingTrue,
		Sourcemap:   api.SourceMapNone,

		Loader: map[string]api.Loader{
			".ts":  api.LoaderTS,
			".css": api.LoaderCSS,
		},

		LogLevel: api.LogLevelWarning,
	}
	if minify {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
	}

	result := api.Build(opts)
	if len(result.Errors) > 0 {
		var msg string
		for _, e := range result.Errors {
			if e.Location != nil {
				msg += fmt.Sprintf("%s:%d:%d: %s\n", e.Location.File, e.Location.Line, e.Location.Column, e.Text)
			} else {
				msg += e.Text + "\n"
			}
		}
		return fmt.Errorf("bundle client:\n%s", msg)
	}
	return nil
}
