package loader

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatterPattern matches a leading --- ... --- block.
var frontmatterPattern = regexp.MustCompile(`(?s)\A---\s*\n(.*?)\n---\s*\n?`)

// parseFrontmatter splits a markdown document into YAML frontmatter
// fields plus the remaining body under "content". A document without a
// frontmatter block yields only "content".
func parseFrontmatter(data []byte) (map[string]any, error) {
	content := string(data)
	out := map[string]any{}

	matches := frontmatterPattern.FindStringSubmatch(content)
	if len(matches) < 2 {
		out["content"] = content
		return out, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal([]byte(matches[1]), &fields); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	for k, v := range fields {
		if k == "content" {
			continue
		}
		out[k] = normalizeYAML(v)
	}
	out["content"] = strings.TrimPrefix(content, matches[0])
	return out, nil
}
