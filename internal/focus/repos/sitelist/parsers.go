package sitelist

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	logpkg "github.com/SujathaSimmala2829/Focus-blocker/internal/focus/common/log"
)

// ParsePlainList parses a newline-delimited list of site specifiers.
//
// Behavior:
// - Supports comments starting with '#' (inline or whole-line)
// - Trims surrounding whitespace and a leading BOM
// - Skips empty lines after trimming/stripping comments
// - Keeps duplicates and input order
func ParsePlainList(r io.Reader, logger logpkg.Logger) ([]string, error) {
	scanner := bufio.NewScanner(r)
	out := make([]string, 0, 32)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimPrefix(scanner.Text(), "\uFEFF")
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		s := strings.TrimSpace(line)
		if s == "" {
			logger.Debug(map[string]any{"line": lineNum}, "skip_blank_or_comment")
			continue
		}
		out = append(out, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse site list: %w", err)
	}
	logger.Debug(map[string]any{"count": len(out)}, "parse_plain_list_done")
	return out, nil
}

// yamlList is the document shape accepted by ParseYAMLList besides a bare sequence.
type yamlList struct {
	Sites []string `yaml:"sites"`
}

// ParseYAMLList parses either a top-level YAML sequence of specifiers or a
// mapping with a "sites" sequence. Blank entries are dropped.
func ParseYAMLList(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read site list: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse yaml site list: %w", err)
	}

	if len(node.Content) == 0 {
		return []string{}, nil
	}

	var raw []string
	if node.Content[0].Kind == yaml.SequenceNode {
		err = node.Content[0].Decode(&raw)
	} else {
		var doc yamlList
		err = node.Decode(&doc)
		raw = doc.Sites
	}
	if err != nil {
		return nil, fmt.Errorf("parse yaml site list: %w", err)
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// ParseFile reads a site list file, choosing the YAML parser for .yaml and
// .yml files and the plain parser otherwise.
func ParseFile(path string, logger logpkg.Logger) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site list %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAMLList(bytes.NewReader(data))
	default:
		return ParsePlainList(bytes.NewReader(data), logger)
	}
}
