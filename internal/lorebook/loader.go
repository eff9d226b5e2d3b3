// Package lorebook loads rule and codex definitions from author-maintained
// files on disk. Files are YAML or JSON; a directory is treated as a single
// lorebook and loaded as a unit so a partial edit never half-applies.
package lorebook

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/loreweave/loreweave/internal/domain"
)

// fileRule is the on-disk shape of a rule. Authors write "disabled: true"
// rather than "enabled: false" so that omitting the field yields an
// enabled rule.
type fileRule struct {
	domain.Rule `yaml:",inline"`
	Disabled    bool `yaml:"disabled" json:"disabled"`
}

// file is a single lorebook document: any mix of rules and codices.
type file struct {
	Codices []domain.Codex `yaml:"codices" json:"codices"`
	Rules   []fileRule     `yaml:"rules" json:"rules"`
}

// Book is the result of loading a lorebook directory.
type Book struct {
	Rules   []domain.Rule
	Codices []domain.Codex
	Files   []string
}

// LoadFile parses a single lorebook file. JSON files must carry a .json
// extension; everything else is parsed as YAML.
func LoadFile(path string) (*Book, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lorebook file: %w", err)
	}

	var doc file
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	book := &Book{Files: []string{path}}
	for _, fr := range doc.Rules {
		rule := fr.Rule
		rule.Enabled = !fr.Disabled
		if err := validate(&rule, path); err != nil {
			return nil, err
		}
		book.Rules = append(book.Rules, rule)
	}
	for _, cx := range doc.Codices {
		if cx.ID == "" {
			return nil, fmt.Errorf("codex with empty id in %s", filepath.Base(path))
		}
		cx.Enabled = true
		book.Codices = append(book.Codices, cx)
	}
	return book, nil
}

// LoadDir loads every .yaml, .yml, and .json file in dir, sorted by name so
// load order is deterministic. Subdirectories are ignored. A missing
// directory is an error; an empty one yields an empty book.
func LoadDir(dir string) (*Book, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read lorebook directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	book := &Book{}
	seen := make(map[string]string)
	for _, path := range paths {
		fb, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for _, rule := range fb.Rules {
			if prev, ok := seen[rule.ID]; ok {
				return nil, fmt.Errorf("duplicate rule %q in %s (first defined in %s)",
					rule.ID, filepath.Base(path), filepath.Base(prev))
			}
			seen[rule.ID] = path
		}
		book.Rules = append(book.Rules, fb.Rules...)
		book.Codices = append(book.Codices, fb.Codices...)
		book.Files = append(book.Files, path)
	}
	return book, nil
}

func validate(rule *domain.Rule, path string) error {
	if rule.ID == "" {
		return fmt.Errorf("rule with empty id in %s", filepath.Base(path))
	}
	if rule.Logic != "" && !rule.Logic.Valid() {
		return fmt.Errorf("rule %s: unknown logic mode %q", rule.ID, rule.Logic)
	}
	if rule.Content == "" && !rule.AlwaysActive {
		return fmt.Errorf("rule %s: content is required", rule.ID)
	}
	return nil
}
