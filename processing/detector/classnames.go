package detector

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ClassNames translates model class ids to names.
type ClassNames map[int]string

func NewClassNames(names []string) ClassNames {
	cn := make(ClassNames, len(names))
	for i, n := range names {
		cn[i] = n
	}
	return cn
}

// Name returns the name for id, or "class_<id>" when unknown.
func (cn ClassNames) Name(id int) string {
	if n, ok := cn[id]; ok && n != "" {
		return n
	}
	return fmt.Sprintf("class_%d", id)
}

// LoadClassNames reads class names from a dataset yaml (the "names" key, as a
// list or an id map) or from a text file with one name per line.
func LoadClassNames(path string) (ClassNames, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAMLNames(path)
	default:
		return loadTextNames(path)
	}
}

func loadTextNames(path string) (ClassNames, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			names = append(names, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewClassNames(names), nil
}

func loadYAMLNames(path string) (ClassNames, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Names yaml.Node `yaml:"names"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	switch doc.Names.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := doc.Names.Decode(&names); err != nil {
			return nil, fmt.Errorf("parse %s names: %w", path, err)
		}
		return NewClassNames(names), nil
	case yaml.MappingNode:
		var names map[int]string
		if err := doc.Names.Decode(&names); err != nil {
			return nil, fmt.Errorf("parse %s names: %w", path, err)
		}
		return ClassNames(names), nil
	default:
		return nil, fmt.Errorf("%s: no names list", path)
	}
}
