package mapping

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/sf86.yaml
var defaultTable []byte

var (
	defaultOnce sync.Once
	defaultTbl  *Table
	defaultErr  error
)

// Default returns the embedded SF-86 table. It is parsed once.
func Default() (*Table, error) {
	defaultOnce.Do(func() {
		defaultTbl, defaultErr = Parse(defaultTable, "embedded sf86.yaml")
	})
	return defaultTbl, defaultErr
}

// Load reads a mapping table from a JSON or YAML file. An empty path
// returns the embedded default.
func Load(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mapping: read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes a mapping document and builds the table
func Parse(data []byte, source string) (*Table, error) {
	doc, err := parseDocument(data, source)
	if err != nil {
		return nil, err
	}
	if doc.Name == "" {
		doc.Name = source
	}
	return New(doc)
}

func parseDocument(data []byte, source string) (Document, error) {
	var doc Document
	if len(strings.TrimSpace(string(data))) == 0 {
		return Document{}, fmt.Errorf("mapping: file %s is empty", source)
	}

	if err := json.Unmarshal(data, &doc); err == nil {
		return doc, nil
	}

	doc = Document{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("mapping: parse %s: %w", source, err)
	}
	return doc, nil
}
