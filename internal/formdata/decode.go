package formdata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names a serialization of a form-data tree
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the format from a file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode parses a form-data document. The top level must be a mapping.
func Decode(data []byte, format Format) (Tree, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Tree{}, nil
	}

	var root any
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("formdata: decode yaml: %w", err)
		}
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&root); err != nil {
			return nil, fmt.Errorf("formdata: decode json: %w", err)
		}
	default:
		return nil, fmt.Errorf("formdata: unsupported format %q", format)
	}

	m, ok := asStringMap(root)
	if !ok {
		return nil, fmt.Errorf("formdata: top level must be an object, got %T", root)
	}
	return Tree(m), nil
}

// LoadFile reads and decodes a form-data file, choosing the format by extension.
func LoadFile(path string) (Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("formdata: read %s: %w", path, err)
	}
	return Decode(data, FormatForPath(path))
}
