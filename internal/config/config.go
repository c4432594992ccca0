// Package config loads and validates a project's watson.toml manifest:
// the root module to check, where sources live, and how they're named
// (spec §4, "project manifest").
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ManifestName is the well-known filename config.Locate walks upward
// looking for.
const ManifestName = "watson.toml"

// ErrManifestNotFound reports that no watson.toml exists in startDir or
// any ancestor.
type ErrManifestNotFound struct{ StartDir string }

func (e *ErrManifestNotFound) Error() string {
	return fmt.Sprintf("no %s found in %q or any parent directory", ManifestName, e.StartDir)
}

// Locate walks upward from startDir looking for watson.toml, the way the
// teacher's config loader walks for its own project file.
func Locate(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, ManifestName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &ErrManifestNotFound{StartDir: startDir}
		}
		dir = parent
	}
}

// Manifest is a project's watson.toml, decoded.
type Manifest struct {
	Root  string `toml:"root"`
	Ext   string `toml:"ext"`
	Entry string `toml:"entry"`
}

// manifestSchema constrains watson.toml's shape: root/entry are required
// non-empty strings, ext (when present) excludes the leading dot a user
// might paste in from a filename.
const manifestSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["root", "entry"],
	"properties": {
		"root":  { "type": "string", "minLength": 1 },
		"ext":   { "type": "string", "pattern": "^[^.]+$" },
		"entry": { "type": "string", "minLength": 1 }
	},
	"additionalProperties": false
}`

func compiledSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("watson-manifest.json", strings.NewReader(manifestSchema)); err != nil {
		return nil, err
	}
	return c.Compile("watson-manifest.json")
}

// ErrInvalidManifest wraps a watson.toml that fails schema validation.
type ErrInvalidManifest struct{ Err error }

func (e *ErrInvalidManifest) Error() string { return fmt.Sprintf("invalid watson.toml: %s", e.Err) }
func (e *ErrInvalidManifest) Unwrap() error  { return e.Err }

// Load decodes and validates a watson.toml manifest from data, defaulting
// Ext to "watson" when unset.
func Load(data []byte) (Manifest, error) {
	var raw map[string]any
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return Manifest{}, fmt.Errorf("parsing watson.toml: %w", err)
	}

	schema, err := compiledSchema()
	if err != nil {
		return Manifest{}, fmt.Errorf("compiling manifest schema: %w", err)
	}
	if err := schema.Validate(toJSONCompatible(raw)); err != nil {
		return Manifest{}, &ErrInvalidManifest{Err: err}
	}

	var m Manifest
	if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("parsing watson.toml: %w", err)
	}
	if m.Ext == "" {
		m.Ext = "watson"
	}
	return m, nil
}

// toJSONCompatible normalizes toml.Decode's output (which may contain
// int64/time.Time values the JSON Schema validator's type assertions
// don't expect) into the plain string/float64/bool/map/slice shapes
// encoding/json would have produced.
func toJSONCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = toJSONCompatible(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = toJSONCompatible(val)
		}
		return out
	case int64:
		return float64(t)
	case int:
		return float64(t)
	default:
		return v
	}
}
