package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lewisedginton/triage_assistant/internal/embedding"
	"github.com/lewisedginton/triage_assistant/internal/storage_manager"
)

// Format names the encoding of a knowledge file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath guesses the format from the file extension, defaulting to JSON.
func FormatFromPath(p string) Format {
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes a list of condition records. Unknown JSON fields are rejected
// so that a misspelt key cannot silently drop advice or severity.
func Parse(data []byte, format Format) ([]ConditionRecord, error) {
	var records []ConditionRecord
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to decode YAML knowledge file: %w", err)
		}
	case FormatJSON, "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to decode JSON knowledge file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported knowledge format %q", format)
	}
	return records, nil
}

// Load reads and validates a knowledge file from any storage backend.
// An empty format is inferred from the path.
func Load(ctx context.Context, provider storage_manager.FileProvider, p string, format Format, embedder embedding.Embedder) (*KnowledgeBase, error) {
	data, err := provider.Read(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge file %s: %w", p, err)
	}
	if format == "" {
		format = FormatFromPath(p)
	}
	records, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	kb, err := New(ctx, records, embedder)
	if err != nil {
		return nil, fmt.Errorf("invalid knowledge file %s: %w", p, err)
	}
	return kb, nil
}
