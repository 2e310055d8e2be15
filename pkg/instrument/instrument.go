// Package instrument loads questionnaires and reference catalogues from YAML or JSON files.
//
// A file may hold a single instrument, a list of instruments, or an object with an
// "instruments" list. JSON that fails to decode is repaired with jsonrepair and decoded
// again, which tolerates trailing commas, comments and unquoted keys.
package instrument

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/harmony/pkg/types"
)

// Format is a file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrEmptyDocument is returned when a file contains no instruments.
var ErrEmptyDocument = errors.New("document contains no instruments")

// DetectFormat infers the format from the file extension, falling back to the content.
func DetectFormat(path string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads the instruments in the file at path.
func Load(path string) ([]*types.Instrument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read instrument file: %w", err)
	}
	instruments, err := Parse(data, DetectFormat(path, data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return instruments, nil
}

// LoadAll reads several instrument files, keeping file order.
func LoadAll(paths ...string) ([]*types.Instrument, error) {
	var out []*types.Instrument
	for _, p := range paths {
		instruments, err := Load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, instruments...)
	}
	return out, nil
}

type document struct {
	Instruments []*types.Instrument `json:"instruments" yaml:"instruments"`
}

// Parse decodes instruments. Languages are lowercased (default "en"), missing ids are
// generated and every question is stamped with its instrument.
func Parse(data []byte, format Format) ([]*types.Instrument, error) {
	var instruments []*types.Instrument
	if err := decodeFlexible(data, format, &instruments, func(raw []byte, f Format) ([]*types.Instrument, error) {
		var doc document
		if err := unmarshal(raw, f, &doc); err == nil && len(doc.Instruments) > 0 {
			return doc.Instruments, nil
		}
		var single types.Instrument
		if err := unmarshal(raw, f, &single); err != nil {
			return nil, err
		}
		if len(single.Questions) == 0 && single.ID == "" && single.Name == "" {
			return nil, ErrEmptyDocument
		}
		return []*types.Instrument{&single}, nil
	}); err != nil {
		return nil, err
	}
	if len(instruments) == 0 {
		return nil, ErrEmptyDocument
	}

	for _, inst := range instruments {
		if inst == nil {
			continue
		}
		inst.Init()
	}
	return instruments, nil
}

// decodeFlexible decodes a list of T, or falls back to object decoding, repairing JSON once
// if needed.
func decodeFlexible[T any](data []byte, format Format, out *[]T, object func([]byte, Format) ([]T, error)) error {
	attempt := func(raw []byte) error {
		trimmed := bytes.TrimSpace(raw)
		if format == FormatJSON && len(trimmed) > 0 && trimmed[0] == '[' {
			return unmarshal(raw, format, out)
		}
		if format == FormatYAML {
			var list []T
			if err := yaml.Unmarshal(raw, &list); err == nil {
				*out = list
				return nil
			}
		}
		items, err := object(raw, format)
		if err != nil {
			return err
		}
		*out = items
		return nil
	}

	err := attempt(data)
	if err == nil || format != FormatJSON || errors.Is(err, ErrEmptyDocument) {
		return err
	}
	repaired, rerr := jsonrepair.JSONRepair(string(data))
	if rerr != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := attempt([]byte(repaired)); err != nil {
		return fmt.Errorf("invalid JSON after repair: %w", err)
	}
	return nil
}

func unmarshal(data []byte, format Format, v any) error {
	if format == FormatYAML {
		return yaml.Unmarshal(data, v)
	}
	return json.Unmarshal(data, v)
}

type catalogueDocument struct {
	Entries []types.CatalogueEntry `json:"entries" yaml:"entries"`
}

// LoadCatalogue reads a reference catalogue: a list of entries or an object with an
// "entries" list.
func LoadCatalogue(path string) ([]types.CatalogueEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue file: %w", err)
	}
	return ParseCatalogue(data, DetectFormat(path, data))
}

// ParseCatalogue decodes catalogue entries.
func ParseCatalogue(data []byte, format Format) ([]types.CatalogueEntry, error) {
	var entries []types.CatalogueEntry
	err := decodeFlexible(data, format, &entries, func(raw []byte, f Format) ([]types.CatalogueEntry, error) {
		var doc catalogueDocument
		if err := unmarshal(raw, f, &doc); err != nil {
			return nil, err
		}
		return doc.Entries, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalogue: %w", err)
	}
	return entries, nil
}
