// Package descfile loads record descriptors from hand-written or
// tool-generated documents, so layouts measured elsewhere can be analyzed.
//
// A document holds a top-level records list. YAML documents use snake_case
// keys (total_size, is_bitfield, ...), JSON and CUE documents use the
// camelCase keys of the JSON output (totalSize, isBitfield, ...).
package descfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/ieee-cs-bmsit/structsight/internal/extract"
	"github.com/ieee-cs-bmsit/structsight/internal/layout"
)

// Format identifies a document encoding.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
	CUE  Format = "cue"
)

// Document is the on-disk shape of a descriptor file.
type Document struct {
	Records []layout.Descriptor `json:"records" yaml:"records"`
}

// FormatFor returns the document format implied by a file extension.
func FormatFor(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, true
	case ".json":
		return JSON, true
	case ".cue":
		return CUE, true
	default:
		return "", false
	}
}

// Load reads and decodes a descriptor document, choosing the format from the
// file extension.
func Load(path string) ([]layout.Descriptor, error) {
	format, ok := FormatFor(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a descriptor document", extract.ErrUnsupported, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor file: %w", err)
	}
	return Parse(data, format, path)
}

// Parse decodes a document. name is used in error messages and for CUE
// positions.
func Parse(data []byte, format Format, name string) ([]layout.Descriptor, error) {
	var doc Document

	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: parse YAML %s: %v", extract.ErrCompile, name, err)
		}

	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: parse JSON %s: %v", extract.ErrCompile, name, err)
		}

	case CUE:
		v := cuecontext.New().CompileBytes(data, cue.Filename(name))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("%w: compile CUE %s: %v", extract.ErrCompile, name, err)
		}
		if err := v.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: decode CUE %s: %v", extract.ErrCompile, name, err)
		}

	default:
		return nil, fmt.Errorf("%w: document format %q", extract.ErrUnsupported, format)
	}

	if err := normalize(doc.Records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", extract.ErrCompile, name, err)
	}
	return doc.Records, nil
}

// normalize fills derived fields and rejects records the analyzer cannot
// interpret.
func normalize(ds []layout.Descriptor) error {
	seen := make(map[string]bool, len(ds))

	for i := range ds {
		d := &ds[i]
		if d.Name == "" {
			return fmt.Errorf("record %d has no name", i)
		}
		if d.QualifiedName == "" {
			d.QualifiedName = d.Name
		}
		if seen[d.QualifiedName] {
			return fmt.Errorf("duplicate record %s", d.QualifiedName)
		}
		seen[d.QualifiedName] = true

		names := make(map[string]bool, len(d.Members))
		for _, m := range d.Members {
			if m.Name == "" {
				return fmt.Errorf("record %s: member without name", d.Name)
			}
			if names[m.Name] {
				return fmt.Errorf("record %s: duplicate member %s", d.Name, m.Name)
			}
			names[m.Name] = true
		}

		if d.UsefulSize == 0 {
			d.UsefulSize = d.ComputeUsefulSize()
		}
		if d.IsPolymorphic && d.VTable == nil {
			d.VTable = &layout.VTable{}
		}

		// Computed by the analyzer on every run.
		d.Padding = nil
		d.Optimizations = nil
	}
	return nil
}

// Extractor serves the records of one document file. The request's
// FilePath is used when Path is empty; Source, when set, takes precedence
// over reading the file.
type Extractor struct {
	Path string
}

var _ extract.Extractor = Extractor{}

// Extract implements extract.Extractor.
func (e Extractor) Extract(_ context.Context, req extract.Request) ([]layout.Descriptor, error) {
	path := e.Path
	if path == "" {
		path = req.FilePath
	}

	var (
		ds  []layout.Descriptor
		err error
	)
	if req.Source != nil {
		format, ok := FormatFor(path)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a descriptor document", extract.ErrUnsupported, path)
		}
		ds, err = Parse(req.Source, format, path)
	} else {
		ds, err = Load(path)
	}
	if err != nil {
		return nil, err
	}
	return extract.Filter(ds, req.StructName), nil
}
