package compiler

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// lineMarkerField is the injected per-document property carrying the 1-based
// line where the case starts.
const lineMarkerField = "__line__"

// Param is one parameter of a parametrized variant. Parameters keep their
// authored mapping order.
type Param struct {
	Key   string
	Value any
}

// Params is an ordered parameter mapping.
type Params []Param

// Document is one raw case mapping as authored, annotated with its source
// file and starting line.
type Document struct {
	// File is the scenario file the document came from.
	File string
	// Line is 1-based; it anchors failure reporting. It points at the
	// "main" key when present, else at the mapping itself.
	Line int
	// Fields holds the decoded mapping values.
	Fields map[string]any
	// Parametrized preserves the authored key order of each parameter
	// mapping, which map-typed Fields cannot.
	Parametrized []Params
}

// LoadFile reads one scenario file into raw case documents.
func LoadFile(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file %s: %w", path, err)
	}
	return LoadDocuments(data, path)
}

// LoadDocuments decodes scenario YAML into raw case documents. The top level
// must be a list of mappings; an empty file yields no documents.
func LoadDocuments(data []byte, file string) ([]Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse scenario file %s: %w", file, err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, nil
	}

	list := root.Content[0]
	if list.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("scenario file %s must be a YAML list, got %s", file, nodeKind(list))
	}

	docs := make([]Document, 0, len(list.Content))
	for _, item := range list.Content {
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("scenario file %s: case entries must be mappings, got %s", file, nodeKind(item))
		}
		doc, err := decodeDocument(item, file)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func decodeDocument(node *yaml.Node, file string) (Document, error) {
	doc := Document{
		File:   file,
		Line:   node.Line,
		Fields: make(map[string]any, len(node.Content)/2),
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		val := node.Content[i+1]

		if key.Value == "main" {
			doc.Line = key.Line
		}

		var decoded any
		if err := val.Decode(&decoded); err != nil {
			return Document{}, fmt.Errorf("scenario file %s line %d: decode field %q: %w", file, key.Line, key.Value, err)
		}
		doc.Fields[key.Value] = decoded

		if key.Value == "parametrized" && val.Kind == yaml.SequenceNode {
			params, err := decodeParametrized(val, file)
			if err != nil {
				return Document{}, err
			}
			doc.Parametrized = params
		}
	}
	return doc, nil
}

// decodeParametrized keeps the authored key order of every parameter mapping.
func decodeParametrized(node *yaml.Node, file string) ([]Params, error) {
	entries := make([]Params, 0, len(node.Content))
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("scenario file %s line %d: parametrized entries must be mappings, got %s", file, item.Line, nodeKind(item))
		}
		params := make(Params, 0, len(item.Content)/2)
		for i := 0; i+1 < len(item.Content); i += 2 {
			var value any
			if err := item.Content[i+1].Decode(&value); err != nil {
				return nil, fmt.Errorf("scenario file %s line %d: decode parameter %q: %w", file, item.Content[i].Line, item.Content[i].Value, err)
			}
			params = append(params, Param{Key: item.Content[i].Value, Value: value})
		}
		entries = append(entries, params)
	}
	return entries, nil
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "list"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
