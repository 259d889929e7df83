package compiler

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var caseSchemaJSON []byte

var (
	caseSchemaOnce sync.Once
	caseSchema     *jsonschema.Schema
	caseSchemaErr  error
)

// ValidationError is a fatal shape error for a whole document batch. No case
// from the batch executes when validation fails.
type ValidationError struct {
	File string
	Err  error
}

func (e *ValidationError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("invalid case documents in %s: %v", e.File, e.Err)
	}
	return fmt.Sprintf("invalid case documents: %v", e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// loadCaseSchema compiles the embedded document schema with the injected
// starting-line marker property.
func loadCaseSchema() (*jsonschema.Schema, error) {
	caseSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(caseSchemaJSON))
		if err != nil {
			caseSchemaErr = fmt.Errorf("decode embedded case schema: %w", err)
			return
		}

		if err := injectLineMarker(doc); err != nil {
			caseSchemaErr = err
			return
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("cases.schema.json", doc); err != nil {
			caseSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		caseSchema, caseSchemaErr = compiler.Compile("cases.schema.json")
		if caseSchemaErr != nil {
			caseSchemaErr = fmt.Errorf("compile case schema: %w", caseSchemaErr)
		}
	})

	return caseSchema, caseSchemaErr
}

// injectLineMarker adds the internally-injected 1-based line property to the
// per-document schema before compilation.
func injectLineMarker(doc any) error {
	root, ok := doc.(map[string]any)
	if !ok {
		return fmt.Errorf("embedded case schema: root is not an object")
	}
	items, ok := root["items"].(map[string]any)
	if !ok {
		return fmt.Errorf("embedded case schema: items is not an object")
	}
	props, ok := items["properties"].(map[string]any)
	if !ok {
		return fmt.Errorf("embedded case schema: items.properties is not an object")
	}
	props[lineMarkerField] = map[string]any{
		"type":        "integer",
		"description": "1-based line where the case starts in its source file",
	}
	return nil
}

// validateDocuments checks the whole batch against the case schema before any
// single document is processed.
func validateDocuments(docs []Document) error {
	schema, err := loadCaseSchema()
	if err != nil {
		return err
	}

	instance := make([]any, 0, len(docs))
	for _, doc := range docs {
		fields := make(map[string]any, len(doc.Fields)+1)
		for k, v := range doc.Fields {
			fields[k] = v
		}
		fields[lineMarkerField] = doc.Line
		instance = append(instance, fields)
	}

	if err := schema.Validate(instance); err != nil {
		file := ""
		if len(docs) > 0 {
			file = docs[0].File
		}
		return &ValidationError{File: file, Err: err}
	}
	return nil
}
