package task

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaVersion is the current document schema version.
const SchemaVersion = 1

// Document is the versioned JSON form of a task collection, shared by the
// JSON backend and the JSON exporter.
type Document struct {
	SchemaVersion int    `json:"schema_version" yaml:"schema_version"`
	Tasks         []Task `json:"tasks" yaml:"tasks"`
}

// DocumentSchema is the JSON Schema a Document must satisfy.
const DocumentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["schema_version", "tasks"],
  "properties": {
    "schema_version": {"const": 1},
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "title", "status", "priority", "progress", "sort_order", "created_at", "updated_at"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "title": {"type": "string"},
          "description": {"type": "string"},
          "tags": {"type": "array", "items": {"type": "string"}},
          "notes": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["content", "created_at"],
              "properties": {
                "content": {"type": "string"},
                "created_at": {"type": "string", "format": "date-time"}
              }
            }
          },
          "status": {"enum": ["pending", "in_progress", "completed", "cancelled"]},
          "priority": {"enum": ["low", "medium", "high", "today"]},
          "progress": {"type": "integer", "minimum": 0, "maximum": 100},
          "due_date": {"type": "string", "format": "date-time"},
          "parent_task_id": {"type": "string"},
          "sort_order": {"type": "integer"},
          "project_id": {"type": "string"},
          "deleted": {"type": "boolean"},
          "created_at": {"type": "string", "format": "date-time"},
          "updated_at": {"type": "string", "format": "date-time"}
        }
      }
    }
  }
}`

const schemaURL = "taskhub://document.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func documentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		if err := compiler.AddResource(schemaURL, strings.NewReader(DocumentSchema)); err != nil {
			schemaErr = fmt.Errorf("add document schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// NewDocument wraps tasks in a document of the current version.
func NewDocument(tasks []Task) *Document {
	if tasks == nil {
		tasks = []Task{}
	}
	return &Document{SchemaVersion: SchemaVersion, Tasks: tasks}
}

// DecodeDocument parses and validates a document. The raw JSON is checked
// against DocumentSchema before it is decoded into Go values.
func DecodeDocument(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if err := ValidateRaw(raw); err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	if doc.Tasks == nil {
		doc.Tasks = []Task{}
	}
	return &doc, nil
}

// LoadDocument reads and validates a document from path.
func LoadDocument(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	return DecodeDocument(f)
}

// Encode writes the document with 2-space indentation and a trailing newline.
func (d *Document) Encode(w io.Writer) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Marshal returns the indented JSON form of the document.
func (d *Document) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return append(data, '\n'), nil
}

// ValidateRaw validates decoded JSON against DocumentSchema and returns a
// ValidationError pointing at the first offending location.
func ValidateRaw(raw interface{}) error {
	schema, err := documentSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(raw); err != nil {
		ve, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return &ValidationError{Err: err}
		}
		leaf := firstLeaf(ve)
		return &ValidationError{
			Field: jsonPointerToPath(leaf.InstanceLocation),
			Err:   fmt.Errorf("%s", leaf.Message),
		}
	}
	return nil
}

func firstLeaf(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	return err
}

func jsonPointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}

	path := ""
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			path += fmt.Sprintf("[%d]", idx)
			continue
		}
		if path == "" {
			path = part
		} else {
			path += "." + part
		}
	}
	return path
}
