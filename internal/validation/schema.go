package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-blocksync/internal/reconcile"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	ErrSchemaInvalid    = errors.New("schema invalid")
	ErrSchemaValidation = errors.New("schema validation failed")
)

// ValidationIssue captures a single validation failure.
type ValidationIssue struct {
	Location string `json:"location"`
	Message  string `json:"message"`
}

// PayloadValidationError lists every issue found in a block content payload.
type PayloadValidationError struct {
	Issues []ValidationIssue
	Cause  error
}

func (e *PayloadValidationError) Error() string {
	if len(e.Issues) == 0 {
		if e.Cause != nil {
			return e.Cause.Error()
		}
		return ErrSchemaValidation.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		location := strings.TrimSpace(issue.Location)
		if !strings.HasPrefix(location, "#") {
			location = "#" + location
		}
		if issue.Message == "" {
			parts = append(parts, location)
			continue
		}
		parts = append(parts, location+": "+issue.Message)
	}
	return strings.Join(parts, "; ")
}

func (e *PayloadValidationError) Unwrap() error {
	return ErrSchemaValidation
}

// Issues extracts validation issues from an error.
func Issues(err error) []ValidationIssue {
	if err == nil {
		return nil
	}
	var payloadErr *PayloadValidationError
	if errors.As(err, &payloadErr) && payloadErr != nil {
		return payloadErr.Issues
	}
	var validationErr *jsonschema.ValidationError
	if errors.As(err, &validationErr) && validationErr != nil {
		return collectValidationIssues(validationErr)
	}
	return []ValidationIssue{{Message: err.Error()}}
}

// Schema is a compiled content schema.
type Schema struct {
	compiled *jsonschema.Schema
}

// Compile normalizes and compiles schema. Drafts are saved while the user is
// still typing, so "required" is not enforced: only the shape of the fields
// that are present is checked. A nil Schema accepts everything.
func Compile(schema map[string]any) (*Schema, error) {
	normalized := NormalizeSchema(schema)
	if normalized == nil {
		return nil, nil
	}
	delete(normalized, "required")
	compiled, err := compileSchema(normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	return &Schema{compiled: compiled}, nil
}

// Validate checks content against the schema.
func (s *Schema) Validate(content map[string]any) error {
	if s == nil || s.compiled == nil {
		return nil
	}
	document, err := jsonDocument(content)
	if err != nil {
		return &PayloadValidationError{Issues: []ValidationIssue{{Message: err.Error()}}, Cause: err}
	}
	if err := s.compiled.Validate(document); err != nil {
		return &PayloadValidationError{Issues: Issues(err), Cause: err}
	}
	return nil
}

// NormalizeSchema converts a schema definition into a JSON schema. Besides
// plain JSON schemas it accepts a "fields" shorthand, either a list of
// {"name","type"} entries or an object mapping field names to types.
func NormalizeSchema(schema map[string]any) map[string]any {
	if len(schema) == 0 {
		return nil
	}
	if isJSONSchema(schema) {
		return reconcile.CloneRecord(schema)
	}
	properties := map[string]any{}
	switch fields := schema["fields"].(type) {
	case []any:
		for _, entry := range fields {
			switch field := entry.(type) {
			case string:
				addField(properties, map[string]any{"name": field})
			case map[string]any:
				addField(properties, field)
			}
		}
	case map[string]any:
		// {"fields": {"title": "string", "image": {"type": "object"}}}
		for name, entry := range fields {
			switch field := entry.(type) {
			case string:
				addField(properties, map[string]any{"name": name, "type": field})
			case map[string]any:
				merged := reconcile.CloneRecord(field)
				merged["name"] = name
				addField(properties, merged)
			}
		}
	default:
		return nil
	}
	if len(properties) == 0 {
		return nil
	}
	normalized := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if allowed, ok := schema["additionalProperties"].(bool); ok {
		normalized["additionalProperties"] = allowed
	}
	return normalized
}

func isJSONSchema(schema map[string]any) bool {
	for _, key := range []string{"$schema", "type", "properties", "oneOf", "anyOf", "allOf"} {
		if _, ok := schema[key]; ok {
			return true
		}
	}
	return false
}

func addField(properties map[string]any, field map[string]any) {
	name, _ := field["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if schema, ok := field["schema"].(map[string]any); ok {
		properties[name] = reconcile.CloneRecord(schema)
		return
	}
	fieldType, _ := field["type"].(string)
	switch jsonType := strings.ToLower(strings.TrimSpace(fieldType)); jsonType {
	case "string", "number", "integer", "boolean", "object", "array", "null":
		// Empty values are how users clear a field, so null is always allowed.
		properties[name] = map[string]any{"type": []any{jsonType, "null"}}
	default:
		properties[name] = map[string]any{}
	}
}

// jsonDocument round-trips content through encoding/json so the validator
// sees plain JSON types whatever Go types the caller used.
func jsonDocument(content map[string]any) (any, error) {
	if content == nil {
		content = map[string]any{}
	}
	encoded, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	decoder := json.NewDecoder(bytes.NewReader(encoded))
	decoder.UseNumber()
	var document any
	if err := decoder.Decode(&document); err != nil {
		return nil, err
	}
	return document, nil
}

func compileSchema(schema map[string]any) (*jsonschema.Schema, error) {
	encoded, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("schema.json", bytes.NewReader(encoded)); err != nil {
		return nil, err
	}
	return compiler.Compile("schema.json")
}

func collectValidationIssues(err *jsonschema.ValidationError) []ValidationIssue {
	issues := []ValidationIssue{}
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if node == nil {
			return
		}
		if len(node.Causes) == 0 {
			issues = append(issues, ValidationIssue{
				Location: strings.TrimSpace(node.InstanceLocation),
				Message:  strings.TrimSpace(node.Message),
			})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(err)
	return issues
}
