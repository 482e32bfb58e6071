// Package jsondoc provides shallow JSON document merging, shared by ledger
// metadata updates and profile patches.
package jsondoc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidDocument is returned when a non-empty text input is not
// well-formed JSON.
var ErrInvalidDocument = errors.New("invalid JSON document")

// Document is a parsed top-level JSON object.
type Document map[string]interface{}

// Parse normalizes an input into a Document. Accepted inputs: nil (empty
// document), a pre-parsed map, raw bytes, or serialized text. Nested objects
// stay as-is; only the top level is typed.
func Parse(input interface{}) (Document, error) {
	switch v := input.(type) {
	case nil:
		return Document{}, nil
	case Document:
		if v == nil {
			return Document{}, nil
		}
		return v, nil
	case map[string]interface{}:
		if v == nil {
			return Document{}, nil
		}
		return Document(v), nil
	case []byte:
		return parseText(string(v))
	case string:
		return parseText(v)
	default:
		return nil, fmt.Errorf("%w: unsupported input type %T", ErrInvalidDocument, input)
	}
}

func parseText(text string) (Document, error) {
	if text == "" {
		return Document{}, nil
	}
	var doc Document
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if doc == nil {
		// "null" parses fine but carries no keys
		return Document{}, nil
	}
	return doc, nil
}

// Merge combines two documents with override-wins semantics: top-level keys
// in patch replace identically-named keys in base, keys present only in base
// are preserved. Nested objects are replaced wholesale, not deep-merged.
func Merge(base, patch Document) Document {
	merged := make(Document, len(base)+len(patch))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

// MergeInputs parses both inputs and merges them. Either input may be absent
// or arrive as serialized text.
func MergeInputs(base, patch interface{}) (Document, error) {
	baseDoc, err := Parse(base)
	if err != nil {
		return nil, err
	}
	patchDoc, err := Parse(patch)
	if err != nil {
		return nil, err
	}
	return Merge(baseDoc, patchDoc), nil
}
