// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package "chunk" frames the log entries of one flush into the binary
// chunk that is handed to the writer.
//
// The file "record.go" provides the ordered field list of a log record.
package chunk

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Field is a single named value of a record.
type Field struct {
	_     struct{} `cbor:",toarray"`
	Key   string
	Value any
}

// Record is an ordered list of fields. Order is significant: the record
// formatter parses the stringified record positionally.
type Record []Field

// Get returns the value stored under key, if present.
func (r Record) Get(key string) (any, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under key in place, or appends a new field.
func (r *Record) Set(key string, value any) {
	for i := range *r {
		if (*r)[i].Key == key {
			(*r)[i].Value = value
			return
		}
	}
	*r = append(*r, Field{Key: key, Value: value})
}

// String renders the record as `{"key"=>value, "key2"=>value2}`. Keys
// and string values are JSON-quoted; other values use their JSON form.
func (r Record) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quote(f.Key))
		b.WriteString("=>")
		b.WriteString(renderValue(f.Value))
	}
	b.WriteByte('}')
	return b.String()
}

func quote(s string) string {
	encoded, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%q", s)
	}
	return string(encoded)
}

func renderValue(v any) string {
	if v == nil {
		return "null"
	}
	if s, ok := v.(string); ok {
		return quote(s)
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return quote(fmt.Sprint(v))
	}
	return string(encoded)
}
