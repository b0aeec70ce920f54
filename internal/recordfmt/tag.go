// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package "recordfmt" renders log records into the JSON object fragments
// that make up an append blob document.
//
// The file "tag.go" parses routing tags.
package recordfmt

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrMalformedRecord marks a record whose tag or body does not have the
// expected shape. A single malformed record fails the whole batch.
var ErrMalformedRecord = errors.New("malformed record")

// Tag is the four-part routing tag "system.operationName.category.level".
type Tag struct {
	System    string
	Operation string
	Category  string
	Level     string
}

// ParseTag splits a dotted routing tag. Tokens past the fourth are
// ignored.
func ParseTag(s string) (Tag, error) {
	tokens := strings.Split(s, ".")
	if len(tokens) < 4 {
		return Tag{}, errors.Mark(
			errors.Newf("tag %q has %d dotted tokens, want 4", s, len(tokens)),
			ErrMalformedRecord)
	}
	return Tag{
		System:    tokens[0],
		Operation: tokens[1],
		Category:  tokens[2],
		Level:     tokens[3],
	}, nil
}

// IsFile reports whether the tag routes a file-shaped record.
func (t Tag) IsFile() bool {
	return t.Operation == "file"
}

func (t Tag) String() string {
	return t.System + "." + t.Operation + "." + t.Category + "." + t.Level
}
