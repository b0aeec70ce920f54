// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package rotation

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/valyala/fastjson"
)

// ErrInvalidDocument marks a blob that does not hold a complete
// {"records":[...]} document.
var ErrInvalidDocument = errors.New("invalid document")

// Verify downloads a blob and checks that it parses as a document with a
// "records" array. It returns the number of records.
func (c *Controller) Verify(ctx context.Context, name string) (int, error) {
	data, err := c.Store.ReadRange(ctx, name, 0, -1)
	if err != nil {
		return 0, errors.Wrapf(err, "reading blob %q", name)
	}
	return ValidateDocument(data)
}

// ValidateDocument checks a complete document and returns its record count.
func ValidateDocument(data []byte) (int, error) {
	var p fastjson.Parser
	v, err := p.ParseBytes(data)
	if err != nil {
		return 0, errors.Mark(errors.Wrap(err, "parsing document"), ErrInvalidDocument)
	}
	records := v.Get("records")
	if records == nil || records.Type() != fastjson.TypeArray {
		return 0, errors.Mark(errors.New(`document has no "records" array`), ErrInvalidDocument)
	}
	items, _ := records.Array()
	for i, item := range items {
		if item.Type() != fastjson.TypeObject {
			return 0, errors.Mark(errors.Newf("record %d is a %s, not an object", i, item.Type()), ErrInvalidDocument)
		}
	}
	return len(items), nil
}
