// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package "azureappendblobexporter" provides an exporter that writes logs
// into hourly append blobs, each holding one {"records":[...]} document.
//
// The file "intake.go" converts log records into chunk entries.
package azureappendblobexporter

import (
	"time"

	"go.opentelemetry.io/collector/pdata/pcommon"
	"go.opentelemetry.io/collector/pdata/plog"

	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/chunk"
)

// bodyMessageKey holds a body that is not a map.
const bodyMessageKey = "message"

// "fieldValue" converts an attribute or body value into the value stored
// in a record field.
func fieldValue(value pcommon.Value) any {
	switch value.Type() {
	case pcommon.ValueTypeEmpty:
		return nil
	case pcommon.ValueTypeBytes:
		return string(value.Bytes().AsRaw())
	case pcommon.ValueTypeMap:
		return value.Map().AsRaw()
	case pcommon.ValueTypeSlice:
		return value.Slice().AsRaw()
	}
	return value.AsRaw()
}

// "logTag" returns the routing tag of a record, falling back to the
// resource attribute.
func logTag(tagAttribute string, resource pcommon.Resource, lr plog.LogRecord) string {
	if v, ok := lr.Attributes().Get(tagAttribute); ok {
		return v.AsString()
	}
	if v, ok := resource.Attributes().Get(tagAttribute); ok {
		return v.AsString()
	}
	return ""
}

// "logTime" returns the event time, or the zero time if the record has
// neither a timestamp nor an observed timestamp.
func logTime(lr plog.LogRecord) time.Time {
	ts := lr.Timestamp()
	if ts == 0 {
		ts = lr.ObservedTimestamp()
	}
	if ts == 0 {
		return time.Time{}
	}
	return ts.AsTime().UTC()
}

// "logRecord" lists the attributes (without the tag) followed by the body.
func logRecord(tagAttribute string, lr plog.LogRecord) chunk.Record {
	attrs := lr.Attributes()
	record := make(chunk.Record, 0, attrs.Len()+1)
	attrs.Range(func(k string, v pcommon.Value) bool {
		if k != tagAttribute {
			record = append(record, chunk.Field{Key: k, Value: fieldValue(v)})
		}
		return true
	})

	body := lr.Body()
	switch body.Type() {
	case pcommon.ValueTypeEmpty:
	case pcommon.ValueTypeMap:
		body.Map().Range(func(k string, v pcommon.Value) bool {
			record.Set(k, fieldValue(v))
			return true
		})
	default:
		record.Set(bodyMessageKey, fieldValue(body))
	}
	return record
}

// "logsToChunk" frames every log record of ld into one chunk.
func logsToChunk(ld plog.Logs, shape chunk.Shape, tagAttribute string) (*chunk.Chunk, error) {
	b := chunk.NewBuilder(shape)
	rls := ld.ResourceLogs()
	for i := 0; i < rls.Len(); i++ {
		rl := rls.At(i)
		sls := rl.ScopeLogs()
		for j := 0; j < sls.Len(); j++ {
			lrs := sls.At(j).LogRecords()
			for k := 0; k < lrs.Len(); k++ {
				lr := lrs.At(k)
				err := b.Add(chunk.Entry{
					Tag:    logTag(tagAttribute, rl.Resource(), lr),
					Time:   logTime(lr),
					Record: logRecord(tagAttribute, lr),
				})
				if err != nil {
					return nil, err
				}
			}
		}
	}
	return b.Build(), nil
}
