// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package "chunk" frames the log entries of one flush into the binary
// chunk that is handed to the writer.
//
// The file "chunk.go" provides the CBOR framing of entries. Two shapes
// exist: "[tag, time, record]" when source timestamps are kept and
// "[tag, record]" when they are not.
package chunk

import (
	"bytes"
	"io"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Shape selects how entries are framed inside a chunk.
type Shape int

const (
	// ShapeWithTime frames entries as [tag, time, record].
	ShapeWithTime Shape = iota
	// ShapeWithoutTime frames entries as [tag, record].
	ShapeWithoutTime
)

// ShapeFor maps the "use_source_timestamp" option to a shape.
func ShapeFor(useSourceTimestamp bool) Shape {
	if useSourceTimestamp {
		return ShapeWithTime
	}
	return ShapeWithoutTime
}

func (s Shape) String() string {
	switch s {
	case ShapeWithTime:
		return "tag_time_record"
	case ShapeWithoutTime:
		return "tag_record"
	}
	return "unknown"
}

// Entry is one log record together with its routing tag. Time is the
// zero value for chunks framed with ShapeWithoutTime.
type Entry struct {
	Tag    string
	Time   time.Time
	Record Record
}

type timedEntry struct {
	_      struct{} `cbor:",toarray"`
	Tag    string
	Time   int64
	Record Record
}

type untimedEntry struct {
	_      struct{} `cbor:",toarray"`
	Tag    string
	Record Record
}

var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("chunk: CBOR encoder initialization failed: " + err.Error())
	}

	// Nested record values decode as map[string]any so that they can
	// be rendered with encoding/json.
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("chunk: CBOR decoder initialization failed: " + err.Error())
	}
}

// Chunk is an immutable, encoded sequence of entries.
type Chunk struct {
	id    uuid.UUID
	shape Shape
	count int
	data  []byte
}

// UniqueID identifies the chunk in logs and acknowledgements.
func (c *Chunk) UniqueID() uuid.UUID {
	return c.id
}

// Shape returns the framing shape of the chunk.
func (c *Chunk) Shape() Shape {
	return c.shape
}

// Len returns the number of entries in the chunk.
func (c *Chunk) Len() int {
	return c.count
}

// Size returns the encoded size of the chunk in bytes.
func (c *Chunk) Size() int {
	return len(c.data)
}

// Each decodes the entries in order and calls fn for each one. Decoding
// stops at the first error returned by fn.
func (c *Chunk) Each(fn func(Entry) error) error {
	dec := decMode.NewDecoder(bytes.NewReader(c.data))
	for i := 0; ; i++ {
		entry, err := decodeEntry(dec, c.shape)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "decoding entry %d of chunk %s", i, c.id)
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
}

func decodeEntry(dec *cbor.Decoder, shape Shape) (Entry, error) {
	if shape == ShapeWithTime {
		var te timedEntry
		if err := dec.Decode(&te); err != nil {
			return Entry{}, err
		}
		entry := Entry{Tag: te.Tag, Record: te.Record}
		if te.Time != 0 {
			entry.Time = time.Unix(0, te.Time).UTC()
		}
		return entry, nil
	}
	var ue untimedEntry
	if err := dec.Decode(&ue); err != nil {
		return Entry{}, err
	}
	return Entry{Tag: ue.Tag, Record: ue.Record}, nil
}

// Builder accumulates entries into a chunk.
type Builder struct {
	shape Shape
	buf   bytes.Buffer
	enc   *cbor.Encoder
	count int
}

// NewBuilder returns a builder framing entries with the given shape.
func NewBuilder(shape Shape) *Builder {
	b := &Builder{shape: shape}
	b.enc = encMode.NewEncoder(&b.buf)
	return b
}

// Add encodes one entry.
func (b *Builder) Add(e Entry) error {
	var err error
	if b.shape == ShapeWithTime {
		var nanos int64
		if !e.Time.IsZero() {
			nanos = e.Time.UnixNano()
		}
		err = b.enc.Encode(timedEntry{Tag: e.Tag, Time: nanos, Record: e.Record})
	} else {
		err = b.enc.Encode(untimedEntry{Tag: e.Tag, Record: e.Record})
	}
	if err != nil {
		return errors.Wrapf(err, "encoding entry with tag %q", e.Tag)
	}
	b.count++
	return nil
}

// Build seals the accumulated entries into a chunk with a fresh id.
func (b *Builder) Build() *Chunk {
	data := make([]byte, b.buf.Len())
	copy(data, b.buf.Bytes())
	return &Chunk{
		id:    uuid.New(),
		shape: b.shape,
		count: b.count,
		data:  data,
	}
}
