// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package "writer" turns one chunk of log entries into a single append to
// the current hour's blob.
package writer

import (
	"bytes"
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/backend"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/chunk"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/recordfmt"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/rotation"
)

const (
	// DefaultTimestampField is the record field that receives the ingest
	// timestamp.
	DefaultTimestampField = "FluentdIngestTimestamp"

	defaultMaxAppendAttempts = 3
)

// Writer renders chunks and appends them. It keeps no state between calls
// and may be used by concurrent flushes.
type Writer struct {
	Controller *rotation.Controller
	Formatter  *recordfmt.Formatter

	// TimestampField defaults to DefaultTimestampField.
	TimestampField string

	// AckBeforeAppend acknowledges a chunk before its append is issued. A
	// failed append is then logged and the chunk is lost.
	AckBeforeAppend bool
	// Ack is called once per written chunk, if set.
	Ack func(chunkID uuid.UUID)

	Logger *zap.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	// MaxAppendAttempts bounds appends rejected for a changed blob size.
	MaxAppendAttempts int
}

func (w *Writer) now() time.Time {
	if w.Now != nil {
		return w.Now().UTC()
	}
	return time.Now().UTC()
}

func (w *Writer) logger() *zap.Logger {
	if w.Logger == nil {
		return zap.NewNop()
	}
	return w.Logger
}

func (w *Writer) ack(id uuid.UUID) {
	if w.Ack != nil {
		w.Ack(id)
	}
}

// Write appends every entry of c to the blob of the current hour. An empty
// chunk makes no remote calls. A malformed record fails the whole chunk
// with an error marked recordfmt.ErrMalformedRecord.
func (w *Writer) Write(ctx context.Context, c *chunk.Chunk) error {
	if c.Len() == 0 {
		return nil
	}

	now := w.now()
	body, err := w.render(c, now)
	if err != nil {
		return err
	}

	target, err := w.Controller.Prepare(ctx, now)
	if err != nil {
		return err
	}

	if w.AckBeforeAppend {
		w.ack(c.UniqueID())
	}
	err = w.appendBody(ctx, target, body, c.UniqueID())
	switch {
	case err == nil:
		if !w.AckBeforeAppend {
			w.ack(c.UniqueID())
		}
		return nil
	case w.AckBeforeAppend:
		w.logger().Error("[Write] Append failed after the chunk was acknowledged; records are lost.",
			zap.String("chunkID", c.UniqueID().String()),
			zap.String("blobName", target.Name),
			zap.Int("records", c.Len()),
			zap.Int("dataSizeBytes", len(body)),
			zap.NamedError("backendError", err))
		return nil
	default:
		return err
	}
}

func (w *Writer) render(c *chunk.Chunk, now time.Time) ([]byte, error) {
	field := w.TimestampField
	if field == "" {
		field = DefaultTimestampField
	}
	ingested := now.Format(recordfmt.TimestampLayout)

	var body bytes.Buffer
	i := 0
	err := c.Each(func(e chunk.Entry) error {
		e.Record.Set(field, ingested)
		fragment, err := w.Formatter.Format(e.Tag, e.Record.String())
		if err != nil {
			return errors.Wrapf(err, "formatting record %d of chunk %s with tag %q", i, c.UniqueID(), e.Tag)
		}
		if i > 0 {
			body.WriteString(recordfmt.Separator)
		}
		body.Write(fragment)
		i++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body.Bytes(), nil
}

// appendBody issues the append conditioned on the probed size. When the
// blob changed meanwhile, the target is probed again and only the lead is
// rendered anew; a target sealed in the meantime is replaced by the
// current hour's blob.
func (w *Writer) appendBody(ctx context.Context, target rotation.Target, body []byte, id uuid.UUID) error {
	attempts := w.MaxAppendAttempts
	if attempts <= 0 {
		attempts = defaultMaxAppendAttempts
	}

	store := w.Controller.Store
	for attempt := 1; ; attempt++ {
		lead := target.Framing.Lead()
		payload := make([]byte, 0, len(lead)+len(body))
		payload = append(payload, lead...)
		payload = append(payload, body...)

		err := store.AppendBlock(ctx, target.Name, payload, backend.AppendOptions{ExpectedOffset: target.ExpectedOffset()})
		if err == nil {
			w.logger().Debug("[Write] Appended chunk.",
				zap.String("chunkID", id.String()),
				zap.String("blobName", target.Name),
				zap.Stringer("framing", target.Framing),
				zap.Int("dataSizeBytes", len(payload)))
			return nil
		}
		if !errors.Is(err, backend.ErrAppendPositionMismatch) || attempt >= attempts {
			return errors.Wrapf(err, "appending chunk %s to blob %q", id, target.Name)
		}

		w.logger().Debug("[Write] Blob changed before append; probing again.",
			zap.String("chunkID", id.String()),
			zap.String("blobName", target.Name),
			zap.Int("attempt", attempt))
		target, err = w.Controller.Refresh(ctx, target)
		if err != nil {
			return err
		}
		if target.Sealed {
			target, err = w.Controller.Prepare(ctx, w.now())
			if err != nil {
				return err
			}
		}
	}
}
