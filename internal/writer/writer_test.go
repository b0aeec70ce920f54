// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package writer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/backend"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/backend/backendtest"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/blobname"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/chunk"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/recordfmt"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/rotation"
)

var (
	resolver = blobname.Resolver{ResourceID: "vm", IdentityHash: "h"}
	hour1    = time.Date(2024, 3, 9, 16, 5, 0, 0, time.UTC)
	hour2    = hour1.Add(time.Hour)
)

// testAcks records acknowledged chunk ids.
type testAcks struct {
	ids   []uuid.UUID
	mutex sync.Mutex
}

func (a *testAcks) ack(id uuid.UUID) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.ids = append(a.ids, id)
}

func (a *testAcks) count() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return len(a.ids)
}

func fixedClock(times ...time.Time) func() time.Time {
	var mu sync.Mutex
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := times[0]
		if len(times) > 1 {
			times = times[1:]
		}
		return t
	}
}

func newWriter(store *backendtest.Store, acks *testAcks, logger *zap.Logger, now func() time.Time) *Writer {
	return &Writer{
		Controller: &rotation.Controller{
			Store:    store,
			Resolver: resolver,
			Access:   backend.PublicAccessContainer,
			Logger:   logger,
		},
		Formatter: &recordfmt.Formatter{
			ResourceID:   "vm",
			DeploymentID: "d1",
			Host:         "host-1",
			Now:          now,
		},
		Ack:    acks.ack,
		Logger: logger,
		Now:    now,
	}
}

func fileEntry(message string) chunk.Entry {
	return chunk.Entry{
		Tag:    "system.file.x.y",
		Time:   hour1,
		Record: chunk.Record{{Key: "message", Value: message}},
	}
}

func syslogEntry() chunk.Entry {
	return chunk.Entry{
		Tag:  "system.syslog.Error.Critical",
		Time: hour1,
		Record: chunk.Record{
			{Key: "host", Value: "vm-1"},
			{Key: "ident", Value: "sshd"},
			{Key: "pid", Value: "42"},
			{Key: "message", Value: "accepted"},
			{Key: "facility", Value: "auth"},
			{Key: "severity", Value: "crit"},
			{Key: "a", Value: int64(1)},
			{Key: "b", Value: int64(2)},
			{Key: "c", Value: int64(3)},
		},
	}
}

func buildChunk(t *testing.T, entries ...chunk.Entry) *chunk.Chunk {
	b := chunk.NewBuilder(chunk.ShapeWithTime)
	for _, e := range entries {
		require.NoError(t, b.Add(e))
	}
	return b.Build()
}

func sealAndParse(t *testing.T, store *backendtest.Store, name string) *fastjson.Value {
	content, ok := store.Blob(name)
	require.True(t, ok)
	var p fastjson.Parser
	v, err := p.Parse(content + recordfmt.SealSuffix)
	require.NoError(t, err, content)
	return v
}

func TestEmptyChunkMakesNoCalls(t *testing.T) {
	store := backendtest.NewStore()
	acks := &testAcks{}
	w := newWriter(store, acks, zap.NewNop(), fixedClock(hour1))

	require.NoError(t, w.Write(context.Background(), buildChunk(t)))
	assert.Empty(t, store.Calls())
	assert.Zero(t, acks.count())
}

func TestWriteFramesRecordsAcrossFlushes(t *testing.T) {
	store := backendtest.NewStore()
	acks := &testAcks{}
	w := newWriter(store, acks, zap.NewNop(), fixedClock(hour1))
	ctx := context.Background()

	first := buildChunk(t, fileEntry("hello"), syslogEntry())
	require.NoError(t, w.Write(ctx, first))
	require.NoError(t, w.Write(ctx, buildChunk(t, fileEntry("again"))))

	appends := store.CallsTo(backendtest.OpAppendBlock)
	require.Len(t, appends, 2)
	assert.Regexp(t, `^\{"records":\[\n\{`, string(appends[0].Data))
	assert.Regexp(t, `^,\n\{`, string(appends[1].Data))
	assert.Equal(t, 2, acks.count())
	assert.Equal(t, first.UniqueID(), acks.ids[0])

	v := sealAndParse(t, store, resolver.Resolve(hour1))
	records := v.GetArray("records")
	require.Len(t, records, 3)
	assert.Equal(t, "hello", string(records[0].GetStringBytes("properties", "message")))
	assert.Equal(t, "2024-03-09T16:05:00Z", string(records[0].GetStringBytes("properties", DefaultTimestampField)))
	assert.Equal(t, "LinuxSyslogEvent", string(records[1].GetStringBytes("operationName")))
	assert.Nil(t, records[1].Get("properties", "ident"))
	assert.Equal(t, "again", string(records[2].GetStringBytes("properties", "message")))
}

func TestCustomTimestampField(t *testing.T) {
	store := backendtest.NewStore()
	w := newWriter(store, &testAcks{}, zap.NewNop(), fixedClock(hour1))
	w.TimestampField = "ingested"

	require.NoError(t, w.Write(context.Background(), buildChunk(t, fileEntry("x"))))
	v := sealAndParse(t, store, resolver.Resolve(hour1))
	assert.Equal(t, "2024-03-09T16:05:00Z", string(v.GetStringBytes("records", "0", "properties", "ingested")))
}

func TestMalformedRecordFailsWholeChunk(t *testing.T) {
	store := backendtest.NewStore()
	acks := &testAcks{}
	w := newWriter(store, acks, zap.NewNop(), fixedClock(hour1))

	err := w.Write(context.Background(), buildChunk(t, fileEntry("fine"), fileEntry("a, b")))
	assert.True(t, errors.Is(err, recordfmt.ErrMalformedRecord), "got %v", err)
	assert.Empty(t, store.CallsTo(backendtest.OpAppendBlock))
	assert.Zero(t, acks.count())
}

func TestAppendFailureIsReturnedWhenAckingAfterAppend(t *testing.T) {
	store := backendtest.NewStore()
	store.Inject(backendtest.OpAppendBlock, errors.New("503 server busy"))
	acks := &testAcks{}
	w := newWriter(store, acks, zap.NewNop(), fixedClock(hour1))

	err := w.Write(context.Background(), buildChunk(t, fileEntry("x")))
	assert.ErrorContains(t, err, "503 server busy")
	assert.Zero(t, acks.count())

	require.NoError(t, w.Write(context.Background(), buildChunk(t, fileEntry("x"))))
	assert.Equal(t, 1, acks.count())
	sealAndParse(t, store, resolver.Resolve(hour1))
}

func TestAppendFailureAfterEarlyAckIsLogged(t *testing.T) {
	store := backendtest.NewStore()
	store.Inject(backendtest.OpAppendBlock, errors.New("503 server busy"))
	core, logs := observer.New(zapcore.ErrorLevel)
	acks := &testAcks{}
	w := newWriter(store, acks, zap.New(core), fixedClock(hour1))
	w.AckBeforeAppend = true

	c := buildChunk(t, fileEntry("x"))
	require.NoError(t, w.Write(context.Background(), c))
	assert.Equal(t, 1, acks.count())

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, c.UniqueID().String(), entries[0].ContextMap()["chunkID"])
	assert.Contains(t, entries[0].ContextMap()["backendError"], "503 server busy")
}

func TestPrepareFailureIsNeverAcked(t *testing.T) {
	store := backendtest.NewStore()
	store.Inject(backendtest.OpGetContainerProperties, errors.New("403"))
	acks := &testAcks{}
	w := newWriter(store, acks, zap.NewNop(), fixedClock(hour1))
	w.AckBeforeAppend = true

	assert.Error(t, w.Write(context.Background(), buildChunk(t, fileEntry("x"))))
	assert.Zero(t, acks.count())
}

func TestConcurrentAppendIsReframed(t *testing.T) {
	name := resolver.Resolve(hour1)
	store := backendtest.NewStore()
	competitor := `{"competitor" : true}`
	raced := false
	store.BeforeAppend = func(n string) {
		if !raced {
			raced = true
			store.Write(n, recordfmt.OpenDocument+competitor)
		}
	}
	w := newWriter(store, &testAcks{}, zap.NewNop(), fixedClock(hour1))

	require.NoError(t, w.Write(context.Background(), buildChunk(t, fileEntry("mine"))))

	appends := store.CallsTo(backendtest.OpAppendBlock)
	require.Len(t, appends, 2)
	assert.Regexp(t, `^,\n\{`, string(appends[1].Data))

	records := sealAndParse(t, store, name).GetArray("records")
	require.Len(t, records, 2)
	assert.True(t, records[0].GetBool("competitor"))
	assert.Equal(t, "mine", string(records[1].GetStringBytes("properties", "message")))
}

func TestAppendToSealedTargetMovesToCurrentHour(t *testing.T) {
	store := backendtest.NewStore()
	store.BeforeAppend = func(n string) {
		if n == resolver.Resolve(hour1) {
			if content, _ := store.Blob(n); content == "" {
				store.Write(n, recordfmt.EmptyDocument)
			}
		}
	}
	w := newWriter(store, &testAcks{}, zap.NewNop(), fixedClock(hour1, hour2))

	require.NoError(t, w.Write(context.Background(), buildChunk(t, fileEntry("late"))))

	sealed, _ := store.Blob(resolver.Resolve(hour1))
	assert.Equal(t, recordfmt.EmptyDocument, sealed)
	records := sealAndParse(t, store, resolver.Resolve(hour2)).GetArray("records")
	require.Len(t, records, 1)
	assert.Equal(t, "late", string(records[0].GetStringBytes("properties", "message")))
}

func TestAppendGivesUpAfterRepeatedConflicts(t *testing.T) {
	store := backendtest.NewStore()
	store.BeforeAppend = func(n string) {
		content, _ := store.Blob(n)
		if content == "" {
			store.Write(n, recordfmt.OpenDocument+`{}`)
		} else {
			store.Write(n, recordfmt.Separator+`{}`)
		}
	}
	w := newWriter(store, &testAcks{}, zap.NewNop(), fixedClock(hour1))
	w.MaxAppendAttempts = 2

	err := w.Write(context.Background(), buildChunk(t, fileEntry("x")))
	assert.True(t, errors.Is(err, backend.ErrAppendPositionMismatch), "got %v", err)
	assert.Len(t, store.CallsTo(backendtest.OpAppendBlock), 2)
}
