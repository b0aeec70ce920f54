// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package "backendtest" provides an in-memory "backend.AppendBlobStore"
// that records calls, for use in tests.
package backendtest

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/backend"
)

// Operation names used in Call.Op and Inject.
const (
	OpGetContainerProperties   = "GetContainerProperties"
	OpCreateContainer          = "CreateContainer"
	OpSetContainerAccessPolicy = "SetContainerAccessPolicy"
	OpGetBlobProperties        = "GetBlobProperties"
	OpCreateAppendBlob         = "CreateAppendBlob"
	OpListPage                 = "ListPage"
	OpAppendBlock              = "AppendBlock"
	OpReadRange                = "ReadRange"
)

// Call is the record of one store operation.
type Call struct {
	Op   string
	Name string
	Data []byte
}

// Store is an in-memory container of append blobs. Listing returns names
// in lexicographic order, PageSize names at a time.
type Store struct {
	// PageSize bounds the names per listing page. Zero means unbounded.
	PageSize int

	// BeforeAppend, if set, runs before an append is applied, outside the
	// store lock. Tests use it to interleave a competing writer.
	BeforeAppend func(name string)

	mu              sync.Mutex
	containerExists bool
	access          backend.PublicAccess
	blobs           map[string][]byte
	calls           []Call
	injected        map[string][]error
	closed          bool
}

var _ backend.AppendBlobStore = (*Store)(nil)

// NewStore returns an empty store whose container does not exist yet.
func NewStore() *Store {
	return &Store{
		blobs:    map[string][]byte{},
		injected: map[string][]error{},
	}
}

// Seed creates the container and the given blobs.
func (s *Store) Seed(blobs map[string]string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containerExists = true
	for name, content := range blobs {
		s.blobs[name] = []byte(content)
	}
	return s
}

// Inject queues err as the result of the next call of op.
func (s *Store) Inject(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.injected[op] = append(s.injected[op], err)
}

// Blob returns the content of a blob.
func (s *Store) Blob(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[name]
	return string(data), ok
}

// Names returns every blob name in listing order.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedNamesLocked("")
}

// Access returns the last access policy set on the container.
func (s *Store) Access() backend.PublicAccess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

// Calls returns a snapshot of the recorded calls.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the recorded calls of one operation.
func (s *Store) CallsTo(op string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Closed reports whether Close was called.
func (s *Store) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) recordLocked(op, name string, data []byte) error {
	s.calls = append(s.calls, Call{Op: op, Name: name, Data: append([]byte(nil), data...)})
	if queue := s.injected[op]; len(queue) > 0 {
		s.injected[op] = queue[1:]
		return queue[0]
	}
	return nil
}

func (s *Store) sortedNamesLocked(prefix string) []string {
	names := make([]string, 0, len(s.blobs))
	for name := range s.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *Store) GetContainerProperties(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.recordLocked(OpGetContainerProperties, "", nil); err != nil {
		return err
	}
	if !s.containerExists {
		return errors.Wrap(backend.ErrNotFound, "container")
	}
	return nil
}

func (s *Store) CreateContainer(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.recordLocked(OpCreateContainer, "", nil); err != nil {
		return err
	}
	s.containerExists = true
	return nil
}

func (s *Store) SetContainerAccessPolicy(_ context.Context, access backend.PublicAccess) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.recordLocked(OpSetContainerAccessPolicy, string(access), nil); err != nil {
		return err
	}
	s.access = access
	return nil
}

func (s *Store) GetBlobProperties(_ context.Context, name string) (backend.Properties, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.recordLocked(OpGetBlobProperties, name, nil); err != nil {
		return backend.Properties{}, err
	}
	data, ok := s.blobs[name]
	if !ok {
		return backend.Properties{}, errors.Wrapf(backend.ErrNotFound, "blob %q", name)
	}
	return backend.Properties{Size: int64(len(data))}, nil
}

func (s *Store) CreateAppendBlob(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.recordLocked(OpCreateAppendBlob, name, nil); err != nil {
		return false, err
	}
	if !s.containerExists {
		return false, errors.Wrap(backend.ErrNotFound, "container")
	}
	if _, ok := s.blobs[name]; ok {
		return false, nil
	}
	s.blobs[name] = []byte{}
	return true, nil
}

// ListPage implements "backend.AppendBlobStore.ListPage". Cursors are the
// decimal offset of the next name.
func (s *Store) ListPage(_ context.Context, prefix string, cursor string) (backend.ListPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.recordLocked(OpListPage, cursor, nil); err != nil {
		return backend.ListPage{}, err
	}

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return backend.ListPage{}, errors.Wrapf(err, "bad cursor %q", cursor)
		}
		start = n
	}
	names := s.sortedNamesLocked(prefix)
	if start > len(names) {
		start = len(names)
	}
	end := len(names)
	if s.PageSize > 0 && start+s.PageSize < end {
		end = start + s.PageSize
	}
	page := backend.ListPage{Names: names[start:end]}
	if end < len(names) {
		page.Next = strconv.Itoa(end)
	}
	return page, nil
}

func (s *Store) AppendBlock(_ context.Context, name string, data []byte, opts backend.AppendOptions) error {
	if s.BeforeAppend != nil {
		s.BeforeAppend(name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.recordLocked(OpAppendBlock, name, data); err != nil {
		return err
	}
	existing, ok := s.blobs[name]
	if !ok {
		return errors.Wrapf(backend.ErrNotFound, "blob %q", name)
	}
	if opts.ExpectedOffset != nil && *opts.ExpectedOffset != int64(len(existing)) {
		return errors.Wrapf(backend.ErrAppendPositionMismatch,
			"blob %q has size %d, expected %d", name, len(existing), *opts.ExpectedOffset)
	}
	s.blobs[name] = append(existing, data...)
	return nil
}

func (s *Store) ReadRange(_ context.Context, name string, offset int64, count int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.recordLocked(OpReadRange, name, nil); err != nil {
		return nil, err
	}
	data, ok := s.blobs[name]
	if !ok {
		return nil, errors.Wrapf(backend.ErrNotFound, "blob %q", name)
	}
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	end := int64(len(data))
	if count >= 0 && offset+count < end {
		end = offset + count
	}
	return append([]byte(nil), data[offset:end]...), nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Write appends data to a blob without recording a call, creating the
// blob if needed. Tests use it to play a competing writer.
func (s *Store) Write(name string, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[name] = append(s.blobs[name], data...)
}
