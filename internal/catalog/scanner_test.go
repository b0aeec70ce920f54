// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/backend"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/backend/backendtest"
)

// scriptedLister serves fixed pages keyed by cursor.
type scriptedLister struct {
	pages   map[string]backend.ListPage
	cursors []string
}

func (l *scriptedLister) ListPage(_ context.Context, _ string, cursor string) (backend.ListPage, error) {
	l.cursors = append(l.cursors, cursor)
	page, ok := l.pages[cursor]
	if !ok {
		return backend.ListPage{}, errors.Newf("unexpected cursor %q", cursor)
	}
	return page, nil
}

func TestScanFollowsCursorsAcrossPages(t *testing.T) {
	l := &scriptedLister{pages: map[string]backend.ListPage{
		"":   {Names: []string{"a", "b"}, Next: "c1"},
		"c1": {Names: []string{"c", "d"}, Next: "c2"},
		"c2": {Names: []string{"e"}},
	}}
	s := &Scanner{Lister: l, Prefix: "p/"}

	r, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Last: "e", Previous: "d", Count: 5}, r)
	assert.Equal(t, []string{"", "c1", "c2"}, l.cursors)
}

func TestScanTracksPreviousAcrossPageBoundary(t *testing.T) {
	l := &scriptedLister{pages: map[string]backend.ListPage{
		"":  {Names: []string{"a"}, Next: "x"},
		"x": {Names: []string{"b"}, Next: "y"},
		"y": {},
	}}
	r, err := (&Scanner{Lister: l}).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", r.Last)
	assert.Equal(t, "a", r.Previous)
}

func TestLastOfSingleObject(t *testing.T) {
	store := backendtest.NewStore().Seed(map[string]string{"p/only": ""})
	s := &Scanner{Lister: store, Prefix: "p/"}

	last, err := s.Last(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "p/only", last)

	r, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", r.Previous)
}

func TestLastOfEmptyContainer(t *testing.T) {
	s := &Scanner{Lister: backendtest.NewStore().Seed(nil), Prefix: "p/"}
	last, err := s.Last(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", last)
}

func TestPredecessor(t *testing.T) {
	store := backendtest.NewStore().Seed(map[string]string{
		"p/h=01": "", "p/h=02": "", "p/h=04": "", "q/h=03": "",
	})
	store.PageSize = 1
	s := &Scanner{Lister: store, Prefix: "p/"}
	ctx := context.Background()

	tests := []struct {
		name string
		want string
	}{
		{"p/h=00", ""},
		{"p/h=01", ""},
		{"p/h=02", "p/h=01"},
		{"p/h=03", "p/h=02"},
		{"p/h=04", "p/h=02"},
		{"p/h=05", "p/h=04"},
	}
	for _, tt := range tests {
		got, err := s.Predecessor(ctx, tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.name)
	}
}

func TestScanPropagatesListErrors(t *testing.T) {
	store := backendtest.NewStore().Seed(map[string]string{"p/a": "", "p/b": ""})
	store.PageSize = 1
	store.Inject(backendtest.OpListPage, nil)
	store.Inject(backendtest.OpListPage, errors.New("boom"))

	_, err := (&Scanner{Lister: store, Prefix: "p/"}).Scan(context.Background())
	assert.ErrorContains(t, err, "boom")
}
