// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
)

func newMemStore(t *testing.T, pageSize int) *cdkStore {
	s := newCDKStore(memblob.OpenBucket(nil), "logs", pageSize)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func TestCDKContainerLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t, 10)

	err := s.GetContainerProperties(ctx)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	require.NoError(t, s.CreateContainer(ctx))
	require.NoError(t, s.CreateContainer(ctx))
	require.NoError(t, s.SetContainerAccessPolicy(ctx, PublicAccessContainer))
	assert.NoError(t, s.GetContainerProperties(ctx))

	attrs, err := s.bucket.Attributes(ctx, containerMarker)
	require.NoError(t, err)
	assert.Equal(t, "container", attrs.Metadata[accessPolicyKey])
}

func TestCDKCreateAppendBlobIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t, 10)

	created, err := s.CreateAppendBlob(ctx, "a/b.json")
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, s.AppendBlock(ctx, "a/b.json", []byte("xyz"), AppendOptions{}))

	created, err = s.CreateAppendBlob(ctx, "a/b.json")
	require.NoError(t, err)
	assert.False(t, created)

	props, err := s.GetBlobProperties(ctx, "a/b.json")
	require.NoError(t, err)
	assert.Equal(t, int64(3), props.Size)
}

func TestCDKAppendBlock(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t, 10)

	err := s.AppendBlock(ctx, "missing", []byte("x"), AppendOptions{})
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	_, err = s.CreateAppendBlob(ctx, "doc")
	require.NoError(t, err)

	zero := int64(0)
	require.NoError(t, s.AppendBlock(ctx, "doc", []byte("hello"), AppendOptions{ExpectedOffset: &zero}))

	err = s.AppendBlock(ctx, "doc", []byte(" again"), AppendOptions{ExpectedOffset: &zero})
	assert.True(t, errors.Is(err, ErrAppendPositionMismatch), "got %v", err)

	five := int64(5)
	require.NoError(t, s.AppendBlock(ctx, "doc", []byte(" world"), AppendOptions{ExpectedOffset: &five}))

	all, err := s.ReadRange(ctx, "doc", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(all))

	tail, err := s.ReadRange(ctx, "doc", 8, 3)
	require.NoError(t, err)
	assert.Equal(t, "rld", string(tail))

	empty, err := s.ReadRange(ctx, "doc", 11, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCDKRejectsNonAppendBlobs(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t, 10)
	require.NoError(t, s.bucket.WriteAll(ctx, "block.json", []byte("{}"), nil))

	_, err := s.GetBlobProperties(ctx, "block.json")
	assert.True(t, errors.Is(err, ErrNotAppendBlob), "got %v", err)
	err = s.AppendBlock(ctx, "block.json", []byte("x"), AppendOptions{})
	assert.True(t, errors.Is(err, ErrNotAppendBlob), "got %v", err)
}

func TestCDKListPagination(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t, 2)
	require.NoError(t, s.CreateContainer(ctx))
	for _, name := range []string{"p/3", "p/1", "q/9", "p/2", "p/4", "p/5"} {
		_, err := s.CreateAppendBlob(ctx, name)
		require.NoError(t, err)
	}

	var names []string
	pages := 0
	cursor := ""
	for {
		page, err := s.ListPage(ctx, "p/", cursor)
		require.NoError(t, err)
		pages++
		names = append(names, page.Names...)
		if page.Next == "" {
			break
		}
		cursor = page.Next
	}
	assert.Equal(t, []string{"p/1", "p/2", "p/3", "p/4", "p/5"}, names)
	assert.Equal(t, 3, pages)

	page, err := s.ListPage(ctx, "", "")
	require.NoError(t, err)
	assert.NotContains(t, page.Names, containerMarker)

	_, err = s.ListPage(ctx, "p/", "!!not-base64")
	assert.Error(t, err)
}
