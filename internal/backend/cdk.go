// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package "backend" provides access to the container of append blobs that
// the exporter writes to.
//
// The "cdk.go" file provides implementations supported via "Cloud Development Kit":
// https://pkg.go.dev/gocloud.dev/blob
//
// CDK buckets have no append primitive. Appends are emulated with a
// read-modify-write under a lock, which is only safe when a single process
// writes to the bucket.
package backend

import (
	"context"
	"encoding/base64"
	"io"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
)

const (
	// containerMarker is written under the container prefix to record that
	// the container exists, along with its access policy.
	containerMarker = ".container"

	blobTypeKey     = "blobtype"
	appendBlobType  = "appendblob"
	accessPolicyKey = "publicaccess"

	cdkPageSize = 1000
)

// An implementation of "AppendBlobStore" that is implemented using the CDK.
// The container is a key prefix of the bucket.
type cdkStore struct {
	bucket   *blob.Bucket
	pageSize int

	mu sync.Mutex
}

var _ AppendBlobStore = (*cdkStore)(nil)

func openCDKStore(ctx context.Context, settings Settings) (AppendBlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, settings.ServiceURI())
	if err != nil {
		return nil, errors.Wrapf(err, "opening bucket %q", settings.ServiceURI())
	}
	return newCDKStore(bucket, settings.Container, cdkPageSize), nil
}

func newCDKStore(bucket *blob.Bucket, containerName string, pageSize int) *cdkStore {
	if containerName != "" {
		bucket = blob.PrefixedBucket(bucket, strings.TrimSuffix(containerName, "/")+"/")
	}
	return &cdkStore{bucket: bucket, pageSize: pageSize}
}

func translateCDKError(err error) error {
	if err != nil && gcerrors.Code(err) == gcerrors.NotFound {
		return errors.Mark(err, ErrNotFound)
	}
	return err
}

// "GetContainerProperties" implements "AppendBlobStore.GetContainerProperties".
func (s *cdkStore) GetContainerProperties(ctx context.Context) error {
	_, err := s.bucket.Attributes(ctx, containerMarker)
	return translateCDKError(err)
}

// "CreateContainer" implements "AppendBlobStore.CreateContainer".
func (s *cdkStore) CreateContainer(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.bucket.Exists(ctx, containerMarker)
	if err != nil || exists {
		return err
	}
	return s.bucket.WriteAll(ctx, containerMarker, nil, &blob.WriterOptions{
		ContentType: "application/octet-stream",
	})
}

// "SetContainerAccessPolicy" implements "AppendBlobStore.SetContainerAccessPolicy".
// The policy is only recorded; CDK buckets have no anonymous access setting.
func (s *cdkStore) SetContainerAccessPolicy(ctx context.Context, access PublicAccess) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.bucket.WriteAll(ctx, containerMarker, nil, &blob.WriterOptions{
		ContentType: "application/octet-stream",
		Metadata:    map[string]string{accessPolicyKey: string(access)},
	})
}

func (s *cdkStore) attributes(ctx context.Context, name string) (*blob.Attributes, error) {
	attrs, err := s.bucket.Attributes(ctx, name)
	if err != nil {
		return nil, translateCDKError(err)
	}
	if attrs.Metadata[blobTypeKey] != appendBlobType {
		return nil, errors.Wrapf(ErrNotAppendBlob, "blob %q", name)
	}
	return attrs, nil
}

// "GetBlobProperties" implements "AppendBlobStore.GetBlobProperties".
func (s *cdkStore) GetBlobProperties(ctx context.Context, name string) (Properties, error) {
	attrs, err := s.attributes(ctx, name)
	if err != nil {
		return Properties{}, err
	}
	return Properties{Size: attrs.Size}, nil
}

func (s *cdkStore) write(ctx context.Context, name string, data []byte) error {
	return s.bucket.WriteAll(ctx, name, data, &blob.WriterOptions{
		ContentType:                 contentTypeFor(name),
		DisableContentTypeDetection: true,
		Metadata:                    map[string]string{blobTypeKey: appendBlobType},
	})
}

// "CreateAppendBlob" implements "AppendBlobStore.CreateAppendBlob".
func (s *cdkStore) CreateAppendBlob(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exists, err := s.bucket.Exists(ctx, name)
	if err != nil || exists {
		return false, err
	}
	if err := s.write(ctx, name, nil); err != nil {
		return false, err
	}
	return true, nil
}

// "ListPage" implements "AppendBlobStore.ListPage". Cursors are the
// base64 form of the CDK page token.
func (s *cdkStore) ListPage(ctx context.Context, prefix string, cursor string) (ListPage, error) {
	token := blob.FirstPageToken
	if cursor != "" {
		decoded, err := base64.RawURLEncoding.DecodeString(cursor)
		if err != nil {
			return ListPage{}, errors.Wrapf(err, "decoding list cursor %q", cursor)
		}
		token = decoded
	}

	objects, next, err := s.bucket.ListPage(ctx, token, s.pageSize, &blob.ListOptions{Prefix: prefix})
	if err != nil {
		return ListPage{}, translateCDKError(err)
	}
	var page ListPage
	for _, obj := range objects {
		if obj.IsDir || obj.Key == containerMarker {
			continue
		}
		page.Names = append(page.Names, obj.Key)
	}
	if len(next) > 0 {
		page.Next = base64.RawURLEncoding.EncodeToString(next)
	}
	return page, nil
}

// "AppendBlock" implements "AppendBlobStore.AppendBlock".
func (s *cdkStore) AppendBlock(ctx context.Context, name string, data []byte, opts AppendOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	attrs, err := s.attributes(ctx, name)
	if err != nil {
		return err
	}
	if opts.ExpectedOffset != nil && *opts.ExpectedOffset != attrs.Size {
		return errors.Wrapf(ErrAppendPositionMismatch,
			"blob %q has size %d, expected %d", name, attrs.Size, *opts.ExpectedOffset)
	}
	existing, err := s.bucket.ReadAll(ctx, name)
	if err != nil {
		return translateCDKError(err)
	}
	return s.write(ctx, name, append(existing, data...))
}

// "ReadRange" implements "AppendBlobStore.ReadRange".
func (s *cdkStore) ReadRange(ctx context.Context, name string, offset int64, count int64) ([]byte, error) {
	if count == 0 {
		return []byte{}, nil
	}
	r, err := s.bucket.NewRangeReader(ctx, name, offset, count, nil)
	if err != nil {
		return nil, translateCDKError(err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrapf(err, "reading blob %q", name)
	}
	return data, nil
}

// "Close" implements "AppendBlobStore.Close".
func (s *cdkStore) Close() error {
	return s.bucket.Close()
}
