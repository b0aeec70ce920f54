// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package "backend" provides access to the container of append blobs that
// the exporter writes to.
//
// The file "azure.go" implements "AppendBlobStore" with the Azure Storage
// SDK, which exposes append blobs and conditional appends natively.
package backend

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/appendblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/cockroachdb/errors"
)

type azureStore struct {
	client *container.Client
}

var _ AppendBlobStore = (*azureStore)(nil)

// "containerURL" joins the service URI and the container name, keeping the
// SAS token (if any) as the query string.
func containerURL(settings Settings) string {
	u := strings.TrimSuffix(settings.ServiceURI(), "/") + "/" + settings.Container
	if settings.SASToken != "" {
		u += "?" + strings.TrimPrefix(settings.SASToken, "?")
	}
	return u
}

func openAzureStore(_ context.Context, settings Settings) (AppendBlobStore, error) {
	u := containerURL(settings)
	if settings.SASToken != "" {
		client, err := container.NewClientWithNoCredential(u, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "creating container client for %q", settings.Container)
		}
		return &azureStore{client: client}, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, errors.Wrap(err, "loading default Azure credential")
	}
	client, err := container.NewClient(u, cred, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "creating container client for %q", settings.Container)
	}
	return &azureStore{client: client}, nil
}

// "translateAzureError" maps service error codes onto the error kinds of
// this package. Unknown errors are returned unchanged.
func translateAzureError(err error) error {
	switch {
	case err == nil:
		return nil
	case bloberror.HasCode(err, bloberror.ContainerNotFound, bloberror.BlobNotFound, bloberror.ResourceNotFound):
		return errors.Mark(err, ErrNotFound)
	case bloberror.HasCode(err, bloberror.AppendPositionConditionNotMet):
		return errors.Mark(err, ErrAppendPositionMismatch)
	case bloberror.HasCode(err, bloberror.InvalidBlobType):
		return errors.Mark(err, ErrNotAppendBlob)
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == 404 {
		// HEAD requests carry no error code in the body.
		return errors.Mark(err, ErrNotFound)
	}
	return err
}

func (s *azureStore) GetContainerProperties(ctx context.Context) error {
	_, err := s.client.GetProperties(ctx, nil)
	return translateAzureError(err)
}

func (s *azureStore) CreateContainer(ctx context.Context) error {
	_, err := s.client.Create(ctx, nil)
	if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil
	}
	return translateAzureError(err)
}

func (s *azureStore) SetContainerAccessPolicy(ctx context.Context, access PublicAccess) error {
	opts := &container.SetAccessPolicyOptions{}
	switch access {
	case PublicAccessContainer:
		opts.Access = to.Ptr(container.PublicAccessTypeContainer)
	case PublicAccessBlob:
		opts.Access = to.Ptr(container.PublicAccessTypeBlob)
	}
	_, err := s.client.SetAccessPolicy(ctx, opts)
	return translateAzureError(err)
}

func (s *azureStore) GetBlobProperties(ctx context.Context, name string) (Properties, error) {
	resp, err := s.client.NewBlobClient(name).GetProperties(ctx, nil)
	if err != nil {
		return Properties{}, translateAzureError(err)
	}
	if resp.BlobType != nil && *resp.BlobType != blob.BlobTypeAppendBlob {
		return Properties{}, errors.Wrapf(ErrNotAppendBlob, "blob %q has type %s", name, *resp.BlobType)
	}
	var props Properties
	if resp.ContentLength != nil {
		props.Size = *resp.ContentLength
	}
	return props, nil
}

func (s *azureStore) CreateAppendBlob(ctx context.Context, name string) (bool, error) {
	_, err := s.client.NewAppendBlobClient(name).Create(ctx, &appendblob.CreateOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr(contentTypeFor(name)),
		},
		AccessConditions: &blob.AccessConditions{
			ModifiedAccessConditions: &blob.ModifiedAccessConditions{
				IfNoneMatch: to.Ptr(azcore.ETagAny),
			},
		},
	})
	if bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet) {
		return false, nil
	}
	if err != nil {
		return false, translateAzureError(err)
	}
	return true, nil
}

func (s *azureStore) ListPage(ctx context.Context, prefix string, cursor string) (ListPage, error) {
	opts := &container.ListBlobsFlatOptions{}
	if prefix != "" {
		opts.Prefix = to.Ptr(prefix)
	}
	if cursor != "" {
		opts.Marker = to.Ptr(cursor)
	}
	pager := s.client.NewListBlobsFlatPager(opts)
	resp, err := pager.NextPage(ctx)
	if err != nil {
		return ListPage{}, translateAzureError(err)
	}

	var page ListPage
	if resp.Segment != nil {
		for _, item := range resp.Segment.BlobItems {
			if item != nil && item.Name != nil {
				page.Names = append(page.Names, *item.Name)
			}
		}
	}
	if resp.NextMarker != nil {
		page.Next = *resp.NextMarker
	}
	return page, nil
}

func (s *azureStore) AppendBlock(ctx context.Context, name string, data []byte, opts AppendOptions) error {
	var appendOpts *appendblob.AppendBlockOptions
	if opts.ExpectedOffset != nil {
		appendOpts = &appendblob.AppendBlockOptions{
			AppendPositionAccessConditions: &appendblob.AppendPositionAccessConditions{
				AppendPosition: to.Ptr(*opts.ExpectedOffset),
			},
		}
	}
	body := streaming.NopCloser(bytes.NewReader(data))
	_, err := s.client.NewAppendBlobClient(name).AppendBlock(ctx, body, appendOpts)
	return translateAzureError(err)
}

func (s *azureStore) ReadRange(ctx context.Context, name string, offset int64, count int64) ([]byte, error) {
	rng := blob.HTTPRange{Offset: offset}
	if count >= 0 {
		if count == 0 {
			return []byte{}, nil
		}
		rng.Count = count
	}
	resp, err := s.client.NewBlobClient(name).DownloadStream(ctx, &blob.DownloadStreamOptions{Range: rng})
	if err != nil {
		return nil, translateAzureError(err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading blob %q", name)
	}
	return data, nil
}

func (s *azureStore) Close() error {
	return nil
}
