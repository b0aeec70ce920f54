// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package "backend" provides access to the container of append blobs that
// the exporter writes to.
//
// The file "interfaces.go" defines the relevant interfaces of this subpackage.
package backend

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound reports a missing container or blob. It is the only
	// probe failure that callers may treat as absence.
	ErrNotFound = errors.New("not found")

	// ErrAppendPositionMismatch reports that an append was rejected
	// because the blob no longer has the expected size.
	ErrAppendPositionMismatch = errors.New("append position condition not met")

	// ErrNotAppendBlob reports an append to a blob of another type.
	ErrNotAppendBlob = errors.New("not an append blob")
)

// PublicAccess is the anonymous read access granted on the container.
type PublicAccess string

const (
	PublicAccessContainer PublicAccess = "container"
	PublicAccessBlob      PublicAccess = "blob"
	PublicAccessNone      PublicAccess = "none"
)

// Properties holds the blob metadata the rotation logic depends on.
type Properties struct {
	Size int64
}

// ListPage is one page of blob names in listing order.
type ListPage struct {
	Names []string

	// Next is the cursor of the following page, or "" on the last page.
	Next string
}

// AppendOptions conditions an append.
type AppendOptions struct {
	// ExpectedOffset, when set, rejects the append with
	// ErrAppendPositionMismatch unless the blob has exactly this size.
	ExpectedOffset *int64
}

// AppendBlobStore is a single container of append blobs.
//
// Every operation is a single blocking remote call and honors ctx.
// Implementations must be safe for concurrent use.
type AppendBlobStore interface {
	// GetContainerProperties returns ErrNotFound if the container does
	// not exist.
	GetContainerProperties(ctx context.Context) error

	// CreateContainer creates the container. An existing container is
	// not an error.
	CreateContainer(ctx context.Context) error

	// SetContainerAccessPolicy sets anonymous read access.
	SetContainerAccessPolicy(ctx context.Context, access PublicAccess) error

	// GetBlobProperties returns ErrNotFound for a missing blob.
	GetBlobProperties(ctx context.Context, name string) (Properties, error)

	// CreateAppendBlob creates an empty append blob unless one already
	// exists. It reports whether this call created it.
	CreateAppendBlob(ctx context.Context, name string) (bool, error)

	// ListPage returns the page of names under prefix that starts at
	// cursor. The empty cursor starts a new listing.
	ListPage(ctx context.Context, prefix string, cursor string) (ListPage, error)

	// AppendBlock appends data to the end of an existing append blob.
	AppendBlock(ctx context.Context, name string, data []byte, opts AppendOptions) error

	// ReadRange reads count bytes at offset. A negative count reads to
	// the end of the blob.
	ReadRange(ctx context.Context, name string, offset int64, count int64) ([]byte, error)

	// Close releases the underlying client.
	Close() error
}

// Settings locates a container.
type Settings struct {
	// Endpoint is the service URI. Empty means the public Azure endpoint
	// of AccountName.
	Endpoint string

	AccountName string
	SASToken    string
	Container   string
}

// ServiceURI returns the URI whose scheme selects the implementation.
func (s Settings) ServiceURI() string {
	if s.Endpoint != "" {
		return s.Endpoint
	}
	return "https://" + s.AccountName + ".blob.core.windows.net"
}

// Opener connects to the container described by the settings.
type Opener func(ctx context.Context, settings Settings) (AppendBlobStore, error)

// Registry maps URIs (typically based on scheme) to an associated opener.
type Registry interface {
	// GetOpenerForURI returns the opener for the specified URI if available.
	GetOpenerForURI(uri string) (Opener, error)
}
