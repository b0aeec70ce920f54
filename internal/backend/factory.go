// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package "backend" provides access to the container of append blobs that
// the exporter writes to.
//
// The file "factory.go" provides a means of instantiating a Registry.
package backend

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// registryImpl is the main implementation of "Registry".
type registryImpl struct {
	// schemeToOpener contains a mapping from a URI scheme (e.g.
	// "https", "azblob", "mem", etc.) to a corresponding opener.
	schemeToOpener map[string]Opener
}

// "GetOpenerForURI" implements "Registry.GetOpenerForURI".
func (r *registryImpl) GetOpenerForURI(uri string) (Opener, error) {
	scheme, _, found := strings.Cut(uri, "://")
	if !found {
		return nil, errors.Newf("invalid URI; missing '://' from %v", uri)
	}
	entry, ok := r.schemeToOpener[scheme]
	if !ok {
		return nil, errors.Newf("URI %v not recognized; no implementation registered for scheme %v", uri, scheme)
	}
	return entry, nil
}

// NewRegistry instantiates a new backend registry. Azure service URLs use
// the Azure SDK directly; every other scheme goes through the CDK.
func NewRegistry() Registry {
	return &registryImpl{
		schemeToOpener: map[string]Opener{
			"https":  openAzureStore,
			"http":   openAzureStore,
			"azblob": openCDKStore,
			"gs":     openCDKStore,
			"s3":     openCDKStore,
			"file":   openCDKStore,
			"mem":    openCDKStore,
		},
	}
}

// Open connects to the container described by settings.
func Open(ctx context.Context, settings Settings) (AppendBlobStore, error) {
	opener, err := NewRegistry().GetOpenerForURI(settings.ServiceURI())
	if err != nil {
		return nil, err
	}
	return opener(ctx, settings)
}
