// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package "blobname" derives the name of the append blob that receives the
// records of a given hour.
package blobname

import (
	"strings"
	"time"
)

// hourLayout holds only time tokens; the fixed suffix contains "1", which
// Format would read as the month.
const (
	hourLayout = "y=2006/m=01/d=02/h=15"
	hourSuffix = "/m=00/PT1H.json"
)

// Resolver names blobs for one resource and identity. Identifiers are not
// validated and are copied verbatim into the name.
type Resolver struct {
	ResourceID   string
	IdentityHash string
}

// Prefix returns the name prefix shared by every blob of the resolver.
func (r Resolver) Prefix() string {
	var b strings.Builder
	b.WriteString("resourceId=")
	b.WriteString(r.ResourceID)
	b.WriteString("/i=")
	b.WriteString(r.IdentityHash)
	b.WriteByte('/')
	return b.String()
}

// Resolve returns the blob name of the UTC hour containing t. The minute
// component is always "00".
func (r Resolver) Resolve(t time.Time) string {
	return r.Prefix() + t.UTC().Format(hourLayout) + hourSuffix
}
