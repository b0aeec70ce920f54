// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"mime"
	"path"
	"strings"
)

const defaultContentType = "application/json"

// "contentTypeFor" picks the content type recorded when an append blob is
// created. Hourly documents end in ".json"; anything else falls back to the
// extension's registered type, and to JSON when there is none.
func contentTypeFor(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" || ext == ".json" {
		return defaultContentType
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return defaultContentType
}
