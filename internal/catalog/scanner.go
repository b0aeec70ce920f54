// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package "catalog" walks the listing of a container to find the blobs the
// rotation logic acts on. Listings are never cached.
package catalog

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/backend"
)

// maxPages bounds a single scan so that a store returning the same cursor
// forever cannot hang a flush.
const maxPages = 100000

// Lister is the part of "backend.AppendBlobStore" the scanner needs.
type Lister interface {
	ListPage(ctx context.Context, prefix string, cursor string) (backend.ListPage, error)
}

// Result summarizes one scan.
type Result struct {
	// Last is the last name listed, or "" for an empty listing.
	Last string
	// Previous is the name listed just before Last.
	Previous string
	// Count is the number of names listed.
	Count int
}

// Scanner lists the blobs under a fixed prefix.
type Scanner struct {
	Lister Lister
	Prefix string
}

// Each calls fn for every listed name in order, following cursors until
// the last page. It stops early if fn returns false.
func (s *Scanner) Each(ctx context.Context, fn func(name string) bool) error {
	cursor := ""
	for pages := 0; ; pages++ {
		if pages == maxPages {
			return errors.Newf("listing %q did not finish after %d pages", s.Prefix, maxPages)
		}
		page, err := s.Lister.ListPage(ctx, s.Prefix, cursor)
		if err != nil {
			return errors.Wrapf(err, "listing blobs under %q", s.Prefix)
		}
		for _, name := range page.Names {
			if !fn(name) {
				return nil
			}
		}
		if page.Next == "" {
			return nil
		}
		cursor = page.Next
	}
}

// Scan walks every page and tracks the last two names across page
// boundaries.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	var r Result
	err := s.Each(ctx, func(name string) bool {
		r.Previous, r.Last = r.Last, name
		r.Count++
		return true
	})
	return r, err
}

// Last returns the most recently listed blob, or "" if there is none.
// A container holding one blob returns that blob.
func (s *Scanner) Last(ctx context.Context) (string, error) {
	r, err := s.Scan(ctx)
	return r.Last, err
}

// Predecessor returns the last listed name that sorts before name, or ""
// if there is none. Whether name itself is already listed does not matter.
func (s *Scanner) Predecessor(ctx context.Context, name string) (string, error) {
	prev := ""
	err := s.Each(ctx, func(listed string) bool {
		if listed >= name {
			return false
		}
		prev = listed
		return true
	})
	return prev, err
}
