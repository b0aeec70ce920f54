// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package "rotation" decides which append blob a flush writes to and seals
// the blob of the previous hour when a new one is started.
//
// The controller keeps no state between calls. Concurrent flushes are made
// safe by conditional remote operations: blobs are created only if absent,
// and seals are appended at the size that was probed, so a blob is never
// sealed twice.
package rotation

import (
	"bytes"
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/backend"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/blobname"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/catalog"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/recordfmt"
)

const defaultMaxSealAttempts = 5

// ErrTargetSealed reports that the blob of the current hour has already
// been sealed, so nothing more can be appended to it.
var ErrTargetSealed = errors.New("target blob is already sealed")

// Target is the blob one flush appends to, as probed at the start of the
// flush.
type Target struct {
	Name string
	// Size is the probed size; appends are conditioned on it.
	Size    int64
	Framing recordfmt.Framing
	// Created reports that this call created the blob.
	Created bool
	// Sealed is only ever set by Refresh.
	Sealed bool
}

// ExpectedOffset returns the append position the target was probed at.
func (t Target) ExpectedOffset() *int64 {
	offset := t.Size
	return &offset
}

// Controller prepares append targets. Its fields are read-only once in use.
type Controller struct {
	Store    backend.AppendBlobStore
	Resolver blobname.Resolver
	Access   backend.PublicAccess
	Logger   *zap.Logger

	// MaxSealAttempts bounds the conditional appends of one seal.
	MaxSealAttempts int
}

func (c *Controller) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Controller) scanner() *catalog.Scanner {
	return &catalog.Scanner{Lister: c.Store, Prefix: c.Resolver.Prefix()}
}

// Prepare makes sure the container and the blob of the hour containing now
// exist, seals the previous blob if this flush starts a new one, and
// returns the target with its framing.
func (c *Controller) Prepare(ctx context.Context, now time.Time) (Target, error) {
	if err := c.ensureContainer(ctx); err != nil {
		return Target{}, err
	}

	name := c.Resolver.Resolve(now)
	props, err := c.Store.GetBlobProperties(ctx, name)
	switch {
	case errors.Is(err, backend.ErrNotFound):
		return c.create(ctx, name)
	case err != nil:
		return Target{}, errors.Wrapf(err, "probing blob %q", name)
	}

	target := Target{Name: name, Size: props.Size, Framing: recordfmt.FramingForSize(props.Size)}
	if target.Framing == recordfmt.NeedsOpen {
		// Created by an earlier attempt that never appended; that attempt
		// may also have failed to seal the previous blob.
		if err := c.sealPredecessor(ctx, name); err != nil {
			return Target{}, err
		}
		return target, nil
	}

	sealed, err := c.sealedAt(ctx, name, props.Size)
	if err != nil {
		return Target{}, err
	}
	if sealed {
		return Target{}, errors.Wrapf(ErrTargetSealed, "blob %q", name)
	}
	return target, nil
}

func (c *Controller) ensureContainer(ctx context.Context) error {
	err := c.Store.GetContainerProperties(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, backend.ErrNotFound) {
		return errors.Wrap(err, "probing container")
	}
	if err := c.Store.CreateContainer(ctx); err != nil {
		return errors.Wrap(err, "creating container")
	}
	if err := c.Store.SetContainerAccessPolicy(ctx, c.Access); err != nil {
		return errors.Wrap(err, "setting container access policy")
	}
	c.logger().Info("[Prepare] Created container.", zap.String("publicAccess", string(c.Access)))
	return nil
}

func (c *Controller) create(ctx context.Context, name string) (Target, error) {
	created, err := c.Store.CreateAppendBlob(ctx, name)
	if err != nil {
		return Target{}, errors.Wrapf(err, "creating append blob %q", name)
	}
	target := Target{Name: name, Framing: recordfmt.NeedsOpen, Created: created}
	if created {
		c.logger().Info("[Prepare] Created append blob.", zap.String("blobName", name))
	} else {
		// Another flush created it first and may already have appended.
		props, err := c.Store.GetBlobProperties(ctx, name)
		if err != nil {
			return Target{}, errors.Wrapf(err, "probing blob %q", name)
		}
		target.Size = props.Size
		target.Framing = recordfmt.FramingForSize(props.Size)
	}

	if err := c.sealPredecessor(ctx, name); err != nil {
		return Target{}, err
	}
	return target, nil
}

func (c *Controller) sealPredecessor(ctx context.Context, name string) error {
	prev, err := c.scanner().Predecessor(ctx, name)
	if err != nil {
		return err
	}
	if prev == "" {
		return nil
	}
	_, err = c.Seal(ctx, prev)
	return err
}

// Seal appends the closing suffix to a blob unless it already ends with
// it. An empty blob receives a complete empty document instead. Seal
// reports whether this call changed the blob; a missing blob is left
// alone.
func (c *Controller) Seal(ctx context.Context, name string) (bool, error) {
	attempts := c.MaxSealAttempts
	if attempts <= 0 {
		attempts = defaultMaxSealAttempts
	}

	for i := 0; i < attempts; i++ {
		props, err := c.Store.GetBlobProperties(ctx, name)
		if errors.Is(err, backend.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, errors.Wrapf(err, "probing blob %q", name)
		}

		data := recordfmt.SealSuffix
		if props.Size == 0 {
			// The suffix alone would not parse; write a whole empty document.
			data = recordfmt.EmptyDocument
		} else {
			sealed, err := c.sealedAt(ctx, name, props.Size)
			if err != nil {
				return false, err
			}
			if sealed {
				return false, nil
			}
		}

		err = c.Store.AppendBlock(ctx, name, []byte(data), backend.AppendOptions{ExpectedOffset: &props.Size})
		if errors.Is(err, backend.ErrAppendPositionMismatch) {
			c.logger().Debug("[Seal] Blob changed while sealing; retrying.",
				zap.String("blobName", name),
				zap.Int64("expectedOffset", props.Size),
				zap.Int("attempt", i+1))
			continue
		}
		if err != nil {
			return false, errors.Wrapf(err, "sealing blob %q", name)
		}
		c.logger().Info("[Seal] Sealed blob.",
			zap.String("blobName", name),
			zap.Int64("sizeBytes", props.Size+int64(len(data))))
		return true, nil
	}
	return false, errors.Newf("sealing blob %q: still changing after %d attempts", name, attempts)
}

// sealedAt reports whether a blob of the given size ends with the seal.
func (c *Controller) sealedAt(ctx context.Context, name string, size int64) (bool, error) {
	n := int64(len(recordfmt.SealSuffix))
	if size < n {
		return false, nil
	}
	tail, err := c.Store.ReadRange(ctx, name, size-n, n)
	if err != nil {
		return false, errors.Wrapf(err, "reading tail of blob %q", name)
	}
	return bytes.Equal(tail, []byte(recordfmt.SealSuffix)), nil
}

// Refresh probes a target again after an append was rejected because the
// blob changed size.
func (c *Controller) Refresh(ctx context.Context, t Target) (Target, error) {
	props, err := c.Store.GetBlobProperties(ctx, t.Name)
	if err != nil {
		return Target{}, errors.Wrapf(err, "probing blob %q", t.Name)
	}
	sealed, err := c.sealedAt(ctx, t.Name, props.Size)
	if err != nil {
		return Target{}, err
	}
	return Target{
		Name:    t.Name,
		Size:    props.Size,
		Framing: recordfmt.FramingForSize(props.Size),
		Sealed:  sealed,
	}, nil
}
