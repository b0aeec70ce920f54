// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package "azureappendblobexporter" provides an exporter that writes logs
// into hourly append blobs, each holding one {"records":[...]} document.
//
// The file "logs.go" file provides the logic for the logs signal type.
package azureappendblobexporter

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/consumer/consumererror"
	"go.opentelemetry.io/collector/exporter"
	"go.opentelemetry.io/collector/pdata/plog"
	"go.uber.org/zap"

	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/backend"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/chunk"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/recordfmt"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/rotation"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/writer"
)

// "openStoreFunc" connects to the container; replaced in tests.
type openStoreFunc func(ctx context.Context, settings backend.Settings) (backend.AppendBlobStore, error)

type logsExporter struct {
	config    *Config
	settings  exporter.Settings
	openStore openStoreFunc

	store  backend.AppendBlobStore
	writer *writer.Writer
}

func newLogsExporter(config *Config, set exporter.Settings, openStore openStoreFunc) *logsExporter {
	return &logsExporter{
		config:    config,
		settings:  set,
		openStore: openStore,
	}
}

func (e *logsExporter) start(ctx context.Context, _ component.Host) error {
	store, err := e.openStore(ctx, e.config.StoreSettings())
	if err != nil {
		return errors.Wrapf(err, "opening container %q", e.config.Container)
	}
	e.store = store

	logger := e.settings.Logger
	e.writer = &writer.Writer{
		Controller: &rotation.Controller{
			Store:    store,
			Resolver: e.config.Resolver(),
			Access:   backend.PublicAccess(e.config.PublicAccess),
			Logger:   logger,
		},
		Formatter: &recordfmt.Formatter{
			ResourceID:   e.config.ResourceID,
			DeploymentID: e.config.DeploymentID,
			Host:         e.config.Host,
		},
		TimestampField:  e.config.EmitTimestampName,
		AckBeforeAppend: e.config.AckBeforeAppend,
		Ack: func(id uuid.UUID) {
			logger.Debug("[pushLogs] Acknowledged chunk.", zap.String("chunkID", id.String()))
		},
		Logger: logger,
	}
	logger.Info("[start] Exporter started.",
		zap.String("container", e.config.Container),
		zap.String("blobPrefix", e.config.Resolver().Prefix()))
	return nil
}

func (e *logsExporter) shutdown(_ context.Context) error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

func (e *logsExporter) pushLogs(ctx context.Context, ld plog.Logs) error {
	c, err := logsToChunk(ld, chunk.ShapeFor(e.config.UseSourceTimestamp), e.config.TagAttribute)
	if err != nil {
		return consumererror.NewPermanent(err)
	}

	e.settings.Logger.Debug("[pushLogs] Writing chunk.",
		zap.String("chunkID", c.UniqueID().String()),
		zap.Int("records", c.Len()),
		zap.Int("chunkSizeBytes", c.Size()))
	err = e.writer.Write(ctx, c)
	if errors.Is(err, recordfmt.ErrMalformedRecord) {
		e.settings.Logger.Error("[pushLogs] Dropping chunk with a malformed record.",
			zap.String("chunkID", c.UniqueID().String()),
			zap.Int("records", c.Len()),
			zap.NamedError("error", err))
		return consumererror.NewPermanent(err)
	}
	return err
}
