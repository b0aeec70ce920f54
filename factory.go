// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package "azureappendblobexporter" provides an exporter that writes logs
// into hourly append blobs, each holding one {"records":[...]} document.
//
// The file "factory.go" file provides the logic that creates the exporter.
package azureappendblobexporter

import (
	"context"

	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/config/configretry"
	"go.opentelemetry.io/collector/consumer"
	"go.opentelemetry.io/collector/exporter"
	"go.opentelemetry.io/collector/exporter/exporterhelper"

	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/backend"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/metadata"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/writer"
)

// defaultTagAttribute is the attribute set by the fluentforward receiver.
const defaultTagAttribute = "fluent.tag"

func createDefaultConfig() component.Config {
	return &Config{
		TimeoutSettings:    exporterhelper.NewDefaultTimeoutSettings(),
		QueueSettings:      exporterhelper.NewDefaultQueueSettings(),
		BackOffConfig:      configretry.NewDefaultBackOffConfig(),
		UseSourceTimestamp: true,
		EmitTimestampName:  writer.DefaultTimestampField,
		PublicAccess:       string(backend.PublicAccessContainer),
		TagAttribute:       defaultTagAttribute,
	}
}

// NewFactory creates a factory for the append blob exporter.
func NewFactory() exporter.Factory {
	return exporter.NewFactory(
		metadata.Type,
		createDefaultConfig,
		exporter.WithLogs(createLogsExporter, metadata.LogsStability))
}

func createLogsExporter(
	ctx context.Context,
	set exporter.Settings,
	cfg component.Config,
) (exporter.Logs, error) {
	config := cfg.(*Config)
	exp := newLogsExporter(config, set, backend.Open)

	return exporterhelper.NewLogsExporter(
		ctx,
		set,
		cfg,
		exp.pushLogs,
		exporterhelper.WithCapabilities(consumer.Capabilities{MutatesData: false}),
		exporterhelper.WithTimeout(config.TimeoutSettings),
		exporterhelper.WithQueue(config.QueueSettings),
		exporterhelper.WithRetry(config.BackOffConfig),
		exporterhelper.WithStart(exp.start),
		exporterhelper.WithShutdown(exp.shutdown))
}
