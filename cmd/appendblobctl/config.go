// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/collector/component"
	"go.opentelemetry.io/collector/confmap"
	"gopkg.in/yaml.v3"

	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter"
)

// loadConfig reads the exporter configuration stored under key in a YAML
// file, applying the exporter defaults. An empty key reads the whole file.
func loadConfig(path string, key string) (*azureappendblobexporter.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	conf := confmap.NewFromStringMap(doc)
	if key != "" {
		sub, err := conf.Sub(key)
		if err != nil {
			return nil, errors.Wrapf(err, "selecting %q in %s", key, path)
		}
		if len(sub.AllKeys()) == 0 {
			return nil, errors.Newf("%s has no section %q", path, key)
		}
		conf = sub
	}

	factory := azureappendblobexporter.NewFactory()
	cfg := factory.CreateDefaultConfig().(*azureappendblobexporter.Config)
	if err := conf.Unmarshal(cfg); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	if err := component.ValidateConfig(cfg); err != nil {
		return nil, errors.Wrapf(err, "invalid configuration in %s", path)
	}
	return cfg, nil
}
