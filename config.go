// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package "azureappendblobexporter" provides an exporter that writes logs
// into hourly append blobs, each holding one {"records":[...]} document.
//
// The file "config.go" manages interaction with config options.
package azureappendblobexporter

import (
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/collector/config/configopaque"
	"go.opentelemetry.io/collector/config/configretry"
	"go.opentelemetry.io/collector/exporter/exporterhelper"

	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/backend"
	"github.com/open-telemetry/opentelemetry-collector-contrib/exporter/azureappendblobexporter/internal/blobname"
)

// "Config" defines the configuration structure for this exporter.
type Config struct {
	exporterhelper.TimeoutSettings `mapstructure:",squash"`
	QueueSettings                  exporterhelper.QueueSettings `mapstructure:"sending_queue"`
	configretry.BackOffConfig      `mapstructure:"retry_on_failure"`

	// Written to the "resourceId" field of every record and used as the
	// first component of every blob name.
	ResourceID string `mapstructure:"resource_id"`

	// Static "DeploymentId" and "Host" properties of every record.
	DeploymentID string `mapstructure:"deployment_id"`
	Host         string `mapstructure:"host"`

	// The storage account and its credential. Without a SAS token the
	// default Azure credential chain is used.
	AccountName string              `mapstructure:"account_name"`
	SASToken    configopaque.String `mapstructure:"sas_token"`

	// The container holding the blobs.
	Container string `mapstructure:"container"`

	// Second component of every blob name.
	IdentityHash string `mapstructure:"identity_hash"`

	// Whether entries keep their event time while queued.
	UseSourceTimestamp bool `mapstructure:"use_source_timestamp"`

	// The record field that receives the ingest timestamp.
	EmitTimestampName string `mapstructure:"emit_timestamp_name"`

	// Overrides the account endpoint. Accepts an Azure service URL or a
	// CDK bucket URL such as "file:///var/lib/logs" or "mem://".
	Endpoint string `mapstructure:"endpoint"`

	// Anonymous read access set on the container when it is created:
	// "container", "blob" or "none".
	PublicAccess string `mapstructure:"public_access"`

	// The log record attribute holding the routing tag. The resource
	// attribute of the same name is used as a fallback.
	TagAttribute string `mapstructure:"tag_attribute"`

	// Acknowledge each batch before appending it. A failed append is then
	// logged and its records are lost instead of retried.
	AckBeforeAppend bool `mapstructure:"ack_before_append"`

	// Any fields which did not fall into the defined structure.
	UnknownFields map[string]interface{} `mapstructure:",remain"`
}

// Helper to raise errors if there are any unknown fields
func errorIfUnknown(u map[string]interface{}) error {
	for k := range u {
		return errors.Newf("Found unknown key: %v", k)
	}
	return nil
}

// Verifies that the configuration is valid.
func (c *Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"resource_id", c.ResourceID},
		{"deployment_id", c.DeploymentID},
		{"host", c.Host},
		{"container", c.Container},
		{"identity_hash", c.IdentityHash},
		{"emit_timestamp_name", c.EmitTimestampName},
		{"tag_attribute", c.TagAttribute},
	}
	for _, r := range required {
		if len(r.value) == 0 {
			return errors.Newf("Missing required key: %v", r.key)
		}
	}

	if len(c.Endpoint) == 0 && len(c.AccountName) == 0 {
		return errors.New("Either 'account_name' or 'endpoint' must be set.")
	}
	if len(c.Endpoint) > 0 {
		if _, err := backend.NewRegistry().GetOpenerForURI(c.Endpoint); err != nil {
			return errors.Wrap(err, "Invalid 'endpoint'")
		}
	}

	switch backend.PublicAccess(c.PublicAccess) {
	case backend.PublicAccessContainer, backend.PublicAccessBlob, backend.PublicAccessNone:
	default:
		return errors.Newf("Invalid public_access: %v. Valid values are: [container, blob, none].", c.PublicAccess)
	}

	return errorIfUnknown(c.UnknownFields)
}

// StoreSettings locates the container.
func (c *Config) StoreSettings() backend.Settings {
	return backend.Settings{
		Endpoint:    c.Endpoint,
		AccountName: c.AccountName,
		SASToken:    string(c.SASToken),
		Container:   c.Container,
	}
}

// Resolver names the blobs of this exporter.
func (c *Config) Resolver() blobname.Resolver {
	return blobname.Resolver{ResourceID: c.ResourceID, IdentityHash: c.IdentityHash}
}
