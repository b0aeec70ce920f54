// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package recordfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// TimestampLayout is the layout of the "time" field and of the ingest
// timestamp injected into each record.
const TimestampLayout = "2006-01-02T15:04:05Z"

const (
	syslogOperationName  = "LinuxSyslogEvent"
	unknownValue         = "Unknown"
	syslogSystemAndOpKey = "systemsyslog"
)

// Formatter renders one record object. It holds only read-only
// configuration and is safe for concurrent use.
type Formatter struct {
	ResourceID   string
	DeploymentID string
	Host         string

	// Now defaults to time.Now.
	Now func() time.Time
}

func (f *Formatter) now() time.Time {
	if f.Now != nil {
		return f.Now().UTC()
	}
	return time.Now().UTC()
}

// Format renders the record whose stringified form is message. The result
// holds no leading separator; see Framing.Lead and Separator.
func (f *Formatter) Format(rawTag string, message string) ([]byte, error) {
	tag, err := ParseTag(rawTag)
	if err != nil {
		return nil, err
	}
	pairs, err := ParserFor(tag).Parse(message)
	if err != nil {
		return nil, err
	}

	var b bytes.Buffer
	b.WriteString("{\t\"time\" : ")
	b.WriteString(jsonString(f.now().Format(TimestampLayout)))
	b.WriteString(",\n\t\"resourceId\" : ")
	b.WriteString(jsonString(f.ResourceID))
	b.WriteString(",\n\t\"properties\" : {\n")
	for _, p := range pairs {
		b.WriteString("\t\t")
		b.WriteString(renderKey(p.Key))
		b.WriteString(" : ")
		b.WriteString(strings.TrimSpace(p.Value))
		b.WriteString(",\n")
	}
	b.WriteString("\t\t\"DeploymentId\" : ")
	b.WriteString(jsonString(f.DeploymentID))
	b.WriteString(",\n\t\t\"Host\" : ")
	b.WriteString(jsonString(f.Host))
	b.WriteString("\n\t},\n")

	category, level := tag.Category, tag.Level
	if tag.IsFile() {
		category, level = unknownValue, unknownValue
	}
	operationName := unknownValue
	if tag.System+tag.Operation == syslogSystemAndOpKey {
		operationName = syslogOperationName
	}
	b.WriteString("\t\"category\" : ")
	b.WriteString(jsonString(category))
	b.WriteString(",\n\t\"level\" : ")
	b.WriteString(jsonString(level))
	b.WriteString(",\n\t\"operationName\" : ")
	b.WriteString(jsonString(operationName))
	b.WriteString("\n}")
	return b.Bytes(), nil
}

func renderKey(key string) string {
	key = strings.TrimSpace(key)
	if len(key) >= 2 && strings.HasPrefix(key, `"`) && strings.HasSuffix(key, `"`) {
		return key
	}
	return jsonString(key)
}

func jsonString(s string) string {
	encoded, err := json.Marshal(s)
	if err != nil {
		// Marshal never fails for a string.
		return `""`
	}
	return string(encoded)
}
