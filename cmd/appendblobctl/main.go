// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Command appendblobctl inspects and maintains the append blobs written by
// the azureappendblob exporter. It reads the exporter's own configuration
// section from a YAML file.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
