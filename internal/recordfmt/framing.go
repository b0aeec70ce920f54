// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package recordfmt

// Document framing. A record object is always preceded by either
// OpenDocument or Separator, so an object becomes valid JSON as soon as
// SealSuffix is appended.
const (
	OpenDocument  = "{\"records\":[\n"
	Separator     = ",\n"
	SealSuffix    = "\n]}"
	EmptyDocument = OpenDocument + "]}"
)

// Framing tells the writer how the next append to an object must begin.
type Framing int

const (
	// Continuing objects already hold at least one record.
	Continuing Framing = iota
	// NeedsOpen objects are empty and still need the array opening.
	NeedsOpen
)

// FramingForSize derives the framing of an object from its current size.
func FramingForSize(size int64) Framing {
	if size == 0 {
		return NeedsOpen
	}
	return Continuing
}

// Lead returns the text that precedes the first record of an append.
func (f Framing) Lead() string {
	if f == NeedsOpen {
		return OpenDocument
	}
	return Separator
}

func (f Framing) String() string {
	switch f {
	case Continuing:
		return "continuing"
	case NeedsOpen:
		return "needs_open"
	}
	return "unknown"
}
