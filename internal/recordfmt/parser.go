// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package recordfmt

import (
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	segmentSeparator = ", "
	pairSeparator    = "=>"

	// syslogSegments is the number of ", "-delimited segments walked
	// before the final "}"-delimited one.
	syslogSegments = 9
	// syslogSkippedSegment is the 1-based segment that is parsed but not
	// rendered.
	syslogSkippedSegment = 2
)

// Pair is one rendered property of a record body.
type Pair struct {
	Key   string
	Value string
}

// BodyParser splits a stringified record into ordered key/value pairs.
type BodyParser interface {
	Parse(message string) ([]Pair, error)
}

// FileShape parses records with exactly two "key=>value" segments.
type FileShape struct{}

// SyslogShape parses records with a leading envelope up to "{", nine
// ", "-delimited segments and a final segment closed by "}".
type SyslogShape struct{}

var (
	_ BodyParser = FileShape{}
	_ BodyParser = SyslogShape{}
)

// ParserFor selects the body parser for a tag.
func ParserFor(tag Tag) BodyParser {
	if tag.IsFile() {
		return FileShape{}
	}
	return SyslogShape{}
}

func malformed(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrMalformedRecord)
}

func splitPair(segment string) (Pair, error) {
	key, value, found := strings.Cut(segment, pairSeparator)
	if !found {
		return Pair{}, malformed("segment %q has no %q", segment, pairSeparator)
	}
	return Pair{Key: key, Value: value}, nil
}

// Parse implements BodyParser.
func (FileShape) Parse(message string) ([]Pair, error) {
	body := message
	if strings.HasPrefix(body, "{") && strings.HasSuffix(body, "}") {
		body = body[1 : len(body)-1]
	}
	segments := strings.Split(body, segmentSeparator)
	if len(segments) != 2 {
		return nil, malformed("file record has %d segments, want 2", len(segments))
	}
	pairs := make([]Pair, 0, 2)
	for _, segment := range segments {
		p, err := splitPair(segment)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// Parse implements BodyParser.
func (SyslogShape) Parse(message string) ([]Pair, error) {
	_, rest, found := strings.Cut(message, "{")
	if !found {
		return nil, malformed("syslog record has no opening %q", "{")
	}

	pairs := make([]Pair, 0, syslogSegments)
	for i := 1; i <= syslogSegments; i++ {
		segment, remainder, found := strings.Cut(rest, segmentSeparator)
		if !found {
			return nil, malformed("syslog record has %d segments, want %d", i, syslogSegments+1)
		}
		p, err := splitPair(segment)
		if err != nil {
			return nil, err
		}
		if i != syslogSkippedSegment {
			pairs = append(pairs, p)
		}
		rest = remainder
	}

	last, _, found := strings.Cut(rest, "}")
	if !found {
		return nil, malformed("syslog record has no closing %q", "}")
	}
	if strings.Contains(last, segmentSeparator) {
		return nil, malformed("syslog record has more than %d segments", syslogSegments+1)
	}
	p, err := splitPair(last)
	if err != nil {
		return nil, err
	}
	return append(pairs, p), nil
}
