// Package export renders area reports as CSV, GeoJSON or Markdown payloads.
package export

import (
	"errors"
	"fmt"
	"strings"
)

type Format int

const (
	Tabular Format = iota + 1
	GeometryWithProperties
	Document
)

func (f Format) String() string {
	switch f {
	case Tabular:
		return "csv"
	case GeometryWithProperties:
		return "geojson"
	case Document:
		return "md"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

func (f Format) ContentType() string {
	switch f {
	case Tabular:
		return "text/csv; charset=utf-8"
	case GeometryWithProperties:
		return "application/geo+json"
	case Document:
		return "text/markdown; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

type ErrorKind int

const (
	UnsupportedFormat ErrorKind = iota + 1
	EncodingFailure
)

var (
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrEncodingFailure   = errors.New("export encoding failed")
)

type ExportError struct {
	Kind   ErrorKind
	Format string
	Err    error
}

func (e *ExportError) Error() string {
	switch e.Kind {
	case UnsupportedFormat:
		return fmt.Sprintf("%v: %q", ErrUnsupportedFormat, e.Format)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%v (%s): %v", ErrEncodingFailure, e.Format, e.Err)
		}
		return fmt.Sprintf("%v (%s)", ErrEncodingFailure, e.Format)
	}
}

func (e *ExportError) Unwrap() error { return e.Err }

func (e *ExportError) Is(target error) bool {
	switch target {
	case ErrUnsupportedFormat:
		return e.Kind == UnsupportedFormat
	case ErrEncodingFailure:
		return e.Kind == EncodingFailure
	}
	return false
}

// ParseFormat accepts a short name or a media type; media type parameters
// are ignored.
func ParseFormat(s string) (Format, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(v, ";"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	switch v {
	case "csv", "tabular", "text/csv":
		return Tabular, nil
	case "geojson", "geometry", "application/geo+json", "application/json":
		return GeometryWithProperties, nil
	case "md", "markdown", "document", "text/markdown":
		return Document, nil
	}
	return 0, &ExportError{Kind: UnsupportedFormat, Format: s}
}
