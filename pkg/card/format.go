package card

import (
	"fmt"
	"io"
)

// Format is an output format of a rendered card.
type Format string

const (
	FormatHTML    Format = "svg"
	FormatPNG     Format = "png"
	FormatECharts Format = "echarts"
)

// ParseFormat parses a format name. An empty name is FormatHTML.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatHTML, "html":
		return FormatHTML, nil
	case FormatPNG:
		return FormatPNG, nil
	case FormatECharts:
		return FormatECharts, nil
	default:
		return "", fmt.Errorf("unknown format: %s", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatPNG {
		return "image/png"
	}
	return "text/html; charset=utf-8"
}

// Write writes the view in the given format.
func Write(w io.Writer, v View, f Format) error {
	switch f {
	case FormatPNG:
		return WritePNG(w, v)
	case FormatECharts:
		return WriteECharts(w, v)
	default:
		return WriteHTML(w, v)
	}
}
