// Package output provides output formatters for attempts and campaigns.
package output

import (
	"io"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// Formatter formats attempts for output.
type Formatter interface {
	// Format writes formatted attempts to the writer.
	Format(w io.Writer, attempts []model.Attempt) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatLine  FormatType = "line"
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatIDs   FormatType = "ids"
)

// NewFormatter creates a formatter for the specified format type. Unknown
// types fall back to the line format.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatYAML:
		return NewYAMLFormatter()
	case FormatPlain:
		return NewPlainFormatter(opts)
	case FormatIDs:
		return NewIDsFormatter()
	case FormatLine:
		fallthrough
	default:
		return NewLineFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template  string // Custom template for line/plain format
	ShowIndex bool   // Show 1-based index prefix
	ShowTime  bool   // Show relative time
	ShowKind  bool   // Show message/tooltip
	Separator string // Field separator for line format
}

// DefaultFormatterOptions returns sensible defaults for line output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex: true,
		ShowTime:  true,
		ShowKind:  true,
		Separator: " | ",
	}
}
