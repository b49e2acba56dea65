package output

import (
	"encoding/json"
	"io"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// JSONFormatter formats attempts as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Format writes attempts as a JSON array.
func (f *JSONFormatter) Format(w io.Writer, attempts []model.Attempt) error {
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(attempts)
}

// FormatSingle writes a single attempt as JSON.
func (f *JSONFormatter) FormatSingle(w io.Writer, a *model.Attempt) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(a)
}
