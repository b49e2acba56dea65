package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/Esakkiraja-Pothikannan/ios-inappmessaging/internal/model"
)

// YAMLFormatter formats attempts as a YAML sequence.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Format writes attempts as YAML.
func (f *YAMLFormatter) Format(w io.Writer, attempts []model.Attempt) error {
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(attempts); err != nil {
		return err
	}
	return enc.Close()
}
