package output

import (
	"encoding/json"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/dnsconfbridge/internal/message"
)

// JSONFormatter formats a message as JSON.
type JSONFormatter struct {
	opts FormatterOptions
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(opts FormatterOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Format writes the message as a JSON object.
func (f *JSONFormatter) Format(w io.Writer, msg *message.UpdateMessage) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", strings.Repeat(" ", f.opts.indent()))
	return encoder.Encode(msg)
}

// YAMLFormatter formats a message as YAML.
type YAMLFormatter struct {
	opts FormatterOptions
}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter(opts FormatterOptions) *YAMLFormatter {
	return &YAMLFormatter{opts: opts}
}

// Format writes the message as a YAML document.
func (f *YAMLFormatter) Format(w io.Writer, msg *message.UpdateMessage) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(f.opts.indent())
	if err := encoder.Encode(msg); err != nil {
		return err
	}
	return encoder.Close()
}
