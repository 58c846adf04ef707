// Package output renders Update messages for the terminal and for scripts.
package output

import (
	"io"

	"github.com/jmylchreest/dnsconfbridge/internal/message"
)

// Formatter formats an update message for output.
type Formatter interface {
	// Format writes the formatted message to the writer.
	Format(w io.Writer, msg *message.UpdateMessage) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain    FormatType = "plain"
	FormatGVariant FormatType = "gvariant"
	FormatServers  FormatType = "servers"
	FormatJSON     FormatType = "json"
	FormatYAML     FormatType = "yaml"
)

// ValidFormats returns all format names accepted by NewFormatter.
func ValidFormats() []FormatType {
	return []FormatType{FormatPlain, FormatGVariant, FormatServers, FormatJSON, FormatYAML}
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatGVariant:
		return NewGVariantFormatter()
	case FormatServers:
		return NewServersFormatter()
	case FormatJSON:
		return NewJSONFormatter(opts)
	case FormatYAML:
		return NewYAMLFormatter(opts)
	case FormatPlain:
		fallthrough
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template  string // Custom per-server template for plain format
	ShowIndex bool   // Show 1-based index prefix
	Indent    int    // Indentation for JSON and YAML (0 = 2)
}

// DefaultFormatterOptions returns sensible defaults for plain output.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex: true,
		Indent:    2,
	}
}

func (o FormatterOptions) indent() int {
	if o.Indent <= 0 {
		return 2
	}
	return o.Indent
}
