package output

import (
	"fmt"
	"io"

	"github.com/jmylchreest/dnsconfbridge/internal/message"
)

// GVariantFormatter prints the call arguments in GVariant text format, as
// accepted by busctl and gdbus.
type GVariantFormatter struct{}

// NewGVariantFormatter creates a new GVariant formatter.
func NewGVariantFormatter() *GVariantFormatter {
	return &GVariantFormatter{}
}

// Format writes the arguments on a single line.
func (f *GVariantFormatter) Format(w io.Writer, msg *message.UpdateMessage) error {
	_, err := fmt.Fprintln(w, msg.String())
	return err
}

// ServersFormatter outputs the server URIs, one per line.
// Useful for piping to other commands.
type ServersFormatter struct{}

// NewServersFormatter creates a new servers formatter.
func NewServersFormatter() *ServersFormatter {
	return &ServersFormatter{}
}

// Format writes the server URIs to the writer, one per line.
func (f *ServersFormatter) Format(w io.Writer, msg *message.UpdateMessage) error {
	for _, r := range msg.Records {
		if _, err := fmt.Fprintln(w, r.Server.String()); err != nil {
			return err
		}
	}
	return nil
}
