package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/jmylchreest/dnsconfbridge/internal/message"
)

// PlainFormatter formats a message as readable text, one server per block.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}

	// Parse custom template if provided
	if opts.Template != "" {
		tmpl, err := template.New("plain").Funcs(templateFuncs()).Parse(opts.Template)
		if err == nil {
			f.template = tmpl
		}
	}

	return f
}

// Format writes the message as plain text.
func (f *PlainFormatter) Format(w io.Writer, msg *message.UpdateMessage) error {
	if f.template == nil {
		if _, err := fmt.Fprintf(w, "resolve mode: %s\n", msg.ResolveMode); err != nil {
			return err
		}
		if len(msg.Records) == 0 {
			_, err := fmt.Fprintln(w, "no servers")
			return err
		}
	}
	for i := range msg.Records {
		if err := f.formatRecord(w, i+1, msg, &msg.Records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatRecord(w io.Writer, index int, msg *message.UpdateMessage, r *message.WireRecord) error {
	if f.template != nil {
		data := templateData{
			Index:       index,
			Server:      r,
			URI:         r.Server.String(),
			ResolveMode: msg.ResolveMode.String(),
		}
		return f.template.Execute(w, data)
	}

	var sb strings.Builder

	if f.opts.ShowIndex {
		sb.WriteString(fmt.Sprintf("[%d] ", index))
	}
	sb.WriteString(r.Server.String())
	if r.Interface != "" {
		sb.WriteString(fmt.Sprintf(" <%s>", r.Interface))
	}
	sb.WriteString("\n")

	writeField(&sb, "routing", strings.Join(r.RoutingDomains, " "))
	writeField(&sb, "search", strings.Join(r.SearchDomains, " "))
	writeField(&sb, "networks", strings.Join(r.Networks, " "))
	writeField(&sb, "ca", r.CA)
	writeField(&sb, "connection", connectionLabel(r))

	_, err := w.Write([]byte(sb.String()))
	return err
}

func writeField(sb *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	sb.WriteString(fmt.Sprintf("    %s: %s\n", name, value))
}

func connectionLabel(r *message.WireRecord) string {
	switch {
	case r.ConnectionID != "" && r.ConnectionUUID != "":
		return fmt.Sprintf("%s (%s)", r.ConnectionID, r.ConnectionUUID)
	case r.ConnectionID != "":
		return r.ConnectionID
	default:
		return r.ConnectionUUID
	}
}

// templateData provides data for custom templates.
type templateData struct {
	Index       int
	Server      *message.WireRecord
	URI         string
	ResolveMode string
}

// templateFuncs returns template helper functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"join": func(sep string, values []string) string {
			return strings.Join(values, sep)
		},
		"default": func(def, value string) string {
			if value == "" {
				return def
			}
			return value
		},
	}
}
