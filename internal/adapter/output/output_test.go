package output

import (
	"bytes"
	"encoding/json"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/dnsconfbridge/internal/message"
	"github.com/jmylchreest/dnsconfbridge/internal/model"
)

func testMessage() *message.UpdateMessage {
	return message.Build(&model.Snapshot{
		Global: &model.GlobalPolicy{
			ResolveMode:          model.ResolveModePrefer,
			CertificateAuthority: "/etc/pki/corp.pem",
			Domains: []model.GlobalDomain{{
				Name:    "internal.example",
				Servers: []string{"dns+tls://192.0.2.53#dns.internal.example"},
			}},
		},
		Interfaces: []model.InterfaceConfig{{
			Family:           model.FamilyIPv4,
			InterfaceName:    "eth0",
			ConnectionID:     "Wired",
			ConnectionUUID:   "0b6f",
			Nameservers:      []string{"9.9.9.9"},
			Searches:         []string{"lan"},
			BestDefaultRoute: true,
			Routes:           []model.Route{{Network: netip.MustParsePrefix("10.1.0.0/16")}},
		}},
	})
}

func TestPlainFormatter_Format(t *testing.T) {
	var buf bytes.Buffer

	formatter := NewPlainFormatter(DefaultFormatterOptions())
	require.NoError(t, formatter.Format(&buf, testMessage()))

	expected := `resolve mode: prefer
[1] dns+tls://192.0.2.53#dns.internal.example
    routing: internal.example
    ca: /etc/pki/corp.pem
[2] 9.9.9.9 <eth0>
    routing: lan .
    search: lan
    networks: 10.1.0.0/16
    ca: /etc/pki/corp.pem
    connection: Wired (0b6f)
`
	assert.Equal(t, expected, buf.String())
}

func TestPlainFormatter_NoIndex(t *testing.T) {
	var buf bytes.Buffer

	opts := DefaultFormatterOptions()
	opts.ShowIndex = false
	require.NoError(t, NewPlainFormatter(opts).Format(&buf, testMessage()))

	assert.NotContains(t, buf.String(), "[1]")
	assert.Contains(t, buf.String(), "\n9.9.9.9 <eth0>\n")
}

func TestPlainFormatter_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewPlainFormatter(DefaultFormatterOptions()).Format(&buf, message.Build(nil)))
	assert.Equal(t, "resolve mode: backup\nno servers\n", buf.String())
}

func TestPlainFormatter_CustomTemplate(t *testing.T) {
	var buf bytes.Buffer

	opts := DefaultFormatterOptions()
	opts.Template = "{{.Index}}: {{.URI}} {{default \"-\" .Server.Interface}} [{{join \",\" .Server.RoutingDomains}}]\n"
	require.NoError(t, NewPlainFormatter(opts).Format(&buf, testMessage()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "1: dns+tls://192.0.2.53#dns.internal.example - [internal.example]", lines[0])
	assert.Equal(t, "2: 9.9.9.9 eth0 [lan,.]", lines[1])
}

func TestPlainFormatter_InvalidTemplateFallsBack(t *testing.T) {
	var buf bytes.Buffer

	opts := DefaultFormatterOptions()
	opts.Template = "{{.Index"
	require.NoError(t, NewPlainFormatter(opts).Format(&buf, testMessage()))
	assert.Contains(t, buf.String(), "resolve mode: prefer")
}

func TestGVariantFormatter_Format(t *testing.T) {
	msg := testMessage()
	var buf bytes.Buffer

	require.NoError(t, NewGVariantFormatter().Format(&buf, msg))
	assert.Equal(t, msg.String()+"\n", buf.String())
	assert.Contains(t, buf.String(), `<"dns+tls">`)
}

func TestServersFormatter_Format(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewServersFormatter().Format(&buf, testMessage()))
	assert.Equal(t, "dns+tls://192.0.2.53#dns.internal.example\n9.9.9.9\n", buf.String())
}

func TestJSONFormatter_Format(t *testing.T) {
	msg := testMessage()
	var buf bytes.Buffer

	require.NoError(t, NewJSONFormatter(DefaultFormatterOptions()).Format(&buf, msg))

	var result struct {
		ID          string               `json:"id"`
		ResolveMode string               `json:"resolve_mode"`
		Servers     []message.WireRecord `json:"servers"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, msg.ID, result.ID)
	assert.Equal(t, "prefer", result.ResolveMode)
	require.Len(t, result.Servers, 2)
	assert.Equal(t, "192.0.2.53", result.Servers[0].Address)
	assert.Equal(t, "dns+tls", result.Servers[0].Protocol)
	assert.Equal(t, "eth0", result.Servers[1].Interface)
	assert.Equal(t, []string{"10.1.0.0/16"}, result.Servers[1].Networks)
}

func TestYAMLFormatter_Format(t *testing.T) {
	msg := testMessage()
	var buf bytes.Buffer

	require.NoError(t, NewYAMLFormatter(DefaultFormatterOptions()).Format(&buf, msg))

	var result map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &result))
	assert.Equal(t, msg.ID, result["id"])
	assert.Equal(t, "prefer", result["resolve_mode"])
	servers, ok := result["servers"].([]any)
	require.True(t, ok)
	assert.Len(t, servers, 2)
	assert.Contains(t, buf.String(), "name: dns.internal.example")
}

func TestNewFormatter(t *testing.T) {
	opts := DefaultFormatterOptions()

	tests := []struct {
		format   FormatType
		expected Formatter
	}{
		{FormatPlain, &PlainFormatter{}},
		{FormatGVariant, &GVariantFormatter{}},
		{FormatServers, &ServersFormatter{}},
		{FormatJSON, &JSONFormatter{}},
		{FormatYAML, &YAMLFormatter{}},
		{"unknown", &PlainFormatter{}}, // defaults to plain
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			assert.IsType(t, tt.expected, NewFormatter(tt.format, opts))
		})
	}
	assert.Len(t, ValidFormats(), 5)
}
