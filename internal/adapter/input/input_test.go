package input

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/dnsconfbridge/internal/config"
	"github.com/jmylchreest/dnsconfbridge/internal/model"
)

func TestNewSource(t *testing.T) {
	tests := []struct {
		arg      string
		expected string
		wantErr  bool
	}{
		{arg: "-", expected: "stdin"},
		{arg: "stdin", expected: "file"},
		{arg: "/run/dns/snapshot.toml", expected: "file"},
		{arg: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			src, err := NewSource(tt.arg)
			if tt.wantErr {
				var serr *SourceError
				assert.ErrorAs(t, err, &serr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, src.Name())
		})
	}
}

func TestFileSource_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.toml")
	content := `
[[interfaces]]
family = "ipv6"
interface = "wlan0"
nameservers = ["2001:db8::53"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	src := NewFileSource(path)
	assert.Equal(t, path, src.Path())

	snap, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Interfaces, 1)
	assert.Equal(t, model.FamilyIPv6, snap.Interfaces[0].Family)
	assert.Equal(t, []string{"2001:db8::53"}, snap.Interfaces[0].Nameservers)

	mtime, err := src.ModTime()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), mtime, time.Minute)
}

func TestFileSource_Errors(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := src.Load(context.Background())
	var serr *SourceError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "failed to load snapshot")

	_, err = src.ModTime()
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStdinSource_Load(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format config.SnapshotFormat
		ifaces int
	}{
		{
			name:   "yaml",
			input:  "interfaces:\n  - family: ipv4\n    nameservers: [192.0.2.1]\n",
			ifaces: 1,
		},
		{
			name:   "json through yaml",
			input:  `{"interfaces": [{"family": "ipv4", "nameservers": ["192.0.2.1"]}, {"family": "ipv6"}]}`,
			ifaces: 2,
		},
		{
			name:   "toml",
			input:  "[[interfaces]]\nfamily = \"ipv4\"\n",
			format: config.FormatTOML,
			ifaces: 1,
		},
		{
			name:   "empty",
			input:  "",
			ifaces: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewStdinSourceWithReader(strings.NewReader(tt.input), tt.format)
			assert.Equal(t, "stdin", src.Name())

			snap, err := src.Load(context.Background())
			require.NoError(t, err)
			assert.Len(t, snap.Interfaces, tt.ifaces)
		})
	}
}

func TestStdinSource_InvalidInput(t *testing.T) {
	src := NewStdinSourceWithReader(strings.NewReader("interfaces: [{family: ipx}]"), "")

	_, err := src.Load(context.Background())
	var serr *SourceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "stdin", serr.Source)
	assert.ErrorIs(t, err, model.ErrInvalidFamily)
}

func TestStdinSource_TooLarge(t *testing.T) {
	big := strings.Repeat("#", maxStdinSize+1)
	src := NewStdinSourceWithReader(strings.NewReader(big), "")

	_, err := src.Load(context.Background())
	var serr *SourceError
	require.ErrorAs(t, err, &serr)
	assert.Contains(t, serr.Error(), "snapshot too large")
	assert.NotErrorIs(t, err, model.ErrInvalidFamily, "rejected before parsing")
}
