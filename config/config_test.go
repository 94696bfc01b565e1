package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const samplePreset = `
timeout: 30s
connectTimeout: 5s
maxBodySize: 10485760
proxyURL: "http://proxy.internal:8080"
noProxy: "internal.example.com,.corp.example.com"
maxRedirects: 5
userAgent: "httpstream-fetch/1.0"
interleaveDelay: 250ms
`

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preset.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePreset), 0o644))

	p, err := LoadYAML(path)
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, p.AsTimeout())
	require.Equal(t, 5*time.Second, p.AsConnectTimeout())
	require.Equal(t, int64(10485760), p.MaxBodySize)
	require.Equal(t, "http://proxy.internal:8080", p.ProxyURL)
	require.Equal(t, "internal.example.com,.corp.example.com", p.NoProxy)
	require.Equal(t, 5, p.MaxRedirects)
	require.Equal(t, "httpstream-fetch/1.0", p.UserAgent)
	require.Equal(t, 250*time.Millisecond, p.AsInterleaveDelay())
}

func TestLoadYAML_MissingFile(t *testing.T) {
	_, err := LoadYAML("/nonexistent/preset.yaml")
	require.Error(t, err)
}

func TestParseYAML_Empty(t *testing.T) {
	p, err := ParseYAML([]byte(""))
	require.NoError(t, err)
	require.Equal(t, &Preset{}, p)
}

func TestParseYAML_InvalidYAML(t *testing.T) {
	_, err := ParseYAML([]byte("timeout: [unterminated"))
	require.Error(t, err)
}
