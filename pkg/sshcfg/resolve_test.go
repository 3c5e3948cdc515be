package sshcfg

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseText(t *testing.T, text string) *Config {
	t.Helper()
	p := &Parser{Home: "/home/alice", Username: "alice"}
	cfg, err := p.Parse(strings.NewReader(text))
	require.NoError(t, err)
	return cfg
}

func TestResolveFirstValueWins(t *testing.T) {
	cfg := parseText(t, `
Host db.example.com
  Port 2222
  User svc
Host *.example.com
  Port 443
  HostName fallback.example.com
`)
	r := cfg.Resolve("db.example.com")

	got := map[string]string{}
	for _, k := range r.Keys() {
		got[k], _ = r.Get(k)
	}
	want := map[string]string{
		"port":     "2222",
		"user":     "svc",
		"hostname": "fallback.example.com",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resolved values mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveLaterStanzaFillsUnsetKeys(t *testing.T) {
	cfg := parseText(t, `
Host example
  HostName example.com
Host *
  User everyone
  HostName wrong.example.com
`)
	r := cfg.Resolve("example")
	assert.Equal(t, "example.com", r.Hostname())
	assert.Equal(t, "everyone", r.User())
}

func TestResolveDefaults(t *testing.T) {
	cfg := parseText(t, "Host other\n  Port 2222\n")
	r := cfg.Resolve("unmatched.example.com")

	assert.Equal(t, "unmatched.example.com", r.Hostname())
	port, err := r.Port()
	require.NoError(t, err)
	assert.Equal(t, DefaultPort, port)
	assert.Equal(t, "alice", r.User())
	_, ok := r.ProxyCommand()
	assert.False(t, ok)
}

func TestResolveStrict(t *testing.T) {
	cfg := parseText(t, "Compression yes\nHost example\n  Port 2222\n")

	r, err := cfg.ResolveStrict("example")
	require.NoError(t, err)
	port, err := r.Port()
	require.NoError(t, err)
	assert.Equal(t, uint16(2222), port)

	// The implicit leading stanza alone does not count as a match.
	_, err = cfg.ResolveStrict("unknown")
	require.ErrorIs(t, err, ErrHostNotFound)
}

func TestResolveNegatedPattern(t *testing.T) {
	cfg := parseText(t, `
Host *.example.com !db.example.com
  User svc
`)
	assert.Equal(t, "svc", cfg.Resolve("web.example.com").User())
	assert.Equal(t, "alice", cfg.Resolve("db.example.com").User())
}

func TestResolveUnknownDirectivePreserved(t *testing.T) {
	cfg := parseText(t, "Host example\n  FrobnicationLevel high\n")
	v, ok := cfg.Resolve("example").Get("frobnicationlevel")
	require.True(t, ok)
	assert.Equal(t, "high", v)

	// Lookup is case-insensitive.
	v, ok = cfg.Resolve("example").Get("FrobnicationLevel")
	require.True(t, ok)
	assert.Equal(t, "high", v)
}

func TestResolveInvalidPort(t *testing.T) {
	cfg := parseText(t, "Host example\n  Port twenty-two\n")
	_, err := cfg.Resolve("example").Port()
	require.Error(t, err)
}

func TestResolveIdentityFileTilde(t *testing.T) {
	cfg := parseText(t, "Host example\n  IdentityFile ~/.ssh/id_ed25519\n")
	path, ok := cfg.Resolve("example").IdentityFile()
	require.True(t, ok)
	assert.Equal(t, "/home/alice/.ssh/id_ed25519", path)
}

func TestResolveCaseInsensitiveHost(t *testing.T) {
	cfg := parseText(t, "Host Example\n  Port 2222\n")
	port, err := cfg.Resolve("EXAMPLE").Port()
	require.NoError(t, err)
	assert.Equal(t, uint16(2222), port)
}

func TestResolveMatchHost(t *testing.T) {
	cfg := parseText(t, `
Match host *.internal
  User svc
Match all
  Compression yes
`)
	r := cfg.Resolve("db.internal")
	assert.Equal(t, "svc", r.User())
	v, _ := r.Get("compression")
	assert.Equal(t, "yes", v)

	r = cfg.Resolve("example.com")
	assert.Equal(t, "alice", r.User())
}
