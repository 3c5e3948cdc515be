package sshcfg

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultPort is the port used when no Port directive applies.
const DefaultPort uint16 = 22

// ResolvedConfig is the flattened configuration for one target host. It is
// built fresh per Resolve call and never cached; treat it as an immutable
// value.
type ResolvedConfig struct {
	// Host is the name the lookup was performed for, before any HostName
	// rewriting.
	Host string

	values  map[string]string
	matched bool

	defaultUser string
	home        string
}

// Resolve walks the stanzas in file order and merges the directives of every
// stanza matching host. For each key the first obtained value wins; later
// stanzas only fill keys not yet set.
func (c *Config) Resolve(host string) *ResolvedConfig {
	r := &ResolvedConfig{
		Host:        host,
		values:      make(map[string]string),
		defaultUser: c.defaultUser,
		home:        c.home,
	}
	for _, stanza := range c.Stanzas {
		if !stanza.matches(host) {
			continue
		}
		if !stanza.implicit {
			r.matched = true
		}
		for _, d := range stanza.Directives {
			if _, ok := r.values[d.Key]; !ok {
				r.values[d.Key] = d.Value
			}
		}
	}
	return r
}

// ResolveStrict is Resolve for callers that require at least one explicit
// stanza to apply; otherwise it fails with ErrHostNotFound.
func (c *Config) ResolveStrict(host string) (*ResolvedConfig, error) {
	r := c.Resolve(host)
	if !r.matched {
		return nil, errors.Wrap(ErrHostNotFound, host)
	}
	return r, nil
}

// Get returns the value for a directive name, case-insensitively. Unknown
// directives parsed from the file are retrievable here as raw strings.
func (r *ResolvedConfig) Get(key string) (string, bool) {
	v, ok := r.values[strings.ToLower(key)]
	return v, ok
}

// Keys returns the resolved directive names, sorted.
func (r *ResolvedConfig) Keys() []string {
	keys := make([]string, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Hostname returns the HostName directive, defaulting to the literal
// requested host.
func (r *ResolvedConfig) Hostname() string {
	if v, ok := r.values["hostname"]; ok {
		return v
	}
	return r.Host
}

// Port returns the Port directive, defaulting to 22. A non-numeric value is
// an error rather than being silently replaced.
func (r *ResolvedConfig) Port() (uint16, error) {
	v, ok := r.values["port"]
	if !ok {
		return DefaultPort, nil
	}
	port, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid Port for host %s", r.Host)
	}
	return uint16(port), nil
}

// User returns the User directive, falling back to the username the parser
// was configured with.
func (r *ResolvedConfig) User() string {
	if v, ok := r.values["user"]; ok {
		return v
	}
	return r.defaultUser
}

// ProxyCommand returns the raw ProxyCommand template with tokens unexpanded.
func (r *ResolvedConfig) ProxyCommand() (string, bool) {
	v, ok := r.values["proxycommand"]
	return v, ok
}

// IdentityFile returns the IdentityFile path with a leading "~" expanded.
// The key itself is not read or validated here.
func (r *ResolvedConfig) IdentityFile() (string, bool) {
	v, ok := r.values["identityfile"]
	if !ok {
		return "", false
	}
	return expandTilde(v, r.home), true
}
