// Package sshcfg parses OpenSSH client configuration files (the
// ~/.ssh/config syntax) and resolves the effective configuration for a
// target host using OpenSSH's first-obtained-value semantics.
package sshcfg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/anmitsu/go-shlex"
	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// defaultIncludeDepth mirrors OpenSSH's READCONF_MAX_DEPTH.
const defaultIncludeDepth = 16

// Directive is a single "Key Value" line. Key is lowercased; Value keeps its
// raw spacing so directives like ProxyCommand survive verbatim.
type Directive struct {
	Key   string
	Value string
	Line  int
}

// Stanza is a Host or Match block together with the directives it carries.
type Stanza struct {
	// Patterns are the host patterns this stanza applies to. Empty when
	// All is set.
	Patterns []string
	// All marks stanzas that apply to every host: "Match all" blocks and
	// the implicit block holding directives that appear before any Host.
	All        bool
	Directives []Directive

	// implicit is set for the synthetic leading stanza; it never counts
	// as a match for ResolveStrict.
	implicit bool
}

func (s *Stanza) matches(host string) bool {
	if s.All {
		return true
	}
	return matchPatterns(s.Patterns, host)
}

// Config is an ordered sequence of stanzas with Include directives already
// expanded in place. It is immutable once parsed; concurrent resolutions may
// share it freely.
type Config struct {
	Stanzas []*Stanza

	defaultUser string
	home        string
}

// Parser reads ssh_config text. The zero value works against the real
// filesystem with library defaults; tests inject an afero.MemMapFs and fixed
// Home/Username so nothing ambient is consulted.
type Parser struct {
	// Fs is the filesystem used for the config file and Include targets.
	Fs afero.Fs
	// Home is the directory substituted for a leading "~". Empty disables
	// tilde expansion.
	Home string
	// Username is the fallback remote user for resolution when no User
	// directive applies.
	Username string
	// MaxIncludeDepth bounds Include recursion; zero means the OpenSSH
	// default of 16.
	MaxIncludeDepth int
}

// NewParser returns a Parser bound to the real filesystem and the current
// OS identity.
func NewParser() *Parser {
	p := &Parser{Fs: afero.NewOsFs()}
	if u, err := user.Current(); err == nil {
		p.Username = u.Username
	}
	if home, err := homedir.Dir(); err == nil {
		p.Home = home
	}
	return p
}

func (p *Parser) fs() afero.Fs {
	if p.Fs == nil {
		return afero.NewOsFs()
	}
	return p.Fs
}

func (p *Parser) maxDepth() int {
	if p.MaxIncludeDepth > 0 {
		return p.MaxIncludeDepth
	}
	return defaultIncludeDepth
}

// DefaultPath returns the per-user client config path, ~/.ssh/config.
func (p *Parser) DefaultPath() string {
	return filepath.Join(p.Home, ".ssh", "config")
}

// Load parses the default user config. A missing file is not an error; it
// yields an empty Config, matching ssh's behavior.
func (p *Parser) Load() (*Config, error) {
	cfg, err := p.ParseFile(p.DefaultPath())
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) && perr.Kind == IOError && os.IsNotExist(perr.Err) {
			return p.newConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// ParseFile parses the named file, expanding Include directives relative to
// its directory.
func (p *Parser) ParseFile(path string) (*Config, error) {
	cfg := p.newConfig()
	l := &loader{p: p, cfg: cfg}
	if err := l.file(path, 0); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse parses in-memory config text. Relative Include targets are resolved
// against the process working directory.
func (p *Parser) Parse(r io.Reader) (*Config, error) {
	cfg := p.newConfig()
	l := &loader{p: p, cfg: cfg}
	if err := l.reader(r, "", ".", 0); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *Parser) newConfig() *Config {
	return &Config{defaultUser: p.Username, home: p.Home}
}

// loader carries the parse state across included files so that Include
// expansion preserves file order and the current stanza.
type loader struct {
	p   *Parser
	cfg *Config
	cur *Stanza
}

func (l *loader) file(path string, depth int) error {
	f, err := l.p.fs().Open(path)
	if err != nil {
		return &ParseError{Path: path, Kind: IOError, Msg: "cannot open config file", Err: err}
	}
	defer f.Close()
	return l.reader(f, path, filepath.Dir(path), depth)
}

func (l *loader) reader(r io.Reader, path, baseDir string, depth int) error {
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := splitDirective(line)
		if !ok {
			return &ParseError{Path: path, Line: lineno, Kind: SyntaxError,
				Msg: "missing argument for " + strings.TrimRight(line, " \t=")}
		}

		switch key {
		case "host":
			patterns, err := splitArgs(value)
			if err != nil || len(patterns) == 0 {
				return &ParseError{Path: path, Line: lineno, Kind: SyntaxError,
					Msg: "invalid Host patterns", Err: err}
			}
			l.cur = &Stanza{Patterns: patterns}
			l.cfg.Stanzas = append(l.cfg.Stanzas, l.cur)
		case "match":
			stanza, err := parseMatch(value)
			if err != nil {
				return &ParseError{Path: path, Line: lineno, Kind: SyntaxError,
					Msg: err.Error()}
			}
			l.cur = stanza
			l.cfg.Stanzas = append(l.cfg.Stanzas, l.cur)
		case "include":
			if err := l.include(value, path, baseDir, lineno, depth); err != nil {
				return err
			}
		default:
			if l.cur == nil {
				// Directives before the first Host apply everywhere.
				l.cur = &Stanza{All: true, implicit: true}
				l.cfg.Stanzas = append(l.cfg.Stanzas, l.cur)
			}
			l.cur.Directives = append(l.cur.Directives, Directive{
				Key:   key,
				Value: unquote(value),
				Line:  lineno,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return &ParseError{Path: path, Kind: IOError, Msg: "read failed", Err: err}
	}
	return nil
}

func (l *loader) include(value, path, baseDir string, lineno, depth int) error {
	patterns, err := splitArgs(value)
	if err != nil || len(patterns) == 0 {
		return &ParseError{Path: path, Line: lineno, Kind: SyntaxError,
			Msg: "invalid Include argument", Err: err}
	}
	for _, pattern := range patterns {
		pattern = expandTilde(pattern, l.p.Home)
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(baseDir, pattern)
		}
		targets, err := afero.Glob(l.p.fs(), pattern)
		if err != nil {
			return &ParseError{Path: path, Line: lineno, Kind: SyntaxError,
				Msg: "bad Include pattern " + pattern, Err: err}
		}
		// A pattern with no matches is silently skipped, like ssh does.
		for _, target := range targets {
			if depth+1 > l.p.maxDepth() {
				return &ParseError{Path: path, Line: lineno, Kind: IncludeDepthExceeded,
					Msg: "including " + target}
			}
			log.WithFields(log.Fields{
				"from":   path,
				"target": target,
			}).Debug("Expanding include")
			if err := l.file(target, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// splitDirective separates the key from the rest of the line. Keys are
// case-insensitive and may be followed by whitespace, '=', or both.
func splitDirective(line string) (key, value string, ok bool) {
	i := strings.IndexAny(line, " \t=")
	if i < 0 {
		return "", "", false
	}
	key = strings.ToLower(line[:i])
	rest := strings.TrimLeft(line[i:], " \t")
	if strings.HasPrefix(rest, "=") {
		rest = strings.TrimLeft(rest[1:], " \t")
	}
	if rest == "" {
		return "", "", false
	}
	return key, rest, true
}

// splitArgs splits a multi-argument directive value with shell-style
// quoting, so patterns containing spaces can be quoted.
func splitArgs(value string) ([]string, error) {
	return shlex.Split(value, true)
}

// unquote strips one level of surrounding double quotes from a single-value
// directive, leaving interior spacing untouched.
func unquote(value string) string {
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		return value[1 : len(value)-1]
	}
	return value
}

// parseMatch handles the supported Match criteria: "all" (with "canonical"
// and "final" treated the same way in this single-pass resolver) and
// "host" with a comma-separated pattern list. Anything else is rejected
// rather than silently matching.
func parseMatch(value string) (*Stanza, error) {
	args, err := splitArgs(value)
	if err != nil {
		return nil, fmt.Errorf("invalid Match arguments: %v", err)
	}
	if len(args) == 0 {
		return nil, errors.New("Match requires at least one criterion")
	}
	stanza := &Stanza{}
	for i := 0; i < len(args); i++ {
		switch strings.ToLower(args[i]) {
		case "all", "canonical", "final":
		case "host":
			i++
			if i >= len(args) {
				return nil, errors.New("Match host requires a pattern list")
			}
			stanza.Patterns = append(stanza.Patterns, strings.Split(args[i], ",")...)
		default:
			return nil, fmt.Errorf("unsupported Match criterion %q", args[i])
		}
	}
	stanza.All = len(stanza.Patterns) == 0
	return stanza, nil
}

func expandTilde(path, home string) string {
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
