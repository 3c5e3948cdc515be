// Package proxycmd launches an ssh_config ProxyCommand and exposes the
// child process's stdin/stdout as a net.Conn, the duplex byte stream an SSH
// client library consumes in place of a direct socket.
package proxycmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/CodeEditorLand/sshcfg/pkg/sshcfg"
)

// ErrNoProxyCommand is returned by Dial when the resolved host carries no
// ProxyCommand directive.
var ErrNoProxyCommand = errors.New("no ProxyCommand configured")

// SpawnError indicates the shell running the proxy command could not be
// started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start proxy command %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Launcher spawns proxy commands. The zero value uses the platform default
// shell.
type Launcher struct {
	// Shell is the command prefix the proxy command string is appended to,
	// e.g. {"/bin/sh", "-c"}. The command is passed as a single argument so
	// user-authored shell syntax such as pipes survives.
	Shell []string
}

func defaultShell() []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C"}
	}
	return []string{"/bin/sh", "-c"}
}

// Launch runs command under the shell with stdin and stdout piped and stderr
// inherited, so diagnostics from the proxy command stay visible to the
// operator. Canceling ctx kills the child. The returned Conn owns the
// process.
func (l *Launcher) Launch(ctx context.Context, command string) (*Conn, error) {
	shell := l.Shell
	if len(shell) == 0 {
		shell = defaultShell()
	}
	args := append(append([]string(nil), shell...), command)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}

	// The stdout pipe is built by hand rather than with StdoutPipe: Wait
	// closes a StdoutPipe read end as soon as the child exits, destroying
	// any bytes still in flight. With os.Pipe the read end belongs to the
	// Conn alone, so output written just before exit is delivered and then
	// followed by a clean EOF.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, &SpawnError{Command: command, Err: err}
	}
	cmd.Stdout = stdoutW
	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, &SpawnError{Command: command, Err: err}
	}
	// The child holds its own copy of the write end now; keeping ours open
	// would block Read from ever seeing EOF.
	stdoutW.Close()

	log.WithFields(log.Fields{
		"command": command,
		"pid":     cmd.Process.Pid,
	}).Debug("Proxy command started")

	c := &Conn{
		cmd:     cmd,
		command: command,
		stdin:   stdin,
		stdout:  stdoutR,
		done:    make(chan struct{}),
	}
	go c.reap()
	return c, nil
}

// Launch runs command with the platform default shell. See Launcher.Launch.
func Launch(ctx context.Context, command string) (*Conn, error) {
	var l Launcher
	return l.Launch(ctx, command)
}

// Dial expands the resolved host's ProxyCommand with its hostname, port and
// remote user, then launches it.
func Dial(ctx context.Context, r *sshcfg.ResolvedConfig) (*Conn, error) {
	var l Launcher
	return l.Dial(ctx, r)
}

// Dial expands the resolved host's ProxyCommand and launches it with this
// launcher's shell.
func (l *Launcher) Dial(ctx context.Context, r *sshcfg.ResolvedConfig) (*Conn, error) {
	template, ok := r.ProxyCommand()
	if !ok {
		return nil, errors.Wrap(ErrNoProxyCommand, r.Host)
	}
	port, err := r.Port()
	if err != nil {
		return nil, err
	}
	command := Expand(template, r.Hostname(), port, r.User())
	log.WithFields(log.Fields{
		"host":    r.Host,
		"command": command,
	}).Debug("Resolved proxy command")
	return l.Launch(ctx, command)
}
