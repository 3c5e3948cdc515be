package proxycmd

import (
	"io"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Conn adapts a running proxy command to net.Conn. Reads come from the
// child's stdout and writes go to its stdin; end-of-stream on Read means the
// child closed its stdout. Conn exclusively owns the process: Close always
// leaves it reaped, never a zombie.
type Conn struct {
	cmd     *exec.Cmd
	command string
	stdin   io.WriteCloser
	stdout  io.ReadCloser

	done    chan struct{}
	waitErr error

	closeOnce sync.Once
	closeErr  error
}

var _ net.Conn = (*Conn)(nil)

// reap collects the exit status as soon as the child terminates, on every
// path including an early client-side Close.
func (c *Conn) reap() {
	c.waitErr = c.cmd.Wait()
	entry := log.WithFields(log.Fields{
		"command": c.command,
		"pid":     c.cmd.Process.Pid,
	})
	if c.waitErr != nil {
		entry.WithError(c.waitErr).Info("Proxy command exited")
	} else {
		entry.Debug("Proxy command exited")
	}
	close(c.done)
}

func (c *Conn) Read(p []byte) (int, error) {
	return c.stdout.Read(p)
}

// Write forwards to the child's stdin. When the child has gone away the
// pipe error (broken pipe or closed file) is returned to the caller.
func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.stdin.Write(p)
	if err != nil {
		return n, errors.Wrap(err, "proxy command stdin")
	}
	return n, nil
}

// CloseWrite closes the child's stdin so it observes end-of-input, leaving
// the read side open. This is the half-close netcat-style proxies rely on.
func (c *Conn) CloseWrite() error {
	return c.stdin.Close()
}

// Close shuts both pipes, kills the child if it is still running and waits
// for its exit status to be collected.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		werr := c.stdin.Close()
		rerr := c.stdout.Close()
		// Kill reports ErrProcessDone when the child already exited; either
		// way the reaper goroutine observes the exit.
		_ = c.cmd.Process.Kill()
		<-c.done
		for _, err := range []error{werr, rerr} {
			if err != nil && !errors.Is(err, os.ErrClosed) {
				c.closeErr = err
				break
			}
		}
	})
	return c.closeErr
}

// Wait blocks until the proxy command has exited and returns its wait
// result. After Close on a still-running command this is the kill signal.
func (c *Conn) Wait() error {
	<-c.done
	return c.waitErr
}

func (c *Conn) LocalAddr() net.Addr  { return addr{command: c.command} }
func (c *Conn) RemoteAddr() net.Addr { return addr{command: c.command} }

// Deadlines are not supported on pipe-backed connections.
func (c *Conn) SetDeadline(t time.Time) error {
	return errors.New("proxycmd: deadlines not supported")
}

func (c *Conn) SetReadDeadline(t time.Time) error {
	return errors.New("proxycmd: deadlines not supported")
}

func (c *Conn) SetWriteDeadline(t time.Time) error {
	return errors.New("proxycmd: deadlines not supported")
}

// addr identifies the transport for diagnostics; there is no real network
// address behind a proxy command.
type addr struct{ command string }

func (addr) Network() string  { return "proxycommand" }
func (a addr) String() string { return a.command }
