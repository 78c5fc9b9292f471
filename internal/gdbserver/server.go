// Package gdbserver implements the TCP-hosted GDB Remote Serial Protocol
// front end: the single-connection listener lifecycle and the per-session
// packet dispatch loop that drives an emu.Cpu/emu.Memory pair.
package gdbserver

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/Grazen0/rv32-emu/internal/emu"
)

// ErrorKind enumerates the connection-lifecycle failures distinct from the
// wire-level codec errors (rsp.ErrorKind).
type ErrorKind int

const (
	CreateSocketError ErrorKind = iota
	BindError
	ListenError
)

func (k ErrorKind) String() string {
	switch k {
	case CreateSocketError:
		return "failed to create socket"
	case BindError:
		return "failed to bind socket"
	case ListenError:
		return "failed to listen on socket"
	default:
		return "unknown connection error"
	}
}

// Error wraps a connection-lifecycle failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gdbserver: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Server owns the listening socket. Only one client is served at a time,
// by design: a second connection attempt simply waits until the first
// session ends and AcceptAndRun is called again.
type Server struct {
	ln net.Listener
}

// Listen creates a TCP socket with SO_REUSEADDR set, bound to port on all
// interfaces. The listen backlog is the Go runtime's default (the system
// limit), not 1.
func Listen(port uint16) (*Server, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	ln, err := lc.Listen(context.Background(), "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, &Error{Kind: ListenError, Err: err}
	}
	return &Server{ln: ln}, nil
}

// Close releases the listening socket. Safe to call once the server is no
// longer accepting connections.
func (s *Server) Close() error {
	return s.ln.Close()
}

// AcceptAndRun blocks for a single client connection, runs a full session
// against cpu/mem, and returns once that client disconnects or quit is set.
// A guest Exit ecall does not end the session (see Session.Run). quit, if
// non-nil, is checked by the session loop before each packet is read; it
// does not interrupt a blocked Accept or a blocked packet read.
func (s *Server) AcceptAndRun(cpu *emu.Cpu, quit *Quit) error {
	conn, err := s.ln.Accept()
	if err != nil {
		return &Error{Kind: ListenError, Err: err}
	}
	defer conn.Close()

	sess := NewSession(conn, cpu)
	return sess.Run(quit)
}
