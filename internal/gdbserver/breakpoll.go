package gdbserver

import (
	"net"

	"golang.org/x/sys/unix"

	"github.com/Grazen0/rv32-emu/internal/rsp"
)

// breakByte is the unframed Ctrl-C byte GDB sends to interrupt a running
// target. It never appears inside a well-formed $...#cc frame, so seeing
// it outside framing is unambiguous.
const breakByte = 0x03

// pollBreakByte checks, without blocking, whether the client has sent a
// byte since the last check and reports whether that byte was the break
// byte. Per the protocol's own note, the codec's buffered reader is
// drained first so a poll can never skip over data already read off the
// wire; only once that buffer is empty does this fall back to a raw,
// zero-timeout unix.Poll on the socket descriptor, mirroring the
// historical source's poll(2) call.
func pollBreakByte(codec *rsp.Codec, conn net.Conn) (bool, error) {
	r := codec.Reader()

	if r.Buffered() > 0 {
		b, err := r.ReadByte()
		if err != nil {
			return false, err
		}
		return b == breakByte, nil
	}

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return false, nil
	}
	raw, err := tcpConn.SyscallConn()
	if err != nil {
		return false, err
	}

	var ready bool
	var pollErr error
	ctrlErr := raw.Read(func(fd uintptr) bool {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, perr := unix.Poll(fds, 0)
		if perr != nil {
			pollErr = perr
			return true
		}
		ready = n > 0 && fds[0].Revents&unix.POLLIN != 0
		return true
	})
	if ctrlErr != nil {
		return false, ctrlErr
	}
	if pollErr != nil {
		return false, pollErr
	}
	if !ready {
		return false, nil
	}

	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b == breakByte, nil
}
