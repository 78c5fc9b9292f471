package gdbserver

import (
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/Grazen0/rv32-emu/internal/emu"
	"github.com/Grazen0/rv32-emu/internal/rsp"
)

// Session is the per-connection state a GDB client drives: the owned Cpu
// (and through it, Memory), the wire codec, the current stop signal, and
// the receive/dispatch loop. It replaces the historical source's mutual
// Server<->Handler pointers with a single struct holding everything a
// packet handler needs.
type Session struct {
	conn       net.Conn
	codec      *rsp.Codec
	cpu        *emu.Cpu
	stopSignal string
}

// NewSession wraps conn and binds cpu as the session's guest state.
func NewSession(conn net.Conn, cpu *emu.Cpu) *Session {
	return &Session{
		conn:       conn,
		codec:      rsp.NewCodec(conn),
		cpu:        cpu,
		stopSignal: "S05",
	}
}

// Run drives the packet loop until the client disconnects or quit is set
// by a signal handler. A guest Exit ecall stops a running s/c with S05,
// like a breakpoint; the session itself keeps serving packets. A clean
// disconnect (UnexpectedEof) is not reported as an error.
func (s *Session) Run(quit *Quit) error {
	for {
		if quit.Requested() {
			return nil
		}

		packet, err := s.codec.ReceivePacket()
		if err != nil {
			var codecErr *rsp.Error
			if errors.As(err, &codecErr) && codecErr.Kind == rsp.UnexpectedEof {
				return nil
			}
			return err
		}

		response, enterNoAck, fatal := s.dispatch(packet)
		if sendErr := s.codec.SendResponse(response); sendErr != nil {
			return sendErr
		}
		if enterNoAck {
			s.codec.NoAckMode = true
		}
		if fatal != nil {
			return fatal
		}
	}
}

func (s *Session) dispatch(packet []byte) (response []byte, enterNoAck bool, fatal error) {
	p := string(packet)

	switch {
	case strings.HasPrefix(p, "qSupported"):
		return []byte("QStartNoAckMode+"), false, nil

	case p == "QStartNoAckMode":
		return []byte("OK"), true, nil

	case p == "qfThreadInfo":
		return []byte("m1"), false, nil

	case p == "qsThreadInfo":
		return []byte("l"), false, nil

	case p == "qC":
		return []byte("QC1"), false, nil

	case p == "qTStatus":
		return nil, false, nil

	case strings.HasPrefix(p, "q") || strings.HasPrefix(p, "Q"):
		return nil, false, nil

	case p == "vCont?":
		return []byte("vCont;c;s;t"), false, nil

	case strings.HasPrefix(p, "v"):
		return nil, false, nil

	case p == "?":
		return []byte(s.stopSignal), false, nil

	case strings.HasPrefix(p, "Hg") || strings.HasPrefix(p, "Hc"):
		return []byte("OK"), false, nil

	case p == "g":
		return s.handleReadRegs(), false, nil

	case strings.HasPrefix(p, "G"):
		return s.handleWriteRegs(p[1:]), false, nil

	case strings.HasPrefix(p, "m"):
		return s.handleReadMem(p[1:]), false, nil

	case strings.HasPrefix(p, "M"):
		return s.handleWriteMem(p[1:]), false, nil

	case p == "s":
		resp, err := s.handleStep()
		return resp, false, err

	case p == "c":
		resp, err := s.handleContinue()
		return resp, false, err

	default:
		return nil, false, nil
	}
}

func (s *Session) handleReadRegs() []byte {
	buf := rsp.NewByteBuffer()
	for _, v := range s.cpu.RegsSnapshot() {
		buf.PushHexU32LE(v)
	}
	return buf.Bytes()
}

func (s *Session) handleWriteRegs(hex string) []byte {
	const wantLen = 8 * 33
	if len(hex) != wantLen {
		return []byte("E01")
	}
	var snap [33]uint32
	for i := range snap {
		v, err := parseHexU32LE(hex[i*8 : i*8+8])
		if err != nil {
			return []byte("E01")
		}
		snap[i] = v
	}
	s.cpu.LoadRegsSnapshot(snap)
	return []byte("OK")
}

func parseHexU32LE(hex string) (uint32, error) {
	var bs [4]byte
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
		if err != nil {
			return 0, err
		}
		bs[i] = byte(v)
	}
	return uint32(bs[0]) | uint32(bs[1])<<8 | uint32(bs[2])<<16 | uint32(bs[3])<<24, nil
}

func parseAddrLen(s string) (addr, length uint32, ok bool) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	a, err := strconv.ParseUint(parts[0], 16, 32)
	if err != nil {
		return 0, 0, false
	}
	l, err := strconv.ParseUint(parts[1], 16, 32)
	if err != nil {
		return 0, 0, false
	}
	return uint32(a), uint32(l), true
}

func (s *Session) handleReadMem(rest string) []byte {
	addr, length, ok := parseAddrLen(rest)
	if !ok {
		return []byte("E01")
	}
	// Preserve the historical source's off-by-one: the range check is
	// addr+len >= 2^32, so the very last byte of the address space is
	// unreachable via m/M.
	if uint64(addr)+uint64(length) >= 1<<32 {
		return []byte("E14")
	}
	buf := rsp.NewByteBuffer()
	for i := uint32(0); i < length; i++ {
		b, err := s.cpu.Mem.Read8(addr + i)
		if err != nil {
			return []byte("E14")
		}
		buf.PushHexU8(b)
	}
	return buf.Bytes()
}

func (s *Session) handleWriteMem(rest string) []byte {
	addrLen, hexData, found := strings.Cut(rest, ":")
	if !found {
		return []byte("E01")
	}
	addr, length, ok := parseAddrLen(addrLen)
	if !ok {
		return []byte("E01")
	}
	if len(hexData) != int(length)*2 {
		return []byte("E01")
	}
	if uint64(addr)+uint64(length) >= 1<<32 {
		return []byte("E14")
	}
	for i := uint32(0); i < length; i++ {
		v, err := strconv.ParseUint(hexData[i*2:i*2+2], 16, 8)
		if err != nil {
			return []byte("E01")
		}
		if err := s.cpu.Mem.Write8(addr+i, byte(v)); err != nil {
			return []byte("E14")
		}
	}
	return []byte("OK")
}

func (s *Session) handleStep() ([]byte, error) {
	result, err := s.cpu.Step()
	if err != nil {
		// A permission or misalignment fault during guest execution is
		// fatal to the session, not a recoverable trap.
		return []byte(s.stopSignal), err
	}
	switch result {
	case emu.IllegalInstruction:
		s.stopSignal = "S04"
	default:
		s.stopSignal = "S05"
	}
	return []byte(s.stopSignal), nil
}

// handleContinue runs the guest until Cpu.Step stops returning Continue or
// the client sends an unframed 0x03. It alternates one step with one
// non-blocking poll of the socket, per §4.5/§5.
func (s *Session) handleContinue() ([]byte, error) {
	for {
		broke, err := pollBreakByte(s.codec, s.conn)
		if err != nil {
			return nil, err
		}
		if broke {
			s.stopSignal = "S02"
			return []byte(s.stopSignal), nil
		}

		result, err := s.cpu.Step()
		if err != nil {
			return []byte(s.stopSignal), err
		}

		switch result {
		case emu.Continue:
			continue
		case emu.IllegalInstruction:
			s.stopSignal = "S04"
			return []byte(s.stopSignal), nil
		default: // Break, Exit
			s.stopSignal = "S05"
			return []byte(s.stopSignal), nil
		}
	}
}
