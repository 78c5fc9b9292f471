package emu

import "fmt"

// Perms is a bitmask of the access rights granted to a Segment.
type Perms uint8

const (
	PermRead Perms = 1 << iota
	PermWrite
	PermExecute
)

func (p Perms) String() string {
	r, w, x := "-", "-", "-"
	if p&PermRead != 0 {
		r = "r"
	}
	if p&PermWrite != 0 {
		w = "w"
	}
	if p&PermExecute != 0 {
		x = "x"
	}
	return r + w + x
}

// Segment is a contiguous, permission-tagged region of guest address
// space. Segments are created exclusively by the ELF loader from PT_LOAD
// program headers and live for the lifetime of the session.
type Segment struct {
	Addr  uint32
	Size  uint32
	Perms Perms
	data  []byte
}

func (s *Segment) contains(addr uint32) bool {
	return addr >= s.Addr && addr < s.Addr+s.Size
}

// FaultKind identifies the reason a Memory access was refused.
type FaultKind int

const (
	FaultNoSegment FaultKind = iota
	FaultPermissionRead
	FaultPermissionWrite
	FaultPermissionExecute
	FaultMisalignedFetch
	FaultOutOfBounds
	FaultOverlappingSegment
)

func (k FaultKind) String() string {
	switch k {
	case FaultNoSegment:
		return "no segment contains this address"
	case FaultPermissionRead:
		return "read without permission"
	case FaultPermissionWrite:
		return "write without permission"
	case FaultPermissionExecute:
		return "execute without permission"
	case FaultMisalignedFetch:
		return "misaligned instruction fetch"
	case FaultOutOfBounds:
		return "out of bounds"
	case FaultOverlappingSegment:
		return "overlapping segment"
	default:
		return "unknown memory fault"
	}
}

// Fault is a fatal guest-memory error. Per spec, permission and
// misalignment faults terminate the emulator session; they are not
// recoverable RISC-V traps in this design.
type Fault struct {
	Kind FaultKind
	Addr uint32
}

func (f *Fault) Error() string {
	return fmt.Sprintf("memory fault at 0x%08X: %s", f.Addr, f.Kind)
}

// Memory is the guest's flat 32-bit address space, backed sparsely by a
// small list of Segments rather than one 4 GiB byte array.
type Memory struct {
	segments []*Segment
}

// NewMemory returns an empty address space with no segments mapped.
func NewMemory() *Memory {
	return &Memory{}
}

// AddSegment appends seg to the segment table. Segments must not overlap
// any existing segment.
func (m *Memory) AddSegment(seg Segment) error {
	for _, existing := range m.segments {
		if rangesOverlap(existing.Addr, existing.Size, seg.Addr, seg.Size) {
			return &Fault{Kind: FaultOverlappingSegment, Addr: seg.Addr}
		}
	}
	seg.data = make([]byte, seg.Size)
	m.segments = append(m.segments, &seg)

	Debugf("added segment ==================\n")
	Debugf("addr: 0x%08X\n", seg.Addr)
	Debugf("size: %d\n", seg.Size)
	Debugf("perms: %s\n", seg.Perms)

	return nil
}

func rangesOverlap(aAddr, aSize, bAddr, bSize uint32) bool {
	aEnd := uint64(aAddr) + uint64(aSize)
	bEnd := uint64(bAddr) + uint64(bSize)
	return uint64(aAddr) < bEnd && uint64(bAddr) < aEnd
}

func (m *Memory) find(addr uint32) *Segment {
	for _, seg := range m.segments {
		if seg.contains(addr) {
			return seg
		}
	}
	return nil
}

// WriteBytes bulk-copies src into the address space starting at addr,
// bypassing permission checks. It exists solely for the ELF loader to
// populate segment contents; it still requires the destination range to
// fall within a single existing segment.
func (m *Memory) WriteBytes(addr uint32, src []byte) error {
	if uint64(addr)+uint64(len(src)) > 1<<32 {
		return &Fault{Kind: FaultOutOfBounds, Addr: addr}
	}
	if len(src) == 0 {
		return nil
	}
	seg := m.find(addr)
	if seg == nil || !seg.contains(addr+uint32(len(src))-1) {
		return &Fault{Kind: FaultNoSegment, Addr: addr}
	}
	copy(seg.data[addr-seg.Addr:], src)
	return nil
}

// Read8 reads a single byte. The containing segment must grant Read.
func (m *Memory) Read8(addr uint32) (uint8, error) {
	seg := m.find(addr)
	if seg == nil {
		return 0, &Fault{Kind: FaultNoSegment, Addr: addr}
	}
	if seg.Perms&PermRead == 0 {
		return 0, &Fault{Kind: FaultPermissionRead, Addr: addr}
	}
	return seg.data[addr-seg.Addr], nil
}

// Read16LE reads a little-endian halfword. RISC-V permits misaligned data
// accesses: an odd address only warns, it does not fault.
func (m *Memory) Read16LE(addr uint32) (uint16, error) {
	if addr%2 != 0 {
		Warnf("misaligned half-word read (0x%08X)\n", addr)
	}
	a, err := m.Read8(addr)
	if err != nil {
		return 0, err
	}
	b, err := m.Read8(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(a) | uint16(b)<<8, nil
}

// Read32LE reads a little-endian word, warning (not faulting) on
// misalignment.
func (m *Memory) Read32LE(addr uint32) (uint32, error) {
	if addr%4 != 0 {
		Warnf("misaligned word read (0x%08X)\n", addr)
	}
	a, err := m.Read8(addr)
	if err != nil {
		return 0, err
	}
	b, err := m.Read8(addr + 1)
	if err != nil {
		return 0, err
	}
	c, err := m.Read8(addr + 2)
	if err != nil {
		return 0, err
	}
	d, err := m.Read8(addr + 3)
	if err != nil {
		return 0, err
	}
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24, nil
}

// FetchInstr reads an instruction word. Unlike Read32LE, misalignment is a
// hard fault and the containing segment must grant Execute.
func (m *Memory) FetchInstr(addr uint32) (uint32, error) {
	if addr%4 != 0 {
		return 0, &Fault{Kind: FaultMisalignedFetch, Addr: addr}
	}
	seg := m.find(addr)
	if seg == nil {
		return 0, &Fault{Kind: FaultNoSegment, Addr: addr}
	}
	if seg.Perms&PermExecute == 0 {
		return 0, &Fault{Kind: FaultPermissionExecute, Addr: addr}
	}
	if !seg.contains(addr + 3) {
		return 0, &Fault{Kind: FaultOutOfBounds, Addr: addr}
	}
	off := addr - seg.Addr
	b := seg.data[off : off+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// Write8 writes a single byte. The containing segment must grant Write.
func (m *Memory) Write8(addr uint32, v uint8) error {
	seg := m.find(addr)
	if seg == nil {
		return &Fault{Kind: FaultNoSegment, Addr: addr}
	}
	if seg.Perms&PermWrite == 0 {
		return &Fault{Kind: FaultPermissionWrite, Addr: addr}
	}
	seg.data[addr-seg.Addr] = v
	return nil
}

// Write16LE writes a little-endian halfword, warning (not faulting) on
// misalignment.
func (m *Memory) Write16LE(addr uint32, v uint16) error {
	if addr%2 != 0 {
		Warnf("misaligned half-word write (0x%08X)\n", addr)
	}
	if err := m.Write8(addr, uint8(v)); err != nil {
		return err
	}
	return m.Write8(addr+1, uint8(v>>8))
}

// Write32LE writes a little-endian word, warning (not faulting) on
// misalignment.
func (m *Memory) Write32LE(addr uint32, v uint32) error {
	if addr%4 != 0 {
		Warnf("misaligned word write (0x%08X)\n", addr)
	}
	if err := m.Write8(addr, uint8(v)); err != nil {
		return err
	}
	if err := m.Write8(addr+1, uint8(v>>8)); err != nil {
		return err
	}
	if err := m.Write8(addr+2, uint8(v>>16)); err != nil {
		return err
	}
	return m.Write8(addr+3, uint8(v>>24))
}

// Segments returns the segment table in insertion order.
func (m *Memory) Segments() []*Segment {
	return m.segments
}
