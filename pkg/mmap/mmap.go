// Package mmap maps physical register windows from /dev/mem.
package mmap

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DevMem is the physical memory device mapped by NewMemoryMap.
const DevMem = "/dev/mem"

var ErrClosed = errors.New("mmap: region closed")

// MemoryMap represents a memory mapped register window
type MemoryMap struct {
	addr    uintptr
	size    uintptr
	mapping []byte
	region  []byte
}

// NewMemoryMap maps size bytes of physical memory at addr. addr need not be
// page aligned.
func NewMemoryMap(addr, size uintptr) (*MemoryMap, error) {
	f, err := os.OpenFile(DevMem, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", DevMem, err)
	}
	defer f.Close()

	page := uintptr(unix.Getpagesize())
	skew := addr % page
	mapping, err := unix.Mmap(
		int(f.Fd()),
		int64(addr-skew),
		int(size+skew),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mmap %#x+%#x: %w", addr, size, err)
	}

	return &MemoryMap{
		addr:    addr,
		size:    size,
		mapping: mapping,
		region:  mapping[skew : skew+size],
	}, nil
}

// FromBytes wraps b as a register window. Close is a no-op.
func FromBytes(b []byte) *MemoryMap {
	return &MemoryMap{
		size:   uintptr(len(b)),
		region: b,
	}
}

// Close unmaps the region
func (m *MemoryMap) Close() error {
	if m.region == nil {
		return ErrClosed
	}
	m.region = nil
	if m.mapping == nil {
		return nil
	}
	mapping := m.mapping
	m.mapping = nil
	return unix.Munmap(mapping)
}

// Addr returns the physical base address
func (m *MemoryMap) Addr() uintptr {
	return m.addr
}

// Size returns the window size in bytes
func (m *MemoryMap) Size() uintptr {
	return m.size
}

// Region returns the mapped memory region
func (m *MemoryMap) Region() []byte {
	return m.region
}

func (m *MemoryMap) word(offset uintptr) *uint32 {
	if offset%4 != 0 {
		panic(fmt.Sprintf("mmap: unaligned register offset %#x", offset))
	}
	_ = m.region[offset+3]
	return (*uint32)(unsafe.Pointer(&m.region[offset]))
}

// Read32 reads the 32-bit register at offset
func (m *MemoryMap) Read32(offset uintptr) uint32 {
	return atomic.LoadUint32(m.word(offset))
}

// Write32 writes the 32-bit register at offset
func (m *MemoryMap) Write32(offset uintptr, value uint32) {
	atomic.StoreUint32(m.word(offset), value)
}

// Read8 reads an 8-bit value
func (m *MemoryMap) Read8(offset uintptr) uint8 {
	return m.region[offset]
}

// Write8 writes an 8-bit value
func (m *MemoryMap) Write8(offset uintptr, value uint8) {
	m.region[offset] = value
}
