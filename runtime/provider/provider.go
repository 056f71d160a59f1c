// Package provider defines the byte-source contract the evaluator
// consumes, plus an in-memory implementation used by the CLI and tests.
package provider

import "fmt"

// Provider supplies random-access bytes to a pattern run. The evaluator
// only reads; implementations must fully satisfy every request or
// return an error.
type Provider interface {
	// Size returns the number of addressable bytes.
	Size() uint64
	// BaseAddress returns the address of the first byte.
	BaseAddress() uint64
	// SetBaseAddress relocates the data; driven by #pragma base_address.
	SetBaseAddress(addr uint64)
	// Read fills buf starting at the absolute offset. A read past the
	// end fails as a whole; partial reads do not occur.
	Read(offset uint64, buf []byte) error
}

// Memory is a Provider over an in-memory byte slice.
type Memory struct {
	data []byte
	base uint64
}

// NewMemory wraps data as a provider with base address 0.
func NewMemory(data []byte) *Memory {
	return &Memory{data: data}
}

func (m *Memory) Size() uint64               { return uint64(len(m.data)) }
func (m *Memory) BaseAddress() uint64        { return m.base }
func (m *Memory) SetBaseAddress(addr uint64) { m.base = addr }

func (m *Memory) Read(offset uint64, buf []byte) error {
	if offset < m.base {
		return fmt.Errorf("read at 0x%X is below the base address 0x%X", offset, m.base)
	}
	start := offset - m.base
	end := start + uint64(len(buf))
	if end > uint64(len(m.data)) || end < start {
		return fmt.Errorf("read of %d bytes at 0x%X exceeds the data size of 0x%X", len(buf), offset, len(m.data))
	}
	copy(buf, m.data[start:end])
	return nil
}
