package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRead(t *testing.T) {
	m := NewMemory([]byte{1, 2, 3, 4})
	assert.Equal(t, uint64(4), m.Size())
	assert.Equal(t, uint64(0), m.BaseAddress())

	buf := make([]byte, 2)
	require.NoError(t, m.Read(1, buf))
	assert.Equal(t, []byte{2, 3}, buf)
}

func TestMemoryReadPastEnd(t *testing.T) {
	m := NewMemory([]byte{1, 2})

	buf := make([]byte, 4)
	err := m.Read(0, buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds the data size")
}

func TestMemoryBaseAddress(t *testing.T) {
	m := NewMemory([]byte{0xAA, 0xBB})
	m.SetBaseAddress(0x1000)

	buf := make([]byte, 1)
	require.NoError(t, m.Read(0x1001, buf))
	assert.Equal(t, byte(0xBB), buf[0])

	err := m.Read(0x10, buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below the base address")
}
