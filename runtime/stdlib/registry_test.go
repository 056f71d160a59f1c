package stdlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexpat-lang/hexpat/core/value"
)

func TestParamCountSentinels(t *testing.T) {
	tests := []struct {
		name   string
		params ParamCount
		argc   int
		want   bool
	}{
		{"exact match", Exactly(2), 2, true},
		{"exact mismatch", Exactly(2), 3, false},
		{"none ok", NoParameters(), 0, true},
		{"none rejects", NoParameters(), 1, false},
		{"unlimited", UnlimitedParameters(), 17, true},
		{"more than ok", MoreParametersThan(1), 2, true},
		{"more than rejects equal", MoreParametersThan(1), 1, false},
		{"less than ok", LessParametersThan(3), 2, true},
		{"less than rejects", LessParametersThan(3), 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.params.Check(tt.argc))
		})
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	noop := func(ctx Context, args []value.Literal) (value.Literal, error) { return nil, nil }

	require.NoError(t, r.AddCustomFunction("host::fn", Exactly(0), noop))
	err := r.AddCustomFunction("host::fn", Exactly(1), noop)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)

	assert.True(t, r.Exists("std::print"))
	assert.True(t, r.Exists("std::hash::blake2b"))
	assert.False(t, r.Exists("std::prin"))

	f, ok := r.Get("std::file::read")
	require.True(t, ok)
	assert.True(t, f.Dangerous)

	assert.Contains(t, r.Names(), "std::mem::size")
}

func TestFormatArgs(t *testing.T) {
	tests := []struct {
		name   string
		format string
		args   []value.Literal
		want   string
	}{
		{"simple", "x = {}", []value.Literal{value.Unsigned(5)}, "x = 5"},
		{"multiple", "{} + {} = {}", []value.Literal{value.Unsigned(1), value.Unsigned(2), value.Unsigned(3)}, "1 + 2 = 3"},
		{"extra args dropped", "{}", []value.Literal{value.Unsigned(1), value.Unsigned(2)}, "1"},
		{"missing args keep braces", "{} {}", []value.Literal{value.Unsigned(1)}, "1 {}"},
		{"strings", "name: {}", []value.Literal{value.String("hdr")}, "name: hdr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatArgs(tt.format, tt.args))
		})
	}
}
