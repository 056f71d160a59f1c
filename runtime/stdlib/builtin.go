package stdlib

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/hexpat-lang/hexpat/core/console"
	"github.com/hexpat-lang/hexpat/core/value"
)

// RegisterBuiltins adds the std:: function library to a registry.
func RegisterBuiltins(r *Registry) {
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	must(r.AddCustomFunction("std::print", MoreParametersThan(0), stdPrint))
	must(r.AddCustomFunction("std::format", MoreParametersThan(0), stdFormat))
	must(r.AddCustomFunction("std::error", Exactly(1), stdError))
	must(r.AddCustomFunction("std::warning", Exactly(1), stdWarning))
	must(r.AddCustomFunction("std::assert", Exactly(2), stdAssert))
	must(r.AddCustomFunction("std::env", Exactly(1), stdEnv))

	must(r.AddCustomFunction("std::mem::size", NoParameters(), stdMemSize))
	must(r.AddCustomFunction("std::mem::base_address", NoParameters(), stdMemBaseAddress))
	must(r.AddCustomFunction("std::mem::read_unsigned", Exactly(2), stdMemReadUnsigned))
	must(r.AddCustomFunction("std::mem::read_signed", Exactly(2), stdMemReadSigned))
	must(r.AddCustomFunction("std::mem::read_string", Exactly(2), stdMemReadString))

	must(r.AddCustomFunction("std::hash::blake2b", Exactly(2), stdHashBlake2b))

	must(r.AddDangerousFunction("std::file::read", Exactly(1), stdFileRead))
}

// formatArgs renders a format string by substituting each "{}" with
// the next argument.
func formatArgs(format string, args []value.Literal) string {
	var sb strings.Builder
	rest := format
	for _, arg := range args {
		idx := strings.Index(rest, "{}")
		if idx < 0 {
			break
		}
		sb.WriteString(rest[:idx])
		sb.WriteString(arg.String())
		rest = rest[idx+2:]
	}
	sb.WriteString(rest)
	return sb.String()
}

func formatCall(args []value.Literal) (string, error) {
	format, ok := args[0].(value.String)
	if !ok {
		return "", fmt.Errorf("first argument must be a format string")
	}
	return formatArgs(string(format), args[1:]), nil
}

func stdPrint(ctx Context, args []value.Literal) (value.Literal, error) {
	text, err := formatCall(args)
	if err != nil {
		return nil, err
	}
	ctx.Console().Log(console.Info, text)
	return nil, nil
}

func stdFormat(ctx Context, args []value.Literal) (value.Literal, error) {
	text, err := formatCall(args)
	if err != nil {
		return nil, err
	}
	return value.String(text), nil
}

func stdError(ctx Context, args []value.Literal) (value.Literal, error) {
	return nil, fmt.Errorf("%s", args[0].String())
}

func stdWarning(ctx Context, args []value.Literal) (value.Literal, error) {
	ctx.Console().Log(console.Warning, args[0].String())
	return nil, nil
}

func stdAssert(ctx Context, args []value.Literal) (value.Literal, error) {
	ok, err := value.ToBool(args[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("assertion failed: %s", args[1].String())
	}
	return nil, nil
}

func stdEnv(ctx Context, args []value.Literal) (value.Literal, error) {
	name, ok := args[0].(value.String)
	if !ok {
		return nil, fmt.Errorf("environment variable name must be a string")
	}
	v, found := ctx.EnvVariable(string(name))
	if !found {
		return nil, fmt.Errorf("environment variable '%s' does not exist", name)
	}
	return v, nil
}

func stdMemSize(ctx Context, args []value.Literal) (value.Literal, error) {
	return value.Unsigned(ctx.Provider().Size()), nil
}

func stdMemBaseAddress(ctx Context, args []value.Literal) (value.Literal, error) {
	return value.Unsigned(ctx.Provider().BaseAddress()), nil
}

// readRange validates and reads an (address, size) argument pair.
func readRange(ctx Context, args []value.Literal, maxSize uint64) ([]byte, error) {
	addr, err := value.ToUnsigned(args[0])
	if err != nil {
		return nil, err
	}
	size, err := value.ToUnsigned(args[1])
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && (size == 0 || size > maxSize) {
		return nil, fmt.Errorf("invalid read size %d", size)
	}
	buf := make([]byte, size)
	if err := ctx.Provider().Read(addr, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func stdMemReadUnsigned(ctx Context, args []value.Literal) (value.Literal, error) {
	buf, err := readRange(ctx, args, 8)
	if err != nil {
		return nil, err
	}
	return value.Unsigned(value.ReadUnsigned(buf, value.LittleEndian)), nil
}

func stdMemReadSigned(ctx Context, args []value.Literal) (value.Literal, error) {
	buf, err := readRange(ctx, args, 8)
	if err != nil {
		return nil, err
	}
	return value.Signed(value.ReadSigned(buf, value.LittleEndian)), nil
}

func stdMemReadString(ctx Context, args []value.Literal) (value.Literal, error) {
	buf, err := readRange(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	return value.String(strings.TrimRight(string(buf), "\x00")), nil
}

// stdHashBlake2b hashes a byte range and returns the hex digest.
func stdHashBlake2b(ctx Context, args []value.Literal) (value.Literal, error) {
	buf, err := readRange(ctx, args, 0)
	if err != nil {
		return nil, err
	}
	digest := blake2b.Sum256(buf)
	return value.String(fmt.Sprintf("%x", digest)), nil
}

func stdFileRead(ctx Context, args []value.Literal) (value.Literal, error) {
	if err := ctx.RequestDangerous("std::file::read"); err != nil {
		return nil, err
	}
	path, ok := args[0].(value.String)
	if !ok {
		return nil, fmt.Errorf("file path must be a string")
	}
	data, err := os.ReadFile(string(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file '%s': %v", path, err)
	}
	return value.String(data), nil
}
