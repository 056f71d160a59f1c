// Package preprocessor implements the textual pass that runs before
// lexing: #include resolution, #define substitution, #pragma
// collection and comment stripping.
package preprocessor

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	plerr "github.com/hexpat-lang/hexpat/core/errors"
)

// PragmaHandler validates and applies one #pragma value. Returning
// false rejects the directive.
type PragmaHandler func(value string) bool

// Pragma is a recorded #pragma directive awaiting dispatch.
type Pragma struct {
	Key   string
	Value string
	Line  uint32
}

type define struct {
	name  string
	value string
	line  uint32
}

// Preprocessor expands one source text per run. Include files resolve
// against the configured include paths; handlers registered with
// AddPragmaHandler run in source order after textual expansion.
type Preprocessor struct {
	includePaths []string
	handlers     map[string]PragmaHandler

	defines      []define
	pragmas      []Pragma
	onceIncluded map[string]bool

	// path of the file currently being inlined; "" for the top level.
	currentPath string
}

// New creates a preprocessor with the default MIME and once handlers
// registered.
func New() *Preprocessor {
	p := &Preprocessor{
		handlers:     map[string]PragmaHandler{},
		onceIncluded: map[string]bool{},
	}

	p.AddPragmaHandler("MIME", func(value string) bool {
		trimmed := strings.TrimSpace(value)
		return trimmed != "" && trimmed == value
	})
	p.AddPragmaHandler("once", func(value string) bool {
		return value == ""
	})

	return p
}

// AddIncludePath appends a directory to the include search list.
func (p *Preprocessor) AddIncludePath(dir string) {
	p.includePaths = append(p.includePaths, dir)
}

// AddPragmaHandler registers (or replaces) the handler for a key.
func (p *Preprocessor) AddPragmaHandler(key string, handler PragmaHandler) {
	p.handlers[key] = handler
}

// Preprocess expands code. initialRun resets per-run state and, after
// the textual pass, applies defines and dispatches pragma handlers.
func (p *Preprocessor) Preprocess(code string, initialRun bool) (string, error) {
	if initialRun {
		p.defines = nil
		p.pragmas = nil
		p.onceIncluded = map[string]bool{}
		p.currentPath = ""
	}

	output, err := p.scan(code)
	if err != nil {
		return "", err
	}

	if initialRun {
		output = p.applyDefines(output)

		for _, pragma := range p.pragmas {
			handler, ok := p.handlers[pragma.Key]
			if !ok {
				return "", plerr.Newf(plerr.StagePreprocessor, pragma.Line, "no #pragma handler registered for type %s", pragma.Key)
			}
			if !handler(pragma.Value) {
				return "", plerr.Newf(plerr.StagePreprocessor, pragma.Line, "invalid value provided to '%s' #pragma directive", pragma.Key)
			}
		}
	}

	return output, nil
}

// scan performs the single textual pass: directives are consumed,
// comments stripped, string literals passed through untouched.
func (p *Preprocessor) scan(code string) (string, error) {
	var out strings.Builder
	out.Grow(len(code))

	offset := 0
	line := uint32(1)
	inString := false
	startOfLine := true

	for offset < len(code) {
		c := code[offset]

		if c == '"' && (offset == 0 || code[offset-1] != '\\') {
			inString = !inString
		} else if inString {
			out.WriteByte(c)
			offset++
			continue
		}

		switch {
		case c == '#' && startOfLine:
			offset++
			rest := code[offset:]
			switch {
			case strings.HasPrefix(rest, "include"):
				offset += len("include")
				var err error
				offset, err = p.handleInclude(code, offset, line, &out)
				if err != nil {
					return "", err
				}
			case strings.HasPrefix(rest, "define"):
				offset += len("define")
				var err error
				offset, err = p.handleDefine(code, offset, line)
				if err != nil {
					return "", err
				}
			case strings.HasPrefix(rest, "pragma"):
				offset += len("pragma")
				var err error
				offset, err = p.handlePragma(code, offset, line)
				if err != nil {
					return "", err
				}
			default:
				return "", plerr.New(plerr.StagePreprocessor, line, "unknown preprocessor directive")
			}
			continue

		case strings.HasPrefix(code[offset:], "//"):
			for offset < len(code) && code[offset] != '\n' {
				offset++
			}
			continue

		case strings.HasPrefix(code[offset:], "/*"):
			commentLine := line
			offset += 2
			for !strings.HasPrefix(code[offset:], "*/") {
				if offset >= len(code) {
					return "", plerr.New(plerr.StagePreprocessor, commentLine, "unterminated comment")
				}
				if code[offset] == '\n' {
					out.WriteByte('\n')
					line++
				}
				offset++
			}
			offset += 2
			continue
		}

		if c == '\n' {
			line++
			startOfLine = true
		} else if !isSpace(c) {
			startOfLine = false
		}

		out.WriteByte(c)
		offset++
	}

	return out.String(), nil
}

// handleInclude resolves and inlines one #include directive. Line
// breaks inside the inlined content become spaces so the outer line
// numbering is preserved.
func (p *Preprocessor) handleInclude(code string, offset int, line uint32, out *strings.Builder) (int, error) {
	for offset < len(code) && isSpace(code[offset]) {
		offset++
	}
	if offset >= len(code) || (code[offset] != '<' && code[offset] != '"') {
		return 0, plerr.New(plerr.StagePreprocessor, line, "expected '<' or '\"' before file name")
	}

	endChar := byte('"')
	if code[offset] == '<' {
		endChar = '>'
	}
	offset++

	var name strings.Builder
	for offset < len(code) && code[offset] != endChar {
		if code[offset] == '\n' {
			return 0, plerr.Newf(plerr.StagePreprocessor, line, "missing terminating '%c' character", endChar)
		}
		name.WriteByte(code[offset])
		offset++
	}
	if offset >= len(code) {
		return 0, plerr.Newf(plerr.StagePreprocessor, line, "missing terminating '%c' character", endChar)
	}
	offset++

	includeFile := name.String()
	content, resolved, err := p.resolve(includeFile)
	if err != nil {
		if strings.HasPrefix(includeFile, "std/") {
			return 0, plerr.Newf(plerr.StagePreprocessor, line,
				"%s: No such file or directory.\n\nThis file might be part of the standard library.\nYou can install the standard library through the content store.", includeFile)
		}
		return 0, plerr.Newf(plerr.StagePreprocessor, line, "%s: No such file or directory", includeFile)
	}

	if p.onceIncluded[resolved] {
		return offset, nil
	}

	outerPath := p.currentPath
	p.currentPath = resolved
	expanded, err := p.scan(content)
	p.currentPath = outerPath
	if err != nil {
		return 0, err
	}

	expanded = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, expanded)
	out.WriteString(expanded)

	return offset, nil
}

// resolve finds an include file on disk. Absolute paths load directly,
// relative paths search the include list in order.
func (p *Preprocessor) resolve(name string) (content, resolved string, err error) {
	if filepath.IsAbs(name) {
		data, err := os.ReadFile(name)
		return string(data), name, err
	}
	for _, dir := range p.includePaths {
		path := filepath.Join(dir, name)
		if data, err := os.ReadFile(path); err == nil {
			return string(data), path, nil
		}
	}
	return "", "", os.ErrNotExist
}

// handleDefine records one NAME VALUE pair; the value is the rest of
// the line after the first whitespace run.
func (p *Preprocessor) handleDefine(code string, offset int, line uint32) (int, error) {
	for offset < len(code) && isBlank(code[offset]) {
		offset++
	}

	var name strings.Builder
	for offset < len(code) && !isBlank(code[offset]) {
		if code[offset] == '\n' || code[offset] == '\r' {
			return 0, plerr.New(plerr.StagePreprocessor, line, "no value given in #define directive")
		}
		name.WriteByte(code[offset])
		offset++
	}
	if name.Len() == 0 || offset >= len(code) {
		return 0, plerr.New(plerr.StagePreprocessor, line, "no value given in #define directive")
	}

	for offset < len(code) && isBlank(code[offset]) {
		offset++
	}

	var val strings.Builder
	for offset < len(code) && code[offset] != '\n' && code[offset] != '\r' {
		val.WriteByte(code[offset])
		offset++
	}
	if val.Len() == 0 {
		return 0, plerr.New(plerr.StagePreprocessor, line, "no value given in #define directive")
	}

	p.defines = append(p.defines, define{name: name.String(), value: val.String(), line: line})
	return offset, nil
}

// handlePragma records one KEY VALUE directive for dispatch after the
// textual pass. "#pragma once" additionally marks the including file
// immediately so nested re-inclusion is suppressed.
func (p *Preprocessor) handlePragma(code string, offset int, line uint32) (int, error) {
	for offset < len(code) && isBlank(code[offset]) {
		offset++
	}

	var key strings.Builder
	for offset < len(code) && !isBlank(code[offset]) && code[offset] != '\n' && code[offset] != '\r' {
		key.WriteByte(code[offset])
		offset++
	}
	if key.Len() == 0 {
		return 0, plerr.New(plerr.StagePreprocessor, line, "no instruction given in #pragma directive")
	}

	for offset < len(code) && isBlank(code[offset]) {
		offset++
	}

	var val strings.Builder
	for offset < len(code) && code[offset] != '\n' && code[offset] != '\r' {
		val.WriteByte(code[offset])
		offset++
	}

	if key.String() == "once" && p.currentPath != "" {
		p.onceIncluded[p.currentPath] = true
	}

	p.pragmas = append(p.pragmas, Pragma{Key: key.String(), Value: val.String(), Line: line})
	return offset, nil
}

// applyDefines substitutes recorded defines greedily, longest name
// first, across the expanded source.
func (p *Preprocessor) applyDefines(src string) string {
	sorted := append([]define(nil), p.defines...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].name) > len(sorted[j].name)
	})

	for _, d := range sorted {
		src = strings.ReplaceAll(src, d.name, d.value)
	}
	return src
}

func isBlank(c byte) bool { return c == ' ' || c == '\t' }
func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == '\v' }
