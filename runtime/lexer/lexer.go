// Package lexer turns preprocessed source text into the token stream
// the parser consumes.
package lexer

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	plerr "github.com/hexpat-lang/hexpat/core/errors"
	"github.com/hexpat-lang/hexpat/core/tokens"
	"github.com/hexpat-lang/hexpat/core/value"
)

// ASCII character lookup tables for fast classification.
var (
	isDigit      [128]bool
	isIdentStart [128]bool
	isIdentPart  [128]bool
)

func init() {
	for i := 0; i < 128; i++ {
		ch := byte(i)
		isDigit[i] = '0' <= ch && ch <= '9'
		isIdentStart[i] = ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
		isIdentPart[i] = isIdentStart[i] || isDigit[i]
	}
}

// Lexer scans one source text. Create a fresh Lexer per run.
type Lexer struct {
	input  string
	offset int
	line   uint32

	tokens []tokens.Token
	logger *slog.Logger
}

// New creates a Lexer over the given source.
func New(input string) *Lexer {
	logLevel := slog.LevelInfo
	if os.Getenv("HEXPAT_DEBUG") != "" {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))

	return &Lexer{input: input, line: 1, logger: logger}
}

// Lex scans the whole input and returns the token list terminated by
// an EOF token. The first invalid character or literal aborts with a
// line-tagged error.
func (l *Lexer) Lex() ([]tokens.Token, error) {
	for l.offset < len(l.input) {
		c := l.input[l.offset]

		switch {
		case c == '\n':
			l.line++
			l.offset++

		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			l.offset++

		case c >= 128:
			return nil, plerr.Newf(plerr.StageLexer, l.line, "invalid non-ASCII character 0x%02X", c)

		case isIdentStart[c]:
			l.lexIdentifier()

		case isDigit[c]:
			if err := l.lexNumber(); err != nil {
				return nil, err
			}

		case c == '"':
			if err := l.lexString(); err != nil {
				return nil, err
			}

		case c == '\'':
			if err := l.lexChar(); err != nil {
				return nil, err
			}

		default:
			if sep, ok := tokens.Separators[c]; ok {
				l.emit(tokens.Token{Type: tokens.SEPARATOR, Sep: sep, Line: l.line})
				l.offset++
				break
			}
			if !l.lexOperator() {
				return nil, plerr.Newf(plerr.StageLexer, l.line, "unexpected character '%c'", c)
			}
		}
	}

	l.emit(tokens.Token{Type: tokens.EOF, Line: l.line})

	l.logger.Debug("lexing finished", "tokens", len(l.tokens), "lines", l.line)
	return l.tokens, nil
}

func (l *Lexer) emit(t tokens.Token) {
	l.tokens = append(l.tokens, t)
}

// lexIdentifier scans an identifier and reclassifies keywords and
// built-in type names.
func (l *Lexer) lexIdentifier() {
	start := l.offset
	for l.offset < len(l.input) && l.input[l.offset] < 128 && isIdentPart[l.input[l.offset]] {
		l.offset++
	}
	word := l.input[start:l.offset]

	if kw, ok := tokens.Keywords[word]; ok {
		l.emit(tokens.Token{Type: tokens.KEYWORD, Keyword: kw, Ident: word, Line: l.line})
		return
	}
	if vt, ok := tokens.ValueTypes[word]; ok {
		l.emit(tokens.Token{Type: tokens.TYPE_KEYWORD, ValueType: vt, Ident: word, Line: l.line})
		return
	}
	l.emit(tokens.Token{Type: tokens.IDENTIFIER, Ident: word, Line: l.line})
}

// lexNumber scans an integer or float literal. Integers accept the
// 0x/0o/0b prefixes and underscores as digit separators; floats accept
// an optional f or d suffix.
func (l *Lexer) lexNumber() error {
	start := l.offset
	for l.offset < len(l.input) && isNumberChar(l.input[l.offset]) {
		l.offset++
	}
	text := l.input[start:l.offset]
	clean := strings.ReplaceAll(text, "_", "")

	isFloat := strings.ContainsAny(clean, ".") ||
		(!strings.HasPrefix(clean, "0x") && !strings.HasPrefix(clean, "0X") &&
			(strings.HasSuffix(clean, "f") || strings.HasSuffix(clean, "d") ||
				strings.ContainsAny(clean, "eE")))

	if isFloat {
		trimmed := strings.TrimRight(clean, "fd")
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return plerr.Newf(plerr.StageLexer, l.line, "invalid floating point literal '%s'", text)
		}
		l.emit(tokens.Token{Type: tokens.FLOAT, Literal: value.Float(f), Line: l.line})
		return nil
	}

	base := 10
	digits := clean
	switch {
	case strings.HasPrefix(clean, "0x"), strings.HasPrefix(clean, "0X"):
		base, digits = 16, clean[2:]
	case strings.HasPrefix(clean, "0o"), strings.HasPrefix(clean, "0O"):
		base, digits = 8, clean[2:]
	case strings.HasPrefix(clean, "0b"), strings.HasPrefix(clean, "0B"):
		base, digits = 2, clean[2:]
	}

	v, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return plerr.Newf(plerr.StageLexer, l.line, "invalid integer literal '%s'", text)
	}
	l.emit(tokens.Token{Type: tokens.INTEGER, Literal: value.Unsigned(v), Line: l.line})
	return nil
}

func isNumberChar(c byte) bool {
	if c >= 128 {
		return false
	}
	return isDigit[c] || isIdentPart[c] || c == '.'
}

// lexString scans a double-quoted literal with C-style escapes.
func (l *Lexer) lexString() error {
	startLine := l.line
	l.offset++ // opening quote

	var sb strings.Builder
	for {
		if l.offset >= len(l.input) {
			return plerr.New(plerr.StageLexer, startLine, "unterminated string literal")
		}
		c := l.input[l.offset]
		if c == '"' {
			l.offset++
			break
		}
		if c == '\n' {
			return plerr.New(plerr.StageLexer, startLine, "unterminated string literal")
		}
		if c == '\\' {
			r, err := l.lexEscape()
			if err != nil {
				return err
			}
			sb.WriteRune(r)
			continue
		}
		sb.WriteByte(c)
		l.offset++
	}

	l.emit(tokens.Token{Type: tokens.STRING, Literal: value.String(sb.String()), Line: startLine})
	return nil
}

// lexChar scans a single-quoted character literal. Characters above
// 0xFF become char16 values.
func (l *Lexer) lexChar() error {
	startLine := l.line
	l.offset++ // opening quote

	if l.offset >= len(l.input) {
		return plerr.New(plerr.StageLexer, startLine, "unterminated character literal")
	}

	var r rune
	if l.input[l.offset] == '\\' {
		var err error
		r, err = l.lexEscape()
		if err != nil {
			return err
		}
	} else {
		r = rune(l.input[l.offset])
		l.offset++
	}

	if l.offset >= len(l.input) || l.input[l.offset] != '\'' {
		return plerr.New(plerr.StageLexer, startLine, "unterminated character literal")
	}
	l.offset++

	var lit value.Literal
	if r > 0xFF {
		lit = value.Char16(r)
	} else {
		lit = value.Char(r)
	}
	l.emit(tokens.Token{Type: tokens.CHAR, Literal: lit, Line: startLine})
	return nil
}

// lexEscape consumes one backslash escape, cursor on the backslash.
func (l *Lexer) lexEscape() (rune, error) {
	l.offset++ // backslash
	if l.offset >= len(l.input) {
		return 0, plerr.New(plerr.StageLexer, l.line, "invalid escape sequence")
	}
	c := l.input[l.offset]
	l.offset++
	switch c {
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 't':
		return '\t', nil
	case '0':
		return 0, nil
	case '\\', '\'', '"':
		return rune(c), nil
	case 'x':
		if l.offset+2 > len(l.input) {
			return 0, plerr.New(plerr.StageLexer, l.line, "invalid escape sequence")
		}
		v, err := strconv.ParseUint(l.input[l.offset:l.offset+2], 16, 8)
		if err != nil {
			return 0, plerr.New(plerr.StageLexer, l.line, "invalid escape sequence")
		}
		l.offset += 2
		return rune(v), nil
	default:
		return 0, plerr.Newf(plerr.StageLexer, l.line, "unknown escape sequence '\\%c'", c)
	}
}

// lexOperator matches the longest operator at the cursor.
func (l *Lexer) lexOperator() bool {
	rest := l.input[l.offset:]
	for _, op := range tokens.Operators {
		if strings.HasPrefix(rest, op.Text) {
			l.emit(tokens.Token{Type: tokens.OPERATOR, Op: op.Op, Ident: op.Text, Line: l.line})
			l.offset += len(op.Text)
			return true
		}
	}
	return false
}
