package engine

import (
	"strconv"
	"strings"
)

// preprocessSource rewrites scene DSL source into something zygomys reads:
//
//   - :keyword becomes the string "__kw_keyword", so keywords never shadow
//     user definitions.
//   - kebab-case identifiers become snake_case (simple-fill -> simple_fill);
//     zygomys reads a hyphen as subtraction.
//   - #rrggbb and #rrggbbaa become (color r g b a).
//   - ; comments become // comments.
//
// String literals pass through untouched. An unterminated string is
// reported as an EvalError at the line and column where it opens.
func preprocessSource(source string) (string, error) {
	r := &rewriter{src: source, line: 1, col: 1}
	r.out.Grow(len(source) + len(source)/4)
	for r.pos < len(r.src) {
		if err := r.step(); err != nil {
			return "", err
		}
	}
	return r.out.String(), nil
}

type rewriter struct {
	src       string
	pos       int
	line, col int
	out       strings.Builder
}

func (r *rewriter) peek(off int) byte {
	if r.pos+off < len(r.src) {
		return r.src[r.pos+off]
	}
	return 0
}

// advance copies n bytes to the output.
func (r *rewriter) advance(n int) {
	for ; n > 0 && r.pos < len(r.src); n-- {
		c := r.src[r.pos]
		r.out.WriteByte(c)
		r.skip(c)
	}
}

// skip consumes c without copying it.
func (r *rewriter) skip(c byte) {
	r.pos++
	if c == '\n' {
		r.line++
		r.col = 1
	} else {
		r.col++
	}
}

func (r *rewriter) step() error {
	c := r.src[r.pos]
	switch {
	case c == '"' || c == '`':
		return r.str(c)
	case c == ';':
		r.comment()
	case c == ':' && r.peek(1) == '=':
		r.advance(2)
	case c == ':' && isLetter(r.peek(1)):
		r.keyword()
	case c == '#':
		if !r.hexColor() {
			r.advance(1)
		}
	case c == '-' && r.pos > 0 && isIdentChar(r.src[r.pos-1]) && isLetter(r.peek(1)):
		r.out.WriteByte('_')
		r.skip(c)
	default:
		r.advance(1)
	}
	return nil
}

// str copies a string literal. Backslash escapes apply only inside double
// quotes; backtick strings are raw.
func (r *rewriter) str(quote byte) error {
	line, col := r.line, r.col
	r.advance(1)
	for r.pos < len(r.src) {
		c := r.src[r.pos]
		switch {
		case c == quote:
			r.advance(1)
			return nil
		case c == '\\' && quote == '"':
			r.advance(2)
		default:
			r.advance(1)
		}
	}
	return EvalError{Line: line, Col: col, Message: "unterminated string literal"}
}

func (r *rewriter) comment() {
	for r.pos < len(r.src) && r.src[r.pos] == ';' {
		r.skip(';')
	}
	r.out.WriteString("//")
	for r.pos < len(r.src) && r.src[r.pos] != '\n' {
		r.advance(1)
	}
}

func (r *rewriter) keyword() {
	r.skip(':')
	start := r.pos
	for r.pos < len(r.src) && isKeywordChar(r.src[r.pos]) {
		r.skip(r.src[r.pos])
	}
	r.out.WriteByte('"')
	r.out.WriteString(kwPrefix)
	r.out.WriteString(r.src[start:r.pos])
	r.out.WriteByte('"')
}

// hexColor rewrites a #rrggbb or #rrggbbaa literal and reports whether
// one was found.
func (r *rewriter) hexColor() bool {
	n := 0
	for isHexDigit(r.peek(1 + n)) {
		n++
	}
	if (n != 6 && n != 8) || isKeywordChar(r.peek(1+n)) {
		return false
	}
	digits := r.src[r.pos+1 : r.pos+1+n]
	var parts [4]string
	for i := 0; i < n/2; i++ {
		v, _ := strconv.ParseUint(digits[2*i:2*i+2], 16, 8)
		if i == 3 {
			parts[i] = strconv.FormatFloat(float64(v)/255, 'f', -1, 64)
		} else {
			parts[i] = strconv.FormatUint(v, 10)
		}
	}
	r.out.WriteString("(color ")
	r.out.WriteString(strings.Join(parts[:n/2], " "))
	r.out.WriteByte(')')
	for i := 0; i <= n; i++ {
		r.skip(r.src[r.pos])
	}
	return true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentChar(c byte) bool {
	return isLetter(c) || isDigit(c) || c == '_'
}

func isKeywordChar(c byte) bool {
	return isIdentChar(c) || c == '-'
}
