package protocol

import (
	"fmt"
	"strings"
)

// writeLiteralPair appends 'key': 'value' using the same quoting rules as
// the firmware's map printer: single quotes unless the value contains a
// single quote and no double quote.
func writeLiteralPair(b *strings.Builder, key, value string) {
	writeLiteralString(b, key)
	b.WriteString(": ")
	writeLiteralString(b, value)
}

func writeLiteralString(b *strings.Builder, s string) {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}
	b.WriteByte(quote)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case quote:
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(quote)
}

// literalScanner reads a flat {'k': 'v', ...} map of quoted strings. It
// accepts nothing else: no nesting, numbers, or trailing text.
type literalScanner struct {
	src string
	pos int
}

func decodeLiteral(text string) (map[string]string, error) {
	s := &literalScanner{src: text}
	fields := make(map[string]string, 3)

	s.skipSpace()
	if !s.consume('{') {
		return nil, s.errorf("expected '{'")
	}
	s.skipSpace()
	if s.consume('}') {
		return fields, s.end()
	}

	for {
		key, err := s.readString()
		if err != nil {
			return nil, err
		}
		s.skipSpace()
		if !s.consume(':') {
			return nil, s.errorf("expected ':' after key %q", key)
		}
		s.skipSpace()
		value, err := s.readString()
		if err != nil {
			return nil, err
		}
		if _, dup := fields[key]; dup {
			return nil, s.errorf("duplicate key %q", key)
		}
		fields[key] = value

		s.skipSpace()
		if s.consume('}') {
			return fields, s.end()
		}
		if !s.consume(',') {
			return nil, s.errorf("expected ',' or '}'")
		}
		s.skipSpace()
		// trailing comma before the closing brace is legal in the literal form
		if s.consume('}') {
			return fields, s.end()
		}
	}
}

func (s *literalScanner) readString() (string, error) {
	if s.pos >= len(s.src) {
		return "", s.errorf("unexpected end of input")
	}
	quote := s.src[s.pos]
	if quote != '\'' && quote != '"' {
		return "", s.errorf("expected quoted string")
	}
	s.pos++

	var b strings.Builder
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		s.pos++
		switch {
		case c == quote:
			return b.String(), nil
		case c == '\n':
			return "", s.errorf("newline in string")
		case c == '\\':
			if s.pos >= len(s.src) {
				return "", s.errorf("dangling escape")
			}
			e := s.src[s.pos]
			s.pos++
			switch e {
			case '\\', '\'', '"':
				b.WriteByte(e)
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			default:
				return "", s.errorf("unsupported escape \\%c", e)
			}
		default:
			b.WriteByte(c)
		}
	}
	return "", s.errorf("unterminated string")
}

func (s *literalScanner) skipSpace() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

func (s *literalScanner) consume(c byte) bool {
	if s.pos < len(s.src) && s.src[s.pos] == c {
		s.pos++
		return true
	}
	return false
}

func (s *literalScanner) end() error {
	s.skipSpace()
	if s.pos != len(s.src) {
		return s.errorf("trailing data")
	}
	return nil
}

func (s *literalScanner) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d", ErrMalformed, fmt.Sprintf(format, args...), s.pos)
}
