package format

import "strings"

const cssIndent = "  "

// PrettyCSS lays a stylesheet out one declaration per line with two-space
// indentation per block. Strings, comments and parenthesized groups
// (url(), calc(), :is()) are copied as they are apart from whitespace
// collapsing outside strings. Output is stable: PrettyCSS(PrettyCSS(s))
// equals PrettyCSS(s).
func PrettyCSS(s string) (string, error) {
	p := cssPrinter{}
	p.run(s)
	return p.String(), nil
}

type cssPrinter struct {
	out    strings.Builder
	line   strings.Builder
	depth  int // block nesting
	parens int
}

func (p *cssPrinter) run(s string) {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			end := stringEnd(s, i)
			p.line.WriteString(s[i:end])
			i = end - 1
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				p.line.WriteString(s[i:])
				i = len(s)
				break
			}
			p.line.WriteString(s[i : i+2+end+2])
			i += end + 3
			if p.parens == 0 {
				p.flush()
			}
		case isSpace(c):
			if p.line.Len() > 0 && !endsWithSpace(&p.line) {
				p.line.WriteByte(' ')
			}
		case c == '(':
			p.parens++
			p.line.WriteByte(c)
		case c == ')':
			if p.parens > 0 {
				p.parens--
			}
			p.line.WriteByte(c)
		case p.parens > 0:
			p.line.WriteByte(c)
		case c == '{':
			p.trimLine()
			if p.line.Len() > 0 {
				p.line.WriteByte(' ')
			}
			p.line.WriteByte('{')
			p.flush()
			p.depth++
		case c == '}':
			p.flush()
			if p.depth > 0 {
				p.depth--
			}
			p.line.WriteByte('}')
			p.flush()
		case c == ';':
			p.trimLine()
			p.line.WriteByte(';')
			p.flush()
		default:
			p.line.WriteByte(c)
		}
	}
	p.flush()
}

// flush writes the pending line at the current depth.
func (p *cssPrinter) flush() {
	p.trimLine()
	text := p.line.String()
	p.line.Reset()
	if text == "" {
		return
	}
	p.out.WriteString(strings.Repeat(cssIndent, p.depth))
	p.out.WriteString(text)
	p.out.WriteByte('\n')
}

func (p *cssPrinter) trimLine() {
	text := strings.TrimSpace(p.line.String())
	p.line.Reset()
	p.line.WriteString(text)
}

func (p *cssPrinter) String() string {
	return p.out.String()
}

// stringEnd returns the index just past the string literal starting at i.
// An unterminated string runs to the end of s.
func stringEnd(s string, i int) int {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		}
	}
	return len(s)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func endsWithSpace(b *strings.Builder) bool {
	s := b.String()
	return s != "" && s[len(s)-1] == ' '
}
