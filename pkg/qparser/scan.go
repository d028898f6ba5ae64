package qparser

import (
	"fmt"
	"strconv"
	"strings"
)

func (p *Parser) peek() byte {
	if p.pos >= p.length {
		return 0
	}
	return p.input[p.pos]
}

func (p *Parser) peekAt(offset int) byte {
	if p.pos+offset >= p.length {
		return 0
	}
	return p.input[p.pos+offset]
}

func (p *Parser) advance() {
	if p.pos < p.length {
		p.pos++
	}
}

func (p *Parser) skipWhitespace() {
	for p.pos < p.length {
		c := p.input[p.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			p.pos++
			continue
		}
		if c == '#' {
			for p.pos < p.length && p.input[p.pos] != '\n' {
				p.pos++
			}
			continue
		}
		break
	}
}

func (p *Parser) readWhile(predicate func(byte) bool) string {
	start := p.pos
	for p.pos < p.length && predicate(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

// matchKeyword case-insensitively matches keyword at the current scan
// position, bounded so "ASKED" doesn't match "ASK", and advances past it on
// success. It skips leading whitespace first so callers can chain checks
// without an explicit skipWhitespace between each.
func (p *Parser) matchKeyword(keyword string) bool {
	p.skipWhitespace()
	if p.pos+len(keyword) > p.length {
		return false
	}
	if !strings.EqualFold(p.input[p.pos:p.pos+len(keyword)], keyword) {
		return false
	}
	end := p.pos + len(keyword)
	if end < p.length && isNameChar(p.input[end]) {
		return false
	}
	p.pos = end
	return true
}

// match checks whether the next characters equal s exactly (no whitespace
// skip, no word-boundary check) and advances past them on success. Used for
// punctuation and operator tokens.
func (p *Parser) match(s string) bool {
	if p.pos+len(s) > p.length {
		return false
	}
	if p.input[p.pos:p.pos+len(s)] != s {
		return false
	}
	p.pos += len(s)
	return true
}

// peekSubSelect reports whether the scanner sits on a '{' whose first
// keyword is SELECT, without consuming anything.
func (p *Parser) peekSubSelect() bool {
	saved := p.pos
	defer func() { p.pos = saved }()
	p.skipWhitespace()
	if p.peek() != '{' {
		return false
	}
	p.advance()
	return p.matchKeyword("SELECT")
}

func isNameStartChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isNameChar(c byte) bool {
	return isNameStartChar(c) || (c >= '0' && c <= '9') || c == '-' || c == '.'
}

func (p *Parser) parseInteger() (int, error) {
	p.skipWhitespace()
	numStr := p.readWhile(func(c byte) bool { return c >= '0' && c <= '9' })
	if numStr == "" {
		return 0, fmt.Errorf("qparser: expected integer at position %d", p.pos)
	}
	return strconv.Atoi(numStr)
}

// resolveIRI resolves a possibly-relative IRI reference against the query's
// BASE, using a simplified has-a-scheme check rather than full RFC 3986
// reference resolution.
func (p *Parser) resolveIRI(iri string) string {
	if p.baseURI == "" || isAbsoluteIRI(iri) {
		return iri
	}
	if strings.HasPrefix(iri, "#") {
		return p.baseURI + iri
	}
	return p.baseURI + iri
}

func isAbsoluteIRI(iri string) bool {
	colon := strings.Index(iri, ":")
	if colon <= 0 {
		return false
	}
	for i := 0; i < colon; i++ {
		c := iri[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9' && i > 0) || c == '+' || c == '-' || c == '.') {
			return false
		}
	}
	return true
}
