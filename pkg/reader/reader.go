// Package reader parses Lurk source text into store pointers.
package reader

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"lurk-zk/pkg/zstore"
)

var (
	ErrUnexpectedEOF = errors.New("unexpected end of input")
	ErrUnbalanced    = errors.New("unbalanced parenthesis")
	ErrBadToken      = errors.New("bad token")
	ErrTrailing      = errors.New("trailing input")
)

// Read parses exactly one expression.
func Read(store *zstore.Store, src string) (zstore.ZPtr, error) {
	p := &parser{store: store, src: src}
	expr, err := p.expr()
	if err != nil {
		return zstore.ZPtr{}, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return zstore.ZPtr{}, fmt.Errorf("%w at offset %d", ErrTrailing, p.pos)
	}
	return expr, nil
}

// ReadAll parses every expression in src.
func ReadAll(store *zstore.Store, src string) ([]zstore.ZPtr, error) {
	p := &parser{store: store, src: src}
	var out []zstore.ZPtr
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return out, nil
		}
		expr, err := p.expr()
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
}

type parser struct {
	store *zstore.Store
	src   string
	pos   int
}

func (p *parser) peek() (rune, int) {
	if p.pos >= len(p.src) {
		return 0, 0
	}
	return utf8.DecodeRuneInString(p.src[p.pos:])
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		r, n := p.peek()
		switch {
		case r == ';':
			for p.pos < len(p.src) && p.src[p.pos] != '\n' {
				p.pos++
			}
		case unicode.IsSpace(r):
			p.pos += n
		default:
			return
		}
	}
}

func (p *parser) expr() (zstore.ZPtr, error) {
	p.skipSpace()
	r, n := p.peek()
	if n == 0 {
		return zstore.ZPtr{}, ErrUnexpectedEOF
	}
	switch r {
	case '(':
		p.pos += n
		return p.list()
	case ')':
		return zstore.ZPtr{}, fmt.Errorf("%w at offset %d", ErrUnbalanced, p.pos)
	case '\'':
		if c, ok, err := p.charLiteral(); ok || err != nil {
			return c, err
		}
		p.pos += n
		quoted, err := p.expr()
		if err != nil {
			return zstore.ZPtr{}, err
		}
		quote, _ := p.store.BuiltinSym("quote")
		return p.store.List(quote, quoted), nil
	case '"':
		p.pos += n
		return p.str()
	}
	return p.atom()
}

func (p *parser) list() (zstore.ZPtr, error) {
	var elems []zstore.ZPtr
	for {
		p.skipSpace()
		r, n := p.peek()
		switch {
		case n == 0:
			return zstore.ZPtr{}, ErrUnexpectedEOF
		case r == ')':
			p.pos += n
			return p.store.List(elems...), nil
		case r == '.' && p.isDelimiterAt(p.pos+1) && len(elems) > 0:
			p.pos += n
			tail, err := p.expr()
			if err != nil {
				return zstore.ZPtr{}, err
			}
			p.skipSpace()
			if r, n := p.peek(); r != ')' {
				if n == 0 {
					return zstore.ZPtr{}, ErrUnexpectedEOF
				}
				return zstore.ZPtr{}, fmt.Errorf("%w: expected ) after dotted tail at offset %d", ErrBadToken, p.pos)
			}
			p.pos++
			return p.store.ListWithTail(elems, tail), nil
		}
		e, err := p.expr()
		if err != nil {
			return zstore.ZPtr{}, err
		}
		elems = append(elems, e)
	}
}

func (p *parser) isDelimiterAt(i int) bool {
	if i >= len(p.src) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(p.src[i:])
	return unicode.IsSpace(r) || r == '(' || r == ')' || r == ';'
}

// charLiteral matches 'c' and '\c'.
func (p *parser) charLiteral() (zstore.ZPtr, bool, error) {
	rest := p.src[p.pos+1:]
	r, n := utf8.DecodeRuneInString(rest)
	if n == 0 {
		return zstore.ZPtr{}, false, nil
	}
	if r == '\\' {
		esc, m := utf8.DecodeRuneInString(rest[n:])
		if m == 0 || !strings.HasPrefix(rest[n+m:], "'") {
			return zstore.ZPtr{}, false, nil
		}
		c, err := unescape(esc)
		if err != nil {
			return zstore.ZPtr{}, false, err
		}
		p.pos += 1 + n + m + 1
		return p.store.Char(c), true, nil
	}
	if r == '\'' || !strings.HasPrefix(rest[n:], "'") {
		return zstore.ZPtr{}, false, nil
	}
	p.pos += 1 + n + 1
	return p.store.Char(r), true, nil
}

func unescape(r rune) (rune, error) {
	switch r {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case 'r':
		return '\r', nil
	case '0':
		return 0, nil
	case '\\', '"', '\'':
		return r, nil
	}
	return 0, fmt.Errorf("%w: escape \\%c", ErrBadToken, r)
}

func (p *parser) str() (zstore.ZPtr, error) {
	var b strings.Builder
	for {
		r, n := p.peek()
		if n == 0 {
			return zstore.ZPtr{}, ErrUnexpectedEOF
		}
		p.pos += n
		switch r {
		case '"':
			return p.store.Str(b.String()), nil
		case '\\':
			esc, m := p.peek()
			if m == 0 {
				return zstore.ZPtr{}, ErrUnexpectedEOF
			}
			p.pos += m
			c, err := unescape(esc)
			if err != nil {
				return zstore.ZPtr{}, err
			}
			b.WriteRune(c)
		default:
			b.WriteRune(r)
		}
	}
}

func (p *parser) atom() (zstore.ZPtr, error) {
	start := p.pos
	for !p.isDelimiterAt(p.pos) {
		_, n := p.peek()
		p.pos += n
	}
	tok := p.src[start:p.pos]
	if tok == "" {
		return zstore.ZPtr{}, fmt.Errorf("%w at offset %d", ErrBadToken, start)
	}
	switch {
	case strings.HasPrefix(tok, "#c0x"):
		d, err := parseDigest(tok[4:])
		if err != nil {
			return zstore.ZPtr{}, err
		}
		return zstore.ZPtr{Tag: zstore.TagComm, Digest: d}, nil
	case strings.HasPrefix(tok, "#0x"):
		d, err := parseDigest(tok[3:])
		if err != nil {
			return zstore.ZPtr{}, err
		}
		return p.store.BigNum(d), nil
	case strings.HasPrefix(tok, ":") && len(tok) > 1:
		return p.store.Key(tok[1:]), nil
	}
	if num, ok, err := p.number(tok); ok || err != nil {
		return num, err
	}
	return p.store.Symbol(tok), nil
}

func parseDigest(h string) (zstore.Digest, error) {
	v, ok := new(big.Int).SetString(h, 16)
	if !ok || v.Cmp(fr.Modulus()) >= 0 {
		return zstore.Digest{}, fmt.Errorf("%w: digest %q", ErrBadToken, h)
	}
	var e fr.Element
	e.SetBigInt(v)
	return zstore.DigestFromElement(e), nil
}

// number parses 12, -3, 0x1f and the u64 suffixed forms.
func (p *parser) number(tok string) (zstore.ZPtr, bool, error) {
	body := tok
	neg := strings.HasPrefix(body, "-")
	if neg {
		body = body[1:]
	}
	if body == "" || !unicode.IsDigit(rune(body[0])) {
		return zstore.ZPtr{}, false, nil
	}
	isU64 := strings.HasSuffix(body, "u64")
	if isU64 {
		body = strings.TrimSuffix(body, "u64")
	}
	base := 10
	if strings.HasPrefix(body, "0x") {
		base, body = 16, body[2:]
	}
	if isU64 {
		if neg {
			return zstore.ZPtr{}, true, fmt.Errorf("%w: negative u64 %q", ErrBadToken, tok)
		}
		v, err := strconv.ParseUint(body, base, 64)
		if err != nil {
			return zstore.ZPtr{}, true, fmt.Errorf("%w: %q: %v", ErrBadToken, tok, err)
		}
		return p.store.U64(v), true, nil
	}
	v, ok := new(big.Int).SetString(body, base)
	if !ok {
		return zstore.ZPtr{}, true, fmt.Errorf("%w: number %q", ErrBadToken, tok)
	}
	var e fr.Element
	e.SetBigInt(v)
	if neg {
		e.Neg(&e)
	}
	return p.store.Num(e), true, nil
}
