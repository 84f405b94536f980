package zstore

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Fmt renders p as Lurk source text. Values whose preimages are missing
// print as opaque.
func (s *Store) Fmt(p ZPtr) string {
	var b strings.Builder
	s.fmt(&b, p)
	return b.String()
}

func (s *Store) fmt(b *strings.Builder, p ZPtr) {
	switch p.Tag {
	case TagNil:
		b.WriteString("nil")
	case TagTrue:
		b.WriteString("t")
	case TagNum:
		b.WriteString(p.Digest[0].BigInt(new(big.Int)).String())
	case TagU64:
		fmt.Fprintf(b, "%du64", p.Digest[0].Uint64())
	case TagChar:
		b.WriteString(strconv.QuoteRune(rune(p.Digest[0].Uint64())))
	case TagStr:
		str, err := s.FetchString(p)
		if err != nil {
			s.opaque(b, p)
			return
		}
		b.WriteString(strconv.Quote(str))
	case TagSym, TagBuiltin, TagCoroutine, TagKey:
		name, err := s.SymbolName(p)
		if err != nil {
			s.opaque(b, p)
			return
		}
		if p.Tag == TagKey {
			b.WriteByte(':')
		}
		b.WriteString(name)
	case TagCons:
		s.fmtList(b, p)
	case TagFun:
		params, body, _, err := s.Fetch5(p.Digest)
		if err != nil {
			s.opaque(b, p)
			return
		}
		b.WriteString("<Fun ")
		s.fmt(b, params)
		b.WriteByte(' ')
		s.fmt(b, body)
		b.WriteByte('>')
	case TagFix:
		body, _, _, err := s.Fetch5(p.Digest)
		if err != nil {
			s.opaque(b, p)
			return
		}
		b.WriteString("<Fix ")
		s.fmt(b, body)
		b.WriteByte('>')
	case TagEnv:
		s.fmtEnv(b, p)
	case TagComm:
		b.WriteString("#c0x")
		b.WriteString(p.Digest.String())
	case TagBigNum:
		b.WriteString("#0x")
		b.WriteString(p.Digest.String())
	case TagErr:
		kind, _ := ErrKind(p)
		fmt.Fprintf(b, "<Err %s>", kind)
	default:
		s.opaque(b, p)
	}
}

func (s *Store) opaque(b *strings.Builder, p ZPtr) {
	fmt.Fprintf(b, "<Opaque %s>", p.Tag)
}

func (s *Store) fmtList(b *strings.Builder, p ZPtr) {
	elems, tail, err := s.FetchList(p)
	if err != nil {
		s.opaque(b, p)
		return
	}
	if len(elems) == 2 && tail.Tag == TagNil && elems[0].Tag == TagBuiltin {
		if name, _ := s.digests.BuiltinName(elems[0].Digest); name == "quote" {
			b.WriteByte('\'')
			s.fmt(b, elems[1])
			return
		}
	}
	b.WriteByte('(')
	for i, e := range elems {
		if i > 0 {
			b.WriteByte(' ')
		}
		s.fmt(b, e)
	}
	if tail.Tag != TagNil {
		b.WriteString(" . ")
		s.fmt(b, tail)
	}
	b.WriteByte(')')
}

func (s *Store) fmtEnv(b *strings.Builder, p ZPtr) {
	b.WriteString("<Env (")
	first := true
	for !p.Digest.IsZero() {
		sym, val, tail, err := s.Fetch5(p.Digest)
		if err != nil {
			b.WriteString("...")
			break
		}
		if !first {
			b.WriteByte(' ')
		}
		first = false
		b.WriteByte('(')
		s.fmt(b, sym)
		b.WriteString(" . ")
		s.fmt(b, val)
		b.WriteByte(')')
		p = ZPtr{Tag: TagEnv, Digest: tail}
	}
	b.WriteString(")>")
}
