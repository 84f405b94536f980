package zstore

import (
	"fmt"
	"strings"
)

// Package paths under which symbols are interned.
var (
	LurkPackage    = []string{"lurk"}
	BuiltinPackage = []string{"lurk", "builtin"}
	UserPackage    = []string{"lurk", "user"}
)

// BuiltinNames lists every builtin symbol in dispatch order.
var BuiltinNames = []string{
	"atom", "apply", "begin", "car", "cdr", "char", "commit", "comm", "bignum",
	"cons", "current-env", "emit", "empty-env", "eval", "eq", "eqq", "type-eq",
	"type-eqq", "hide", "if", "lambda", "let", "letrec", "u64", "open", "quote",
	"secret", "strcons", "list", "+", "-", "*", "/", "%", "=", "<", ">", "<=",
	">=", "breakpoint", "fail", "bind", "env",
}

// Digests is the symbol table computed once per store.
type Digests struct {
	nilDigest  Digest
	tDigest    Digest
	restDigest Digest

	builtins   map[string]Digest
	names      map[Digest]string
	coroutines map[string]Digest
}

func newDigests(s *Store, coroutines []string) *Digests {
	d := &Digests{
		builtins:   make(map[string]Digest, len(BuiltinNames)),
		names:      make(map[Digest]string, len(BuiltinNames)),
		coroutines: make(map[string]Digest, len(coroutines)),
	}
	d.nilDigest = s.internPath(append(clonePath(LurkPackage), "nil"))
	d.tDigest = s.internPath(append(clonePath(LurkPackage), "t"))
	d.restDigest = s.internPath(append(clonePath(LurkPackage), "&rest"))
	for _, name := range BuiltinNames {
		dig := s.internPath(append(clonePath(BuiltinPackage), name))
		d.builtins[name] = dig
		d.names[dig] = name
	}
	for _, name := range coroutines {
		d.coroutines[name] = s.internPath(append(clonePath(UserPackage), name))
	}
	return d
}

func clonePath(p []string) []string {
	return append([]string(nil), p...)
}

func (d *Digests) Nil() Digest  { return d.nilDigest }
func (d *Digests) T() Digest    { return d.tDigest }
func (d *Digests) Rest() Digest { return d.restDigest }

// Builtin returns the digest of a builtin by name.
func (d *Digests) Builtin(name string) (Digest, bool) {
	dig, ok := d.builtins[name]
	return dig, ok
}

// MustBuiltin panics on an unknown name. Only used with literal names.
func (d *Digests) MustBuiltin(name string) Digest {
	dig, ok := d.builtins[name]
	if !ok {
		panic("zstore: unknown builtin " + name)
	}
	return dig
}

// Coroutine returns the digest of a registered coroutine.
func (d *Digests) Coroutine(name string) (Digest, bool) {
	dig, ok := d.coroutines[name]
	return dig, ok
}

// BuiltinName reverses Builtin.
func (d *Digests) BuiltinName(dig Digest) (string, bool) {
	name, ok := d.names[dig]
	return name, ok
}

func (s *Store) internPath(path []string) Digest {
	var parent Digest
	for _, name := range path {
		parent = s.intern4Ptrs(s.Str(name), ZPtr{Tag: TagSym, Digest: parent})
	}
	return parent
}

// InternPath interns a symbol path and returns a pointer with the given tag.
func (s *Store) InternPath(tag Tag, path ...string) ZPtr {
	return ZPtr{Tag: tag, Digest: s.internPath(path)}
}

// UserSym returns the user symbol name, without builtin resolution.
func (s *Store) UserSym(name string) ZPtr {
	return s.InternPath(TagSym, append(clonePath(UserPackage), name)...)
}

// Key returns the keyword :name.
func (s *Store) Key(name string) ZPtr {
	return s.InternPath(TagKey, append(clonePath(UserPackage), name)...)
}

// Coroutine returns the coroutine symbol name.
func (s *Store) Coroutine(name string) ZPtr {
	return s.InternPath(TagCoroutine, append(clonePath(UserPackage), name)...)
}

// BuiltinSym returns the builtin symbol name.
func (s *Store) BuiltinSym(name string) (ZPtr, bool) {
	dig, ok := s.digests.Builtin(name)
	return ZPtr{Tag: TagBuiltin, Digest: dig}, ok
}

// Rest returns the &rest marker symbol.
func (s *Store) Rest() ZPtr {
	return ZPtr{Tag: TagSym, Digest: s.digests.restDigest}
}

// Symbol resolves a source-level name: nil, t, &rest, builtins, registered
// coroutines, and otherwise a user symbol.
func (s *Store) Symbol(name string) ZPtr {
	switch name {
	case "nil":
		return s.Nil()
	case "t":
		return s.True()
	case "&rest":
		return s.Rest()
	}
	if p, ok := s.BuiltinSym(name); ok {
		return p
	}
	if dig, ok := s.digests.Coroutine(name); ok {
		return ZPtr{Tag: TagCoroutine, Digest: dig}
	}
	return s.UserSym(name)
}

// SymbolPath decodes the path of any symbolic pointer.
func (s *Store) SymbolPath(p ZPtr) ([]string, error) {
	if !p.Tag.IsSymbolic() {
		return nil, fmt.Errorf("%w: expected symbol, have %s", ErrInvalidTag, p.Tag)
	}
	var rev []string
	dig := p.Digest
	for !dig.IsZero() {
		name, parent, err := s.Fetch4(dig)
		if err != nil {
			return nil, err
		}
		str, err := s.FetchString(name)
		if err != nil {
			return nil, err
		}
		rev = append(rev, str)
		dig = parent.Digest
	}
	path := make([]string, len(rev))
	for i := range rev {
		path[len(rev)-1-i] = rev[i]
	}
	return path, nil
}

// SymbolName renders a symbol relative to the user and builtin packages.
func (s *Store) SymbolName(p ZPtr) (string, error) {
	path, err := s.SymbolPath(p)
	if err != nil {
		return "", err
	}
	for _, pkg := range [][]string{UserPackage, BuiltinPackage, LurkPackage} {
		if len(path) == len(pkg)+1 && hasPrefix(path, pkg) {
			return path[len(pkg)], nil
		}
	}
	return "." + strings.Join(path, "."), nil
}

func hasPrefix(path, prefix []string) bool {
	if len(path) < len(prefix) {
		return false
	}
	for i := range prefix {
		if path[i] != prefix[i] {
			return false
		}
	}
	return true
}
