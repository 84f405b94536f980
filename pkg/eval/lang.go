package eval

import (
	"errors"
	"fmt"

	"lurk-zk/pkg/zstore"
)

var (
	ErrDuplicateCoroutine = errors.New("duplicate coroutine")
	ErrReservedName       = errors.New("coroutine name shadows a builtin")
	ErrUnregistered       = errors.New("coroutine not registered in store")
)

// CoroutineFunc computes a coroutine's result from already evaluated
// arguments. env is the caller's environment when UsesEnv is set.
type CoroutineFunc func(store *zstore.Store, args []zstore.ZPtr, env zstore.ZPtr) (zstore.ZPtr, error)

// Coroutine is an external function callable from Lurk by name.
type Coroutine struct {
	Name    string
	Arity   int
	UsesEnv bool
	Fn      CoroutineFunc
}

// Lang is a set of coroutines extending the builtin language.
type Lang struct {
	coroutines []Coroutine
	byName     map[string]int
}

// EmptyLang has no coroutines.
func EmptyLang() *Lang {
	return &Lang{byName: map[string]int{}}
}

// NewLang validates and collects coroutines.
func NewLang(coroutines ...Coroutine) (*Lang, error) {
	l := EmptyLang()
	for _, c := range coroutines {
		if _, ok := l.byName[c.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCoroutine, c.Name)
		}
		for _, b := range zstore.BuiltinNames {
			if b == c.Name {
				return nil, fmt.Errorf("%w: %s", ErrReservedName, c.Name)
			}
		}
		l.byName[c.Name] = len(l.coroutines)
		l.coroutines = append(l.coroutines, c)
	}
	return l, nil
}

// Names lists coroutine names in registration order.
func (l *Lang) Names() []string {
	out := make([]string, len(l.coroutines))
	for i, c := range l.coroutines {
		out[i] = c.Name
	}
	return out
}

// NewStore returns a store whose symbol table knows this language.
func (l *Lang) NewStore() *zstore.Store {
	return zstore.NewStore(l.Names()...)
}

func (l *Lang) resolve(store *zstore.Store) (map[zstore.Digest]*Coroutine, error) {
	out := make(map[zstore.Digest]*Coroutine, len(l.coroutines))
	for i := range l.coroutines {
		c := &l.coroutines[i]
		dig, ok := store.Digests().Coroutine(c.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnregistered, c.Name)
		}
		out[dig] = c
	}
	return out, nil
}
