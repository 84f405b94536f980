// Package cache persists proofs keyed by what was proven, with an
// in-memory LRU in front of sqlite.
package cache

import (
	"context"
	"database/sql"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"lurk-zk/pkg/proofs"
	"lurk-zk/pkg/zstore"
)

// Key identifies a proof: blake2b-256 of flatten(expr) ++ env digest ++
// verifier version.
type Key [blake2b.Size256]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// KeyFor derives the cache key of evaluating expr in env under version.
func KeyFor(expr, env zstore.ZPtr, version string) Key {
	h, _ := blake2b.New256(nil)
	h.Write(zstore.EncodeElements(expr.Flatten()))
	h.Write(zstore.EncodeElements(env.Digest[:]))
	h.Write([]byte(version))
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

// Cache is safe for concurrent use.
type Cache struct {
	db     *sql.DB
	mem    *lru.Cache
	logger *zap.Logger
}

type Option func(*Cache)

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// Open opens or creates the sqlite database at path. entries bounds the
// memory front.
func Open(path string, entries int, opts ...Option) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening proof cache %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating proof cache schema")
	}
	mem, err := lru.New(entries)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating memory cache")
	}
	c := &Cache{db: db, mem: mem, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the proof stored under key. A miss is (nil, false, nil).
func (c *Cache) Get(ctx context.Context, key Key) (*proofs.CachedProof, bool, error) {
	if v, ok := c.mem.Get(key); ok {
		return v.(*proofs.CachedProof), true, nil
	}
	var bits []byte
	err := c.db.QueryRowContext(ctx, "SELECT bits FROM proofs WHERE key = $1", key[:]).Scan(&bits)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading proof %s", key)
	}
	p, err := proofs.Decode[proofs.CachedProof](bits)
	if err != nil {
		return nil, false, errors.Wrapf(err, "parsing proof %s", key)
	}
	c.mem.Add(key, p)
	c.logger.Debug("proof cache hit", zap.Stringer("key", key))
	return p, true, nil
}

// Put stores p under key, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, key Key, p *proofs.CachedProof) error {
	bits, err := proofs.Encode(p)
	if err != nil {
		return errors.Wrapf(err, "marshaling proof %s", key)
	}
	_, err = c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO proofs (key, version, bits, created_at) VALUES ($1, $2, $3, $4)",
		key[:], p.CryptoProof.VerifierVersion, bits, time.Now().Unix())
	if err != nil {
		return errors.Wrapf(err, "writing proof %s", key)
	}
	c.mem.Add(key, p)
	return nil
}

// Prune deletes proofs made by any verifier version other than keep and
// returns how many were removed.
func (c *Cache) Prune(ctx context.Context, keep string) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM proofs WHERE version != $1", keep)
	if err != nil {
		return 0, errors.Wrap(err, "pruning proof cache")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting pruned proofs")
	}
	c.mem.Purge()
	return n, nil
}

// Len is the number of persisted proofs.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM proofs").Scan(&n)
	return n, errors.Wrap(err, "counting proofs")
}
