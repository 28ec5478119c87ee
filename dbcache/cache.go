package dbcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("dbcache")

const versionName = "version"

var (
	ErrReadOnly      = errors.New("cache is read-only")
	ErrNotMovable    = errors.New("cache store cannot be relocated")
	ErrRedirectCycle = errors.New("redirect cycle")
)

// mover is implemented by stores that live in a directory that can be moved.
type mover interface {
	Root() string
	Move(newRoot string) error
}

// Cache is a persistent cache of bibliographic entries, keyed by canonical
// document identifiers, stored in a datastore.
type Cache struct {
	ds       datastore.Datastore
	name     string
	readOnly bool
	ttl      time.Duration
	now      func() time.Time
	version  func(string) string
	locks    *keyLocks
}

// Record is an entry found by Each.
type Record struct {
	// Key is the datastore key of the entry.
	Key       datastore.Key
	Namespace string
	Entry     Entry
}

// New creates a cache backed by ds.
func New(ds datastore.Datastore, options ...Option) (*Cache, error) {
	if ds == nil {
		return nil, errors.New("nil datastore")
	}
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}
	return &Cache{
		ds:       ds,
		name:     opts.name,
		readOnly: opts.readOnly,
		ttl:      opts.ttl,
		now:      opts.clock,
		version:  opts.version,
		locks:    newKeyLocks(),
	}, nil
}

// Open creates a cache stored in files under dir.
func Open(dir string, options ...Option) (*Cache, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}
	fs, err := NewFSStore(dir, opts.ext)
	if err != nil {
		return nil, err
	}
	return New(fs, options...)
}

// Name returns the name of the cache.
func (c *Cache) Name() string {
	return c.name
}

// Dir returns the directory of a file backed cache, or an empty string.
func (c *Cache) Dir() string {
	if m, ok := c.ds.(mover); ok {
		return m.Root()
	}
	return ""
}

// Get returns the entry stored under key without following redirects.
func (c *Cache) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := c.ds.Get(ctx, DatastoreKey(key))
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return DecodeEntry(data), true, nil
}

// Has reports whether an entry is stored under key.
func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	return c.ds.Has(ctx, DatastoreKey(key))
}

// Set stores e under key, replacing any existing entry.
func (c *Cache) Set(ctx context.Context, key string, e Entry) error {
	if c.readOnly {
		return ErrReadOnly
	}
	dsKey := DatastoreKey(key)
	unlock := c.locks.lock(dsKey.String())
	defer unlock()
	return c.put(ctx, dsKey, e)
}

// SetIfAbsent stores e under key unless an entry is already there. It
// returns the entry that is stored under key after the call, and whether e
// was written.
func (c *Cache) SetIfAbsent(ctx context.Context, key string, e Entry) (Entry, bool, error) {
	if c.readOnly {
		return Entry{}, false, ErrReadOnly
	}
	dsKey := DatastoreKey(key)
	unlock := c.locks.lock(dsKey.String())
	defer unlock()

	data, err := c.ds.Get(ctx, dsKey)
	if err == nil {
		return DecodeEntry(data), false, nil
	}
	if !errors.Is(err, datastore.ErrNotFound) {
		return Entry{}, false, err
	}
	if err = c.put(ctx, dsKey, e); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

func (c *Cache) put(ctx context.Context, dsKey datastore.Key, e Entry) error {
	if err := c.stampVersion(ctx, namespaceOf(dsKey)); err != nil {
		return err
	}
	return c.ds.Put(ctx, dsKey, e.Encode())
}

// Delete removes the entry under key if there is one.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c.readOnly {
		return ErrReadOnly
	}
	dsKey := DatastoreKey(key)
	unlock := c.locks.lock(dsKey.String())
	defer unlock()
	return c.ds.Delete(ctx, dsKey)
}

// Evict removes the entry under key and every entry its redirects lead to.
func (c *Cache) Evict(ctx context.Context, key string) error {
	seen := make(map[string]struct{})
	for {
		if _, ok := seen[key]; ok {
			return nil
		}
		seen[key] = struct{}{}
		e, ok, err := c.Get(ctx, key)
		if err != nil || !ok {
			return err
		}
		if err = c.Delete(ctx, key); err != nil {
			return err
		}
		if e.Kind != KindRedirect {
			return nil
		}
		key = e.Target
	}
}

// Resolve returns the entry under key, following redirects within this
// cache. A dangling redirect resolves to no entry. A redirect cycle is
// reported as an error.
func (c *Cache) Resolve(ctx context.Context, key string) (Entry, bool, error) {
	seen := make(map[string]struct{})
	for {
		if _, ok := seen[key]; ok {
			return Entry{}, false, fmt.Errorf("%w at %s", ErrRedirectCycle, key)
		}
		seen[key] = struct{}{}
		e, ok, err := c.Get(ctx, key)
		if err != nil || !ok {
			return Entry{}, false, err
		}
		if e.Kind != KindRedirect {
			return e, true, nil
		}
		key = e.Target
	}
}

// Valid reports whether the entry under key is fresh. The entry, after
// following redirects, must carry a fetch date. Lookups with a year are
// always fresh; undated lookups are fresh until the TTL has passed since the
// fetch date.
func (c *Cache) Valid(ctx context.Context, key, year string) (bool, error) {
	e, ok, err := c.Resolve(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	fetched, ok := e.Fetched()
	if !ok {
		return false, nil
	}
	if year != "" {
		return true, nil
	}
	return c.now().Sub(fetched) < c.ttl, nil
}

// CloneInto copies the entry under key into dst unless dst already has one.
// When the entry held by dst is a redirect, its target is cloned as well.
func (c *Cache) CloneInto(ctx context.Context, key string, dst *Cache) error {
	seen := make(map[string]struct{})
	for {
		if _, ok := seen[key]; ok {
			return nil
		}
		seen[key] = struct{}{}
		e, ok, err := c.Get(ctx, key)
		if err != nil || !ok {
			return err
		}
		stored, _, err := dst.SetIfAbsent(ctx, key, e)
		if err != nil {
			return err
		}
		if stored.Kind != KindRedirect {
			return nil
		}
		key = stored.Target
	}
}

// Each calls fn for every entry in the cache. Version stamps are skipped.
// Iteration stops at the first error returned by fn.
func (c *Cache) Each(ctx context.Context, fn func(Record) error) error {
	results, err := c.ds.Query(ctx, query.Query{})
	if err != nil {
		return err
	}
	defer results.Close()

	for {
		r, ok := results.NextSync()
		if !ok {
			return nil
		}
		if r.Error != nil {
			return r.Error
		}
		k := datastore.NewKey(r.Key)
		if k.BaseNamespace() == versionName {
			continue
		}
		err = fn(Record{
			Key:       k,
			Namespace: namespaceOf(k),
			Entry:     DecodeEntry(r.Value),
		})
		if err != nil {
			return err
		}
	}
}

// Namespaces returns the namespaces that hold entries or version stamps.
func (c *Cache) Namespaces(ctx context.Context) ([]string, error) {
	results, err := c.ds.Query(ctx, query.Query{KeysOnly: true})
	if err != nil {
		return nil, err
	}
	entries, err := results.Rest()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var namespaces []string
	for _, ent := range entries {
		ns := namespaceOf(datastore.NewKey(ent.Key))
		if ns == "" {
			continue
		}
		if _, ok := seen[ns]; !ok {
			seen[ns] = struct{}{}
			namespaces = append(namespaces, ns)
		}
	}
	return namespaces, nil
}

// CheckVersion reports whether the version stamp of namespace matches the
// current version. A missing stamp does not match.
func (c *Cache) CheckVersion(ctx context.Context, namespace string) (bool, error) {
	data, err := c.ds.Get(ctx, versionKey(namespace))
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return strings.TrimSpace(string(data)) == c.version(namespace), nil
}

// SetVersion writes the current version stamp of namespace.
func (c *Cache) SetVersion(ctx context.Context, namespace string) error {
	if c.readOnly {
		return ErrReadOnly
	}
	return c.ds.Put(ctx, versionKey(namespace), []byte(c.version(namespace)))
}

func (c *Cache) stampVersion(ctx context.Context, namespace string) error {
	if namespace == "" {
		return nil
	}
	ok, err := c.ds.Has(ctx, versionKey(namespace))
	if err != nil || ok {
		return err
	}
	return c.SetVersion(ctx, namespace)
}

// ClearNamespace removes every entry in namespace, including its version
// stamp.
func (c *Cache) ClearNamespace(ctx context.Context, namespace string) error {
	if c.readOnly {
		return ErrReadOnly
	}
	return c.deleteAll(ctx, "/"+namespace)
}

// Clear removes every entry in the cache.
func (c *Cache) Clear(ctx context.Context) error {
	if c.readOnly {
		return ErrReadOnly
	}
	return c.deleteAll(ctx, "")
}

func (c *Cache) deleteAll(ctx context.Context, prefix string) error {
	results, err := c.ds.Query(ctx, query.Query{Prefix: prefix, KeysOnly: true})
	if err != nil {
		return err
	}
	entries, err := results.Rest()
	if err != nil {
		return err
	}
	var errs error
	for _, ent := range entries {
		if err = c.ds.Delete(ctx, datastore.NewKey(ent.Key)); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if errs != nil {
		return errs
	}
	return c.ds.Sync(ctx, datastore.NewKey(prefix))
}

// Move relocates a file backed cache to newDir. Nothing is moved if newDir
// already exists.
func (c *Cache) Move(newDir string) error {
	m, ok := c.ds.(mover)
	if !ok {
		return ErrNotMovable
	}
	if newDir == "" || newDir == m.Root() {
		return nil
	}
	if _, err := os.Stat(newDir); err == nil {
		log.Warnw("Target directory exists, cache not moved", "cache", c.name, "dir", newDir)
		return nil
	}
	return m.Move(newDir)
}

// Close closes the underlying datastore.
func (c *Cache) Close() error {
	return c.ds.Close()
}
