package bibdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/ipfs/go-datastore"
	logging "github.com/ipfs/go-log/v2"
	"github.com/relaton/go-relaton/bibitem"
	"github.com/relaton/go-relaton/dbcache"
	"github.com/relaton/go-relaton/provider"
)

var log = logging.Logger("bibdb")

var xmlDeclRe = regexp.MustCompile(`^\s*<\?xml[^>]*\?>\s*`)

// DB resolves document codes to bibliographic items through the static,
// local and global cache tiers and the registered providers.
type DB struct {
	registry *provider.Registry
	static   *dbcache.Cache
	global   *dbcache.Cache
	local    *dbcache.Cache
	retries  int
	now      func() time.Time

	queuesMu sync.Mutex
	queues   map[string]*fetchQueue
	closed   bool
	wg       sync.WaitGroup
}

// New creates a DB. Cache tiers are opened and any provider namespace whose
// version stamp differs from the provider's grammar hash is cleared.
func New(options ...Option) (*DB, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}
	if opts.registry == nil {
		return nil, errors.New("no provider registry")
	}

	db := &DB{
		registry: opts.registry,
		retries:  opts.retries,
		now:      opts.clock,
		queues:   make(map[string]*fetchQueue),
	}

	ctx := context.Background()
	cacheOpts := []dbcache.Option{
		dbcache.WithTTL(opts.ttl),
		dbcache.WithClock(opts.clock),
		dbcache.WithVersionFunc(db.grammarHash),
	}
	db.global, err = openTier(ctx, "global", opts.globalDir, opts.globalStore, cacheOpts)
	if err != nil {
		return nil, fmt.Errorf("cannot open global cache: %w", err)
	}
	db.local, err = openTier(ctx, "local", opts.localDir, opts.localStore, cacheOpts)
	if err != nil {
		return nil, fmt.Errorf("cannot open local cache: %w", err)
	}
	db.static, err = openStatic(opts.staticDir, opts.staticStore)
	if err != nil {
		return nil, fmt.Errorf("cannot open static cache: %w", err)
	}
	return db, nil
}

func openTier(ctx context.Context, name, dir string, ds datastore.Datastore, options []dbcache.Option) (*dbcache.Cache, error) {
	var c *dbcache.Cache
	var err error
	options = append([]dbcache.Option{dbcache.WithName(name)}, options...)
	switch {
	case ds != nil:
		c, err = dbcache.New(ds, options...)
	case dir != "":
		c, err = dbcache.Open(dir, options...)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	namespaces, err := c.Namespaces(ctx)
	if err != nil {
		return nil, err
	}
	for _, ns := range namespaces {
		ok, err := c.CheckVersion(ctx, ns)
		if err != nil {
			return nil, err
		}
		if ok {
			continue
		}
		if err = c.ClearNamespace(ctx, ns); err != nil {
			return nil, err
		}
		if err = c.SetVersion(ctx, ns); err != nil {
			return nil, err
		}
		log.Warnw("Cache version is obsolete, cache cleared", "cache", name, "namespace", ns)
	}
	return c, nil
}

func openStatic(dir string, ds datastore.Datastore) (*dbcache.Cache, error) {
	options := []dbcache.Option{dbcache.ReadOnly(), dbcache.WithName("static"), dbcache.WithExt("yml")}
	switch {
	case ds != nil:
		return dbcache.New(ds, options...)
	case dir != "":
		return dbcache.Open(dir, options...)
	}
	return nil, nil
}

// grammarHash returns the grammar version of the provider owning a cache
// namespace.
func (db *DB) grammarHash(namespace string) string {
	p, err := db.registry.Lookup(namespace)
	if err != nil {
		return ""
	}
	return p.GrammarHash()
}

// tiers returns the primary tier, local if configured else global, and the
// secondary tier, which is global when both are configured.
func (db *DB) tiers() (*dbcache.Cache, *dbcache.Cache) {
	if db.local != nil {
		return db.local, db.global
	}
	return db.global, nil
}

// standardClass returns the provider for code, logging the known prefixes
// when there is none.
func (db *DB) standardClass(code string) (provider.Provider, error) {
	p, err := db.registry.Lookup(code)
	if err != nil {
		var perr *provider.UnrecognizedPrefixError
		if errors.As(err, &perr) {
			log.Warnw("Code does not have a recognised prefix", "code", code, "prefixes", perr.Prefixes)
		}
		return nil, err
	}
	return p, nil
}

// Fetch resolves code, optionally restricted to year, to a bibliographic
// item. A nil item with a nil error means the document does not exist.
//
// Codes joined with " + " or ", " resolve to a composite item that relates
// the first code to the item it updates and to each following part.
func (db *DB) Fetch(ctx context.Context, code, year string, opts provider.Options) (bibitem.Item, error) {
	p, err := db.standardClass(code)
	if err != nil {
		return nil, err
	}
	ref := code
	if conv, ok := p.(provider.URNConverter); ok {
		if c, ok := conv.URNToCode(code); ok && c != "" {
			ref = c
		}
	}
	item, ok, err := db.combineDoc(ctx, ref, year, opts, p)
	if ok || err != nil {
		return item, err
	}
	return db.checkCache(ctx, ref, year, opts, p)
}

// FetchDB resolves code from the cache tiers only, never contacting a
// provider.
func (db *DB) FetchDB(ctx context.Context, code, year string, opts provider.Options) (bibitem.Item, error) {
	opts.CacheOnly = true
	return db.Fetch(ctx, code, year, opts)
}

// FetchStd resolves code with the provider registered for prefix. If prefix
// is empty or unknown the provider is chosen from the code. Composite codes
// are not split.
func (db *DB) FetchStd(ctx context.Context, code, year, prefix string, opts provider.Options) (bibitem.Item, error) {
	var p provider.Provider
	if prefix != "" {
		p = db.registry.ByPrefix(prefix)
	}
	if p == nil {
		var err error
		if p, err = db.standardClass(code); err != nil {
			return nil, err
		}
	}
	return db.checkCache(ctx, code, year, opts, p)
}

// DocIDType returns the identifier type and the code without its wrapper. The
// type is empty when no provider claims the code.
func (db *DB) DocIDType(code string) (string, string) {
	p, err := db.standardClass(code)
	if err != nil {
		return "", code
	}
	return p.IDType(), stripIDWrapper(code, p.Prefix())
}

// LoadEntry returns the raw entry stored under key in the local tier, or in
// the global tier if the local tier does not have it.
func (db *DB) LoadEntry(ctx context.Context, key string) (dbcache.Entry, bool, error) {
	for _, c := range []*dbcache.Cache{db.local, db.global} {
		if c == nil {
			continue
		}
		e, ok, err := c.Get(ctx, key)
		if err != nil || ok {
			return e, ok, err
		}
	}
	return dbcache.Entry{}, false, nil
}

// SaveEntry stores entry under key in every writable tier. A nil entry
// removes the key.
func (db *DB) SaveEntry(ctx context.Context, key string, entry *dbcache.Entry) error {
	var errs error
	for _, c := range []*dbcache.Cache{db.global, db.local} {
		if c == nil {
			continue
		}
		var err error
		if entry == nil {
			err = c.Delete(ctx, key)
		} else {
			err = c.Set(ctx, key, *entry)
		}
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s cache: %w", c.Name(), err))
		}
	}
	return errs
}

// ToXML returns every item of the primary tier wrapped in a documents
// element. It returns nil when there is no cache tier.
func (db *DB) ToXML(ctx context.Context) ([]byte, error) {
	primary, _ := db.tiers()
	if primary == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<documents>")
	first := true
	err := primary.Each(ctx, func(r dbcache.Record) error {
		if r.Entry.Kind != dbcache.KindPayload {
			return nil
		}
		if !first {
			buf.WriteByte(' ')
		}
		first = false
		buf.Write(xmlDeclRe.ReplaceAll(r.Entry.Payload, nil))
		return nil
	})
	if err != nil {
		return nil, err
	}
	buf.WriteString("</documents>")
	return buf.Bytes(), nil
}

// Move relocates the file backed global and local tiers. An empty directory
// leaves that tier in place.
func (db *DB) Move(newGlobalDir, newLocalDir string) error {
	var errs error
	if db.global != nil && newGlobalDir != "" {
		if err := db.global.Move(newGlobalDir); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("global cache: %w", err))
		}
	}
	if db.local != nil && newLocalDir != "" {
		if err := db.local.Move(newLocalDir); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("local cache: %w", err))
		}
	}
	return errs
}

// Clear removes every entry from the global and local tiers.
func (db *DB) Clear(ctx context.Context) error {
	var errs error
	for _, c := range []*dbcache.Cache{db.global, db.local} {
		if c == nil {
			continue
		}
		if err := c.Clear(ctx); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s cache: %w", c.Name(), err))
		}
	}
	return errs
}

// Close stops accepting asynchronous lookups, waits for queued lookups to
// finish and closes the cache tiers.
func (db *DB) Close() error {
	db.queuesMu.Lock()
	if db.closed {
		db.queuesMu.Unlock()
		return nil
	}
	db.closed = true
	for _, q := range db.queues {
		close(q.in)
	}
	db.queuesMu.Unlock()

	db.wg.Wait()

	var errs error
	for _, c := range []*dbcache.Cache{db.static, db.global, db.local} {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s cache: %w", c.Name(), err))
		}
	}
	return errs
}
