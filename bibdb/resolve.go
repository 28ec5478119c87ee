package bibdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/relaton/go-relaton/bibitem"
	"github.com/relaton/go-relaton/dbcache"
	"github.com/relaton/go-relaton/provider"
)

// checkCache resolves a single code through the cache tiers, fetching from
// the provider on a miss.
//
// Stale entries in the primary tier are evicted first, together with the
// entries their redirects lead to. A valid entry in the
// secondary tier is copied into the primary tier, a missing primary entry is
// fetched, and the primary entry is then mirrored into the secondary tier if
// that tier lacks a valid one. Copies never overwrite an existing entry.
func (db *DB) checkCache(ctx context.Context, code, year string, opts provider.Options, p provider.Provider) (bibitem.Item, error) {
	id, searchCode := stdID(code, year, opts, p)

	if db.static != nil {
		e, ok, err := db.static.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok && e.Kind == dbcache.KindPayload {
			cacheHits.WithLabelValues(db.static.Name()).Inc()
			return p.DecodeYAML(e.Payload)
		}
	}

	primary, secondary := db.tiers()
	if primary == nil {
		if opts.CacheOnly {
			return nil, nil
		}
		cacheMisses.WithLabelValues(p.Prefix()).Inc()
		e, err := db.newEntry(ctx, searchCode, year, opts, p, nil, id)
		if err != nil {
			return nil, err
		}
		return decodeEntry(e, p)
	}

	valid, err := primary.Valid(ctx, id, year)
	if err != nil {
		// A cache-only lookup cannot replace a looping entry, so it fails.
		if opts.CacheOnly && errors.Is(err, ErrRedirectCycle) {
			return nil, fmt.Errorf("%s cache: %w", primary.Name(), err)
		}
		logInvalid(ctx, primary, id, err)
	}
	if !valid {
		if err = primary.Evict(ctx, id); err != nil {
			return nil, err
		}
	}

	if opts.CacheOnly {
		item, err := db.retrieve(ctx, primary, id, p)
		if item != nil || err != nil || secondary == nil {
			return item, err
		}
		return db.retrieve(ctx, secondary, id, p)
	}

	if secondary != nil && isValid(ctx, secondary, id, year) {
		if err = secondary.CloneInto(ctx, id, primary); err != nil {
			return nil, err
		}
	}

	if err = db.ensureEntry(ctx, primary, id, searchCode, year, opts, p); err != nil {
		return nil, err
	}

	if secondary != nil && !isValid(ctx, secondary, id, year) {
		if err = secondary.Evict(ctx, id); err != nil {
			return nil, err
		}
		if err = primary.CloneInto(ctx, id, secondary); err != nil {
			return nil, err
		}
	}

	return db.retrieve(ctx, primary, id, p)
}

// ensureEntry fetches and stores the entry for id unless c already has one.
// The check is not locked, so concurrent lookups of the same id may both
// fetch. Only the first result is stored.
func (db *DB) ensureEntry(ctx context.Context, c *dbcache.Cache, id, code, year string, opts provider.Options, p provider.Provider) error {
	ok, err := c.Has(ctx, id)
	if err != nil {
		return err
	}
	if ok {
		cacheHits.WithLabelValues(c.Name()).Inc()
		return nil
	}
	cacheMisses.WithLabelValues(p.Prefix()).Inc()

	e, err := db.newEntry(ctx, code, year, opts, p, c, id)
	if err != nil {
		return err
	}
	_, _, err = c.SetIfAbsent(ctx, id, e)
	return err
}

// newEntry fetches code and returns the entry to store under id.
//
// A missing document becomes a tombstone. When c is not nil and the item's
// canonical identifier differs from the lookup, the payload is stored under
// the canonical key and a redirect to it is returned.
func (db *DB) newEntry(ctx context.Context, code, year string, opts provider.Options, p provider.Provider, c *dbcache.Cache, id string) (dbcache.Entry, error) {
	attempts := opts.Retries
	if attempts < 1 {
		attempts = db.retries
	}
	item, err := fetchWithRetry(ctx, code, year, opts, p, attempts)
	if err != nil {
		if provider.IsTransient(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return dbcache.Entry{}, err
		}
		if !errors.Is(err, provider.ErrNotFound) {
			log.Warnw("Provider failed, recording document as not found", "provider", p.Prefix(), "code", code, "err", err)
		}
		item = nil
	}
	if item == nil {
		tombstonesWritten.WithLabelValues(p.Prefix()).Inc()
		return dbcache.Tombstone(db.now()), nil
	}

	bibitem.StampFetched(item, db.now())
	data, err := p.Encode(item)
	if err != nil {
		return dbcache.Entry{}, fmt.Errorf("cannot encode %s: %w", code, err)
	}
	entry := dbcache.Payload(data)

	bibID := bibitem.FirstID(item)
	if c == nil || bibID == "" || strings.Contains(id, "("+bibID+")") {
		return entry, nil
	}
	bid, _ := stdID(bibID, "", provider.Options{}, p)
	if bid == id {
		return entry, nil
	}
	stored, written, err := c.SetIfAbsent(ctx, bid, entry)
	if err != nil {
		return dbcache.Entry{}, err
	}
	// A tombstone or stale payload under the canonical key is replaced.
	if !written && (stored.Kind != dbcache.KindPayload || !isValid(ctx, c, bid, "")) {
		if err = c.Set(ctx, bid, entry); err != nil {
			return dbcache.Entry{}, err
		}
	}
	redirectsWritten.WithLabelValues(p.Prefix()).Inc()
	log.Debugw("Stored redirect", "id", id, "target", bid)
	return dbcache.Redirect(bid), nil
}

// isValid reports whether c holds a fresh entry for id.
func isValid(ctx context.Context, c *dbcache.Cache, id, year string) bool {
	ok, err := c.Valid(ctx, id, year)
	if err != nil {
		logInvalid(ctx, c, id, err)
	}
	return ok
}

func logInvalid(ctx context.Context, c *dbcache.Cache, id string, err error) {
	if !errors.Is(err, ctx.Err()) {
		log.Warnw("Invalid cache entry", "cache", c.Name(), "id", id, "err", err)
	}
}

// retrieve decodes the entry under id in c, following redirects.
func (db *DB) retrieve(ctx context.Context, c *dbcache.Cache, id string, p provider.Provider) (bibitem.Item, error) {
	seen := make(map[string]struct{})
	key := id
	for {
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("%w: %s", ErrRedirectCycle, id)
		}
		seen[key] = struct{}{}
		e, ok, err := c.Get(ctx, key)
		if err != nil || !ok {
			return nil, err
		}
		if e.Kind != dbcache.KindRedirect {
			return decodeEntry(e, p)
		}
		key = e.Target
	}
}

func decodeEntry(e dbcache.Entry, p provider.Provider) (bibitem.Item, error) {
	if e.Kind != dbcache.KindPayload {
		return nil, nil
	}
	return p.Decode(e.Payload)
}
