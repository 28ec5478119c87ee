package bibdb

import (
	"context"
	"regexp"

	"github.com/relaton/go-relaton/bibitem"
	"github.com/relaton/go-relaton/dbcache"
	"github.com/relaton/go-relaton/provider"
)

// Filter narrows FetchAll results. Empty fields do not filter.
type Filter struct {
	// Text must appear in an attribute value or element text of the item.
	Text string
	// Edition must equal the item's edition.
	Edition string
	// Year must equal the year of a "published" date of the item.
	Year string
}

// FetchAll returns the items of the static tier and the primary tier that
// match filter. Redirects and tombstones are skipped.
func (db *DB) FetchAll(ctx context.Context, filter Filter) ([]bibitem.Item, error) {
	var textRe *regexp.Regexp
	if filter.Text != "" {
		textRe = matchTextRegexp(filter.Text)
	}

	var items []bibitem.Item
	if db.static != nil {
		err := db.static.Each(ctx, func(r dbcache.Record) error {
			p := db.namespaceProvider(r)
			if p == nil {
				return nil
			}
			item, err := p.DecodeYAML(r.Entry.Payload)
			if err != nil {
				log.Warnw("Cannot decode static entry", "key", r.Key, "err", err)
				return nil
			}
			if !filter.matchItem(item) {
				return nil
			}
			if textRe != nil {
				data, err := p.Encode(item)
				if err != nil || !textRe.Match(data) {
					return nil
				}
			}
			items = append(items, item)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	primary, _ := db.tiers()
	if primary == nil {
		return items, nil
	}
	err := primary.Each(ctx, func(r dbcache.Record) error {
		p := db.namespaceProvider(r)
		if p == nil {
			return nil
		}
		if textRe != nil && !textRe.Match(r.Entry.Payload) {
			return nil
		}
		item, err := p.Decode(r.Entry.Payload)
		if err != nil {
			log.Warnw("Cannot decode cache entry", "cache", primary.Name(), "key", r.Key, "err", err)
			return nil
		}
		if filter.matchItem(item) {
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// namespaceProvider returns the provider of a payload record, or nil for
// records that are not payloads or whose namespace has no provider.
func (db *DB) namespaceProvider(r dbcache.Record) provider.Provider {
	if r.Entry.Kind != dbcache.KindPayload || r.Namespace == "" {
		return nil
	}
	p, err := db.registry.Lookup(r.Namespace)
	if err != nil {
		return nil
	}
	return p
}

func (f Filter) matchItem(item bibitem.Item) bool {
	if f.Edition != "" && item.Edition() != f.Edition {
		return false
	}
	if f.Year != "" && !bibitem.PublishedIn(item, f.Year) {
		return false
	}
	return true
}

// matchTextRegexp matches text, ignoring case, inside a quoted attribute value
// or inside element text of serialized XML.
func matchTextRegexp(text string) *regexp.Regexp {
	t := regexp.QuoteMeta(text)
	return regexp.MustCompile(`(?is)(='[^']*?` + t + `[^']*?'|="[^"]*?` + t + `[^"]*?"|>[^<]*?` + t + `[^<]*?<)`)
}
