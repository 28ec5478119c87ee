// Package bibdb resolves document codes, such as "ISO 19115-1:2014", to
// bibliographic items using a set of providers and a tiered cache.
//
// ## Providers
//
// Each provider serves the codes of one standards body. A provider claims a
// code when the code starts with its prefix, ignoring case and an optional
// "urn:", or when its default prefix pattern matches. Providers are tried in
// registration order and the first match wins. A code that no provider claims
// fails with *provider.UnrecognizedPrefixError and touches no cache tier.
//
// ## Cache Tiers
//
// Items are cached under a canonical key of the form PREFIX(code[:year]).
// There are up to three tiers. The static tier holds bundled items and is
// never written or invalidated. The global tier is shared across projects and
// the local tier belongs to one project. When both are configured the local
// tier is primary: valid global entries are copied into it, and freshly
// fetched entries are mirrored back to the global tier. Entries are never
// overwritten by a copy.
//
// An entry is valid while it carries a fetch date and either the lookup named
// a year or the entry is younger than the TTL. Invalid entries are evicted
// from the primary tier before the lookup.
//
// ## Tombstones and Redirects
//
// A provider that has no such document produces a tombstone, so the lookup is
// not repeated until the tombstone expires. Transient failures are retried
// and then returned without caching anything. When a fetched item's canonical
// identifier differs from the requested code, the item is stored under the
// canonical key and the requested key redirects to it.
//
// ## Asynchronous Lookups
//
// FetchAsync queues a lookup on its provider's FIFO queue. Each provider has
// its own queue and its own pool of workers, sized by the provider. Lookups
// start in submission order and complete in any order.
package bibdb
