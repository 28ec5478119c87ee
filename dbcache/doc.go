// Package dbcache is a persistent cache of bibliographic entries.
//
// Each entry is stored under a canonical document identifier such as
// "ISO(ISO 19115-1:2014)" and is one of three kinds: a serialized item, a
// redirect to the identifier that holds the item, or a tombstone recording
// that the provider had no such document on a given date. Entries are kept in
// any go-datastore Datastore. FSStore keeps them as one file per entry, with
// a directory per provider prefix.
//
// Every provider namespace carries a version stamp, written with the first
// entry. Callers compare it with the current grammar version of the provider
// and clear the namespace when they differ.
package dbcache
