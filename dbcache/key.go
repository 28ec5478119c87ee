package dbcache

import (
	"regexp"
	"strings"

	"github.com/ipfs/go-datastore"
)

var (
	prefixCodeRe = regexp.MustCompile(`^([^(]+)\(([^)]+)`)
	unsafeRe     = regexp.MustCompile(`[-:\s/()]`)
	unsafeFlatRe = regexp.MustCompile(`[-:\s]`)
	squeezeRe    = regexp.MustCompile(`_+`)
	trailRe      = regexp.MustCompile(`,|_$`)
)

// DatastoreKey maps a cache key to a datastore key. A key of the form
// "PREFIX(code)" is stored in the namespace of the lowercased prefix, with
// separators in the code replaced by underscores:
//
//	ISO(ISO 19115-1:2014) -> /iso/iso_19115_1_2014
func DatastoreKey(key string) datastore.Key {
	var name string
	if m := prefixCodeRe.FindStringSubmatch(strings.ToLower(key)); m != nil {
		code := squeezeRe.ReplaceAllString(unsafeRe.ReplaceAllString(m[2], "_"), "_")
		name = m[1] + "/" + code
	} else {
		name = unsafeFlatRe.ReplaceAllString(key, "_")
	}
	if loc := trailRe.FindStringIndex(name); loc != nil {
		name = name[:loc[0]] + name[loc[1]:]
	}
	return datastore.NewKey(name)
}

// namespaceOf returns the first namespace of a datastore key that has a
// parent, or an empty string.
func namespaceOf(k datastore.Key) string {
	ns := k.Namespaces()
	if len(ns) < 2 {
		return ""
	}
	return ns[0]
}

func versionKey(namespace string) datastore.Key {
	return datastore.NewKey(namespace).ChildString(versionName)
}
