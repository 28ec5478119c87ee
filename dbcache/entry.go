package dbcache

import (
	"bytes"
	"regexp"
	"time"

	"github.com/relaton/go-relaton/bibitem"
)

const (
	tombstoneMarker = "not_found"
	redirectMarker  = "redirection"
)

var (
	fetchedRe   = regexp.MustCompile(`<fetched>(\d{4}-\d{2}-\d{2})</fetched>`)
	tombstoneRe = regexp.MustCompile(`^not_found\s+(\d{4}-\d{2}-\d{2})`)
)

// Kind is the kind of a cache entry.
type Kind int

const (
	// KindPayload is a serialized bibliographic item.
	KindPayload Kind = iota
	// KindRedirect points at the key holding the canonical payload.
	KindRedirect
	// KindTombstone records that the provider had no such document.
	KindTombstone
)

func (k Kind) String() string {
	switch k {
	case KindPayload:
		return "payload"
	case KindRedirect:
		return "redirect"
	case KindTombstone:
		return "tombstone"
	}
	return "unknown"
}

// Entry is the value stored under a cache key.
type Entry struct {
	Kind    Kind
	Payload []byte
	// Target is the key a redirect points at.
	Target string
	// NotFoundOn is the date a tombstone was recorded.
	NotFoundOn time.Time
}

// Payload creates a payload entry.
func Payload(data []byte) Entry {
	return Entry{Kind: KindPayload, Payload: data}
}

// Redirect creates a redirect entry to key.
func Redirect(key string) Entry {
	return Entry{Kind: KindRedirect, Target: key}
}

// Tombstone creates a tombstone dated on the day of t.
func Tombstone(t time.Time) Entry {
	y, m, d := t.Date()
	return Entry{Kind: KindTombstone, NotFoundOn: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// Encode returns the stored text form of the entry.
func (e Entry) Encode() []byte {
	switch e.Kind {
	case KindRedirect:
		return []byte(redirectMarker + " " + e.Target)
	case KindTombstone:
		return []byte(tombstoneMarker + " " + e.NotFoundOn.Format(bibitem.FetchedLayout))
	}
	return e.Payload
}

// DecodeEntry parses the stored text form of an entry.
func DecodeEntry(data []byte) Entry {
	switch {
	case bytes.HasPrefix(data, []byte(redirectMarker+" ")):
		target := bytes.TrimSpace(data[len(redirectMarker)+1:])
		return Redirect(string(target))
	case bytes.HasPrefix(data, []byte(tombstoneMarker)):
		e := Entry{Kind: KindTombstone}
		if m := tombstoneRe.FindSubmatch(data); m != nil {
			if t, err := time.Parse(bibitem.FetchedLayout, string(m[1])); err == nil {
				e.NotFoundOn = t
			}
		}
		return e
	}
	return Payload(data)
}

// Fetched returns the date the entry was obtained from its provider: the
// tombstone date or the fetched marker inside a payload. The boolean is false
// when the entry carries no date.
func (e Entry) Fetched() (time.Time, bool) {
	switch e.Kind {
	case KindTombstone:
		return e.NotFoundOn, !e.NotFoundOn.IsZero()
	case KindPayload:
		m := fetchedRe.FindSubmatch(e.Payload)
		if m == nil {
			return time.Time{}, false
		}
		t, err := time.Parse(bibitem.FetchedLayout, string(m[1]))
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}
