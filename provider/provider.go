// Package provider defines the contract of a bibliographic data source and
// the registry that routes document codes to sources by prefix.
package provider

import (
	"context"
	"fmt"
	"regexp"

	"github.com/relaton/go-relaton/bibitem"
)

const (
	defaultWorkers       = 10
	defaultYearSeparator = ":"
)

// Options tunes a single lookup.
type Options struct {
	// AllParts asks for the document with all of its parts.
	AllParts bool
	// KeepYear keeps the year in the code passed to the provider.
	KeepYear bool
	// Retries is the number of attempts made on transient failures. Zero
	// selects the resolver default.
	Retries int
	// CacheOnly resolves from persistent tiers without contacting the
	// provider.
	CacheOnly bool
}

// Provider is a bibliographic data source for one standards body.
type Provider interface {
	// Prefix is the short identifier of the source, such as "ISO".
	Prefix() string
	// MatchDefaultPrefix reports whether an unprefixed code belongs to this
	// source.
	MatchDefaultPrefix(code string) bool
	// IDType is the identifier type string used for document identifiers.
	IDType() string
	// Workers is the number of concurrent fetches allowed for this source.
	Workers() int
	// GrammarHash identifies the serialization grammar of cached items.
	// Cached entries written under a different hash are discarded.
	GrammarHash() string
	// YearSeparator joins the code and year in canonical cache keys.
	YearSeparator() string
	// Fetch gets the item for code. A nil item with a nil error means the
	// source has no such document. Failures that may succeed on retry are
	// returned as *TransientError.
	Fetch(ctx context.Context, code, year string, opts Options) (bibitem.Item, error)
	// Decode parses a serialized item as written by Encode.
	Decode(data []byte) (bibitem.Item, error)
	Encode(item bibitem.Item) ([]byte, error)
	// DecodeYAML parses an item from the static cache.
	DecodeYAML(data []byte) (bibitem.Item, error)
	// NewItem creates an empty item with the given identifier.
	NewItem(docid string) bibitem.Item
}

// URNConverter is implemented by providers whose codes may be given as URNs.
type URNConverter interface {
	// URNToCode converts a URN to a document code. The boolean is false when
	// the input is not a URN known to the provider.
	URNToCode(urn string) (string, bool)
}

// Base implements every Provider method except Fetch, using the Bibdata model
// for serialization. Concrete providers embed it.
type Base struct {
	prefix        string
	defaultPrefix *regexp.Regexp
	idType        string
	workers       int
	grammarHash   string
	yearSep       string
}

// NewBase creates a Base for the given prefix.
func NewBase(prefix string, options ...BaseOption) (Base, error) {
	if prefix == "" {
		return Base{}, fmt.Errorf("provider prefix is empty")
	}
	b := Base{
		prefix:  prefix,
		idType:  prefix,
		workers: defaultWorkers,
		yearSep: defaultYearSeparator,
	}
	for i, opt := range options {
		if err := opt(&b); err != nil {
			return Base{}, fmt.Errorf("option %d failed: %s", i, err)
		}
	}
	return b, nil
}

func (b Base) Prefix() string { return b.prefix }

func (b Base) MatchDefaultPrefix(code string) bool {
	return b.defaultPrefix != nil && b.defaultPrefix.MatchString(code)
}

func (b Base) IDType() string        { return b.idType }
func (b Base) Workers() int          { return b.workers }
func (b Base) GrammarHash() string   { return b.grammarHash }
func (b Base) YearSeparator() string { return b.yearSep }

func (b Base) Decode(data []byte) (bibitem.Item, error) {
	return bibitem.FromXML(data)
}

func (b Base) Encode(item bibitem.Item) ([]byte, error) {
	return bibitem.ToXML(item)
}

func (b Base) DecodeYAML(data []byte) (bibitem.Item, error) {
	return bibitem.FromYAML(data)
}

func (b Base) NewItem(docid string) bibitem.Item {
	item := bibitem.New(docid)
	item.Docidentifier[0].Type = b.idType
	return item
}
