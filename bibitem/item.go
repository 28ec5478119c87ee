// Package bibitem defines the bibliographic item contract consumed by the
// cache engine, and Bibdata, a minimal item model with XML and YAML codecs
// that providers can use when they have no richer model of their own.
package bibitem

import "time"

// FetchedLayout is the date layout of the fetched marker carried by items.
const FetchedLayout = "2006-01-02"

// DocID is a document identifier.
type DocID struct {
	ID      string `xml:",chardata" yaml:"id"`
	Type    string `xml:"type,attr,omitempty" yaml:"type,omitempty"`
	Primary bool   `xml:"primary,attr,omitempty" yaml:"primary,omitempty"`
}

// Date is a typed date of a document, such as "published" or "issued".
type Date struct {
	Type string `xml:"type,attr" yaml:"type"`
	On   string `xml:"on" yaml:"value"`
}

// Year returns the four digit year of the date, or an empty string if the
// date has no year.
func (d Date) Year() string {
	if len(d.On) < 4 {
		return ""
	}
	return d.On[:4]
}

// Relation links an item to another item.
type Relation struct {
	Type        string
	Description string
	Bibitem     Item
}

// Item is a bibliographic item. The cache engine only reads identifiers,
// edition and dates, appends relations, and stamps the fetch date.
type Item interface {
	// DocIDs returns the document identifiers, canonical identifier first.
	DocIDs() []DocID
	Edition() string
	Dates() []Date
	Relations() []Relation
	AddRelation(Relation)
	// Fetched returns the date, in FetchedLayout, the item was fetched.
	Fetched() string
	SetFetched(string)
}

// FirstID returns the canonical identifier of the item, or an empty string.
func FirstID(item Item) string {
	if item == nil {
		return ""
	}
	ids := item.DocIDs()
	if len(ids) == 0 {
		return ""
	}
	return ids[0].ID
}

// PublishedIn reports whether the item has a "published" date in year.
func PublishedIn(item Item, year string) bool {
	for _, d := range item.Dates() {
		if d.Type == "published" && d.Year() == year {
			return true
		}
	}
	return false
}

// StampFetched sets the fetch date of item to now if it has none.
func StampFetched(item Item, now time.Time) {
	if item.Fetched() == "" {
		item.SetFetched(now.Format(FetchedLayout))
	}
}
