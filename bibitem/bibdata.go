package bibitem

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Bibdata is a minimal bibliographic item.
type Bibdata struct {
	FetchedOn     string
	Title         string
	Docidentifier []DocID
	EditionNumber string
	Date          []Date
	Relation      []Relation
}

var _ Item = (*Bibdata)(nil)

// New creates an item with a single primary identifier.
func New(docid string) *Bibdata {
	return &Bibdata{Docidentifier: []DocID{{ID: docid, Primary: true}}}
}

func (b *Bibdata) DocIDs() []DocID        { return b.Docidentifier }
func (b *Bibdata) Edition() string        { return b.EditionNumber }
func (b *Bibdata) Dates() []Date          { return b.Date }
func (b *Bibdata) Relations() []Relation  { return b.Relation }
func (b *Bibdata) AddRelation(r Relation) { b.Relation = append(b.Relation, r) }
func (b *Bibdata) Fetched() string        { return b.FetchedOn }
func (b *Bibdata) SetFetched(date string) { b.FetchedOn = date }

// wireItem is the serialized form shared by the XML and YAML codecs. The
// XMLName is left unset for nested items so that the field tag names them.
type wireItem struct {
	XMLName  xml.Name       `yaml:"-"`
	Fetched  string         `xml:"fetched,omitempty" yaml:"fetched,omitempty"`
	Title    string         `xml:"title,omitempty" yaml:"title,omitempty"`
	DocID    []DocID        `xml:"docidentifier" yaml:"docid,omitempty"`
	Date     []Date         `xml:"date" yaml:"date,omitempty"`
	Edition  string         `xml:"edition,omitempty" yaml:"edition,omitempty"`
	Relation []wireRelation `xml:"relation" yaml:"relation,omitempty"`
}

type wireRelation struct {
	Type        string    `xml:"type,attr" yaml:"type"`
	Description string    `xml:"description,omitempty" yaml:"description,omitempty"`
	Bibitem     *wireItem `xml:"bibitem" yaml:"bibitem,omitempty"`
}

func toWire(item Item) *wireItem {
	if item == nil {
		return nil
	}
	w := &wireItem{
		Fetched: item.Fetched(),
		DocID:   item.DocIDs(),
		Date:    item.Dates(),
		Edition: item.Edition(),
	}
	if b, ok := item.(*Bibdata); ok {
		w.Title = b.Title
	}
	for _, r := range item.Relations() {
		w.Relation = append(w.Relation, wireRelation{
			Type:        r.Type,
			Description: r.Description,
			Bibitem:     toWire(r.Bibitem),
		})
	}
	return w
}

func (w *wireItem) bibdata() *Bibdata {
	b := &Bibdata{
		FetchedOn:     w.Fetched,
		Title:         w.Title,
		Docidentifier: w.DocID,
		EditionNumber: w.Edition,
		Date:          w.Date,
	}
	for _, r := range w.Relation {
		rel := Relation{Type: r.Type, Description: r.Description}
		if r.Bibitem != nil {
			rel.Bibitem = r.Bibitem.bibdata()
		}
		b.Relation = append(b.Relation, rel)
	}
	return b
}

// ToXML serializes any item as a bibdata XML document.
func ToXML(item Item) ([]byte, error) {
	w := toWire(item)
	if w == nil {
		return nil, fmt.Errorf("cannot serialize nil item")
	}
	w.XMLName = xml.Name{Local: "bibdata"}
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FromXML parses a bibdata or bibitem XML document.
func FromXML(data []byte) (*Bibdata, error) {
	var w wireItem
	if err := xml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("cannot decode bibdata xml: %w", err)
	}
	return w.bibdata(), nil
}

// FromYAML parses a YAML item as stored in the static cache.
func FromYAML(data []byte) (*Bibdata, error) {
	var w wireItem
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("cannot decode bibdata yaml: %w", err)
	}
	return w.bibdata(), nil
}

// ToYAML serializes any item as YAML.
func ToYAML(item Item) ([]byte, error) {
	w := toWire(item)
	if w == nil {
		return nil, fmt.Errorf("cannot serialize nil item")
	}
	return yaml.Marshal(w)
}
