package bibdb

import (
	"context"
	"strings"

	"github.com/relaton/go-relaton/bibitem"
	"github.com/relaton/go-relaton/provider"
)

const (
	derivedSep    = " + "
	complementSep = ", "
)

// combineDoc resolves a composite code. Parts joined with " + " are related
// as derivedFrom and parts joined with ", " as complements amendments. The
// first part is related as the document the composite updates, and every
// other part is resolved as "<first>/<part>". Parts that do not resolve are
// left out.
//
// The boolean is false when code is not composite.
func (db *DB) combineDoc(ctx context.Context, code, year string, opts provider.Options, p provider.Provider) (bibitem.Item, bool, error) {
	var relType, relDesc string
	refs := strings.Split(code, derivedSep)
	if len(refs) > 1 {
		relType = "derivedFrom"
	} else if refs = strings.Split(code, complementSep); len(refs) > 1 {
		relType = "complements"
		relDesc = "amendment"
	} else {
		return nil, false, nil
	}

	doc := p.NewItem(code)
	ref := refs[0]
	updates, err := db.checkCache(ctx, ref, year, opts, p)
	if err != nil {
		return nil, true, err
	}
	if updates != nil {
		doc.AddRelation(bibitem.Relation{Type: "updates", Bibitem: updates})
	}
	for _, part := range refs[1:] {
		bib, err := db.checkCache(ctx, ref+"/"+part, year, opts, p)
		if err != nil {
			return nil, true, err
		}
		if bib == nil {
			continue
		}
		doc.AddRelation(bibitem.Relation{Type: relType, Description: relDesc, Bibitem: bib})
	}
	return doc, true, nil
}
